package service

import (
	"fmt"

	"github.com/wb-go/wbf/ginext"

	"symposium/internal/apperr"
	"symposium/internal/dto"
	"symposium/internal/qr"
	"symposium/pkg/validator"
)

// ScanAttendance resolves a scanned QR payload and marks each registration
// it names. Per-registration outcomes are reported individually; a denied
// line never blocks an admitted one.
func (s *service) ScanAttendance(ctx *ginext.Context) {
	var req dto.ScanAttendanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	_, regIDs, ok := qr.ParsePayload(req.QRPayload)
	if !ok {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Unrecognized QR payload")
		return
	}

	results := make([]dto.AttendanceResponse, 0, len(regIDs))
	for _, regID := range regIDs {
		res, err := s.markOne(ctx, regID)
		if err != nil {
			dto.AppError(ctx, err)
			return
		}
		results = append(results, *res)
	}

	dto.SuccessResponse(ctx, results)
}

// ManualAttendance marks one registration located by participant and event,
// for when the QR is unavailable at the desk.
func (s *service) ManualAttendance(ctx *ginext.Context) {
	var req dto.ManualAttendanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	regID, err := s.repo.FindRegID(ctx.Request.Context(), req.ParticipantID, req.EventID)
	if err != nil {
		dto.AppError(ctx, err)
		return
	}

	res, err := s.markOne(ctx, regID)
	if err != nil {
		dto.AppError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, res)
}

func (s *service) markOne(ctx *ginext.Context, regID string) (*dto.AttendanceResponse, error) {
	out, err := s.repo.MarkAttendedTx(ctx.Request.Context(), regID)
	if err != nil {
		if _, ok := apperr.From(err); ok {
			return nil, err
		}
		s.log.Error().Err(err).Str("reg_id", regID).Msg("attendance marking failed")
		return nil, err
	}

	if out.Admitted && !out.AlreadyMarked {
		s.log.Info().Str("reg_id", regID).Str("event", out.EventName).Msg("attendance marked")
		s.invalidate(ctx.Request.Context(), out.ParticipantID, out.Email)
	}

	return &dto.AttendanceResponse{
		RegID:         out.RegID,
		Admitted:      out.Admitted,
		AlreadyMarked: out.AlreadyMarked,
		Reason:        out.Reason,
		Suggestion:    out.Suggestion,
	}, nil
}
