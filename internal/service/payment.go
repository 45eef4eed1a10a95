package service

import (
	"fmt"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"symposium/internal/apperr"
	"symposium/internal/dto"
	"symposium/internal/mailer"
	"symposium/internal/qr"
	"symposium/internal/repo"
	"symposium/pkg/validator"
)

// minTransactionIDLen rejects obviously truncated UPI references before
// touching the database.
const minTransactionIDLen = 8

func (s *service) VerifyPayment(ctx *ginext.Context) {
	var req dto.VerifyPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	txnID := strings.TrimSpace(req.TransactionID)
	if txnID == "" {
		dto.AppError(ctx, apperr.New(apperr.TransactionIDRequired, "Transaction id is required"))
		return
	}
	if len(txnID) < minTransactionIDLen {
		dto.AppError(ctx, apperr.New(apperr.TransactionIDInvalid, "Transaction id looks too short"))
		return
	}

	method := req.Method
	if method == "" {
		method = "UPI"
	}

	res, err := s.repo.VerifyPaymentTx(ctx.Request.Context(), repo.PaymentInput{
		ParticipantID: req.ParticipantID,
		TransactionID: txnID,
		Amount:        req.Amount,
		Method:        method,
	})
	if err != nil {
		if _, ok := apperr.From(err); ok {
			dto.AppError(ctx, err)
			return
		}
		s.log.Error().Err(err).Msg("payment verification failed")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().
		Int64("payment_id", res.PaymentID).
		Int64("participant_id", res.Participant.ID).
		Float64("amount", res.TotalAmount).
		Msg("payment recorded")

	s.invalidate(ctx.Request.Context(), res.Participant.ID, res.Participant.Email)
	subject, body := mailer.PaymentConfirmedBody(res.Participant.FullName, res.RegistrationIDs, res.TotalAmount)
	s.queueEmail(res.Participant.Email, subject, body)

	// QR rendering is best-effort: payment success never depends on it.
	payload := qr.Payload(res.Participant.ID, res.RegistrationIDs)
	image := s.qr.Encode(payload)

	dto.SuccessResponse(ctx, dto.VerifyPaymentResponse{
		PaymentID:       res.PaymentID,
		AmountConfirmed: res.TotalAmount,
		RegistrationIDs: res.RegistrationIDs,
		QRPayload:       payload,
		QRImage:         image,
	})
}

// ManualVerify is the admin action for a single participant whose payment
// was confirmed out of band.
func (s *service) ManualVerify(ctx *ginext.Context) {
	var req dto.ManualVerifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	p, err := s.repo.ManualVerifyTx(ctx.Request.Context(), req.ParticipantID, req.Notes)
	if err != nil {
		if _, ok := apperr.From(err); ok {
			dto.AppError(ctx, err)
			return
		}
		s.log.Error().Err(err).Msg("manual verification failed")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("participant_id", p.ID).Msg("payment manually verified")
	s.invalidate(ctx.Request.Context(), p.ID, p.Email)

	dto.SuccessResponse(ctx, map[string]any{
		"participant_id": p.ID,
		"verified":       true,
	})
}
