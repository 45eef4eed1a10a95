package service

import (
	"fmt"
	"time"

	"github.com/wb-go/wbf/ginext"

	"symposium/internal/apperr"
	"symposium/internal/dto"
	"symposium/internal/mailer"
	"symposium/internal/model"
	"symposium/internal/repo"
	"symposium/pkg/validator"
)

// Register handles the general-cohort flow: a verification token from the
// OTP exchange stands in for identity.
func (s *service) Register(ctx *ginext.Context) {
	var req dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	// The token is consumed up front, before any downstream work, so a
	// replayed token can never back a second registration.
	email, err := s.verifier.RedeemToken(ctx.Request.Context(), req.Token, req.Email)
	if err != nil {
		dto.AppError(ctx, err)
		return
	}

	s.register(ctx, repo.RegistrationInput{
		Participant: model.Participant{
			FullName:    req.FullName,
			Email:       email,
			Phone:       req.Phone,
			Institution: req.Institution,
			Department:  req.Department,
			Year:        req.Year,
			Gender:      req.Gender,
			Cohort:      model.CohortGeneral,
		},
		WorkshopIDs: req.WorkshopIDs,
		EventIDs:    req.EventIDs,
	})
}

// RegisterPartner handles the partner-institution flow: a roster roll number
// stands in for identity and the quota pool applies.
func (s *service) RegisterPartner(ctx *ginext.Context) {
	var req dto.RegisterPartnerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	s.register(ctx, repo.RegistrationInput{
		Participant: model.Participant{
			FullName:    req.FullName,
			Email:       req.Email,
			Phone:       req.Phone,
			Institution: "Partner Institution",
			Department:  req.Department,
			Year:        req.Year,
			Gender:      req.Gender,
			Cohort:      model.CohortPartner,
			RollNumber:  req.RollNumber,
		},
		WorkshopIDs: req.WorkshopIDs,
		EventIDs:    req.EventIDs,
	})
}

func (s *service) register(ctx *ginext.Context, in repo.RegistrationInput) {
	now := time.Now()
	if now.After(s.cfg.RegistrationClosesAt) {
		dto.AppError(ctx, apperr.New(apperr.RegistrationClosed, "Registration has closed"))
		return
	}

	if len(in.WorkshopIDs)+len(in.EventIDs) == 0 {
		dto.AppError(ctx, apperr.New(apperr.NoEventsSelected, "Select at least one workshop or event"))
		return
	}

	// Opportunistic sweep so a passed closing date cannot leave stale
	// active events claimable.
	if _, err := s.repo.AutoCloseEvents(ctx.Request.Context(), now); err != nil {
		s.log.Warn().Err(err).Msg("auto-close sweep failed")
	}

	res, err := s.repo.RegisterTx(ctx.Request.Context(), in)
	if err != nil {
		if _, ok := apperr.From(err); ok {
			dto.AppError(ctx, err)
			return
		}
		s.log.Error().Err(err).Msg("registration failed")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().
		Int64("participant_id", res.ParticipantID).
		Strs("reg_ids", res.RegistrationIDs).
		Float64("total", res.TotalAmount).
		Msg("registration created")

	s.invalidate(ctx.Request.Context(), res.ParticipantID, in.Participant.Email)
	subject, body := mailer.RegistrationBody(in.Participant.FullName, res.RegistrationIDs, res.TotalAmount, res.PaymentRef)
	s.queueEmail(in.Participant.Email, subject, body)

	dto.SuccessCreatedResponse(ctx, dto.RegisterResponse{
		ParticipantID:   res.ParticipantID,
		RegistrationIDs: res.RegistrationIDs,
		TotalAmount:     res.TotalAmount,
		PaymentRef:      res.PaymentRef,
	})
}
