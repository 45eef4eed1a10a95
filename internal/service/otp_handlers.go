package service

import (
	"fmt"

	"github.com/wb-go/wbf/ginext"

	"symposium/internal/apperr"
	"symposium/internal/dto"
	"symposium/pkg/validator"
)

func (s *service) IssueOTP(ctx *ginext.Context) {
	var req dto.IssueOTPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse issue-otp request")
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	if err := s.verifier.IssueCode(ctx.Request.Context(), req.Email, req.Name); err != nil {
		dto.AppError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, map[string]string{"message": "Verification code sent"})
}

func (s *service) VerifyOTP(ctx *ginext.Context) {
	var req dto.VerifyOTPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	token, err := s.verifier.VerifyCode(ctx.Request.Context(), req.Email, req.Code)
	if err != nil {
		dto.AppError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, dto.VerifyOTPResponse{Token: token, ExpiresIn: 900})
}
