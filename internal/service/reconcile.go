package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"symposium/internal/apperr"
	"symposium/internal/cache"
	"symposium/internal/dto"
	"symposium/internal/model"
	"symposium/pkg/validator"
)

// amountTolerance absorbs paise-level rounding between the bank export and
// the recorded amount.
const amountTolerance = 0.01

type reconcileMatch struct {
	paymentIDs     []int64
	participantIDs []int64
	failures       []dto.ReconcileFailure
}

// matchBatch scans the bank export for each unverified candidate payment.
// Exact trimmed id match plus amount within tolerance promotes; an id match
// with a wrong amount or a missing id is reported with context and mutates
// nothing. Pure so re-running the same batch is trivially deterministic.
func matchBatch(records []dto.ReconcileRecord, candidates []model.Payment) reconcileMatch {
	byID := make(map[string]dto.ReconcileRecord, len(records))
	for _, rec := range records {
		byID[strings.TrimSpace(rec.TransactionID)] = rec
	}

	var m reconcileMatch
	seenParticipant := make(map[int64]bool)
	for _, p := range candidates {
		rec, found := byID[strings.TrimSpace(p.TransactionID)]
		if !found {
			m.failures = append(m.failures, dto.ReconcileFailure{
				TransactionID: p.TransactionID,
				Reason:        "TRANSACTION_NOT_FOUND",
				ParticipantID: p.ParticipantID,
			})
			continue
		}
		if math.Abs(rec.Amount-p.Amount) > amountTolerance {
			m.failures = append(m.failures, dto.ReconcileFailure{
				TransactionID: p.TransactionID,
				Reason:        "AMOUNT_MISMATCH",
				Expected:      p.Amount,
				Received:      rec.Amount,
				ParticipantID: p.ParticipantID,
			})
			continue
		}
		m.paymentIDs = append(m.paymentIDs, p.ID)
		if !seenParticipant[p.ParticipantID] {
			seenParticipant[p.ParticipantID] = true
			m.participantIDs = append(m.participantIDs, p.ParticipantID)
		}
	}
	return m
}

// ReconcilePayments batch-matches a bank/UPI settlement export against
// recorded payments. Idempotent: already-verified participants are excluded
// from candidate scanning up front, so re-submitting the same file verifies
// nothing new.
func (s *service) ReconcilePayments(ctx *ginext.Context) {
	var req dto.ReconcileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	rctx := ctx.Request.Context()

	verified, err := s.repo.VerifiedPayments(rctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load verified payments")
		dto.InternalServerError(ctx)
		return
	}

	candidates, err := s.repo.UnverifiedCandidates(rctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load unverified payments")
		dto.InternalServerError(ctx)
		return
	}

	m := matchBatch(req.Records, candidates)

	if err := s.repo.ApplyVerificationsTx(rctx, m.paymentIDs, m.participantIDs); err != nil {
		s.log.Error().Err(err).Msg("failed to apply verifications")
		dto.InternalServerError(ctx)
		return
	}

	for _, pid := range m.participantIDs {
		s.invalidate(rctx, pid, "")
	}
	// Candidate payments carry no email, so the per-participant invalidate
	// above cannot reach track caches; clear them wholesale once per batch.
	if len(m.participantIDs) > 0 {
		if err := s.store.DeletePattern(rctx, cache.TrackPattern); err != nil {
			s.log.Warn().Err(err).Msg("track cache invalidation failed")
		}
	}

	s.log.Info().
		Int("newly_verified", len(m.paymentIDs)).
		Int("failed", len(m.failures)).
		Msg("reconciliation batch applied")

	dto.SuccessResponse(ctx, dto.ReconcileResponse{
		NewlyVerified: len(m.paymentIDs),
		Failed:        len(m.failures),
		TotalVerified: len(verified) + len(m.paymentIDs),
		Failures:      m.failures,
	})
}
