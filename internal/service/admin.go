package service

import (
	"bytes"
	"crypto/subtle"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"symposium/internal/apperr"
	"symposium/internal/cache"
	"symposium/internal/dto"
	"symposium/pkg/validator"
)

// AdminLogin exchanges the configured credentials for an opaque bearer token
// stored with a real, enforced TTL.
func (s *service) AdminLogin(ctx *ginext.Context) {
	var req dto.AdminLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.AdminPassword)) == 1
	if !userOK || !passOK {
		dto.UnauthorizedError(ctx)
		return
	}

	token := uuid.NewString()
	if err := s.store.Set(ctx.Request.Context(), cache.SessionKey(token), req.Username, s.cfg.SessionTTL); err != nil {
		s.log.Error().Err(err).Msg("failed to store admin session")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Str("username", req.Username).Msg("admin logged in")
	dto.SuccessResponse(ctx, dto.AdminLoginResponse{
		Token:     token,
		ExpiresIn: int(s.cfg.SessionTTL.Seconds()),
	})
}

func (s *service) SearchParticipants(ctx *ginext.Context) {
	query := strings.TrimSpace(ctx.Query("q"))
	if query == "" {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Query parameter 'q' is required")
		return
	}

	participants, err := s.repo.SearchParticipants(ctx.Request.Context(), query)
	if err != nil {
		s.log.Error().Err(err).Msg("participant search failed")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, participants)
}

// AdminStats serves the aggregate dashboard numbers, cached briefly because
// the dashboard polls.
func (s *service) AdminStats(ctx *ginext.Context) {
	rctx := ctx.Request.Context()

	if cached, err := s.store.Get(rctx, "stats:aggregate"); err == nil {
		var data any
		if json.Unmarshal([]byte(cached), &data) == nil {
			dto.SuccessResponse(ctx, data)
			return
		}
	}

	stats, err := s.repo.Stats(rctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compute stats")
		dto.InternalServerError(ctx)
		return
	}

	if raw, err := json.Marshal(stats); err == nil {
		if err := s.store.Set(rctx, "stats:aggregate", string(raw), statsCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache stats")
		}
	}
	dto.SuccessResponse(ctx, stats)
}

func (s *service) ExportCSV(ctx *ginext.Context) {
	rows, err := s.repo.ExportRegistrations(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("export failed")
		dto.InternalServerError(ctx)
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{
		"reg_id", "full_name", "email", "phone", "institution", "department",
		"year", "cohort", "event", "amount", "payment_status", "attendance_status",
	})
	for _, r := range rows {
		_ = w.Write([]string{
			r.RegID, r.FullName, r.Email, r.Phone, r.Institution, r.Department,
			strconv.Itoa(r.Year), r.Cohort, r.EventName,
			strconv.FormatFloat(r.Amount, 'f', 2, 64),
			r.PaymentStatus, r.AttendanceStatus,
		})
	}
	w.Flush()

	ctx.Header("Content-Disposition", `attachment; filename="registrations.csv"`)
	ctx.Data(200, "text/csv", buf.Bytes())
}

// Track is the participant-facing status lookup by email, cached until the
// next mutation invalidates it.
func (s *service) Track(ctx *ginext.Context) {
	email := strings.TrimSpace(ctx.Query("email"))
	if email == "" {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Query parameter 'email' is required")
		return
	}

	rctx := ctx.Request.Context()
	key := cache.TrackKey(email)

	if cached, err := s.store.Get(rctx, key); err == nil {
		var data any
		if json.Unmarshal([]byte(cached), &data) == nil {
			dto.SuccessResponse(ctx, data)
			return
		}
	}

	info, err := s.repo.TrackByEmail(rctx, email)
	if err != nil {
		if _, ok := apperr.From(err); ok {
			dto.AppError(ctx, err)
			return
		}
		s.log.Error().Err(err).Msg("tracking lookup failed")
		dto.InternalServerError(ctx)
		return
	}

	if raw, err := json.Marshal(info); err == nil {
		if err := s.store.Set(rctx, key, string(raw), trackCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache tracking info")
		}
	}
	dto.SuccessResponse(ctx, info)
}

func (s *service) ListAnnouncements(ctx *ginext.Context) {
	items, err := s.repo.ListAnnouncements(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list announcements")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, items)
}

func (s *service) CreateAnnouncement(ctx *ginext.Context) {
	var req dto.CreateAnnouncementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	id, err := s.repo.CreateAnnouncement(ctx.Request.Context(), req.Title, req.Body)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create announcement")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessCreatedResponse(ctx, map[string]int64{"id": id})
}

func (s *service) DeleteAnnouncement(ctx *ginext.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, apperr.FieldIncorrect, "Invalid announcement id")
		return
	}
	if err := s.repo.DeleteAnnouncement(ctx.Request.Context(), id); err != nil {
		s.log.Error().Err(err).Msg("failed to delete announcement")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, map[string]bool{"deleted": true})
}
