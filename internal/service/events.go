package service

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"symposium/internal/dto"
)

const (
	statsCacheTTL = 30 * time.Second
	trackCacheTTL = 5 * time.Minute
)

func (s *service) ListEvents(ctx *ginext.Context) {
	rctx := ctx.Request.Context()

	if _, err := s.repo.AutoCloseEvents(rctx, time.Now()); err != nil {
		s.log.Warn().Err(err).Msg("auto-close sweep failed")
	}

	events, err := s.repo.ListActiveEvents(rctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, events)
}

func (s *service) EventDates(ctx *ginext.Context) {
	now := time.Now()
	secondsToGo := int64(s.cfg.DayOne.Sub(now).Seconds())
	if secondsToGo < 0 {
		secondsToGo = 0
	}

	dto.SuccessResponse(ctx, dto.EventDatesResponse{
		DayOne:           s.cfg.DayOne,
		DayTwo:           s.cfg.DayTwo,
		SecondsToGo:      secondsToGo,
		RegistrationOpen: now.Before(s.cfg.RegistrationClosesAt),
	})
}
