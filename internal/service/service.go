package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"symposium/internal/cache"
	"symposium/internal/otp"
	"symposium/internal/qr"
	"symposium/internal/repo"
)

type Service interface {
	IssueOTP(ctx *ginext.Context)
	VerifyOTP(ctx *ginext.Context)

	Register(ctx *ginext.Context)
	RegisterPartner(ctx *ginext.Context)

	VerifyPayment(ctx *ginext.Context)
	ReconcilePayments(ctx *ginext.Context)
	ManualVerify(ctx *ginext.Context)

	ScanAttendance(ctx *ginext.Context)
	ManualAttendance(ctx *ginext.Context)

	AdminLogin(ctx *ginext.Context)
	SearchParticipants(ctx *ginext.Context)
	AdminStats(ctx *ginext.Context)
	ExportCSV(ctx *ginext.Context)
	Track(ctx *ginext.Context)

	ListAnnouncements(ctx *ginext.Context)
	CreateAnnouncement(ctx *ginext.Context)
	DeleteAnnouncement(ctx *ginext.Context)

	ListEvents(ctx *ginext.Context)
	EventDates(ctx *ginext.Context)
}

// Config carries the business knobs the workflows need: the registration
// deadline, symposium days, and admin credentials for the login exchange.
type Config struct {
	RegistrationClosesAt time.Time
	DayOne               time.Time
	DayTwo               time.Time
	AdminUsername        string
	AdminPassword        string
	SessionTTL           time.Duration
}

// MailQueue enqueues post-commit notifications for the worker to deliver.
type MailQueue interface {
	Send(to, subject, body string) error
}

type service struct {
	repo     repo.Repository
	store    cache.Store
	verifier *otp.Verifier
	qr       qr.Renderer
	mailq    MailQueue
	cfg      Config
	log      *zerolog.Logger
}

func NewService(
	r repo.Repository,
	store cache.Store,
	verifier *otp.Verifier,
	renderer qr.Renderer,
	mailq MailQueue,
	cfg Config,
	logger *zerolog.Logger,
) Service {
	return &service{
		repo:     r,
		store:    store,
		verifier: verifier,
		qr:       renderer,
		mailq:    mailq,
		cfg:      cfg,
		log:      logger,
	}
}

// invalidate drops derived caches for one participant after a committed
// mutation. Best effort by design.
func (s *service) invalidate(ctx context.Context, participantID int64, email string) {
	cache.InvalidateParticipant(ctx, s.store, s.log, participantID, email)
}

// queueEmail enqueues a post-commit notification; failures are logged only.
func (s *service) queueEmail(to, subject, body string) {
	if err := s.mailq.Send(to, subject, body); err != nil {
		s.log.Warn().Err(err).Str("to", to).Msg("failed to queue notification")
	}
}
