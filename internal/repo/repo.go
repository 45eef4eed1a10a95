package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"symposium/internal/apperr"
	"symposium/internal/model"
	"symposium/internal/pricing"
)

type Repository interface {
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error

	EmailExists(ctx context.Context, email string) (bool, error)
	GetParticipantByID(ctx context.Context, id int64) (*model.Participant, error)
	ListActiveEvents(ctx context.Context) ([]model.Event, error)
	AutoCloseEvents(ctx context.Context, now time.Time) (int64, error)

	RegisterTx(ctx context.Context, in RegistrationInput) (*RegistrationResult, error)
	VerifyPaymentTx(ctx context.Context, in PaymentInput) (*PaymentResult, error)
	ManualVerifyTx(ctx context.Context, participantID int64, notes string) (*model.Participant, error)

	VerifiedPayments(ctx context.Context) ([]model.Payment, error)
	UnverifiedCandidates(ctx context.Context) ([]model.Payment, error)
	ApplyVerificationsTx(ctx context.Context, paymentIDs, participantIDs []int64) error

	MarkAttendedTx(ctx context.Context, regID string) (*AttendanceOutcome, error)
	FindRegID(ctx context.Context, participantID, eventID int64) (string, error)

	SearchParticipants(ctx context.Context, query string) ([]model.Participant, error)
	Stats(ctx context.Context) (*Stats, error)
	ExportRegistrations(ctx context.Context) ([]ExportRow, error)
	TrackByEmail(ctx context.Context, email string) (*TrackInfo, error)

	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
	CreateAnnouncement(ctx context.Context, title, body string) (int64, error)
	DeleteAnnouncement(ctx context.Context, id int64) error
}

type repository struct {
	db     *dbpg.DB
	log    *zerolog.Logger
	pricer pricing.Policy
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger, pricer pricing.Policy) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log, pricer: pricer}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM participants WHERE lower(email) = lower($1))`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *repository) GetParticipantByID(ctx context.Context, id int64) (*model.Participant, error) {
	query := `
		SELECT id, full_name, email, phone, institution, department, year,
		       gender, cohort, COALESCE(roll_number, ''), created_at
		FROM participants WHERE id = $1
	`
	var p model.Participant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.Institution, &p.Department,
		&p.Year, &p.Gender, &p.Cohort, &p.RollNumber, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ParticipantNotFound, "Participant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}
	return &p, nil
}

func (r *repository) ListActiveEvents(ctx context.Context) ([]model.Event, error) {
	query := `
		SELECT id, name, type, day, fee, total_seats, available_seats,
		       cse_seats, cse_available_seats, is_active, closes_at, created_at
		FROM events
		WHERE is_active
		ORDER BY day, name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Type, &e.Day, &e.Fee, &e.TotalSeats, &e.AvailableSeats,
			&e.CSESeats, &e.CSEAvailableSeats, &e.IsActive, &e.ClosesAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AutoCloseEvents flips every active event whose closing date has passed.
// Invoked synchronously from the read paths rather than by a scheduler.
func (r *repository) AutoCloseEvents(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET is_active = false WHERE is_active AND closes_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to auto-close events: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.log.Info().Int64("closed", n).Msg("events auto-closed")
	}
	return n, nil
}

// int64Placeholders renders "$start,$start+1,..." for IN clauses and returns
// the matching args slice.
func int64Placeholders(start int, ids []int64) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", start+i)
		args[i] = id
	}
	return strings.Join(ph, ","), args
}

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), the shape the loser of a concurrent insert
// race sees after the winner commits.
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
