package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"symposium/internal/apperr"
	"symposium/internal/model"
)

type EventStats struct {
	EventID       int64   `json:"event_id"`
	EventName     string  `json:"event_name"`
	EventType     string  `json:"event_type"`
	Registrations int     `json:"registrations"`
	Confirmed     int     `json:"confirmed"`
	Attended      int     `json:"attended"`
	Revenue       float64 `json:"revenue"`
}

type Stats struct {
	Participants   int          `json:"participants"`
	Registrations  int          `json:"registrations"`
	VerifiedPaid   int          `json:"verified_participants"`
	TotalRevenue   float64      `json:"total_revenue"`
	PerEvent       []EventStats `json:"per_event"`
}

type ExportRow struct {
	RegID            string
	FullName         string
	Email            string
	Phone            string
	Institution      string
	Department       string
	Year             int
	Cohort           string
	EventName        string
	Amount           float64
	PaymentStatus    string
	AttendanceStatus string
}

type TrackInfo struct {
	Participant   model.Participant    `json:"participant"`
	Registrations []model.Registration `json:"registrations"`
	LatestPayment *model.Payment       `json:"latest_payment,omitempty"`
}

func (r *repository) SearchParticipants(ctx context.Context, query string) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, full_name, email, phone, institution, department, year,
		       gender, cohort, COALESCE(roll_number, ''), created_at
		FROM participants
		WHERE full_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY full_name
		LIMIT 100
	`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(
			&p.ID, &p.FullName, &p.Email, &p.Phone, &p.Institution, &p.Department,
			&p.Year, &p.Gender, &p.Cohort, &p.RollNumber, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM participants),
			(SELECT COUNT(*) FROM registrations),
			(SELECT COUNT(DISTINCT participant_id) FROM payments WHERE verified_by_admin = true),
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'Success')
	`).Scan(&s.Participants, &s.Registrations, &s.VerifiedPaid, &s.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to load totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.type,
		       COUNT(r.id),
		       COUNT(r.id) FILTER (WHERE r.payment_status = 'Success'),
		       COUNT(r.id) FILTER (WHERE r.attendance_status = 'ATTENDED'),
		       COALESCE(SUM(r.amount_paid) FILTER (WHERE r.payment_status = 'Success'), 0)
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		GROUP BY e.id, e.name, e.type
		ORDER BY e.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load per-event stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var es EventStats
		if err := rows.Scan(
			&es.EventID, &es.EventName, &es.EventType,
			&es.Registrations, &es.Confirmed, &es.Attended, &es.Revenue,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event stats: %w", err)
		}
		s.PerEvent = append(s.PerEvent, es)
	}
	return &s, rows.Err()
}

func (r *repository) ExportRegistrations(ctx context.Context) ([]ExportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.reg_id, p.full_name, p.email, p.phone, p.institution, p.department,
		       p.year, p.cohort, e.name, r.amount_paid, r.payment_status, r.attendance_status
		FROM registrations r
		JOIN participants p ON p.id = r.participant_id
		JOIN events e ON e.id = r.event_id
		ORDER BY r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to export registrations: %w", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		if err := rows.Scan(
			&row.RegID, &row.FullName, &row.Email, &row.Phone, &row.Institution,
			&row.Department, &row.Year, &row.Cohort, &row.EventName, &row.Amount,
			&row.PaymentStatus, &row.AttendanceStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) TrackByEmail(ctx context.Context, email string) (*TrackInfo, error) {
	var info TrackInfo
	p := &info.Participant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, institution, department, year,
		       gender, cohort, COALESCE(roll_number, ''), created_at
		FROM participants WHERE lower(email) = lower($1)
	`, email).Scan(
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.Institution, &p.Department,
		&p.Year, &p.Gender, &p.Cohort, &p.RollNumber, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ParticipantNotFound, "No participant with this email")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, reg_id, participant_id, event_id, amount_paid,
		       payment_status, attendance_status, created_at, updated_at
		FROM registrations WHERE participant_id = $1 ORDER BY id
	`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var reg model.Registration
		if err := rows.Scan(
			&reg.ID, &reg.RegID, &reg.ParticipantID, &reg.EventID, &reg.AmountPaid,
			&reg.PaymentStatus, &reg.AttendanceStatus, &reg.CreatedAt, &reg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		info.Registrations = append(info.Registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payments, err := r.queryPayments(ctx, `
		SELECT id, participant_id, transaction_id, amount, method, status,
		       verified_by_admin, verified_at, COALESCE(notes, ''), created_at
		FROM payments
		WHERE participant_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, p.ID)
	if err != nil {
		return nil, err
	}
	if len(payments) > 0 {
		info.LatestPayment = &payments[0]
	}
	return &info, nil
}

func (r *repository) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, body, created_at FROM announcements ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	var out []model.Announcement
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) CreateAnnouncement(ctx context.Context, title, body string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO announcements (title, body, created_at) VALUES ($1, $2, NOW()) RETURNING id`,
		title, body,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create announcement: %w", err)
	}
	return id, nil
}

func (r *repository) DeleteAnnouncement(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	return nil
}
