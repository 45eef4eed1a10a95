package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"symposium/internal/apperr"
	"symposium/internal/attendance"
	"symposium/internal/model"
)

type AttendanceOutcome struct {
	RegID         string
	EventName     string
	ParticipantID int64
	Email         string
	Admitted      bool
	AlreadyMarked bool
	Reason        string
	Suggestion    string
}

// MarkAttendedTx evaluates the gate rule against a locked registration row
// and performs the one-way NOT_ATTENDED -> ATTENDED transition. An already
// attended registration short-circuits to an idempotent success without
// re-evaluating rules; a denial mutates nothing.
func (r *repository) MarkAttendedTx(ctx context.Context, regID string) (*AttendanceOutcome, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var (
		rowID      int64
		amount     float64
		payStatus  model.PaymentStatus
		attStatus  model.AttendanceStatus
		eventType  model.EventType
		eventName  string
		cohort     model.Cohort
		year       int
		pID        int64
		email      string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT r.id, r.amount_paid, r.payment_status, r.attendance_status,
		       e.type, e.name, p.cohort, p.year, p.id, p.email
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		JOIN participants p ON p.id = r.participant_id
		WHERE r.reg_id = $1
		FOR UPDATE OF r
	`, regID).Scan(&rowID, &amount, &payStatus, &attStatus, &eventType, &eventName, &cohort, &year, &pID, &email)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, apperr.Newf(apperr.RegistrationNotFound, "Registration %s not found", regID)
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}

	out := &AttendanceOutcome{
		RegID:         regID,
		EventName:     eventName,
		ParticipantID: pID,
		Email:         email,
	}

	if attStatus == model.Attended {
		_ = tx.Rollback()
		out.Admitted = true
		out.AlreadyMarked = true
		return out, nil
	}

	var verified bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payments WHERE participant_id = $1 AND verified_by_admin = true)`,
		pID,
	).Scan(&verified)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to check admin verification: %w", err)
	}

	decision := attendance.Decide(attendance.Input{
		Cohort:          cohort,
		EventType:       eventType,
		Year:            year,
		AmountPaid:      amount,
		PaymentStatus:   payStatus,
		VerifiedByAdmin: verified,
	})
	if !decision.Admit {
		_ = tx.Rollback()
		out.Reason = decision.Reason
		out.Suggestion = decision.Suggestion
		return out, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET attendance_status = $1, updated_at = NOW()
		WHERE id = $2 AND attendance_status = $3
	`, model.Attended, rowID, model.NotAttended); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to mark attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	out.Admitted = true
	return out, nil
}

func (r *repository) FindRegID(ctx context.Context, participantID, eventID int64) (string, error) {
	var regID string
	err := r.db.QueryRowContext(ctx,
		`SELECT reg_id FROM registrations WHERE participant_id = $1 AND event_id = $2`,
		participantID, eventID,
	).Scan(&regID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.RegistrationNotFound, "No registration for this participant and event")
	}
	if err != nil {
		return "", fmt.Errorf("failed to find registration: %w", err)
	}
	return regID, nil
}
