package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"symposium/internal/apperr"
	"symposium/internal/model"
)

// declaredAmountTolerance absorbs paise-level rounding in client-entered
// amounts, matching the tolerance used for bank-file reconciliation.
const declaredAmountTolerance = 0.01

// declaredAmountMatches accepts a declared amount of the owed total within
// tolerance. A zero declared amount is handled by the caller: it means the
// client did not state one.
func declaredAmountMatches(declared, owed float64) bool {
	return math.Abs(declared-owed) <= declaredAmountTolerance
}

type PaymentInput struct {
	ParticipantID int64
	TransactionID string
	Amount        float64
	Method        string
}

type PaymentResult struct {
	PaymentID       int64
	Participant     model.Participant
	RegistrationIDs []string
	TotalAmount     float64
}

// VerifyPaymentTx records one payment attempt and confirms every pending
// line of the participant, atomically. Seats are re-checked against freshly
// locked event rows at this moment, not against anything read earlier; if any
// line's pool is exhausted the whole payment aborts with no partial
// confirmation.
func (r *repository) VerifyPaymentTx(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
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

	// Transaction references are globally unique: the same external
	// reference must never be attributed twice, to anyone.
	var dup bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payments WHERE transaction_id = $1)`,
		in.TransactionID,
	).Scan(&dup)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to check transaction id: %w", err)
	}
	if dup {
		_ = tx.Rollback()
		return nil, apperr.New(apperr.DuplicateTransaction, "This transaction id has already been submitted")
	}

	var p model.Participant
	err = tx.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, institution, department, year,
		       gender, cohort, COALESCE(roll_number, ''), created_at
		FROM participants WHERE id = $1
	`, in.ParticipantID).Scan(
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.Institution, &p.Department,
		&p.Year, &p.Gender, &p.Cohort, &p.RollNumber, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, apperr.New(apperr.ParticipantNotFound, "Participant not found")
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, reg_id, event_id, amount_paid
		FROM registrations
		WHERE participant_id = $1 AND payment_status = $2
		ORDER BY event_id
		FOR UPDATE
	`, p.ID, model.PaymentPending)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to load pending registrations: %w", err)
	}

	type pendingLine struct {
		id      int64
		regID   string
		eventID int64
		amount  float64
	}
	var pending []pendingLine
	for rows.Next() {
		var l pendingLine
		if err := rows.Scan(&l.id, &l.regID, &l.eventID, &l.amount); err != nil {
			rows.Close()
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		pending = append(pending, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to read registrations: %w", err)
	}

	if len(pending) == 0 {
		_ = tx.Rollback()
		return nil, apperr.New(apperr.NoPendingRegistrations, "No pending registrations to pay for")
	}

	var total float64
	regIDs := make([]string, 0, len(pending))
	seatsPerEvent := make(map[int64]int)
	for _, l := range pending {
		total += l.amount
		regIDs = append(regIDs, l.regID)
		seatsPerEvent[l.eventID]++
	}
	if total <= 0 {
		_ = tx.Rollback()
		return nil, apperr.New(apperr.InvalidAmount, "Amount owed must be positive")
	}
	if in.Amount > 0 && !declaredAmountMatches(in.Amount, total) {
		_ = tx.Rollback()
		return nil, apperr.New(apperr.InvalidAmount, "Declared amount does not match amount owed").
			With("expected", total).
			With("received", in.Amount)
	}

	// Lock the event rows in id order so two concurrent payments cannot
	// deadlock, then re-check capacity for each seat being taken now.
	eventIDs := make([]int64, 0, len(seatsPerEvent))
	for id := range seatsPerEvent {
		eventIDs = append(eventIDs, id)
	}
	sort.Slice(eventIDs, func(i, j int) bool { return eventIDs[i] < eventIDs[j] })

	for _, eventID := range eventIDs {
		var e model.Event
		err = tx.QueryRowContext(ctx, `
			SELECT id, name, type, available_seats, cse_available_seats, is_active
			FROM events WHERE id = $1
			FOR UPDATE
		`, eventID).Scan(&e.ID, &e.Name, &e.Type, &e.AvailableSeats, &e.CSEAvailableSeats, &e.IsActive)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to lock event %d: %w", eventID, err)
		}
		if available(e, p.Cohort) < seatsPerEvent[eventID] {
			_ = tx.Rollback()
			return nil, apperr.Newf(apperr.SeatsFullAtPayment, "%s sold out before payment completed", e.Name).
				With("event", e.Name).
				With("pool", string(p.Cohort))
		}
	}

	var paymentID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (participant_id, transaction_id, amount, method, status, verified_by_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, false, NOW())
		RETURNING id
	`, p.ID, in.TransactionID, total, in.Method, model.PaymentSuccess).Scan(&paymentID)
	if err != nil {
		_ = tx.Rollback()
		// Loser of a concurrent submit with the same reference: the
		// unique index fires where the EXISTS check could not see the
		// uncommitted winner.
		if uniqueViolation(err) {
			return nil, apperr.New(apperr.DuplicateTransaction, "This transaction id has already been submitted")
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	for _, eventID := range eventIDs {
		for i := 0; i < seatsPerEvent[eventID]; i++ {
			if err := decrementSeat(ctx, tx, eventID, p.Cohort); err != nil {
				_ = tx.Rollback()
				return nil, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET payment_status = $1, updated_at = NOW()
		WHERE participant_id = $2 AND payment_status = $3
	`, model.PaymentSuccess, p.ID, model.PaymentPending); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to confirm registrations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &PaymentResult{
		PaymentID:       paymentID,
		Participant:     p,
		RegistrationIDs: regIDs,
		TotalAmount:     total,
	}, nil
}

// ManualVerifyTx is the single-participant admin action: mark the latest
// successful payment admin-verified and cascade-confirm pending lines.
func (r *repository) ManualVerifyTx(ctx context.Context, participantID int64, notes string) (*model.Participant, error) {
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

	p, err := r.GetParticipantByID(ctx, participantID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	var paymentID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM payments
		WHERE participant_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, participantID, model.PaymentSuccess).Scan(&paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, apperr.New(apperr.NoPaymentFound, "Participant has no successful payment to verify")
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET verified_by_admin = true, verified_at = NOW(), notes = $1
		WHERE id = $2 AND verified_by_admin = false
	`, notes, paymentID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET payment_status = $1, updated_at = NOW()
		WHERE participant_id = $2 AND payment_status = $3
	`, model.PaymentSuccess, participantID, model.PaymentPending); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to confirm registrations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

func (r *repository) VerifiedPayments(ctx context.Context) ([]model.Payment, error) {
	return r.queryPayments(ctx, `
		SELECT id, participant_id, transaction_id, amount, method, status,
		       verified_by_admin, verified_at, COALESCE(notes, ''), created_at
		FROM payments
		WHERE verified_by_admin = true
		ORDER BY id
	`)
}

// UnverifiedCandidates: successful, not yet admin-verified, excluding any
// participant who already has a verified payment. A participant is verified
// once, not per-transaction; the exclusion is what makes reconciliation
// idempotent.
func (r *repository) UnverifiedCandidates(ctx context.Context) ([]model.Payment, error) {
	return r.queryPayments(ctx, `
		SELECT id, participant_id, transaction_id, amount, method, status,
		       verified_by_admin, verified_at, COALESCE(notes, ''), created_at
		FROM payments
		WHERE status = 'Success'
		  AND verified_by_admin = false
		  AND participant_id NOT IN (
			SELECT participant_id FROM payments WHERE verified_by_admin = true
		  )
		ORDER BY id
	`)
}

func (r *repository) queryPayments(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(
			&p.ID, &p.ParticipantID, &p.TransactionID, &p.Amount, &p.Method, &p.Status,
			&p.VerifiedByAdmin, &p.VerifiedAt, &p.Notes, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ApplyVerificationsTx promotes matched payments and cascade-confirms the
// matched participants' pending registrations as two batched updates in one
// transaction.
func (r *repository) ApplyVerificationsTx(ctx context.Context, paymentIDs, participantIDs []int64) error {
	if len(paymentIDs) == 0 {
		return nil
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	ph, args := int64Placeholders(1, paymentIDs)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE payments
		SET verified_by_admin = true, verified_at = NOW()
		WHERE id IN (%s) AND verified_by_admin = false
	`, ph), args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to promote payments: %w", err)
	}

	ph, args = int64Placeholders(1, participantIDs)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE registrations
		SET payment_status = 'Success', updated_at = NOW()
		WHERE participant_id IN (%s) AND payment_status = 'Pending'
	`, ph), args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to confirm registrations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
