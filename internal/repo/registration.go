package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"symposium/internal/apperr"
	"symposium/internal/model"
)

type RegistrationInput struct {
	Participant model.Participant
	WorkshopIDs []int64
	EventIDs    []int64
}

type RegistrationResult struct {
	ParticipantID   int64
	RegistrationIDs []string
	TotalAmount     float64
	PaymentRef      string
}

// RegisterTx runs one registration submission as a single transaction:
// roster claim (partner cohort), race-safe duplicate-email check, participant
// insert, per-selection seat checks under row locks, priced line inserts.
// Paid lines stay Pending and hold no seat until payment; free lines are
// confirmed and take their seat immediately.
func (r *repository) RegisterTx(ctx context.Context, in RegistrationInput) (*RegistrationResult, error) {
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

	p := in.Participant

	if p.Cohort == model.CohortPartner {
		var registered bool
		err = tx.QueryRowContext(ctx, `
			SELECT registered FROM partner_students
			WHERE roll_number = $1
			FOR UPDATE
		`, p.RollNumber).Scan(&registered)
		if errors.Is(err, sql.ErrNoRows) {
			_ = tx.Rollback()
			return nil, apperr.New(apperr.RollNotFound, "Roll number is not on the partner roster")
		}
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to look up roster: %w", err)
		}
		if registered {
			_ = tx.Rollback()
			return nil, apperr.New(apperr.RollAlreadyUsed, "This roll number has already registered")
		}
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM participants WHERE lower(email) = lower($1))`,
		p.Email,
	).Scan(&exists)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to check duplicate email: %w", err)
	}
	if exists {
		_ = tx.Rollback()
		return nil, apperr.New(apperr.EmailExists, "This email is already registered")
	}

	var participantID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO participants (full_name, email, phone, institution, department, year, gender, cohort, roll_number, created_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NOW())
		RETURNING id
	`, p.FullName, p.Email, p.Phone, p.Institution, p.Department, p.Year, p.Gender, p.Cohort, p.RollNumber).Scan(&participantID)
	if err != nil {
		_ = tx.Rollback()
		// The EXISTS check above runs under read committed, so a
		// concurrent registration can slip past it; the unique index is
		// the authority and its violation is still a duplicate email.
		if uniqueViolation(err) {
			return nil, apperr.New(apperr.EmailExists, "This email is already registered")
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	workshops, events, err := lockSelection(ctx, tx, in.WorkshopIDs, in.EventIDs, p.Cohort)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	quote := r.pricer.Price(p.Cohort, p.Year, workshops, events)

	regIDs := make([]string, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		status := model.PaymentPending
		if line.Free {
			status = model.PaymentSuccess
		}

		var id int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO registrations (reg_id, participant_id, event_id, amount_paid, payment_status, attendance_status, created_at, updated_at)
			VALUES ('', $1, $2, $3, $4, $5, NOW(), NOW())
			RETURNING id
		`, participantID, line.Event.ID, line.Amount, status, model.NotAttended).Scan(&id)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to create registration: %w", err)
		}

		regID := model.FormatRegID(p.Cohort, line.Event.Type, id)
		if _, err := tx.ExecContext(ctx,
			`UPDATE registrations SET reg_id = $1 WHERE id = $2`, regID, id,
		); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to assign registration id: %w", err)
		}
		regIDs = append(regIDs, regID)

		// Free lines take their seat now; the rows are already locked.
		if line.Free {
			if err := decrementSeat(ctx, tx, line.Event.ID, p.Cohort); err != nil {
				_ = tx.Rollback()
				return nil, err
			}
		}
	}

	if p.Cohort == model.CohortPartner {
		if _, err := tx.ExecContext(ctx,
			`UPDATE partner_students SET registered = true WHERE roll_number = $1`,
			p.RollNumber,
		); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to mark roster entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &RegistrationResult{
		ParticipantID:   participantID,
		RegistrationIDs: regIDs,
		TotalAmount:     quote.Total,
		PaymentRef:      fmt.Sprintf("%d-%d", participantID, time.Now().Unix()),
	}, nil
}

// lockSelection loads and locks every selected event row, verifying type,
// active flag and cohort-pool availability. Rows are locked in ascending id
// order, the same order payment-time re-checks use, so two transactions with
// overlapping selections cannot deadlock. The rows stay locked until the
// surrounding transaction ends, so a concurrent claim cannot pass the same
// availability check.
func lockSelection(ctx context.Context, tx *sql.Tx, workshopIDs, eventIDs []int64, cohort model.Cohort) (workshops, events []model.Event, err error) {
	order, isWorkshop := lockOrder(workshopIDs, eventIDs)
	for _, id := range order {
		var e model.Event
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, type, day, fee, total_seats, available_seats,
			       cse_seats, cse_available_seats, is_active, closes_at, created_at
			FROM events
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(
			&e.ID, &e.Name, &e.Type, &e.Day, &e.Fee, &e.TotalSeats, &e.AvailableSeats,
			&e.CSESeats, &e.CSEAvailableSeats, &e.IsActive, &e.ClosesAt, &e.CreatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			if isWorkshop[id] {
				return nil, nil, apperr.Newf(apperr.WorkshopNotFound, "Workshop %d not found", id)
			}
			return nil, nil, apperr.Newf(apperr.EventNotFound, "Event %d not found", id)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock event %d: %w", id, err)
		}

		if isWorkshop[id] && e.Type != model.TypeWorkshop {
			return nil, nil, apperr.Newf(apperr.NotAWorkshop, "%s is not a workshop", e.Name)
		}
		if !e.IsActive {
			return nil, nil, apperr.Newf(apperr.EventInactive, "%s is closed", e.Name).With("event", e.Name)
		}
		if available(e, cohort) <= 0 {
			return nil, nil, apperr.Newf(apperr.SeatsFull, "No seats left for %s", e.Name).
				With("event", e.Name).
				With("pool", string(cohort))
		}
		if isWorkshop[id] {
			workshops = append(workshops, e)
		} else {
			events = append(events, e)
		}
	}
	return workshops, events, nil
}

// lockOrder merges both selection lists into one deduplicated ascending id
// sequence and remembers which list named each id. Duplicate ids collapse to
// a single lock; an id present in both lists is held to the workshop checks.
func lockOrder(workshopIDs, eventIDs []int64) ([]int64, map[int64]bool) {
	isWorkshop := make(map[int64]bool, len(workshopIDs)+len(eventIDs))
	order := make([]int64, 0, len(workshopIDs)+len(eventIDs))
	for _, id := range workshopIDs {
		if _, seen := isWorkshop[id]; !seen {
			order = append(order, id)
		}
		isWorkshop[id] = true
	}
	for _, id := range eventIDs {
		if _, seen := isWorkshop[id]; !seen {
			order = append(order, id)
			isWorkshop[id] = false
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order, isWorkshop
}

// available returns the effective headroom for the cohort. The partner quota
// is a carve-out of the general inventory, so a partner seat needs room in
// both counters.
func available(e model.Event, cohort model.Cohort) int {
	if cohort == model.CohortPartner && e.CSEAvailableSeats < e.AvailableSeats {
		return e.CSEAvailableSeats
	}
	return e.AvailableSeats
}

// decrementSeat takes one seat from the cohort's pool; the guards repeat the
// availability condition so the counter can never pass zero even if a caller
// skipped the locked check.
func decrementSeat(ctx context.Context, tx *sql.Tx, eventID int64, cohort model.Cohort) error {
	var res sql.Result
	var err error
	if cohort == model.CohortPartner {
		res, err = tx.ExecContext(ctx, `
			UPDATE events
			SET available_seats = available_seats - 1,
			    cse_available_seats = cse_available_seats - 1
			WHERE id = $1 AND available_seats > 0 AND cse_available_seats > 0
		`, eventID)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE events
			SET available_seats = available_seats - 1
			WHERE id = $1 AND available_seats > 0
		`, eventID)
	}
	if err != nil {
		return fmt.Errorf("failed to decrement seats for event %d: %w", eventID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.SeatsFull, "No seats left for event %d", eventID)
	}
	return nil
}
