package model

import (
	"fmt"
	"time"
)

type Cohort string

const (
	CohortGeneral Cohort = "general"
	CohortPartner Cohort = "partner"
)

type EventType string

const (
	TypeWorkshop EventType = "workshop"
	TypeEvent    EventType = "event"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentSuccess PaymentStatus = "Success"
)

type AttendanceStatus string

const (
	NotAttended AttendanceStatus = "NOT_ATTENDED"
	Attended    AttendanceStatus = "ATTENDED"
)

type Participant struct {
	ID          int64     `db:"id" json:"id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       string    `db:"email" json:"email"`
	Phone       string    `db:"phone" json:"phone"`
	Institution string    `db:"institution" json:"institution"`
	Department  string    `db:"department" json:"department"`
	Year        int       `db:"year" json:"year"`
	Gender      string    `db:"gender,omitempty" json:"gender,omitempty"`
	Cohort      Cohort    `db:"cohort" json:"cohort"`
	RollNumber  string    `db:"roll_number,omitempty" json:"roll_number,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Event struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Type              EventType `db:"type" json:"type"`
	Day               int       `db:"day" json:"day"`
	Fee               float64   `db:"fee" json:"fee"`
	TotalSeats        int       `db:"total_seats" json:"total_seats"`
	AvailableSeats    int       `db:"available_seats" json:"available_seats"`
	CSESeats          int       `db:"cse_seats" json:"cse_seats"`
	CSEAvailableSeats int       `db:"cse_available_seats" json:"cse_available_seats"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	ClosesAt          time.Time `db:"closes_at" json:"closes_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

type Registration struct {
	ID               int64            `db:"id" json:"id"`
	RegID            string           `db:"reg_id" json:"reg_id"`
	ParticipantID    int64            `db:"participant_id" json:"participant_id"`
	EventID          int64            `db:"event_id" json:"event_id"`
	AmountPaid       float64          `db:"amount_paid" json:"amount_paid"`
	PaymentStatus    PaymentStatus    `db:"payment_status" json:"payment_status"`
	AttendanceStatus AttendanceStatus `db:"attendance_status" json:"attendance_status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

type Payment struct {
	ID              int64         `db:"id" json:"id"`
	ParticipantID   int64         `db:"participant_id" json:"participant_id"`
	TransactionID   string        `db:"transaction_id" json:"transaction_id"`
	Amount          float64       `db:"amount" json:"amount"`
	Method          string        `db:"method" json:"method"`
	Status          PaymentStatus `db:"status" json:"status"`
	VerifiedByAdmin bool          `db:"verified_by_admin" json:"verified_by_admin"`
	VerifiedAt      *time.Time    `db:"verified_at" json:"verified_at,omitempty"`
	Notes           string        `db:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

type Announcement struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PartnerStudent is one row of the partner-institution roster. Roll numbers
// are issued by the partner college and are single-use for registration.
type PartnerStudent struct {
	RollNumber string `db:"roll_number" json:"roll_number"`
	FullName   string `db:"full_name" json:"full_name"`
	Registered bool   `db:"registered" json:"registered"`
}

// FormatRegID builds the human-readable registration id. Cohort and category
// are stored explicitly on the rows; the prefix exists for operators reading
// ids aloud at the venue, never for deriving state.
func FormatRegID(cohort Cohort, eventType EventType, seq int64) string {
	c := "GN"
	if cohort == CohortPartner {
		c = "PR"
	}
	t := "E"
	if eventType == TypeWorkshop {
		t = "W"
	}
	return fmt.Sprintf("SYM-%s%s-%05d", c, t, seq)
}
