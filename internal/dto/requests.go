package dto

import "time"

type IssueOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,min=2,max=255"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

type VerifyOTPResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type RegisterRequest struct {
	Token       string  `json:"token" validate:"required"`
	FullName    string  `json:"full_name" validate:"required,min=2,max=255"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"required,min=10,max=15"`
	Institution string  `json:"institution" validate:"required"`
	Department  string  `json:"department" validate:"required"`
	Year        int     `json:"year" validate:"studyyear"`
	Gender      string  `json:"gender"`
	WorkshopIDs []int64 `json:"workshop_ids"`
	EventIDs    []int64 `json:"event_ids"`
}

type RegisterPartnerRequest struct {
	RollNumber  string  `json:"roll_number" validate:"required"`
	FullName    string  `json:"full_name" validate:"required,min=2,max=255"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       string  `json:"phone" validate:"required,min=10,max=15"`
	Department  string  `json:"department" validate:"required"`
	Year        int     `json:"year" validate:"studyyear"`
	Gender      string  `json:"gender"`
	WorkshopIDs []int64 `json:"workshop_ids"`
	EventIDs    []int64 `json:"event_ids"`
}

type RegisterResponse struct {
	ParticipantID   int64    `json:"participant_id"`
	RegistrationIDs []string `json:"registration_ids"`
	TotalAmount     float64  `json:"total_amount"`
	PaymentRef      string   `json:"payment_ref"`
}

type VerifyPaymentRequest struct {
	ParticipantID int64   `json:"participant_id" validate:"required"`
	TransactionID string  `json:"transaction_id" validate:"required"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
}

type VerifyPaymentResponse struct {
	PaymentID       int64    `json:"payment_id"`
	AmountConfirmed float64  `json:"amount_confirmed"`
	RegistrationIDs []string `json:"registration_ids"`
	QRPayload       string   `json:"qr_payload"`
	QRImage         []byte   `json:"qr_image,omitempty"`
}

type ReconcileRecord struct {
	TransactionID string  `json:"transaction_id" validate:"required"`
	Amount        float64 `json:"amount"`
}

type ReconcileRequest struct {
	Records []ReconcileRecord `json:"records" validate:"required,min=1"`
}

type ReconcileFailure struct {
	TransactionID string  `json:"transaction_id"`
	Reason        string  `json:"reason"`
	Expected      float64 `json:"expected_amount,omitempty"`
	Received      float64 `json:"received_amount,omitempty"`
	ParticipantID int64   `json:"participant_id,omitempty"`
}

type ReconcileResponse struct {
	NewlyVerified   int                `json:"newly_verified"`
	Failed          int                `json:"failed"`
	TotalVerified   int                `json:"total_verified"`
	Failures        []ReconcileFailure `json:"failures,omitempty"`
}

type ScanAttendanceRequest struct {
	QRPayload string `json:"qr_payload" validate:"required"`
	Day       int    `json:"day"`
}

type ManualAttendanceRequest struct {
	ParticipantID int64 `json:"participant_id" validate:"required"`
	EventID       int64 `json:"event_id" validate:"required"`
}

type AttendanceResponse struct {
	RegID         string `json:"reg_id"`
	Admitted      bool   `json:"admitted"`
	AlreadyMarked bool   `json:"already_marked"`
	Reason        string `json:"reason,omitempty"`
	Suggestion    string `json:"suggestion,omitempty"`
}

type ManualVerifyRequest struct {
	ParticipantID int64  `json:"participant_id" validate:"required"`
	Notes         string `json:"notes"`
}

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type CreateAnnouncementRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body" validate:"required"`
}

type EventDatesResponse struct {
	DayOne        time.Time `json:"day_one"`
	DayTwo        time.Time `json:"day_two"`
	SecondsToGo   int64     `json:"seconds_to_go"`
	RegistrationOpen bool   `json:"registration_open"`
}
