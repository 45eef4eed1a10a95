package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

type Mailer struct {
	cfg Config
	log *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// Send delivers one message over SMTP. Delivery is best-effort everywhere
// this is called; failures are logged and reported, never fatal.
func (m *Mailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.From, to, subject, body,
	)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		m.log.Warn().Str("to", to).Err(err).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

func RegistrationBody(name string, regIDs []string, total float64, paymentRef string) (subject, body string) {
	subject = "Symposium registration received"
	body = fmt.Sprintf(
		"Hi %s,\n\nYour registration is recorded.\nRegistration ids: %v\nAmount due: %.2f\nPayment reference: %s\n\nComplete the payment and submit your UPI transaction id to confirm your seats.",
		name, regIDs, total, paymentRef,
	)
	return subject, body
}

func PaymentConfirmedBody(name string, regIDs []string, amount float64) (subject, body string) {
	subject = "Symposium payment recorded"
	body = fmt.Sprintf(
		"Hi %s,\n\nYour payment of %.2f is recorded and your registrations %v are confirmed.\nCarry your QR code for admission.",
		name, amount, regIDs,
	)
	return subject, body
}
