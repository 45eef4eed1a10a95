// Package otp implements the identity verifier: short-lived email codes, an
// attempt budget, and single-use verification tokens.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"symposium/internal/apperr"
	"symposium/internal/cache"
)

const (
	codeTTL     = 300 * time.Second
	tokenTTL    = 900 * time.Second
	maxAttempts = 5
)

// ParticipantChecker reports whether an email already belongs to a
// registered participant.
type ParticipantChecker interface {
	EmailExists(ctx context.Context, email string) (bool, error)
}

// MailDispatcher delivers the code. Dispatch is best-effort: a failure is
// surfaced as DELIVERY_FAILED but the stored code stays valid.
type MailDispatcher interface {
	Send(to, subject, body string) error
}

type Verifier struct {
	store        cache.Store
	participants ParticipantChecker
	mail         MailDispatcher
	log          *zerolog.Logger
}

func NewVerifier(store cache.Store, participants ParticipantChecker, mail MailDispatcher, log *zerolog.Logger) *Verifier {
	return &Verifier{store: store, participants: participants, mail: mail, log: log}
}

func (v *Verifier) IssueCode(ctx context.Context, email, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := v.participants.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("check existing participant: %w", err)
	}
	if exists {
		return apperr.New(apperr.AlreadyRegistered, "This email is already registered")
	}

	code, err := sixDigitCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := v.store.Set(ctx, cache.OTPKey(email), code, codeTTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	// Stale attempt counters from a previous code must not carry over.
	_ = v.store.Delete(ctx, cache.OTPAttemptsKey(email))

	subject := "Your symposium verification code"
	body := fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in 5 minutes.", name, code)
	if err := v.mail.Send(email, subject, body); err != nil {
		v.log.Warn().Err(err).Str("email", email).Msg("otp mail dispatch failed")
		return apperr.New(apperr.DeliveryFailed, "Could not send the verification email; the code is still valid")
	}

	v.log.Info().Str("email", email).Msg("otp issued")
	return nil
}

func (v *Verifier) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	exists, err := v.participants.EmailExists(ctx, email)
	if err != nil {
		return "", fmt.Errorf("check existing participant: %w", err)
	}
	if exists {
		return "", apperr.New(apperr.AlreadyRegistered, "This email is already registered")
	}

	stored, err := v.store.Get(ctx, cache.OTPKey(email))
	if errors.Is(err, cache.ErrNotFound) {
		return "", apperr.New(apperr.OTPExpired, "The code has expired; request a new one")
	}
	if err != nil {
		return "", fmt.Errorf("load otp: %w", err)
	}

	if stored != strings.TrimSpace(code) {
		attempts, err := v.store.Incr(ctx, cache.OTPAttemptsKey(email), codeTTL)
		if err != nil {
			return "", fmt.Errorf("count otp attempt: %w", err)
		}
		if attempts >= maxAttempts {
			_ = v.store.Delete(ctx, cache.OTPKey(email), cache.OTPAttemptsKey(email))
			return "", apperr.New(apperr.OTPLocked, "Too many wrong attempts; request a new code")
		}
		return "", apperr.New(apperr.OTPInvalid, "Incorrect code").
			With("attempts_remaining", maxAttempts-attempts)
	}

	if err := v.store.Delete(ctx, cache.OTPKey(email), cache.OTPAttemptsKey(email)); err != nil {
		return "", fmt.Errorf("consume otp: %w", err)
	}

	token := uuid.NewString() + uuid.NewString()
	if err := v.store.Set(ctx, cache.TokenKey(token), email, tokenTTL); err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}

	v.log.Info().Str("email", email).Msg("otp verified, token minted")
	return token, nil
}

// RedeemToken consumes the token before returning, so a replayed token can
// never back a second registration even if the caller later fails.
func (v *Verifier) RedeemToken(ctx context.Context, token, claimedEmail string) (string, error) {
	stored, err := v.store.Get(ctx, cache.TokenKey(token))
	if errors.Is(err, cache.ErrNotFound) {
		return "", apperr.New(apperr.VerificationExpired, "Email verification expired; verify again")
	}
	if err != nil {
		return "", fmt.Errorf("load verification token: %w", err)
	}

	if err := v.store.Delete(ctx, cache.TokenKey(token)); err != nil {
		return "", fmt.Errorf("consume verification token: %w", err)
	}

	if !strings.EqualFold(stored, strings.TrimSpace(claimedEmail)) {
		return "", apperr.New(apperr.EmailMismatch, "Verified email does not match the submitted one")
	}
	return stored, nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
