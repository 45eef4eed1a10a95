package otp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symposium/internal/apperr"
	"symposium/internal/cache"
)

// fakeStore is an in-memory stand-in for the volatile store. TTLs are
// recorded but never enforced; expiry is simulated by deleting keys.
type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	n := int64(1)
	if v, ok := f.data[key]; ok {
		n = int64(len(v)) + 1
	}
	f.data[key] = strings.Repeat("x", int(n))
	return n, nil
}

func (f *fakeStore) DeletePattern(_ context.Context, _ string) error { return nil }

type fakeParticipants struct{ exists bool }

func (f fakeParticipants) EmailExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

type fakeMailer struct {
	sent []string
	fail bool
}

func (f *fakeMailer) Send(to, _, _ string) error {
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, to)
	return nil
}

func newVerifier(store cache.Store, exists bool, mail *fakeMailer) *Verifier {
	log := zerolog.Nop()
	return NewVerifier(store, fakeParticipants{exists: exists}, mail, &log)
}

func TestIssueCodeStoresAndSends(t *testing.T) {
	store := newFakeStore()
	mail := &fakeMailer{}
	v := newVerifier(store, false, mail)

	err := v.IssueCode(context.Background(), "Person@Example.COM", "Person")
	require.NoError(t, err)

	code, ok := store.data[cache.OTPKey("person@example.com")]
	require.True(t, ok)
	assert.Len(t, code, 6)
	assert.Equal(t, 300*time.Second, store.ttls[cache.OTPKey("person@example.com")])
	assert.Equal(t, []string{"person@example.com"}, mail.sent)
}

func TestIssueCodeRejectsExistingParticipant(t *testing.T) {
	v := newVerifier(newFakeStore(), true, &fakeMailer{})

	err := v.IssueCode(context.Background(), "taken@example.com", "x")
	assert.Equal(t, apperr.AlreadyRegistered, apperr.CodeOf(err))
}

func TestIssueCodeDeliveryFailureKeepsCode(t *testing.T) {
	store := newFakeStore()
	v := newVerifier(store, false, &fakeMailer{fail: true})

	err := v.IssueCode(context.Background(), "p@example.com", "x")
	assert.Equal(t, apperr.DeliveryFailed, apperr.CodeOf(err))

	_, ok := store.data[cache.OTPKey("p@example.com")]
	assert.True(t, ok, "the code must survive a failed delivery")
}

func TestVerifyCodeLifecycle(t *testing.T) {
	store := newFakeStore()
	v := newVerifier(store, false, &fakeMailer{})
	ctx := context.Background()

	store.data[cache.OTPKey("p@example.com")] = "123456"

	token, err := v.VerifyCode(ctx, "p@example.com", "123456")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The code is single-use.
	_, err = v.VerifyCode(ctx, "p@example.com", "123456")
	assert.Equal(t, apperr.OTPExpired, apperr.CodeOf(err))

	// The token maps back to the email exactly once.
	email, err := v.RedeemToken(ctx, token, "P@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "p@example.com", email)

	_, err = v.RedeemToken(ctx, token, "p@example.com")
	assert.Equal(t, apperr.VerificationExpired, apperr.CodeOf(err))
}

func TestVerifyCodeExpired(t *testing.T) {
	v := newVerifier(newFakeStore(), false, &fakeMailer{})

	_, err := v.VerifyCode(context.Background(), "p@example.com", "123456")
	assert.Equal(t, apperr.OTPExpired, apperr.CodeOf(err))
}

func TestVerifyCodeLockoutAfterFiveAttempts(t *testing.T) {
	store := newFakeStore()
	v := newVerifier(store, false, &fakeMailer{})
	ctx := context.Background()

	store.data[cache.OTPKey("p@example.com")] = "123456"

	for i := 1; i <= 4; i++ {
		_, err := v.VerifyCode(ctx, "p@example.com", "000000")
		e, ok := apperr.From(err)
		require.True(t, ok)
		assert.Equal(t, apperr.OTPInvalid, e.Code)
		assert.Equal(t, int64(5-i), e.Ctx["attempts_remaining"])
	}

	_, err := v.VerifyCode(ctx, "p@example.com", "000000")
	assert.Equal(t, apperr.OTPLocked, apperr.CodeOf(err))

	// The code was destroyed with the lock; even the right code now fails.
	_, err = v.VerifyCode(ctx, "p@example.com", "123456")
	assert.Equal(t, apperr.OTPExpired, apperr.CodeOf(err))
}

func TestRedeemTokenEmailMismatch(t *testing.T) {
	store := newFakeStore()
	v := newVerifier(store, false, &fakeMailer{})
	ctx := context.Background()

	store.data[cache.TokenKey("tok")] = "p@example.com"

	_, err := v.RedeemToken(ctx, "tok", "other@example.com")
	assert.Equal(t, apperr.EmailMismatch, apperr.CodeOf(err))

	// Consumed even on the mismatch path: the token is gone.
	_, err = v.RedeemToken(ctx, "tok", "p@example.com")
	assert.Equal(t, apperr.VerificationExpired, apperr.CodeOf(err))
}
