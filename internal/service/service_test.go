package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"symposium/internal/apperr"
	"symposium/internal/cache"
	"symposium/internal/model"
	"symposium/internal/otp"
	"symposium/internal/qr"
	"symposium/internal/repo"
)

// --- fakes ---

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string]string{}} }

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return v, nil
}
func (f *fakeStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.data[key] = value
	return nil
}
func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}
func (f *fakeStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.data[key] += "x"
	return int64(len(f.data[key])), nil
}
func (f *fakeStore) DeletePattern(_ context.Context, pattern string) error {
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(f.data, k)
		}
	}
	return nil
}

type fakeQueue struct {
	sent []string
}

func (f *fakeQueue) Send(to, _, _ string) error {
	f.sent = append(f.sent, to)
	return nil
}

type fakeChecker struct{}

func (fakeChecker) EmailExists(context.Context, string) (bool, error) { return false, nil }

// mockRepo implements repo.Repository with func fields; anything a test did
// not expect panics.
type mockRepo struct {
	registerTxFn           func(ctx context.Context, in repo.RegistrationInput) (*repo.RegistrationResult, error)
	verifyPaymentTxFn      func(ctx context.Context, in repo.PaymentInput) (*repo.PaymentResult, error)
	autoCloseFn            func(ctx context.Context, now time.Time) (int64, error)
	markAttendedFn         func(ctx context.Context, regID string) (*repo.AttendanceOutcome, error)
	verifiedPaymentsFn     func(ctx context.Context) ([]model.Payment, error)
	unverifiedCandidatesFn func(ctx context.Context) ([]model.Payment, error)
	applyVerificationsFn   func(ctx context.Context, paymentIDs, participantIDs []int64) error
}

func (m *mockRepo) MigrateUp(string) error   { panic("unexpected MigrateUp") }
func (m *mockRepo) MigrateDown(string) error { panic("unexpected MigrateDown") }
func (m *mockRepo) EmailExists(context.Context, string) (bool, error) {
	panic("unexpected EmailExists")
}
func (m *mockRepo) GetParticipantByID(context.Context, int64) (*model.Participant, error) {
	panic("unexpected GetParticipantByID")
}
func (m *mockRepo) ListActiveEvents(context.Context) ([]model.Event, error) {
	panic("unexpected ListActiveEvents")
}
func (m *mockRepo) AutoCloseEvents(ctx context.Context, now time.Time) (int64, error) {
	if m.autoCloseFn == nil {
		return 0, nil
	}
	return m.autoCloseFn(ctx, now)
}
func (m *mockRepo) RegisterTx(ctx context.Context, in repo.RegistrationInput) (*repo.RegistrationResult, error) {
	return m.registerTxFn(ctx, in)
}
func (m *mockRepo) VerifyPaymentTx(ctx context.Context, in repo.PaymentInput) (*repo.PaymentResult, error) {
	return m.verifyPaymentTxFn(ctx, in)
}
func (m *mockRepo) ManualVerifyTx(context.Context, int64, string) (*model.Participant, error) {
	panic("unexpected ManualVerifyTx")
}
func (m *mockRepo) VerifiedPayments(ctx context.Context) ([]model.Payment, error) {
	if m.verifiedPaymentsFn == nil {
		panic("unexpected VerifiedPayments")
	}
	return m.verifiedPaymentsFn(ctx)
}
func (m *mockRepo) UnverifiedCandidates(ctx context.Context) ([]model.Payment, error) {
	if m.unverifiedCandidatesFn == nil {
		panic("unexpected UnverifiedCandidates")
	}
	return m.unverifiedCandidatesFn(ctx)
}
func (m *mockRepo) ApplyVerificationsTx(ctx context.Context, paymentIDs, participantIDs []int64) error {
	if m.applyVerificationsFn == nil {
		panic("unexpected ApplyVerificationsTx")
	}
	return m.applyVerificationsFn(ctx, paymentIDs, participantIDs)
}
func (m *mockRepo) MarkAttendedTx(ctx context.Context, regID string) (*repo.AttendanceOutcome, error) {
	if m.markAttendedFn == nil {
		panic("unexpected MarkAttendedTx")
	}
	return m.markAttendedFn(ctx, regID)
}
func (m *mockRepo) FindRegID(context.Context, int64, int64) (string, error) {
	panic("unexpected FindRegID")
}
func (m *mockRepo) SearchParticipants(context.Context, string) ([]model.Participant, error) {
	panic("unexpected SearchParticipants")
}
func (m *mockRepo) Stats(context.Context) (*repo.Stats, error) { panic("unexpected Stats") }
func (m *mockRepo) ExportRegistrations(context.Context) ([]repo.ExportRow, error) {
	panic("unexpected ExportRegistrations")
}
func (m *mockRepo) TrackByEmail(context.Context, string) (*repo.TrackInfo, error) {
	panic("unexpected TrackByEmail")
}
func (m *mockRepo) ListAnnouncements(context.Context) ([]model.Announcement, error) {
	panic("unexpected ListAnnouncements")
}
func (m *mockRepo) CreateAnnouncement(context.Context, string, string) (int64, error) {
	panic("unexpected CreateAnnouncement")
}
func (m *mockRepo) DeleteAnnouncement(context.Context, int64) error {
	panic("unexpected DeleteAnnouncement")
}

// --- harness ---

type harness struct {
	repo  *mockRepo
	store *fakeStore
	queue *fakeQueue
	svc   Service
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	log := zerolog.Nop()
	store := newFakeStore()
	queue := &fakeQueue{}
	r := &mockRepo{}
	verifier := otp.NewVerifier(store, fakeChecker{}, queue, &log)

	if cfg.RegistrationClosesAt.IsZero() {
		cfg.RegistrationClosesAt = time.Now().Add(24 * time.Hour)
	}

	svc := NewService(r, store, verifier, qr.NewRenderer(&log), queue, cfg, &log)
	return &harness{repo: r, store: store, queue: queue, svc: svc}
}

func (h *harness) post(t *testing.T, handler func(*ginext.Context), body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	router := ginext.New(gin.TestMode)
	router.POST("/x", handler)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func errorCode(resp map[string]any) string {
	e, _ := resp["error"].(map[string]any)
	if e == nil {
		return ""
	}
	code, _ := e["code"].(string)
	return code
}

// --- payment verification ---

func TestVerifyPaymentSuccess(t *testing.T) {
	h := newHarness(t, Config{})

	var got repo.PaymentInput
	h.repo.verifyPaymentTxFn = func(_ context.Context, in repo.PaymentInput) (*repo.PaymentResult, error) {
		got = in
		return &repo.PaymentResult{
			PaymentID: 7,
			Participant: model.Participant{
				ID: 42, FullName: "Asha", Email: "asha@example.com", Cohort: model.CohortGeneral,
			},
			RegistrationIDs: []string{"SYM-GNW-00001"},
			TotalAmount:     1100,
		}, nil
	}

	rec, resp := h.post(t, h.svc.VerifyPayment, map[string]any{
		"participant_id": 42,
		"transaction_id": "  UPI12345678  ",
		"amount":         1100,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UPI12345678", got.TransactionID, "transaction id is trimmed before use")
	assert.Equal(t, "UPI", got.Method)

	data := resp["data"].(map[string]any)
	assert.Equal(t, "42|SYM-GNW-00001", data["qr_payload"])
	assert.NotEmpty(t, data["qr_image"])
	assert.Equal(t, []string{"asha@example.com"}, h.queue.sent, "confirmation email queued post-commit")
}

func TestVerifyPaymentDuplicateTransaction(t *testing.T) {
	h := newHarness(t, Config{})
	h.repo.verifyPaymentTxFn = func(context.Context, repo.PaymentInput) (*repo.PaymentResult, error) {
		return nil, apperr.New(apperr.DuplicateTransaction, "already submitted")
	}

	rec, resp := h.post(t, h.svc.VerifyPayment, map[string]any{
		"participant_id": 42,
		"transaction_id": "UPI12345678",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.DuplicateTransaction, errorCode(resp))
}

func TestVerifyPaymentShortTransactionID(t *testing.T) {
	h := newHarness(t, Config{})
	// No repo expectation: validation fails before any DB work.

	rec, resp := h.post(t, h.svc.VerifyPayment, map[string]any{
		"participant_id": 42,
		"transaction_id": "abc",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.TransactionIDInvalid, errorCode(resp))
}

func TestVerifyPaymentSeatsGoneAtPayment(t *testing.T) {
	h := newHarness(t, Config{})
	h.repo.verifyPaymentTxFn = func(context.Context, repo.PaymentInput) (*repo.PaymentResult, error) {
		return nil, apperr.New(apperr.SeatsFullAtPayment, "sold out").With("event", "Robo Sumo")
	}
	h.store.data[cache.VerifStatusKey(42)] = "Pending"

	rec, resp := h.post(t, h.svc.VerifyPayment, map[string]any{
		"participant_id": 42,
		"transaction_id": "UPI12345678",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.SeatsFullAtPayment, errorCode(resp))
	e := resp["error"].(map[string]any)
	assert.Equal(t, "Robo Sumo", e["context"].(map[string]any)["event"])

	// The aborted payment confirms nothing, so no confirmation side effects
	// may run: no email, no cache invalidation.
	assert.Empty(t, h.queue.sent)
	assert.Contains(t, h.store.data, cache.VerifStatusKey(42))
}

// --- registration ---

func validRegisterBody(token string) map[string]any {
	return map[string]any{
		"token":       token,
		"full_name":   "Asha Rao",
		"email":       "asha@example.com",
		"phone":       "9876543210",
		"institution": "Some College",
		"department":  "ECE",
		"year":        3,
		"event_ids":   []int64{1, 2},
	}
}

func seedToken(h *harness, email string) string {
	token := "test-token"
	h.store.data[cache.TokenKey(token)] = email
	return token
}

func TestRegisterSuccess(t *testing.T) {
	h := newHarness(t, Config{})
	token := seedToken(h, "asha@example.com")

	var got repo.RegistrationInput
	h.repo.registerTxFn = func(_ context.Context, in repo.RegistrationInput) (*repo.RegistrationResult, error) {
		got = in
		return &repo.RegistrationResult{
			ParticipantID:   42,
			RegistrationIDs: []string{"SYM-GNE-00001", "SYM-GNE-00002"},
			TotalAmount:     300,
			PaymentRef:      "42-1700000000",
		}, nil
	}

	rec, resp := h.post(t, h.svc.Register, validRegisterBody(token))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.CohortGeneral, got.Participant.Cohort)
	assert.Equal(t, "asha@example.com", got.Participant.Email)

	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(42), data["participant_id"])
	assert.Equal(t, float64(300), data["total_amount"])
	assert.Equal(t, []string{"asha@example.com"}, h.queue.sent)

	// Token is single use: the same submission replayed is rejected.
	rec, resp = h.post(t, h.svc.Register, validRegisterBody(token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.VerificationExpired, errorCode(resp))
}

func TestRegisterAfterDeadline(t *testing.T) {
	h := newHarness(t, Config{RegistrationClosesAt: time.Now().Add(-time.Hour)})
	token := seedToken(h, "asha@example.com")

	rec, resp := h.post(t, h.svc.Register, validRegisterBody(token))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.RegistrationClosed, errorCode(resp))
}

func TestRegisterEmptySelection(t *testing.T) {
	h := newHarness(t, Config{})
	token := seedToken(h, "asha@example.com")

	body := validRegisterBody(token)
	delete(body, "event_ids")

	rec, resp := h.post(t, h.svc.Register, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.NoEventsSelected, errorCode(resp))
}

func TestRegisterTokenEmailMismatch(t *testing.T) {
	h := newHarness(t, Config{})
	token := seedToken(h, "other@example.com")

	rec, resp := h.post(t, h.svc.Register, validRegisterBody(token))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.EmailMismatch, errorCode(resp))
}

func TestRegisterSeatsFullSurfacesPool(t *testing.T) {
	h := newHarness(t, Config{})
	token := seedToken(h, "asha@example.com")

	h.repo.registerTxFn = func(context.Context, repo.RegistrationInput) (*repo.RegistrationResult, error) {
		return nil, apperr.New(apperr.SeatsFull, "No seats left").
			With("event", "IoT Workshop").
			With("pool", "general")
	}

	rec, resp := h.post(t, h.svc.Register, validRegisterBody(token))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.SeatsFull, errorCode(resp))
}

// --- attendance ---

func TestScanAttendanceRescanIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})

	calls := 0
	h.repo.markAttendedFn = func(_ context.Context, regID string) (*repo.AttendanceOutcome, error) {
		calls++
		out := &repo.AttendanceOutcome{
			RegID:         regID,
			EventName:     "IoT Workshop",
			ParticipantID: 42,
			Email:         "asha@example.com",
			Admitted:      true,
		}
		// Second pass over the same registration: already terminal.
		out.AlreadyMarked = calls > 1
		return out, nil
	}

	body := map[string]any{"qr_payload": "42|SYM-GNW-00001"}

	h.store.data[cache.VerifStatusKey(42)] = "Pending"
	rec, resp := h.post(t, h.svc.ScanAttendance, body)
	require.Equal(t, http.StatusOK, rec.Code)

	first := resp["data"].([]any)[0].(map[string]any)
	assert.Equal(t, true, first["admitted"])
	assert.Equal(t, false, first["already_marked"], "fresh admit is not flagged as a repeat")
	assert.NotContains(t, h.store.data, cache.VerifStatusKey(42), "a fresh admit invalidates the participant caches")

	// Re-scan: still a success, flagged as already marked, no second
	// state change and no second invalidation.
	h.store.data[cache.VerifStatusKey(42)] = "Success"
	rec, resp = h.post(t, h.svc.ScanAttendance, body)
	require.Equal(t, http.StatusOK, rec.Code)

	second := resp["data"].([]any)[0].(map[string]any)
	assert.Equal(t, true, second["admitted"])
	assert.Equal(t, true, second["already_marked"])
	assert.Empty(t, second["reason"])
	assert.Contains(t, h.store.data, cache.VerifStatusKey(42), "a repeat scan mutates nothing")
	assert.Equal(t, 2, calls)
}

func TestScanAttendanceDenialCarriesSuggestion(t *testing.T) {
	h := newHarness(t, Config{})
	h.repo.markAttendedFn = func(_ context.Context, regID string) (*repo.AttendanceOutcome, error) {
		return &repo.AttendanceOutcome{
			RegID:      regID,
			Admitted:   false,
			Reason:     "payment is Pending",
			Suggestion: "cohort=general type=workshop year=3 amount=400.00 status=Pending verified=false; resolve at the help desk",
		}, nil
	}

	rec, resp := h.post(t, h.svc.ScanAttendance, map[string]any{"qr_payload": "42|SYM-GNW-00001"})
	require.Equal(t, http.StatusOK, rec.Code)

	d := resp["data"].([]any)[0].(map[string]any)
	assert.Equal(t, false, d["admitted"])
	assert.NotEmpty(t, d["reason"])
	assert.NotEmpty(t, d["suggestion"])
}

// --- reconciliation ---

func TestReconcileInvalidatesTrackCache(t *testing.T) {
	h := newHarness(t, Config{})

	h.store.data[cache.TrackKey("asha@example.com")] = `{"payment_status":"Pending"}`
	h.store.data[cache.VerifStatusKey(42)] = "Pending"

	h.repo.verifiedPaymentsFn = func(context.Context) ([]model.Payment, error) { return nil, nil }
	h.repo.unverifiedCandidatesFn = func(context.Context) ([]model.Payment, error) {
		return []model.Payment{
			{ID: 7, ParticipantID: 42, TransactionID: "UPI12345678", Amount: 1100},
		}, nil
	}
	var gotPayments, gotParticipants []int64
	h.repo.applyVerificationsFn = func(_ context.Context, paymentIDs, participantIDs []int64) error {
		gotPayments, gotParticipants = paymentIDs, participantIDs
		return nil
	}

	rec, resp := h.post(t, h.svc.ReconcilePayments, map[string]any{
		"records": []map[string]any{
			{"transaction_id": "UPI12345678", "amount": 1100},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, gotPayments)
	assert.Equal(t, []int64{42}, gotParticipants)

	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(1), data["newly_verified"])

	// The batch just confirmed registrations, so participant-facing reads
	// must not serve the stale Pending state.
	assert.NotContains(t, h.store.data, cache.TrackKey("asha@example.com"))
	assert.NotContains(t, h.store.data, cache.VerifStatusKey(42))
}

func TestReconcileNoMatchesLeavesCachesAlone(t *testing.T) {
	h := newHarness(t, Config{})

	h.store.data[cache.TrackKey("asha@example.com")] = `{"payment_status":"Pending"}`

	h.repo.verifiedPaymentsFn = func(context.Context) ([]model.Payment, error) { return nil, nil }
	h.repo.unverifiedCandidatesFn = func(context.Context) ([]model.Payment, error) {
		return []model.Payment{
			{ID: 7, ParticipantID: 42, TransactionID: "UPI12345678", Amount: 1100},
		}, nil
	}
	h.repo.applyVerificationsFn = func(_ context.Context, paymentIDs, participantIDs []int64) error {
		assert.Empty(t, paymentIDs)
		return nil
	}

	rec, _ := h.post(t, h.svc.ReconcilePayments, map[string]any{
		"records": []map[string]any{
			{"transaction_id": "SOMETHING-ELSE", "amount": 1100},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, h.store.data, cache.TrackKey("asha@example.com"),
		"a batch that promotes nothing must not churn caches")
}
