package goGuardian

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuardian/transport"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const waitTimeout = 2 * time.Second

type fakeCall struct {
	path  string
	token string
	body  json.RawMessage
}

// fakeHTTP records calls. Responses are keyed by path; a missing entry answers 200 {}.
type fakeHTTP struct {
	mu        sync.Mutex
	calls     []fakeCall
	responses map[string]func(out any) error
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{responses: make(map[string]func(out any) error)}
}

func (f *fakeHTTP) respond(path string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = func(out any) error {
		if out == nil {
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}
}

func (f *fakeHTTP) fail(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = func(any) error { return err }
}

func (f *fakeHTTP) Post(ctx context.Context, path, token string, data, out any) error {
	raw, _ := json.Marshal(data)
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{path: path, token: token, body: raw})
	handler := f.responses[path]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return nil
	}
	return handler(out)
}

func (f *fakeHTTP) Get(ctx context.Context, path, token string, out any) error {
	return f.Post(ctx, path, token, nil, out)
}

func (f *fakeHTTP) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeHTTP) callsTo(path string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func signedToken(t *testing.T, txID string, exp time.Time) string {
	t.Helper()
	claims := struct {
		TxID string `json:"txid"`
		jwt.RegisteredClaims
	}{
		TxID:             txID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return raw
}

func newTxID() string {
	return "tx_" + uuid.NewString()
}

type txOption func(*transactionState)

func withEnrollmentMethods(m ...Method) txOption {
	return func(s *transactionState) { s.availableEnrollmentMethods = m }
}

func withAuthMethods(m ...Method) txOption {
	return func(s *transactionState) { s.availableAuthenticationMethods = m }
}

func withEnrollment(m ...Method) txOption {
	return func(s *transactionState) {
		s.enrollments = append(s.enrollments, NewEnrollment(SerializedEnrollment{
			AvailableMethods: m,
			Methods:          m,
			Name:             "Test",
		}))
	}
}

func withAttempt(data EnrollmentAttemptData) txOption {
	return func(s *transactionState) { s.attempt = NewEnrollmentAttempt(data) }
}

func withToken(raw string) txOption {
	return func(s *transactionState) { s.token = raw }
}

type testTx struct {
	*Transaction
	http   *fakeHTTP
	errors <-chan any
}

// newTestTransaction builds a manual-mode transaction. An error listener is always
// attached so unexpected errors fail the test instead of crashing it.
func newTestTransaction(t *testing.T, opts ...txOption) *testTx {
	t.Helper()
	state := transactionState{
		token:   signedToken(t, newTxID(), time.Now().Add(time.Hour)),
		baseURL: "https://tenant.guardian.example",
	}
	for _, opt := range opts {
		opt(&state)
	}

	fake := newFakeHTTP()
	tx, err := newTransaction(context.Background(), transactionDeps{
		http:      fake,
		transport: transport.Manual{},
		metrics:   NewMetrics(MetricsConfig{Enabled: true}),
	}, state)
	if err != nil {
		t.Fatalf("newTransaction failed: %v", err)
	}
	t.Cleanup(func() { _ = tx.Close() })

	return &testTx{Transaction: tx, http: fake, errors: collect(tx, EventError)}
}

func collect(tx *Transaction, event string) <-chan any {
	ch := make(chan any, 32)
	tx.On(event, func(payload any) { ch <- payload })
	return ch
}

func backendEvent(t *testing.T, name string, payload any) transport.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return transport.Event{Name: name, Payload: raw}
}

func waitFor[T any](t *testing.T, ch <-chan any, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		out, ok := v.(T)
		if !ok {
			t.Fatalf("%s: unexpected payload %T (%v)", what, v, v)
		}
		return out
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	panic("unreachable")
}

func expectNone(t *testing.T, ch <-chan any, d time.Duration, what string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(d):
	}
}

func waitErr(t *testing.T, ch <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	return nil
}

type enrollResult struct {
	step *EnrollmentConfirmationStep
	err  error
}

func enroll(tx *testTx, method Method, data EnrollData) <-chan enrollResult {
	ch := make(chan enrollResult, 1)
	tx.Enroll(method, data, func(step *EnrollmentConfirmationStep, err error) {
		ch <- enrollResult{step: step, err: err}
	})
	return ch
}

func waitEnroll(t *testing.T, ch <-chan enrollResult) enrollResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for enroll callback")
	}
	return enrollResult{}
}

type authResult struct {
	step *AuthVerificationStep
	err  error
}

func requestAuth(tx *testTx, e *Enrollment, opts AuthOptions) <-chan authResult {
	ch := make(chan authResult, 1)
	tx.RequestAuth(e, opts, func(step *AuthVerificationStep, err error) {
		ch <- authResult{step: step, err: err}
	})
	return ch
}

func waitAuth(t *testing.T, ch <-chan authResult) authResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for auth callback")
	}
	return authResult{}
}

func errCallback() (func(error), <-chan error) {
	ch := make(chan error, 1)
	return func(err error) { ch <- err }, ch
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}
