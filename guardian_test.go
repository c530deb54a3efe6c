package goGuardian

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuardian/httpclient"
	"github.com/MrEthical07/goGuardian/store"
	"github.com/MrEthical07/goGuardian/transport"
	"github.com/redis/go-redis/v9"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ServiceURL = "https://tenant.guardian.example"
	cfg.Transport = TransportManual
	cfg.Issuer = Issuer{Name: "tenant", Label: "Tenant"}
	cfg.AccountLabel = "user@example.com"
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestGuardian(t *testing.T, client HTTPClient, rdb ...*redis.Client) *Guardian {
	t.Helper()
	b := New().WithConfig(testConfig()).WithHTTPClient(client)
	if len(rdb) > 0 {
		b = b.WithRedis(rdb[0])
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestStartPendingEnrollment(t *testing.T) {
	fake := newFakeHTTP()
	txID := newTxID()
	fake.respond(pathStartFlow, map[string]any{
		"transaction_token": signedToken(t, txID, time.Now().Add(time.Hour)),
		"enrollment_tx_id":  "etx_1",
		"device_account": map[string]any{
			"id":            "dev_1",
			"status":        "pending",
			"otp_secret":    "GEZDGNBVGY3TQOJQ",
			"recovery_code": "ABCDEFGHIJKLMNOPQRSTUVWX",
		},
		"available_enrollment_methods":     []string{"push", "otp", "sms"},
		"available_authentication_methods": []string{"push", "otp", "sms"},
	})
	g := newTestGuardian(t, fake)

	tx, err := g.Start(context.Background(), "request-token")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if tx.ID() != txID || tx.IsEnrolled() {
		t.Fatalf("unexpected transaction %s enrolled=%v", tx.ID(), tx.IsEnrolled())
	}
	a := tx.EnrollmentAttempt()
	if a == nil || a.EnrollmentTxID() != "etx_1" || a.EnrollmentID() != "dev_1" || a.IsActive() {
		t.Fatalf("unexpected attempt %+v", a)
	}
	if a.Issuer().Name != "tenant" || a.AccountLabel() != "user@example.com" || a.BaseURL() != "https://tenant.guardian.example" {
		t.Fatalf("unexpected attempt data %+v", a.Data())
	}

	calls := fake.callsTo(pathStartFlow)
	if len(calls) != 1 || calls[0].token != "request-token" || string(calls[0].body) != `{"state_transport":"manual"}` {
		t.Fatalf("unexpected start-flow calls %+v", calls)
	}
	if got := g.ActiveTransactions(); got != 1 {
		t.Fatalf("expected one active transaction, got %d", got)
	}
	_ = tx.Close()
	if got := g.ActiveTransactions(); got != 0 {
		t.Fatalf("expected no active transaction after Close, got %d", got)
	}
}

func TestStartConfirmedDevice(t *testing.T) {
	fake := newFakeHTTP()
	fake.respond(pathStartFlow, map[string]any{
		"transaction_token": signedToken(t, newTxID(), time.Now().Add(time.Hour)),
		"device_account": map[string]any{
			"status":            "confirmed",
			"available_methods": []string{"sms"},
			"methods":           []string{"sms"},
			"phone_number":      "XXXXXXX0100",
		},
		"available_authentication_methods": []string{"sms"},
	})
	g := newTestGuardian(t, fake)

	tx, err := g.Start(context.Background(), "request-token")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !tx.IsEnrolled() || tx.EnrollmentAttempt() != nil {
		t.Fatalf("expected an enrolled transaction without attempt")
	}
	if got := tx.Enrollments()[0].PhoneNumber(); got != "XXXXXXX0100" {
		t.Fatalf("unexpected phone number %q", got)
	}
}

func TestStartFailures(t *testing.T) {
	fake := newFakeHTTP()
	fake.fail(pathStartFlow, &httpclient.ResponseError{StatusCode: 401, ErrorCode: "invalid_token", Message: "bad token"})
	g := newTestGuardian(t, fake)

	_, err := g.Start(context.Background(), "")
	var required *FieldRequiredError
	if !errors.As(err, &required) || required.Field != "requestToken" {
		t.Fatalf("expected requestToken required, got %v", err)
	}

	_, err = g.Start(context.Background(), "request-token")
	var gerr *GuardianError
	if !errors.As(err, &gerr) || gerr.StatusCode != 401 {
		t.Fatalf("expected GuardianError 401, got %v", err)
	}
	if got := g.MetricsSnapshot().Counters[MetricBackendError]; got != 1 {
		t.Fatalf("expected one backend error, got %d", got)
	}

	_ = g.Close()
	if _, err := g.Start(context.Background(), "request-token"); !errors.Is(err, ErrTransactionClosed) {
		t.Fatalf("expected ErrTransactionClosed after Close, got %v", err)
	}
}

func TestStartTransportFailure(t *testing.T) {
	fake := newFakeHTTP()
	fake.respond(pathStartFlow, map[string]any{
		"transaction_token": signedToken(t, newTxID(), time.Now().Add(time.Hour)),
	})
	g, err := New().
		WithConfig(testConfig()).
		WithHTTPClient(fake).
		WithTransportFactory(func(HTTPClient) (transport.Transport, error) {
			return nil, errors.New("dial refused")
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer g.Close()

	if _, err := g.Start(context.Background(), "request-token"); err == nil {
		t.Fatal("expected transport failure")
	}
	if got := g.ActiveTransactions(); got != 0 {
		t.Fatalf("expected no active transaction, got %d", got)
	}
}

func TestSaveLoadForget(t *testing.T) {
	mr, rdb := newTestRedis(t)
	fake := newFakeHTTP()
	txID := newTxID()
	fake.respond(pathStartFlow, map[string]any{
		"transaction_token": signedToken(t, txID, time.Now().Add(10*time.Minute)),
		"device_account": map[string]any{
			"status":            "confirmed",
			"available_methods": []string{"otp"},
		},
		"available_authentication_methods": []string{"otp"},
	})
	g := newTestGuardian(t, fake, rdb)
	ctx := context.Background()

	tx, err := g.Start(ctx, "request-token")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := g.Save(ctx, tx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := mr.TTL("ggtx:" + txID); ttl <= 9*time.Minute || ttl > 10*time.Minute {
		t.Fatalf("expected ttl bound to the token, got %v", ttl)
	}

	loaded, err := g.Load(ctx, txID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ID() != txID || !loaded.IsEnrolled() {
		t.Fatalf("unexpected loaded transaction %s enrolled=%v", loaded.ID(), loaded.IsEnrolled())
	}

	found, err := g.Forget(ctx, txID)
	if err != nil || !found {
		t.Fatalf("Forget = %v, %v", found, err)
	}
	if _, err := g.Load(ctx, txID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after Forget, got %v", err)
	}
}

func TestSaveExpiredToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	g := newTestGuardian(t, newFakeHTTP(), rdb)

	now := time.Now()
	expired, err := g.Resume(context.Background(), SerializedTransaction{
		TransactionToken: signedToken(t, newTxID(), now.Add(-time.Minute)),
	})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if err := g.Save(context.Background(), expired); !errors.Is(err, ErrCredentialsExpired) {
		t.Fatalf("expected ErrCredentialsExpired, got %v", err)
	}
}

func TestStoreNotConfigured(t *testing.T) {
	g := newTestGuardian(t, newFakeHTTP())
	ctx := context.Background()

	if _, err := g.Load(ctx, "tx"); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("Load: expected ErrStoreNotConfigured, got %v", err)
	}
	if _, err := g.Forget(ctx, "tx"); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("Forget: expected ErrStoreNotConfigured, got %v", err)
	}
}

func TestResumeRequiresToken(t *testing.T) {
	g := newTestGuardian(t, newFakeHTTP())
	_, err := g.Resume(context.Background(), SerializedTransaction{})
	var required *FieldRequiredError
	if !errors.As(err, &required) || required.Field != "transactionToken" {
		t.Fatalf("expected transactionToken required, got %v", err)
	}
}

func TestBuilderValidation(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected missing ServiceURL to fail")
	}

	b := New().WithConfig(testConfig()).WithHTTPClient(newFakeHTTP())
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected reused builder to fail")
	}

	cfg := testConfig()
	cfg.Metrics.Enabled = false
	if _, err := New().WithConfig(cfg).WithLatencyHistograms(true).Build(); err == nil {
		t.Fatal("expected histograms without metrics to fail")
	}
}
