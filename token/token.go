package token

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token cannot be decoded.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the decoded transaction token claims.
type Claims struct {
	TxID string `json:"txid"`
	jwt.RegisteredClaims
}

// Option customizes a [Token].
type Option func(*Token)

// WithNow replaces the wall clock used for expiry scheduling.
func WithNow(now func() time.Time) Option {
	return func(t *Token) {
		if now != nil {
			t.now = now
		}
	}
}

// WithExpiryHandler registers fn before the expiry timer is scheduled, so a token that is
// already past exp still notifies it.
func WithExpiryHandler(fn func()) Option {
	return func(t *Token) {
		if fn != nil {
			t.listeners = append(t.listeners, fn)
		}
	}
}

// Token is a decoded transaction token with a one-shot expiry notification.
type Token struct {
	raw     string
	claims  *Claims
	now     func() time.Time
	expires time.Time

	mu        sync.Mutex
	expired   bool
	stopped   bool
	timer     *time.Timer
	listeners []func()
	fireOnce  sync.Once
}

// New decodes raw and schedules the expiry notification.
func New(raw string, opts ...Option) (*Token, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	t := &Token{raw: raw, claims: claims, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}

	if claims.ExpiresAt != nil {
		t.expires = claims.ExpiresAt.Time
		delay := t.expires.Sub(t.now())
		if delay < 0 {
			delay = 0
		}
		t.timer = time.AfterFunc(delay, t.fire)
	}
	return t, nil
}

// Token returns the raw bearer string.
func (t *Token) Token() string {
	return t.raw
}

// Decoded returns a copy of the decoded claims.
func (t *Token) Decoded() Claims {
	return *t.claims
}

// TxID returns the txid claim.
func (t *Token) TxID() string {
	return t.claims.TxID
}

// ExpiresAt returns the exp claim, or the zero time when the token has none.
func (t *Token) ExpiresAt() time.Time {
	return t.expires
}

// IsExpired reports whether the expiry notification has fired or exp has passed.
func (t *Token) IsExpired() bool {
	t.mu.Lock()
	expired := t.expired
	t.mu.Unlock()
	if expired {
		return true
	}
	return !t.expires.IsZero() && !t.now().Before(t.expires)
}

// RemainingTime returns the time left until exp, never negative. A token without exp
// reports zero.
func (t *Token) RemainingTime() time.Duration {
	if t.expires.IsZero() {
		return 0
	}
	d := t.expires.Sub(t.now())
	if d < 0 || t.IsExpired() {
		return 0
	}
	return d
}

// OnExpired registers fn to run once when the token expires. If the notification has
// already fired, fn is not called.
func (t *Token) OnExpired(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expired || t.stopped {
		return
	}
	t.listeners = append(t.listeners, fn)
}

// Stop clears the expiry timer. No notification fires afterwards.
func (t *Token) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.listeners = nil
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *Token) fire() {
	t.fireOnce.Do(func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.expired = true
		listeners := t.listeners
		t.listeners = nil
		t.mu.Unlock()

		for _, fn := range listeners {
			fn()
		}
	})
}
