package goGuardian

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/MrEthical07/goGuardian/transport"
)

// installDefaultHandlers sets the fallbacks used when no step owns a backend event: a
// push enrollment finished on another device, or a login completed with no verification
// call at all.
func (t *Transaction) installDefaultHandlers() {
	t.enrollmentConfirmedHub.DefaultHandler(func(payload any) {
		if p, ok := payload.(enrollmentConfirmedPayload); ok {
			t.completeEnrollment(p)
		}
	})
	t.loginCompleteHub.DefaultHandler(func(payload any) {
		if p, ok := payload.(loginCompletePayload); ok {
			t.emitAuthResponse(AuthResponsePayload{Accepted: true, Signature: p.Signature})
		}
	})
	t.loginRejectedHub.DefaultHandler(func(payload any) {
		if _, ok := payload.(loginRejectedPayload); ok {
			t.emitAuthResponse(AuthResponsePayload{Accepted: false})
		}
	})
	t.backendErrorHub.DefaultHandler(func(payload any) {
		if err, ok := payload.(error); ok {
			t.emitError(err)
		}
	})
}

// HandleEvent feeds a backend event into the transaction. Transports call it; with the
// manual transport the caller does.
func (t *Transaction) HandleEvent(ev transport.Event) {
	t.post(func() { t.dispatch(ev) })
}

// dispatch decodes a backend event and emits it to the hubs. Loop only.
func (t *Transaction) dispatch(ev transport.Event) {
	var payload any
	var err error

	switch ev.Name {
	case transport.EventLoginComplete:
		var p loginCompletePayload
		err = decodeEventPayload(ev.Payload, &p)
		payload = p
	case transport.EventLoginRejected:
		var p loginRejectedPayload
		err = decodeEventPayload(ev.Payload, &p)
		payload = p
	case transport.EventEnrollmentConfirmed:
		var p enrollmentConfirmedPayload
		err = decodeEventPayload(ev.Payload, &p)
		payload = p
	case transport.EventError:
		var p backendErrorPayload
		err = decodeEventPayload(ev.Payload, &p)
		payload = p.guardianError()
		t.metrics.Inc(MetricBackendError)
	default:
		log.Printf("goGuardian: ignoring unknown event %q", ev.Name)
		return
	}

	if err != nil {
		log.Printf("goGuardian: undecodable %q event", ev.Name)
		t.emitError(fmt.Errorf("%w: %s event: %v", ErrUnexpectedInput, ev.Name, err))
		return
	}
	t.backend.Emit(ev.Name, payload)
}

// decodeEventPayload decodes raw into v. Object keys may be snake_case or camelCase;
// when both spellings of a key are present the snake_case one wins.
func decodeEventPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	normalized, err := json.Marshal(snakeKeys(generic))
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, v)
}

func snakeKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if s := snakeCase(k); s != k {
				out[s] = snakeKeys(val)
			}
		}
		for k, val := range x {
			if snakeCase(k) == k {
				out[k] = snakeKeys(val)
			}
		}
		return out
	case []any:
		for i := range x {
			x[i] = snakeKeys(x[i])
		}
		return x
	}
	return v
}

// snakeCase maps txId to tx_id and HTTPStatus to http_status. snake_case input is
// returned unchanged.
func snakeCase(k string) string {
	runes := []rune(k)
	var b strings.Builder
	b.Grow(len(k) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p backendErrorPayload) guardianError() *GuardianError {
	code := p.ErrorCode
	if code == "" {
		code = p.Error
	}
	message := p.Message
	if message == "" {
		message = p.Error
	}
	return newGuardianError(code, message, p.StatusCode, nil)
}
