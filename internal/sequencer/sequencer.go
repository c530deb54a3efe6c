// Package sequencer releases events downstream in declared orders, whatever order they
// arrive in.
//
// A sequence is a named, ordered list of event names. An emitted event is held until,
// for every sequence that contains it, every earlier event of that sequence has been
// released. Events that belong to no sequence are released immediately.
//
// Sequences are assumed mutually compatible: shared events keep the same relative order
// in every sequence containing them. This is a caller contract and is not checked.
//
// A Sequencer is not safe for concurrent use; its owner drives it from one goroutine.
package sequencer

import "github.com/MrEthical07/goGuardian/internal/emitter"

// Sink receives released events.
type Sink interface {
	Emit(event string, payload any)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(event string, payload any)

// Emit calls f.
func (f SinkFunc) Emit(event string, payload any) { f(event, payload) }

type received struct {
	emitted bool
	payload any
}

// Sequencer buffers events until their sequences allow release.
type Sequencer struct {
	names     []string
	sequences map[string][]string
	received  map[string]*received
	sinks     []Sink
	local     *emitter.Emitter
}

// New returns a sequencer with no sequences.
func New() *Sequencer {
	return &Sequencer{
		sequences: make(map[string][]string),
		received:  make(map[string]*received),
		local:     emitter.New(),
	}
}

// AddSequence declares (or replaces) the named ordering.
func (s *Sequencer) AddSequence(name string, events ...string) {
	if _, exists := s.sequences[name]; !exists {
		s.names = append(s.names, name)
	}
	s.sequences[name] = append([]string(nil), events...)
}

// HasSequence reports whether name is declared.
func (s *Sequencer) HasSequence(name string) bool {
	_, ok := s.sequences[name]
	return ok
}

// RemoveSequence drops the named ordering and releases whatever it alone was holding.
func (s *Sequencer) RemoveSequence(name string) {
	events, ok := s.sequences[name]
	if !ok {
		return
	}
	delete(s.sequences, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}

	for _, event := range events {
		if s.releasable(event) {
			s.release(event)
		}
	}
	s.applySequences()
}

// Pipe forwards every released event to sink, in addition to local listeners.
func (s *Sequencer) Pipe(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// On registers a local listener for released events.
func (s *Sequencer) On(event string, fn emitter.Listener) emitter.ListenerID {
	return s.local.On(event, fn)
}

// Emit records event and releases it, plus anything it unblocks, once ordering allows.
// Emitting the same event again overwrites its payload and requests a new release.
func (s *Sequencer) Emit(event string, payload any) {
	s.received[event] = &received{payload: payload}

	if len(s.sequencesWith(event)) == 0 {
		s.release(event)
		return
	}
	s.applySequences()
}

// Pending returns the events received but not yet released.
func (s *Sequencer) Pending() []string {
	var out []string
	for _, name := range s.names {
		for _, event := range s.sequences[name] {
			r, ok := s.received[event]
			if ok && !r.emitted && !contains(out, event) {
				out = append(out, event)
			}
		}
	}
	return out
}

func (s *Sequencer) sequencesWith(event string) [][]string {
	var out [][]string
	for _, name := range s.names {
		seq := s.sequences[name]
		if contains(seq, event) {
			out = append(out, seq)
		}
	}
	return out
}

// releasable reports whether event is waiting and every predecessor in every sequence
// containing it has already been released.
func (s *Sequencer) releasable(event string) bool {
	r, ok := s.received[event]
	if !ok || r.emitted {
		return false
	}
	for _, seq := range s.sequencesWith(event) {
		for _, prior := range seq {
			if prior == event {
				break
			}
			pr, ok := s.received[prior]
			if !ok || !pr.emitted {
				return false
			}
		}
	}
	return true
}

// applySequences walks every sequence in declared order until no further release is
// possible, so chains unblocked across sequences cascade.
func (s *Sequencer) applySequences() {
	for progressed := true; progressed; {
		progressed = false
		for _, name := range s.names {
			for _, event := range s.sequences[name] {
				if s.releasable(event) {
					s.release(event)
					progressed = true
				}
			}
		}
	}
}

func (s *Sequencer) release(event string) {
	r := s.received[event]
	r.emitted = true
	for _, sink := range s.sinks {
		sink.Emit(event, r.payload)
	}
	if event == emitter.EventError && s.local.ListenerCount(event) == 0 {
		return
	}
	s.local.Emit(event, r.payload)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
