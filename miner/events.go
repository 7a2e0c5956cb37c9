package miner

import (
	"sync"
	"time"

	"github.com/cyberia-to/universal-hash/types"
)

// Event types on the single miner event stream. Everything user-visible
// flows through here: found proofs, rotations, hashrate samples, errors.
const (
	EventProofFound = "proof_found"
	EventRotation   = "rotation"
	EventHashrate   = "hashrate"
	EventError      = "error"
)

type Event struct {
	Type     string     `json:"type"`
	At       time.Time  `json:"at"`
	Proof    *Proof     `json:"proof,omitempty"`
	Seed     types.Hash `json:"seed,omitempty"`
	Hashrate float64    `json:"hashrate,omitempty"`
	Err      string     `json:"error,omitempty"`
}

// Sink consumes miner events. Publish must not block for long; slow
// transports buffer or drop on their side.
type Sink interface {
	Publish(ev Event)
}

type sinkSet struct {
	lock  sync.RWMutex
	sinks []Sink
}

func (s *sinkSet) attach(sink Sink) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sinks = append(s.sinks, sink)
}

func (s *sinkSet) publish(ev Event) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	for _, sink := range s.sinks {
		sink.Publish(ev)
	}
}

// PublishHashrate pushes a hashrate sample event to the sinks. The daemon
// calls this on its stats interval.
func (m *Miner) PublishHashrate() {
	m.publish(Event{
		Type:     EventHashrate,
		Hashrate: m.Hashrate(),
	})
}

// PublishError surfaces a transient error on the event stream. Mining
// continues; fatal errors end the session instead.
func (m *Miner) PublishError(err error) {
	if err == nil {
		return
	}
	m.publish(Event{
		Type: EventError,
		Err:  err.Error(),
	})
}
