package device

import (
	"encoding/json"
	"errors"
	"sync"
)

func init() {
	RegisterTransport("sim", newSimFactory)
}

var ErrSimClosed = errors.New("sim: reader not open")

// Sim is an in-memory slave. Each read returns the next value of its sequence and the last value repeats.
// An empty sequence yields empty results.
type Sim struct {
	mu       sync.Mutex
	sequence []uint16
	next     int
	coils    []CoilWrite
	readErr  error
	writeErr error
	opens    int
	closes   int
}

type CoilWrite struct {
	Address uint16
	On      bool
}

func NewSim(sequence ...uint16) *Sim {
	return &Sim{sequence: sequence}
}

func newSimFactory(_ string, rawConf json.RawMessage) (Factory, error) {
	var conf struct {
		Sequence []uint16 `json:"sequence"`
	}
	if err := json.Unmarshal(rawConf, &conf); err != nil {
		return nil, err
	}
	return NewSim(conf.Sequence...).Factory(), nil
}

// Factory hands out readers that all share this Sim's state.
func (s *Sim) Factory() Factory {
	return func() (RegisterReader, error) {
		return &simReader{sim: s}, nil
	}
}

func (s *Sim) SetReadErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (s *Sim) SetWriteErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *Sim) Coils() []CoilWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CoilWrite(nil), s.coils...)
}

// Handles reports how many readers were opened and closed.
func (s *Sim) Handles() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

type simReader struct {
	sim  *Sim
	open bool
}

func (r *simReader) Open() error {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	r.sim.opens++
	r.open = true
	return nil
}

func (r *simReader) Close() error {
	r.sim.mu.Lock()
	defer r.sim.mu.Unlock()
	if r.open {
		r.sim.closes++
		r.open = false
	}
	return nil
}

func (r *simReader) ReadRegister(_, count uint16) ([]uint16, error) {
	s := r.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	if !r.open {
		return nil, ErrSimClosed
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	if len(s.sequence) == 0 || count == 0 {
		return []uint16{}, nil
	}
	i := s.next
	if i >= len(s.sequence) {
		i = len(s.sequence) - 1
	} else {
		s.next++
	}
	words := make([]uint16, count)
	words[0] = s.sequence[i]
	return words, nil
}

func (r *simReader) WriteCoil(address uint16, on bool) error {
	s := r.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	if !r.open {
		return ErrSimClosed
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.coils = append(s.coils, CoilWrite{Address: address, On: on})
	return nil
}
