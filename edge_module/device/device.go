package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownTransport = errors.New("unknown transport")

// RegisterReader is the narrow view of a Modbus slave the polling loops need.
type RegisterReader interface {
	Open() error
	Close() error
	ReadRegister(address, count uint16) ([]uint16, error)
	WriteCoil(address uint16, on bool) error
}

// Factory makes a fresh, unopened RegisterReader.
type Factory func() (RegisterReader, error)

// NewFactoryFunc builds a Factory from the raw device config of one transport.
type NewFactoryFunc func(name string, rawConf json.RawMessage) (Factory, error)

var (
	transportsMu sync.RWMutex
	transports   = make(map[string]NewFactoryFunc)
)

func RegisterTransport(name string, f NewFactoryFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	if f == nil {
		panic("Register transport is nil")
	}
	if _, dup := transports[name]; dup {
		panic("Register called twice for transport " + name)
	}
	transports[name] = f
}

func Transports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	names := make([]string, 0, len(transports))
	for name := range transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFactory picks the transport named by the "transport" field of rawConf.
func NewFactory(name string, rawConf json.RawMessage) (Factory, error) {
	var head struct {
		Transport string `json:"transport"`
	}
	if err := json.Unmarshal(rawConf, &head); err != nil {
		return nil, fmt.Errorf("device %s: %w", name, err)
	}
	transportsMu.RLock()
	f, ok := transports[head.Transport]
	transportsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("device %s: %w %q", name, ErrUnknownTransport, head.Transport)
	}
	factory, err := f(name, rawConf)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", name, err)
	}
	return factory, nil
}

// Build makes one Factory per configured device.
func Build(devices map[string]json.RawMessage) (map[string]Factory, error) {
	factories := make(map[string]Factory, len(devices))
	for name, raw := range devices {
		f, err := NewFactory(name, raw)
		if err != nil {
			return nil, err
		}
		factories[name] = f
	}
	return factories, nil
}
