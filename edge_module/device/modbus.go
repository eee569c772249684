package device

import (
	"encoding/json"
	"fmt"
	"strings"

	"edgepoll/pkg"
)

const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// RegisterKind selects the Modbus function used to read a register.
type RegisterKind int

const (
	InputRegister RegisterKind = iota
	HoldingRegister
)

func (k *RegisterKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "", "input":
		*k = InputRegister
	case "holding":
		*k = HoldingRegister
	default:
		return fmt.Errorf("unknown register type %q", s)
	}
	return nil
}

func (k RegisterKind) String() string {
	if k == HoldingRegister {
		return "holding"
	}
	return "input"
}

// registerClient is the part of a Modbus client both the TCP and the RTU stacks provide.
type registerClient interface {
	ReadInputRegisters(address, quantity uint16) (results []byte, err error)
	ReadHoldingRegisters(address, quantity uint16) (results []byte, err error)
	WriteSingleCoil(address, value uint16) (results []byte, err error)
}

type registerAccess struct {
	client registerClient
	kind   RegisterKind
}

func (r registerAccess) readRegister(address, count uint16) ([]uint16, error) {
	var (
		results []byte
		err     error
	)
	if r.kind == HoldingRegister {
		results, err = r.client.ReadHoldingRegisters(address, count)
	} else {
		results, err = r.client.ReadInputRegisters(address, count)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s register %d: %w", r.kind, address, err)
	}
	return pkg.BigEndianWords(results), nil
}

func (r registerAccess) writeCoil(address uint16, on bool) error {
	value := coilOff
	if on {
		value = coilOn
	}
	if _, err := r.client.WriteSingleCoil(address, value); err != nil {
		return fmt.Errorf("write coil %d: %w", address, err)
	}
	return nil
}
