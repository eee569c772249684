package pkg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintable(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{name: "control and invalid bytes", in: []byte{0x01, 'A', 0xFF, 'B', '\r'}, want: []byte("AB")},
		{name: "rtu frame", in: []byte{0x01, 0x04, 0x02, 0xC3, 0x50, 0xFF, 0x8C}, want: []byte("P")},
		{name: "valid multibyte", in: []byte("°C"), want: []byte("°C")},
		{name: "empty", in: nil, want: []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Printable(tt.in))
		})
	}
}

func TestBigEndianWords(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []uint16
	}{
		{name: "empty", in: nil, want: []uint16{}},
		{name: "one", in: []byte{0xC3, 0x50}, want: []uint16{50000}},
		{name: "two", in: []byte{0x00, 0x01, 0xFF, 0xFF}, want: []uint16{1, 65535}},
		{name: "odd", in: []byte{0x00, 0x02, 0x07}, want: []uint16{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BigEndianWords(tt.in))
		})
	}
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil) })
	assert.Panics(t, func() { Must(errors.New("x")) })
}
