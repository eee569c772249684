package uart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestMode_serialMode(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want *serial.Mode
	}{
		{
			name: "defaults",
			want: &serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		},
		{
			name: "even parity two stop bits",
			mode: Mode{BaudRate: 19200, DataBits: 8, Parity: "Even", StopBits: 2},
			want: &serial.Mode{BaudRate: 19200, DataBits: 8, Parity: serial.EvenParity, StopBits: serial.TwoStopBits},
		},
		{
			name: "unknown parity",
			mode: Mode{BaudRate: 4800, DataBits: 7, Parity: "weird"},
			want: &serial.Mode{BaudRate: 4800, DataBits: 7, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.serialMode())
		})
	}
}

func TestUart_NotOpened(t *testing.T) {
	c, err := NewUart("/dev/does-not-exist", time.Second, Mode{})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.Write([]byte{0})
	assert.Error(t, err)
	_, err = c.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Error(t, c.ResetInputBuffer())
}

func TestNewUart_EmptyName(t *testing.T) {
	_, err := NewUart("", time.Second, Mode{})
	assert.Error(t, err)
}
