package monitor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"edgepoll/edge_module/device"

	"github.com/stretchr/testify/assert"
)

func TestPulseCoil(t *testing.T) {
	sim := device.NewSim()
	start := time.Now()
	assert.NoError(t, PulseCoil(context.Background(), sim.Factory(), 1, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []device.CoilWrite{{Address: 1, On: true}, {Address: 1, On: false}}, sim.Coils())
	opens, closes := sim.Handles()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestPulseCoil_Cancelled(t *testing.T) {
	sim := device.NewSim()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := PulseCoil(ctx, sim.Factory(), 1, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []device.CoilWrite{{Address: 1, On: true}, {Address: 1, On: false}}, sim.Coils())
	_, closes := sim.Handles()
	assert.Equal(t, 1, closes)
}

func TestPulseCoil_SetFails(t *testing.T) {
	sim := device.NewSim()
	sim.SetWriteErr(io.ErrClosedPipe)
	err := PulseCoil(context.Background(), sim.Factory(), 1, time.Hour)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.ErrorContains(t, err, "clear coil 1")
	_, closes := sim.Handles()
	assert.Equal(t, 1, closes)
}

func TestPulseCoil_FactoryFails(t *testing.T) {
	boom := errors.New("dial")
	err := PulseCoil(context.Background(), func() (device.RegisterReader, error) { return nil, boom }, 1, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, PulseCoil(context.Background(), nil, 1, time.Second), ErrNoReader)
}
