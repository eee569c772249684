package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edgepoll/edge_module/device"
	"edgepoll/edge_module/metrics"
)

// PulseCoil holds a coil high for d on a connection of its own. The coil is cleared and the
// connection closed on every path, including a cancelled wait or a failed set.
func PulseCoil(ctx context.Context, open device.Factory, address uint16, d time.Duration) (err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		metrics.PulsesTotal.WithLabelValues(status).Inc()
	}()
	if open == nil {
		return ErrNoReader
	}
	r, err := open()
	if err != nil {
		return fmt.Errorf("pulse coil %d: %w", address, err)
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()
	defer func() {
		if clearErr := r.WriteCoil(address, false); clearErr != nil {
			err = errors.Join(err, fmt.Errorf("clear coil %d: %w", address, clearErr))
		}
	}()

	if err = r.Open(); err != nil {
		return fmt.Errorf("pulse coil %d: open: %w", address, err)
	}
	if err = r.WriteCoil(address, true); err != nil {
		return fmt.Errorf("set coil %d: %w", address, err)
	}
	return sleep(ctx, d)
}
