package queue

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Transfer periodically moves entries parked on a primary stream over to the
// overflow broker, freeing primary memory. Each entry is copied before the
// source entry is deleted, so a crash mid-transfer can duplicate but never
// lose an entry.
type Transfer struct {
	primaryURL  string
	overflowURL string
	streamKey   string
	dial        Dialer
	log         *zap.Logger

	running atomic.Bool
}

// NewTransfer creates a transfer job for one stream.
func NewTransfer(primaryURL, overflowURL, streamKey string, dial Dialer, log *zap.Logger) *Transfer {
	return &Transfer{
		primaryURL:  primaryURL,
		overflowURL: overflowURL,
		streamKey:   streamKey,
		dial:        dial,
		log: log.With(zap.String("module", "queue"),
			zap.String("transfer_stream", streamKey)),
	}
}

// Start runs the transfer loop until ctx is done.
func (t *Transfer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Run(ctx)
			}
		}
	}()
}

// Run performs one transfer cycle. Reentrancy-guarded like the drain cycle.
func (t *Transfer) Run(ctx context.Context) {
	if !t.running.CompareAndSwap(false, true) {
		t.log.Debug("Previous transfer still running, skipping cycle")
		return
	}
	defer t.running.Store(false)

	primary, err := t.dial(ctx, t.primaryURL)
	if err != nil {
		t.log.Error("Failed to dial primary broker", zap.Error(err))
		return
	}
	defer func() {
		if err := primary.Close(); err != nil {
			t.log.Warn("Failed to close primary broker", zap.Error(err))
		}
	}()

	entries, err := primary.Range(ctx, t.streamKey)
	if err != nil {
		t.log.Error("Failed to read primary stream", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}

	overflow, err := t.dial(ctx, t.overflowURL)
	if err != nil {
		t.log.Error("Failed to dial overflow broker", zap.Error(err))
		return
	}
	defer func() {
		if err := overflow.Close(); err != nil {
			t.log.Warn("Failed to close overflow broker", zap.Error(err))
		}
	}()

	moved := 0
	for _, entry := range entries {
		if err := overflow.AppendValues(ctx, t.streamKey, entry.Values); err != nil {
			t.log.Error("Failed to copy entry to overflow",
				zap.String("entry_id", entry.ID), zap.Error(err))
			continue
		}
		if err := primary.Delete(ctx, t.streamKey, entry.ID); err != nil {
			t.log.Error("Failed to delete transferred entry",
				zap.String("entry_id", entry.ID), zap.Error(err))
			continue
		}
		moved++
	}

	t.log.Info("Transfer cycle complete",
		zap.Int("moved", moved), zap.Int("found", len(entries)))
}
