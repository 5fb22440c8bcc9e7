package mcp2210

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/moffa90/go-mcp2210/protocol"
)

// TransferChunk issues a single SPI transfer frame carrying at most 60 bytes
// and returns the raw response, including the engine status. An empty chunk
// is a pure polling read.
func (d *Device) TransferChunk(ctx context.Context, chunk []byte) (*protocol.SPITransferResponse, error) {
	cmd, err := protocol.NewSPITransferCmd(chunk)
	if err != nil {
		return nil, err
	}
	return send[*protocol.SPITransferResponse](ctx, d, cmd)
}

// Transfer clocks payload out on the SPI bus and returns the bytes clocked in.
//
// The payload is split into frames of at most ChunkSize bytes. After all
// frames are sent, empty polling frames are issued until as many bytes have
// been received as were sent. A frame rejected with "transfer in progress"
// is retried; retries and polls together are bounded by MaxPolls, after which
// a TransferIncompleteError is returned.
//
// Example:
//
//	rx, err := dev.Transfer(ctx, []byte{0x9F, 0x00, 0x00, 0x00})
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("JEDEC ID: % X\n", rx[1:])
func (d *Device) Transfer(ctx context.Context, payload []byte) ([]byte, error) {
	total := len(payload)
	if total == 0 {
		return []byte{}, nil
	}

	if d.config.AutoTransferSize {
		if err := d.syncTransferSize(ctx, total); err != nil {
			return nil, err
		}
	}

	t := &transferState{
		total:     total,
		startTime: time.Now(),
		received:  make([]byte, 0, total),
	}

	d.logInfo("starting spi transfer",
		"bytes", total,
		"chunk_size", d.config.ChunkSize,
	)

	// Phase 1: send payload
	for t.sent < total {
		end := t.sent + d.config.ChunkSize
		if end > total {
			end = total
		}

		resp, err := d.TransferChunk(ctx, payload[t.sent:end])
		if err != nil {
			if busy(err) {
				if err := d.countPoll(ctx, t); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("spi transfer at byte %d: %w", t.sent, err)
		}

		t.sent = end
		t.accept(resp)
		d.reportProgress(PhaseSending, t)

		if err := sleepCtx(ctx, d.config.ChunkDelay); err != nil {
			return nil, err
		}
	}

	// Phase 2: drain bytes still queued in the chip
	for len(t.received) < total {
		if err := d.countPoll(ctx, t); err != nil {
			return nil, err
		}

		resp, err := d.TransferChunk(ctx, nil)
		if err != nil {
			if busy(err) {
				continue
			}
			return nil, fmt.Errorf("spi transfer drain: %w", err)
		}

		t.accept(resp)
		d.reportProgress(PhaseDraining, t)
	}

	if len(t.received) > total {
		d.logDebug("discarding surplus transfer bytes", "surplus", len(t.received)-total)
		t.received = t.received[:total]
	}

	d.reportProgress(PhaseComplete, t)
	d.logInfo("spi transfer complete",
		"bytes", total,
		"polls", t.polls,
		"elapsed", time.Since(t.startTime),
	)

	return t.received, nil
}

// transferState tracks one Transfer call.
type transferState struct {
	total     int
	sent      int
	polls     int
	engine    byte
	received  []byte
	startTime time.Time
}

func (t *transferState) accept(resp *protocol.SPITransferResponse) {
	t.received = append(t.received, resp.Data...)
	t.engine = resp.EngineStatus()
}

// countPoll charges one frame against MaxPolls and waits PollDelay.
// The first poll after the payload is sent is not delayed beyond ChunkDelay.
func (d *Device) countPoll(ctx context.Context, t *transferState) error {
	if t.polls >= d.config.MaxPolls {
		err := &TransferIncompleteError{
			Expected: t.total,
			Received: len(t.received),
			Polls:    t.polls,
		}
		d.logError("spi transfer did not drain", "error", err, "engine_status", fmt.Sprintf("0x%02X", t.engine))
		return err
	}
	if t.polls > 0 || t.sent < t.total {
		if err := sleepCtx(ctx, d.config.PollDelay); err != nil {
			return err
		}
	}
	t.polls++
	return nil
}

// syncTransferSize makes the runtime SPI transaction size match n.
func (d *Device) syncTransferSize(ctx context.Context, n int) error {
	if n > math.MaxUint16 {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTransferTooLarge, n, math.MaxUint16)
	}
	cur, err := d.spiSettings.Get(ctx)
	if err != nil {
		return err
	}
	if int(cur.TransferSize) == n {
		return nil
	}
	d.logDebug("updating spi transfer size", "from", cur.TransferSize, "to", n)
	_, err = d.spiSettings.Update(ctx, func(s protocol.SPISettings) protocol.SPISettings {
		s.TransferSize = uint16(n)
		return s
	})
	return err
}

// reportProgress calls the progress callback if configured.
func (d *Device) reportProgress(phase string, t *transferState) {
	if d.config.ProgressCallback == nil {
		return
	}

	received := len(t.received)
	if received > t.total {
		received = t.total
	}

	d.config.ProgressCallback(Progress{
		Phase:         phase,
		BytesSent:     t.sent,
		BytesReceived: received,
		TotalBytes:    t.total,
		Polls:         t.polls,
		EngineStatus:  t.engine,
		Percentage:    float64(received) / float64(t.total) * 100,
		ElapsedTime:   time.Since(t.startTime),
	})
}

func busy(err error) bool {
	code, ok := protocol.DeviceErrorCode(err)
	return ok && code == protocol.StatusSPITransferInProgress
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
