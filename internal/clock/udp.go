package clock

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// udpReadDeadline bounds each socket read so shutdown is observed promptly.
const udpReadDeadline = 250 * time.Millisecond

// UDPTransport receives transport state over UDP datagrams, one state
// report per packet:
//
//	<frame_counter> <rolling:0|1> <sample_rate>\n
//
// A bridge process on the audio machine publishes these at its period rate.
// The last received state is served from atomics; a transport that stops
// sending keeps reporting its final counter with rolling unchanged, which
// matches how a stalled external clock should look to the player.
type UDPTransport struct {
	conn *net.UDPConn
	port int

	counter    atomic.Uint64
	rolling    atomic.Bool
	sampleRate atomic.Uint32
	gotPacket  atomic.Bool

	packets     atomic.Uint64
	parseErrors atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// OpenUDPTransport binds the listen port and starts the receive loop.
// The transport is not ready until the first datagram arrives; callers
// that need the clock at startup should follow with WaitReady.
func OpenUDPTransport(port int) (*UDPTransport, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("clock: failed to bind UDP port %d: %w", port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &UDPTransport{
		conn:   conn,
		port:   port,
		cancel: cancel,
	}
	// Sane default until the first packet reports the real rate.
	t.sampleRate.Store(48000)

	t.wg.Add(1)
	go t.receiveLoop(ctx)

	slog.Info("clock: UDP transport listening", "port", port)
	return t, nil
}

// WaitReady blocks until the first transport datagram arrives or the
// context/timeout expires.
func (t *UDPTransport) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if t.gotPacket.Load() {
			slog.Info("clock: transport ready",
				"sample_rate", t.sampleRate.Load(),
				"rolling", t.rolling.Load(),
			)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return fmt.Errorf("clock: no transport datagram on port %d within %s", t.port, timeout)
}

func (t *UDPTransport) receiveLoop(ctx context.Context) {
	defer t.wg.Done()

	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t.conn.SetReadDeadline(time.Now().Add(udpReadDeadline))
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Debug("clock: UDP read error", "error", err)
			continue
		}

		var counter uint64
		var rolling int
		var rate uint32
		if _, err := fmt.Sscanf(string(buf[:n]), "%d %d %d", &counter, &rolling, &rate); err != nil {
			t.parseErrors.Add(1)
			slog.Debug("clock: malformed transport datagram",
				"payload", string(buf[:n]),
				"error", err,
			)
			continue
		}

		t.counter.Store(counter)
		t.rolling.Store(rolling != 0)
		if rate > 0 {
			t.sampleRate.Store(rate)
		}
		t.gotPacket.Store(true)
		t.packets.Add(1)
	}
}

// FrameCounter implements Transport.
func (t *UDPTransport) FrameCounter() uint64 {
	return t.counter.Load()
}

// IsRolling implements Transport.
func (t *UDPTransport) IsRolling() bool {
	return t.rolling.Load()
}

// SampleRate implements Transport.
func (t *UDPTransport) SampleRate() uint32 {
	return t.sampleRate.Load()
}

// Close stops the receive loop and releases the socket. Idempotent.
func (t *UDPTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.cancel()
	err := t.conn.Close()
	t.wg.Wait()
	slog.Info("clock: UDP transport closed",
		"packets", t.packets.Load(),
		"parse_errors", t.parseErrors.Load(),
	)
	return err
}
