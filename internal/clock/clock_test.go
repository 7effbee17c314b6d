package clock

import (
	"context"
	"fmt"
	"math"
	"net"
	"testing"
	"time"
)

func TestAdapterDerivesVideoSeconds(t *testing.T) {
	tr := NewManualTransport(48000)
	tr.SetSeconds(5.0)
	a := NewAdapter(tr, 0)

	if got := a.AudioSeconds(); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("AudioSeconds = %f, want 5.0", got)
	}
	if got := a.VideoSeconds(10.0); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("VideoSeconds = %f, want 5.0", got)
	}
}

func TestAdapterOffsetWrapsAtFileStart(t *testing.T) {
	// Offset +50 ms with the clock at zero shows the end of the file.
	tr := NewManualTransport(48000)
	a := NewAdapter(tr, 0.050)

	got := a.VideoSeconds(10.0)
	if math.Abs(got-9.95) > 1e-9 {
		t.Errorf("VideoSeconds = %f, want 9.95", got)
	}
}

func TestAdapterPositiveOffsetDelaysVideo(t *testing.T) {
	tr := NewManualTransport(48000)
	tr.SetSeconds(5.0)
	a := NewAdapter(tr, 0.100)

	got := a.VideoSeconds(10.0)
	if math.Abs(got-4.9) > 1e-9 {
		t.Errorf("VideoSeconds = %f, want 4.9", got)
	}
}

func TestAdjustOffsetMs(t *testing.T) {
	tr := NewManualTransport(48000)
	a := NewAdapter(tr, 0)

	if got := a.AdjustOffsetMs(1.0); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("AdjustOffsetMs = %f, want 1.0", got)
	}
	a.AdjustOffsetMs(10.0)
	a.AdjustOffsetMs(-2.0)
	if got := a.OffsetSeconds(); math.Abs(got-0.009) > 1e-9 {
		t.Errorf("OffsetSeconds = %f, want 0.009", got)
	}

	a.SetOffsetSeconds(0)
	if got := a.OffsetSeconds(); got != 0 {
		t.Errorf("OffsetSeconds after reset = %f, want 0", got)
	}
}

func TestUDPTransportReceivesState(t *testing.T) {
	tr, err := OpenUDPTransport(0)
	if err != nil {
		t.Fatalf("OpenUDPTransport failed: %v", err)
	}
	defer tr.Close()

	local := tr.conn.LocalAddr().(*net.UDPAddr)
	sender, err := net.DialUDP("udp4", nil, local)
	if err != nil {
		t.Fatalf("DialUDP failed: %v", err)
	}
	defer sender.Close()

	if _, err := fmt.Fprintf(sender, "%d %d %d\n", 96000, 1, 48000); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	ctx := context.Background()
	if err := tr.WaitReady(ctx, 2*time.Second); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}

	if got := tr.FrameCounter(); got != 96000 {
		t.Errorf("FrameCounter = %d, want 96000", got)
	}
	if !tr.IsRolling() {
		t.Error("expected rolling transport")
	}
	if got := tr.SampleRate(); got != 48000 {
		t.Errorf("SampleRate = %d, want 48000", got)
	}

	// Stopped transport at a new position.
	if _, err := fmt.Fprintf(sender, "%d %d %d\n", 144000, 0, 48000); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.FrameCounter() == 144000 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if tr.IsRolling() {
		t.Error("expected stopped transport after rolling=0 datagram")
	}
}

func TestUDPTransportIgnoresMalformedDatagrams(t *testing.T) {
	tr, err := OpenUDPTransport(0)
	if err != nil {
		t.Fatalf("OpenUDPTransport failed: %v", err)
	}
	defer tr.Close()

	local := tr.conn.LocalAddr().(*net.UDPAddr)
	sender, err := net.DialUDP("udp4", nil, local)
	if err != nil {
		t.Fatalf("DialUDP failed: %v", err)
	}
	defer sender.Close()

	fmt.Fprintf(sender, "not a transport packet\n")
	fmt.Fprintf(sender, "%d %d %d\n", 500, 1, 44100)

	if err := tr.WaitReady(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	if got := tr.FrameCounter(); got != 500 {
		t.Errorf("FrameCounter = %d, want 500", got)
	}
	if tr.parseErrors.Load() == 0 {
		t.Error("expected a parse error to be counted")
	}
}

func TestUDPTransportCloseIdempotent(t *testing.T) {
	tr, err := OpenUDPTransport(0)
	if err != nil {
		t.Fatalf("OpenUDPTransport failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
