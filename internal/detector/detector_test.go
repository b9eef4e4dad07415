package detector

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/dwell.report/internal/vision"
)

type capturedFrame struct {
	dets []vision.Detection
	ts   time.Time
}

func TestFrameDecode(t *testing.T) {
	ts := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
	frame := Frame{
		TimestampUnixNanos: ts.UnixNano(),
		Detections: []WireDetection{
			{X: 100, Y: 200, W: 40, H: 80, Confidence: 0.9},
		},
	}

	dets, got := frame.Decode()
	if !got.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got, ts)
	}
	if len(dets) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(dets))
	}
	if dets[0].BBox.X != 100 || dets[0].Confidence != 0.9 {
		t.Errorf("detection = %+v", dets[0])
	}
	if !dets[0].Timestamp.Equal(ts) {
		t.Errorf("detection timestamp not set from frame")
	}
}

func TestFrameDecodeMissingTimestamp(t *testing.T) {
	before := time.Now()
	_, ts := (&Frame{}).Decode()
	if ts.Before(before) {
		t.Errorf("missing timestamp should default to arrival time")
	}
}

func TestUDPListenerDeliversFrames(t *testing.T) {
	frames := make(chan capturedFrame, 10)
	l := NewUDPListener("127.0.0.1:0", func(dets []vision.Detection, ts time.Time) {
		frames <- capturedFrame{dets, ts}
	})

	// Bind on an ephemeral port first so the test knows where to send.
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	l.address = conn.LocalAddr().String()
	conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	// The listener needs a moment to bind before we send.
	time.Sleep(50 * time.Millisecond)

	client, err := net.Dial("udp", l.address)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	payload := fmt.Sprintf(`{"ts_unix_nanos": %d, "detections": [{"x":10,"y":20,"w":30,"h":40,"confidence":0.8}]}`,
		time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC).UnixNano())
	if _, err := client.Write([]byte(payload)); err != nil {
		t.Fatalf("send: %v", err)
	}
	client.Write([]byte("not json"))

	select {
	case f := <-frames:
		if len(f.dets) != 1 || f.dets[0].BBox.X != 10 {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Start returned %v, want context.Canceled", err)
	}
	if l.Frames() != 1 {
		t.Errorf("frames = %d, want 1", l.Frames())
	}
}

func TestReplayDeliversInOrder(t *testing.T) {
	base := time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)
	var lines []string
	for i := 0; i < 3; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"ts_unix_nanos": %d, "detections": [{"x":%d,"y":200,"w":20,"h":40,"confidence":0.9}]}`,
			base.Add(time.Duration(i)*33*time.Millisecond).UnixNano(), 100+i))
	}
	lines = append(lines, "{bad line}")
	input := strings.Join(lines, "\n")

	var got []capturedFrame
	r := NewReplayer(func(dets []vision.Detection, ts time.Time) {
		got = append(got, capturedFrame{dets, ts})
	})
	r.Speed = 0 // no pacing in tests

	n, err := r.Replay(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 3 {
		t.Fatalf("delivered = %d, want 3 (malformed line skipped)", n)
	}
	for i, f := range got {
		if len(f.dets) != 1 || f.dets[0].BBox.X != float32(100+i) {
			t.Errorf("frame %d = %+v", i, f.dets)
		}
	}
	if !got[0].ts.Equal(base) {
		t.Errorf("first frame ts = %v, want %v", got[0].ts, base)
	}
}

func TestReplayHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReplayer(func([]vision.Detection, time.Time) {})
	r.Speed = 0
	input := `{"ts_unix_nanos": 1, "detections": []}`
	if _, err := r.Replay(ctx, strings.NewReader(input)); err != context.Canceled {
		t.Errorf("Replay returned %v, want context.Canceled", err)
	}
}
