package detector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/dwell.report/internal/monitoring"
)

// Replayer feeds recorded detection frames (NDJSON, one Frame per line)
// to a handler. Used for development without a camera and for replaying
// captured footage through tuning changes.
type Replayer struct {
	handler FrameHandler

	// Speed scales the gaps between frame timestamps; 0 replays with no
	// delay at all.
	Speed float64
}

// NewReplayer creates a replayer delivering frames to handler at
// recorded speed.
func NewReplayer(handler FrameHandler) *Replayer {
	return &Replayer{handler: handler, Speed: 1}
}

// ReplayFile replays every frame in an NDJSON fixture file.
func (r *Replayer) ReplayFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()
	return r.Replay(ctx, f)
}

// Replay reads frames from rd until EOF, pacing them by their recorded
// timestamps. Malformed lines are logged and skipped. Returns the number
// of frames delivered.
func (r *Replayer) Replay(ctx context.Context, rd io.Reader) (int, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var delivered int
	var lastTS time.Time
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			monitoring.Logf("replay: skipping malformed line %d: %v", line, err)
			continue
		}

		dets, ts := frame.Decode()
		if r.Speed > 0 && !lastTS.IsZero() && ts.After(lastTS) {
			gap := time.Duration(float64(ts.Sub(lastTS)) / r.Speed)
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-time.After(gap):
			}
		} else if err := ctx.Err(); err != nil {
			return delivered, err
		}
		lastTS = ts

		r.handler(dets, ts)
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return delivered, fmt.Errorf("failed to read fixture: %w", err)
	}
	return delivered, nil
}
