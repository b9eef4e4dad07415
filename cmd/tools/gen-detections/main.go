// Command gen-detections generates synthetic NDJSON detection fixtures
// for replaying through the engine with -dev.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/banshee-data/dwell.report/internal/detector"
)

var (
	output   = flag.String("o", "fixtures/evening.ndjson", "output path")
	visitors = flag.Int("n", 20, "number of visitors")
	seed     = flag.Int64("seed", 1, "random seed")
	lineY    = flag.Float64("line-y", 300, "counting line y coordinate")
	fps      = flag.Float64("fps", 10, "frames per second")
)

// visit is one person's scripted walk: enter from above the line, wander
// below it for the dwell, then either walk back out or vanish mid-room.
type visit struct {
	enter  time.Time
	dwell  time.Duration
	x      float64
	vanish bool // leaves without an exit crossing
}

func main() {
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	start := time.Date(2026, 3, 13, 19, 0, 0, 0, time.UTC)

	visits := make([]visit, *visitors)
	for i := range visits {
		v := visit{
			enter: start.Add(time.Duration(rng.Intn(3600)) * time.Second),
			dwell: time.Duration(10+rng.Intn(50)) * time.Minute,
			x:     50 + rng.Float64()*540,
		}
		switch rng.Intn(10) {
		case 0:
			v.vanish = true
		case 1, 2:
			// campers, past the warning threshold
			v.dwell = time.Duration(95+rng.Intn(60)) * time.Minute
		}
		visits[i] = v
	}

	frameGap := time.Duration(float64(time.Second) / *fps)
	end := start
	for _, v := range visits {
		if leave := v.enter.Add(v.dwell + time.Minute); leave.After(end) {
			end = leave
		}
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)

	var frames int
	for ts := start; ts.Before(end); ts = ts.Add(frameGap) {
		frame := detector.Frame{TimestampUnixNanos: ts.UnixNano()}
		for _, v := range visits {
			if d, ok := positionAt(v, ts); ok {
				frame.Detections = append(frame.Detections, d)
			}
		}
		if len(frame.Detections) == 0 {
			continue
		}
		sort.Slice(frame.Detections, func(i, j int) bool {
			return frame.Detections[i].X < frame.Detections[j].X
		})
		if err := enc.Encode(frame); err != nil {
			log.Fatalf("write frame: %v", err)
		}
		frames++
	}

	log.Printf("✓ Created: %s (%d frames, %d visitors)", *output, frames, *visitors)
}

// positionAt scripts a visitor's y over time: a 10 second walk-in from
// 60px above the line to 120px below, a stationary dwell, and a 10
// second walk back out unless the visit vanishes instead.
func positionAt(v visit, ts time.Time) (detector.WireDetection, bool) {
	const walk = 10 * time.Second
	since := ts.Sub(v.enter)
	if since < 0 || since > v.dwell+walk {
		return detector.WireDetection{}, false
	}

	top := *lineY - 60
	rest := *lineY + 120
	var y float64
	switch {
	case since < walk:
		y = top + (rest-top)*float64(since)/float64(walk)
	case since < v.dwell:
		y = rest
	default:
		if v.vanish {
			return detector.WireDetection{}, false
		}
		y = rest - (rest-top)*float64(since-v.dwell)/float64(walk)
	}

	return detector.WireDetection{
		X:          float32(v.x),
		Y:          float32(y),
		W:          40,
		H:          90,
		Confidence: 0.85,
	}, true
}
