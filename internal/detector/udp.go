// Package detector ingests detection frames from the camera-side person
// detector and feeds them to the counting engine. The detector process
// ships each frame as one UDP datagram of JSON; this package is the only
// ingestion point, so the engine sees frames strictly one at a time.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/banshee-data/dwell.report/internal/vision"
)

// Frame is the wire format for one detector frame.
type Frame struct {
	TimestampUnixNanos int64           `json:"ts_unix_nanos"`
	Detections         []WireDetection `json:"detections"`
}

// WireDetection is one bounding box in a frame.
type WireDetection struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	W          float32 `json:"w"`
	H          float32 `json:"h"`
	Confidence float32 `json:"confidence"`
}

// FrameHandler consumes decoded frames. The engine's ProcessFrame
// satisfies it.
type FrameHandler func(dets []vision.Detection, ts time.Time)

// UDPListener receives detection frames over UDP and forwards them to a
// handler. Malformed datagrams are counted and dropped; the receive loop
// never stops for bad input.
type UDPListener struct {
	address string
	handler FrameHandler
	buffer  []byte

	frames    int64
	malformed int64
}

// NewUDPListener creates a listener for the given address.
func NewUDPListener(address string, handler FrameHandler) *UDPListener {
	return &UDPListener{
		address: address,
		handler: handler,
		// A frame of a few dozen detections fits well under 16KB.
		buffer: make([]byte, 16384),
	}
}

// Start begins listening for detection frames and processing them.
// Returns when the context is cancelled or an unrecoverable error occurs.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %v", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %v", err)
	}
	defer conn.Close()

	log.Printf("Listening for detection frames on %s", l.address)

	for {
		select {
		case <-ctx.Done():
			log.Println("detector listener shutting down")
			return ctx.Err()
		default:
			// Set a read timeout to allow checking for context cancellation
			if err := conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
				log.Printf("Error setting read deadline: %v", err)
				continue
			}

			n, _, err := conn.ReadFromUDP(l.buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				log.Printf("Error reading UDP packet: %v", err)
				continue
			}

			l.handleDatagram(l.buffer[:n])
		}
	}
}

func (l *UDPListener) handleDatagram(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		l.malformed++
		log.Printf("dropping malformed frame (%d so far): %v", l.malformed, err)
		return
	}

	l.frames++
	dets, ts := frame.Decode()
	l.handler(dets, ts)
}

// Decode converts the wire frame into engine detections and a timestamp.
// A frame with no usable timestamp gets the arrival time.
func (f *Frame) Decode() ([]vision.Detection, time.Time) {
	ts := time.Now()
	if f.TimestampUnixNanos > 0 {
		ts = time.Unix(0, f.TimestampUnixNanos)
	}

	dets := make([]vision.Detection, len(f.Detections))
	for i, wd := range f.Detections {
		dets[i] = vision.Detection{
			BBox:       vision.BBox{X: wd.X, Y: wd.Y, W: wd.W, H: wd.H},
			Confidence: wd.Confidence,
			Timestamp:  ts,
		}
	}
	return dets, ts
}

// Frames returns the number of well-formed frames received.
func (l *UDPListener) Frames() int64 { return l.frames }

// Malformed returns the number of dropped datagrams.
func (l *UDPListener) Malformed() int64 { return l.malformed }
