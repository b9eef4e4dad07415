package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("occupancy=%d", 7)
	if captured != "occupancy=7" {
		t.Errorf("expected captured log, got %q", captured)
	}
}

func TestSetLoggerNilIsNoOp(t *testing.T) {
	SetLogger(nil)
	defer SetLogger(func(format string, v ...interface{}) {})

	// Must not panic.
	Logf("dropped %s", "message")
}
