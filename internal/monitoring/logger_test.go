package monitoring

import (
	"testing"
	"time"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("step %d", 1)
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op, not a nil function
	called = false
	SetLogger(nil)
	Logf("step %d", 2)
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

func TestThrottle(t *testing.T) {
	base := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	th := Throttle{Interval: 10 * time.Second}

	if !th.Ready(base) {
		t.Error("first call should always be accepted")
	}
	if th.Ready(base.Add(3 * time.Second)) {
		t.Error("call inside interval should be rejected")
	}
	if !th.Ready(base.Add(11 * time.Second)) {
		t.Error("call past interval should be accepted")
	}
	// Rejected calls do not reset the window.
	if th.Ready(base.Add(12 * time.Second)) {
		t.Error("window should restart from last accepted call")
	}
}

func TestThrottleZeroValue(t *testing.T) {
	var th Throttle
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !th.Ready(now.Add(time.Duration(i))) {
			t.Fatalf("zero-value throttle rejected call %d", i)
		}
	}
}
