package sessions

import (
	"context"
	"testing"
	"time"
)

func TestTracker_RegisterUnregister(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("Count = %d, want 0", tr.Count())
	}

	un1 := tr.Register("s1", Handle{})
	un2 := tr.Register("s2", Handle{})
	if tr.Count() != 2 {
		t.Fatalf("Count = %d, want 2", tr.Count())
	}

	un1()
	un1() // idempotent
	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count())
	}
	un2()

	if !tr.Wait(context.Background()) {
		t.Error("Wait did not complete with no sessions")
	}
}

func TestTracker_RegisterReplacesAndCancelsOld(t *testing.T) {
	tr := NewTracker()
	cancelled := false
	tr.Register("s1", Handle{Cancel: func() { cancelled = true }})
	un := tr.Register("s1", Handle{})

	if !cancelled {
		t.Error("old session was not cancelled on replacement")
	}
	if tr.Count() != 1 {
		t.Errorf("Count = %d, want 1", tr.Count())
	}
	un()
}

func TestTracker_CancelAllAndWarnAll(t *testing.T) {
	tr := NewTracker()
	var cancels, warns int
	un1 := tr.Register("s1", Handle{
		Cancel: func() { cancels++ },
		Warn:   func(code, message string) error { warns++; return nil },
	})
	un2 := tr.Register("s2", Handle{
		Cancel: func() { cancels++ },
	})
	defer un1()
	defer un2()

	if sent := tr.WarnAll("shutdown", "server is shutting down"); sent != 1 {
		t.Errorf("WarnAll sent = %d, want 1", sent)
	}
	if n := tr.CancelAll(); n != 2 {
		t.Errorf("CancelAll = %d, want 2", n)
	}
	if cancels != 2 || warns != 1 {
		t.Errorf("cancels = %d warns = %d", cancels, warns)
	}
}

func TestTracker_WaitTimesOut(t *testing.T) {
	tr := NewTracker()
	un := tr.Register("s1", Handle{})
	defer un()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if tr.Wait(ctx) {
		t.Error("Wait reported complete while a session was registered")
	}
}

func TestTracker_NilSafe(t *testing.T) {
	var tr *Tracker
	un := tr.Register("s1", Handle{})
	un()
	if tr.Count() != 0 || tr.CancelAll() != 0 || tr.WarnAll("x", "y") != 0 {
		t.Error("nil tracker not inert")
	}
	if !tr.Wait(context.Background()) {
		t.Error("nil tracker Wait should complete")
	}
}
