package tracker_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/opst/fleetdeck/pkg/tracker"
)

func TestTracker_Request(t *testing.T) {
	t.Run("when the same key is pending, it returns nil", func(t *testing.T) {
		testee := tracker.New()
		first := testee.Request(tracker.List, "q=a")
		if first == nil {
			t.Fatal("first request is nil")
		}
		if second := testee.Request(tracker.List, "q=a"); second != nil {
			t.Errorf("second request is not nil: %+v", second)
		}
		if first.Superseded() {
			t.Error("first request is superseded")
		}
	})

	t.Run("when the same key has been resolved, it starts a new operation", func(t *testing.T) {
		testee := tracker.New()
		first := testee.Request(tracker.List, "q=a")
		first.Resolve(func() {})

		if second := testee.Request(tracker.List, "q=a"); second == nil {
			t.Error("second request is nil")
		}
	})

	t.Run("when another key is requested, the previous one is superseded", func(t *testing.T) {
		testee := tracker.New()
		c1 := testee.Request(tracker.Details, "c1")
		c2 := testee.Request(tracker.Details, "c2")
		if !c1.Superseded() {
			t.Error("c1 is not superseded")
		}
		if c2.Superseded() {
			t.Error("c2 is superseded")
		}

		// c2 completes before c1.
		applied := []string{}
		c2.Resolve(func() { applied = append(applied, "c2") })
		c1.Resolve(func() { applied = append(applied, "c1") })

		if len(applied) != 1 || applied[0] != "c2" {
			t.Errorf("applied: %v", applied)
		}
	})

	t.Run("categories are independent", func(t *testing.T) {
		testee := tracker.New()
		list := testee.Request(tracker.List, "k")
		details := testee.Request(tracker.Details, "k")
		if details == nil {
			t.Fatal("details is nil")
		}
		testee.Request(tracker.Details, "other")
		if list.Superseded() {
			t.Error("list is superseded by details")
		}
	})
}

func TestTracker_Force(t *testing.T) {
	testee := tracker.New()
	first := testee.Request(tracker.Stats, "c1")
	second := testee.Force(tracker.Stats, "c1")
	if second == nil {
		t.Fatal("forced request is nil")
	}
	if !first.Superseded() {
		t.Error("first is not superseded")
	}
	if ran := first.Resolve(func() { t.Error("superseded operation is applied") }); ran {
		t.Error("Resolve of superseded operation returns true")
	}
}

func TestTracker_Cancel(t *testing.T) {
	t.Run("it supersedes operations of given categories only", func(t *testing.T) {
		testee := tracker.New()
		list := testee.Request(tracker.List, "")
		stats := testee.Request(tracker.Stats, "c1")
		logs := testee.Request(tracker.Logs, "c1")

		testee.Cancel(tracker.Stats, tracker.Logs)

		if list.Superseded() {
			t.Error("list is superseded")
		}
		if !stats.Superseded() || !logs.Superseded() {
			t.Error("stats or logs is not superseded")
		}
		if testee.Pending(tracker.Stats) {
			t.Error("stats is pending after cancel")
		}
		if again := testee.Request(tracker.Stats, "c1"); again == nil {
			t.Error("request after cancel is nil")
		}
	})

	t.Run("cancelling a category without operations does nothing", func(t *testing.T) {
		testee := tracker.New()
		testee.Cancel(tracker.List)
		if testee.Pending(tracker.List) {
			t.Error("list is pending")
		}
	})
}

func TestThen(t *testing.T) {
	t.Run("when it is current and succeeded, onOk is called", func(t *testing.T) {
		testee := tracker.New()
		op := testee.Request(tracker.Details, "c1")

		var got int
		ok := tracker.Then(
			op, 42, nil,
			func(v int) { got = v },
			func(err error) { t.Errorf("onErr is called: %v", err) },
		)
		if !ok || got != 42 {
			t.Errorf("ok = %v, got = %d", ok, got)
		}
		if testee.Pending(tracker.Details) {
			t.Error("details is still pending")
		}
	})

	t.Run("when it is current and failed, onErr is called", func(t *testing.T) {
		testee := tracker.New()
		op := testee.Request(tracker.Details, "c1")
		expectedErr := errors.New("fake")

		var got error
		tracker.Then(
			op, 0, expectedErr,
			func(int) { t.Error("onOk is called") },
			func(err error) { got = err },
		)
		if !errors.Is(got, expectedErr) {
			t.Errorf("got = %v", got)
		}
	})

	t.Run("when it is superseded, neither is called", func(t *testing.T) {
		testee := tracker.New()
		op := testee.Request(tracker.Details, "c1")
		testee.Request(tracker.Details, "c2")

		ok := tracker.Then(
			op, 1, errors.New("fake"),
			func(int) { t.Error("onOk is called") },
			func(error) { t.Error("onErr is called") },
		)
		if ok {
			t.Error("Then returns true")
		}
	})
}

func TestTracker_concurrent(t *testing.T) {
	testee := tracker.New()
	ops := make([]*tracker.Operation, 100)
	wg := new(sync.WaitGroup)
	for i := range ops {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ops[i] = testee.Force(tracker.List, "")
		}(i)
	}
	wg.Wait()

	current := 0
	for _, op := range ops {
		if !op.Superseded() {
			current += 1
		}
	}
	if current != 1 {
		t.Errorf("authoritative operations: %d", current)
	}
}
