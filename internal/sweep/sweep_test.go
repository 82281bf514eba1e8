package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeExpirer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExpirer) ExpireOverdue(context.Context) (int, error) {
	f.calls.Add(1)
	return 2, f.err
}

func TestNew_BadSchedule(t *testing.T) {
	if _, err := New(nil, &fakeExpirer{}, "not a schedule"); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestRunOnce(t *testing.T) {
	f := &fakeExpirer{}
	s, err := New(nil, f, "@every 1h")
	if err != nil {
		t.Fatal(err)
	}
	s.RunOnce()
	f.err = errors.New("db down")
	s.RunOnce() // logged, not fatal
	if got := f.calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
	s.Start()
	s.Stop(context.Background())
}
