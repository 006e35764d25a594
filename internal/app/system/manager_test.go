package system

import (
	"context"
	"errors"
	"testing"
)

type recordedService struct {
	name     string
	events   *[]string
	startErr error
	stopErr  error
}

func (s *recordedService) Name() string { return s.name }

func (s *recordedService) Start(context.Context) error {
	*s.events = append(*s.events, "start:"+s.name)
	return s.startErr
}

func (s *recordedService) Stop(context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	return s.stopErr
}

func TestStartOrderStopReverse(t *testing.T) {
	m := NewManager()
	var events []string

	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordedService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("event count %d, want %d: %v", len(events), len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestStartFailureUnwindsStarted(t *testing.T) {
	m := NewManager()
	var events []string
	boom := errors.New("boom")

	_ = m.Register(&recordedService{name: "a", events: &events})
	_ = m.Register(&recordedService{name: "b", events: &events, startErr: boom})
	_ = m.Register(&recordedService{name: "c", events: &events})

	err := m.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected start failure, got %v", err)
	}

	want := []string{"start:a", "start:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("events %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, events[i], want[i])
		}
	}

	// A failed start leaves the manager stoppable as a no-op.
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop after failed start: %v", err)
	}
}

func TestRegisterRules(t *testing.T) {
	m := NewManager()
	var events []string

	if err := m.Register(&recordedService{name: "a", events: &events}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&recordedService{name: "a", events: &events}); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(&recordedService{name: "late", events: &events}); err == nil {
		t.Fatalf("expected registration after start to fail")
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected double start to fail")
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Stopping an already stopped manager is a no-op.
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStopCollectsFirstError(t *testing.T) {
	m := NewManager()
	var events []string
	fail := errors.New("stop failed")

	_ = m.Register(&recordedService{name: "a", events: &events, stopErr: fail})
	_ = m.Register(&recordedService{name: "b", events: &events})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := m.Stop(context.Background())
	if !errors.Is(err, fail) {
		t.Fatalf("expected stop error, got %v", err)
	}
	// Both services were still stopped.
	if events[len(events)-1] != "stop:a" || events[len(events)-2] != "stop:b" {
		t.Fatalf("stop order wrong: %v", events)
	}
}
