package session

import "testing"

func TestResolve(t *testing.T) {
	s := New()

	if _, err := s.Resolve(""); err == nil {
		t.Error("Expected error with no actor bound")
	}
	if got, err := s.Resolve("0xExplicit"); err != nil || got != "0xExplicit" {
		t.Errorf("Resolve(explicit) = %q, %v", got, err)
	}

	if err := s.SetActor("  "); err == nil {
		t.Error("Expected error for blank wallet")
	}
	if err := s.SetActor("0xBound"); err != nil {
		t.Fatalf("SetActor: %v", err)
	}
	if got, _ := s.Resolve(""); got != "0xBound" {
		t.Errorf("Resolve() = %q, want 0xBound", got)
	}
	if got, ok := s.Actor(); !ok || got != "0xBound" {
		t.Errorf("Actor() = %q, %v", got, ok)
	}

	s.Clear()
	if _, ok := s.Actor(); ok {
		t.Error("Expected no actor after Clear")
	}
}
