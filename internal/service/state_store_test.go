package service

import (
	"testing"
	"time"
)

func TestGenerateLoginState_Unique(t *testing.T) {
	first, err := GenerateLoginState()
	if err != nil {
		t.Fatalf("generate state: %v", err)
	}
	second, err := GenerateLoginState()
	if err != nil {
		t.Fatalf("generate state: %v", err)
	}
	if first == "" || second == "" {
		t.Fatalf("expected non-empty states")
	}
	if first == second {
		t.Fatalf("expected distinct states")
	}
}

func TestMemoryLoginStateStore_ConsumeOnce(t *testing.T) {
	store := NewMemoryLoginStateStore()

	if err := store.Store("state-1", "google", LoginStateTTL); err != nil {
		t.Fatalf("store state: %v", err)
	}

	ok, err := store.Consume("state-1", "google")
	if err != nil {
		t.Fatalf("consume state: %v", err)
	}
	if !ok {
		t.Fatalf("expected first consume to succeed")
	}

	ok, err = store.Consume("state-1", "google")
	if err != nil {
		t.Fatalf("consume state: %v", err)
	}
	if ok {
		t.Fatalf("expected second consume to fail")
	}
}

func TestMemoryLoginStateStore_ProviderMismatch(t *testing.T) {
	store := NewMemoryLoginStateStore()

	if err := store.Store("state-1", "google", LoginStateTTL); err != nil {
		t.Fatalf("store state: %v", err)
	}

	ok, err := store.Consume("state-1", "github")
	if err != nil {
		t.Fatalf("consume state: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatched provider to fail")
	}

	// El intento fallido también quema el state.
	ok, _ = store.Consume("state-1", "google")
	if ok {
		t.Fatalf("expected state to be burned after mismatch")
	}
}

func TestMemoryLoginStateStore_Expired(t *testing.T) {
	store := NewMemoryLoginStateStore()

	if err := store.Store("state-1", "google", -time.Second); err != nil {
		t.Fatalf("store state: %v", err)
	}

	ok, err := store.Consume("state-1", "google")
	if err != nil {
		t.Fatalf("consume state: %v", err)
	}
	if ok {
		t.Fatalf("expected expired state to fail")
	}
}

func TestMemoryLoginStateStore_UnknownAndEmpty(t *testing.T) {
	store := NewMemoryLoginStateStore()

	if ok, _ := store.Consume("never-stored", "google"); ok {
		t.Fatalf("expected unknown state to fail")
	}
	if ok, _ := store.Consume("", "google"); ok {
		t.Fatalf("expected empty state to fail")
	}
	if err := store.Store("  ", "google", LoginStateTTL); err == nil {
		t.Fatalf("expected error storing empty state")
	}
}
