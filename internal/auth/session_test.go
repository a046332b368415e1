package auth

import (
	"context"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	ctx := context.Background()

	token, expiresAt, err := manager.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiry not in the future: %v", expiresAt)
	}

	userID, ok, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("Validate = %q, %v", userID, ok)
	}

	if err := manager.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, ok, _ := manager.Validate(ctx, token); ok {
		t.Fatal("revoked token still valid")
	}
}

func TestSessionCreateRequiresUserID(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	if _, _, err := manager.Create(context.Background(), ""); err != ErrInvalidUserID {
		t.Fatalf("err = %v, want ErrInvalidUserID", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	current := time.Now()
	manager.now = func() time.Time { return current }
	ctx := context.Background()

	token, _, err := manager.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, ok, err := manager.Validate(ctx, token); err != nil || ok {
		t.Fatalf("expired token validated: ok=%v err=%v", ok, err)
	}

	// The expired record is removed eagerly.
	store := manager.store.(*MemorySessionStore)
	if _, found, _ := store.Get(ctx, hashSessionToken(token)); found {
		t.Fatal("expired record left in store")
	}
}

func TestSessionStoreHoldsHashedTokens(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	ctx := context.Background()
	token, _, err := manager.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store := manager.store.(*MemorySessionStore)
	if _, found, _ := store.Get(ctx, token); found {
		t.Fatal("raw token stored verbatim")
	}
	if _, found, _ := store.Get(ctx, hashSessionToken(token)); !found {
		t.Fatal("hashed token missing from store")
	}
}

func TestPurgeExpired(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	now := time.Now()
	_ = store.Save(ctx, SessionRecord{Token: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)})
	_ = store.Save(ctx, SessionRecord{Token: "dead", UserID: "u2", ExpiresAt: now.Add(-time.Hour)})

	if err := store.PurgeExpired(ctx, now); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "live"); !ok {
		t.Fatal("live session purged")
	}
	if _, ok, _ := store.Get(ctx, "dead"); ok {
		t.Fatal("dead session kept")
	}
}
