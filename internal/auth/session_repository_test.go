package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionCreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewSessionRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	s := &Session{
		Token:     "tok-abc",
		UserID:    u.ID,
		ExpiresAt: expires,
		IPAddress: "192.168.1.50",
		UserAgent: "allotment-cli/1.0",
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByToken(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if got.UserID != u.ID || !got.ExpiresAt.Equal(expires) {
		t.Errorf("GetByToken() = %+v", got)
	}
	if got.IPAddress != "192.168.1.50" || got.UserAgent != "allotment-cli/1.0" {
		t.Errorf("session metadata = %q / %q", got.IPAddress, got.UserAgent)
	}
}

func TestSessionCreateEmptyToken(t *testing.T) {
	db := testDB(t)
	repo := NewSessionRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	s := &Session{UserID: u.ID, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := repo.Create(context.Background(), s); err == nil {
		t.Error("Create() with empty token succeeded, want error")
	}
}

func TestSessionGetUnknownToken(t *testing.T) {
	repo := NewSessionRepository(testDB(t))

	if _, err := repo.GetByToken(context.Background(), "tok-missing"); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("GetByToken() error = %v, want ErrSessionInvalid", err)
	}
}

func TestSessionDelete(t *testing.T) {
	db := testDB(t)
	repo := NewSessionRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	s := &Session{Token: "tok-abc", UserID: u.ID, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(context.Background(), "tok-abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByToken(context.Background(), "tok-abc"); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("GetByToken() after delete error = %v, want ErrSessionInvalid", err)
	}

	// Deleting a token that no longer exists is not an error.
	if err := repo.Delete(context.Background(), "tok-abc"); err != nil {
		t.Errorf("Delete() second call error = %v", err)
	}
}

func TestSessionDeleteAllForUser(t *testing.T) {
	db := testDB(t)
	repo := NewSessionRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)
	other := seedTestUser(t, db, "rhys", RoleUser)

	expires := time.Now().UTC().Add(time.Hour)
	for _, tok := range []string{"tok-1", "tok-2"} {
		if err := repo.Create(context.Background(), &Session{Token: tok, UserID: u.ID, ExpiresAt: expires}); err != nil {
			t.Fatalf("Create(%s) error = %v", tok, err)
		}
	}
	if err := repo.Create(context.Background(), &Session{Token: "tok-other", UserID: other.ID, ExpiresAt: expires}); err != nil {
		t.Fatalf("Create(tok-other) error = %v", err)
	}

	n, err := repo.DeleteAllForUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("DeleteAllForUser() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteAllForUser() = %d, want 2", n)
	}

	if _, err := repo.GetByToken(context.Background(), "tok-other"); err != nil {
		t.Errorf("other user's session was deleted: %v", err)
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	db := testDB(t)
	repo := NewSessionRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	now := time.Now().UTC()
	if err := repo.Create(context.Background(), &Session{Token: "tok-live", UserID: u.ID, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Create(tok-live) error = %v", err)
	}
	if err := repo.Create(context.Background(), &Session{Token: "tok-stale", UserID: u.ID, ExpiresAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("Create(tok-stale) error = %v", err)
	}

	n, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}

	if _, err := repo.GetByToken(context.Background(), "tok-live"); err != nil {
		t.Errorf("live session was purged: %v", err)
	}
	if _, err := repo.GetByToken(context.Background(), "tok-stale"); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("stale session survived purge: error = %v", err)
	}
}
