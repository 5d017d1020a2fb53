package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestTokenCreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	tok := &APIToken{
		Token:     "usr_deadbeef",
		UserID:    &u.ID,
		Name:      "dashboard",
		Scopes:    []string{"read:sensors", "write:commands"},
		IsActive:  true,
		CreatedBy: u.ID,
	}
	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByToken(context.Background(), "usr_deadbeef")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if got.UserID == nil || *got.UserID != u.ID {
		t.Errorf("UserID = %v, want %s", got.UserID, u.ID)
	}
	if got.Kind() != TokenKindUser {
		t.Errorf("Kind() = %s, want %s", got.Kind(), TokenKindUser)
	}
	if len(got.Scopes) != 2 || got.Scopes[0] != "read:sensors" {
		t.Errorf("Scopes = %v", got.Scopes)
	}
	if got.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", got.ExpiresAt)
	}
}

func TestTokenCreateDeviceBound(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db)
	seedTestSites(t, db)
	seedTestDevices(t, db)

	tok := &APIToken{
		Token:    "dev_cafef00d",
		DeviceID: strPtr("dev-north"),
		Name:     "north-esp32 ingest",
		Scopes:   []string{"write:telemetry"},
		IsActive: true,
	}
	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByToken(context.Background(), "dev_cafef00d")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if got.Kind() != TokenKindDevice {
		t.Errorf("Kind() = %s, want %s", got.Kind(), TokenKindDevice)
	}
}

func TestTokenCreateEmptyToken(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	tok := &APIToken{UserID: &u.ID, Name: "broken", IsActive: true}
	if err := repo.Create(context.Background(), tok); err == nil {
		t.Error("Create() with empty token succeeded, want error")
	}
}

func TestTokenGetUnknown(t *testing.T) {
	repo := NewTokenRepository(testDB(t))

	if _, err := repo.GetByToken(context.Background(), "usr_missing"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("GetByToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenListByOwner(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)
	seedTestSites(t, db)
	seedTestDevices(t, db)

	for _, tok := range []*APIToken{
		{Token: "usr_one", UserID: &u.ID, Name: "one", IsActive: true},
		{Token: "usr_two", UserID: &u.ID, Name: "two", IsActive: true},
		{Token: "dev_one", DeviceID: strPtr("dev-north"), Name: "ingest", IsActive: true},
	} {
		if err := repo.Create(context.Background(), tok); err != nil {
			t.Fatalf("Create(%s) error = %v", tok.Name, err)
		}
	}

	byUser, err := repo.ListByUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("ListByUser() returned %d tokens, want 2", len(byUser))
	}

	byDevice, err := repo.ListByDevice(context.Background(), "dev-north")
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(byDevice) != 1 || byDevice[0].Name != "ingest" {
		t.Errorf("ListByDevice() = %+v", byDevice)
	}
}

func TestTokenRevoke(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	tok := &APIToken{Token: "usr_deadbeef", UserID: &u.ID, Name: "dashboard", IsActive: true}
	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Revoke(context.Background(), "usr_deadbeef"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	got, err := repo.GetByToken(context.Background(), "usr_deadbeef")
	if err != nil {
		t.Fatalf("GetByToken() after revoke error = %v", err)
	}
	if got.IsActive {
		t.Error("token still active after Revoke()")
	}

	if err := repo.Revoke(context.Background(), "usr_missing"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Revoke() unknown token error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenTouchLastUsed(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	tok := &APIToken{Token: "usr_deadbeef", UserID: &u.ID, Name: "dashboard", IsActive: true}
	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Date(2026, 6, 1, 8, 15, 0, 0, time.UTC)
	if err := repo.TouchLastUsed(context.Background(), "usr_deadbeef", at); err != nil {
		t.Fatalf("TouchLastUsed() error = %v", err)
	}

	got, err := repo.GetByToken(context.Background(), "usr_deadbeef")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if got.LastUsed == nil || !got.LastUsed.Equal(at) {
		t.Errorf("LastUsed = %v, want %v", got.LastUsed, at)
	}
}

func TestTokenDeleteExpired(t *testing.T) {
	db := testDB(t)
	repo := NewTokenRepository(db)
	u := seedTestUser(t, db, "margot", RoleUser)

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	for _, tok := range []*APIToken{
		{Token: "usr_stale", UserID: &u.ID, Name: "stale", IsActive: true, ExpiresAt: &past},
		{Token: "usr_live", UserID: &u.ID, Name: "live", IsActive: true, ExpiresAt: &future},
		{Token: "usr_forever", UserID: &u.ID, Name: "forever", IsActive: true},
	} {
		if err := repo.Create(context.Background(), tok); err != nil {
			t.Fatalf("Create(%s) error = %v", tok.Name, err)
		}
	}

	n, err := repo.DeleteExpired(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}

	// Tokens with no expiry are never purged.
	if _, err := repo.GetByToken(context.Background(), "usr_forever"); err != nil {
		t.Errorf("non-expiring token was purged: %v", err)
	}
	if _, err := repo.GetByToken(context.Background(), "usr_stale"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expired token survived purge: error = %v", err)
	}
}
