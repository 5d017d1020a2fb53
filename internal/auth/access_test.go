package auth

import (
	"context"
	"database/sql"
	"testing"
)

func testResolver(t *testing.T, db *sql.DB) *Resolver {
	t.Helper()
	return NewResolver(NewUserRepository(db), NewSiteAccessRepository(db), &testDeviceDirectory{db: db})
}

func TestUserSiteAccess(t *testing.T) {
	db := testDB(t)
	resolver := testResolver(t, db)
	access := NewSiteAccessRepository(db)
	seedTestSites(t, db)

	admin := seedTestUser(t, db, "admin", RoleSysAdmin)
	restricted := seedTestUser(t, db, "margot", RoleUser)
	unassigned := seedTestUser(t, db, "rhys", RoleUser)

	if err := access.Assign(context.Background(), restricted.ID, "site-north", admin.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	scope, err := resolver.UserSiteAccess(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("UserSiteAccess(admin) error = %v", err)
	}
	if !scope.Unrestricted {
		t.Error("sys_admin scope is restricted")
	}

	scope, err = resolver.UserSiteAccess(context.Background(), restricted.ID)
	if err != nil {
		t.Fatalf("UserSiteAccess(restricted) error = %v", err)
	}
	if scope.Unrestricted {
		t.Error("plain user scope is unrestricted")
	}
	if len(scope.SiteIDs) != 1 || scope.SiteIDs[0] != "site-north" {
		t.Errorf("SiteIDs = %v, want [site-north]", scope.SiteIDs)
	}

	// Zero assignments means an empty scope, not an unrestricted one.
	scope, err = resolver.UserSiteAccess(context.Background(), unassigned.ID)
	if err != nil {
		t.Fatalf("UserSiteAccess(unassigned) error = %v", err)
	}
	if scope.Unrestricted || len(scope.SiteIDs) != 0 {
		t.Errorf("empty scope = %+v", scope)
	}
	if scope.CanAccessSite("site-north") {
		t.Error("empty scope grants site access")
	}
}

func TestUserCanAccessDevice(t *testing.T) {
	db := testDB(t)
	resolver := testResolver(t, db)
	access := NewSiteAccessRepository(db)
	seedTestSites(t, db)
	seedTestDevices(t, db)

	admin := seedTestUser(t, db, "admin", RoleSysAdmin)
	restricted := seedTestUser(t, db, "margot", RoleUser)
	if err := access.Assign(context.Background(), restricted.ID, "site-north", admin.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	tests := []struct {
		name     string
		userID   string
		deviceID string
		want     bool
	}{
		{"admin sees assigned device", admin.ID, "dev-north", true},
		{"admin sees unassigned device", admin.ID, "dev-loose", true},
		{"user sees device on own site", restricted.ID, "dev-north", true},
		{"user blind to other site", restricted.ID, "dev-south", false},
		{"user blind to unassigned device", restricted.ID, "dev-loose", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.UserCanAccessDevice(context.Background(), tt.userID, tt.deviceID)
			if err != nil {
				t.Fatalf("UserCanAccessDevice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UserCanAccessDevice() = %v, want %v", got, tt.want)
			}
		})
	}

	// Unknown devices are a denial, not an error.
	if ok, err := resolver.UserCanAccessDevice(context.Background(), restricted.ID, "dev-missing"); err != nil || ok {
		t.Errorf("UserCanAccessDevice(unknown) = %v, %v, want false, nil", ok, err)
	}
}

// Moving a device between sites must be visible on the very next check:
// resolution reads the store every time, nothing is cached.
func TestUserAccessFollowsDeviceReassignment(t *testing.T) {
	db := testDB(t)
	resolver := testResolver(t, db)
	access := NewSiteAccessRepository(db)
	seedTestSites(t, db)
	seedTestDevices(t, db)

	admin := seedTestUser(t, db, "admin", RoleSysAdmin)
	restricted := seedTestUser(t, db, "margot", RoleUser)
	if err := access.Assign(context.Background(), restricted.ID, "site-north", admin.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	ok, err := resolver.UserCanAccessDevice(context.Background(), restricted.ID, "dev-south")
	if err != nil {
		t.Fatalf("UserCanAccessDevice() error = %v", err)
	}
	if ok {
		t.Fatal("user sees a device on an unassigned site")
	}

	if _, err := db.Exec("UPDATE devices SET site_id = 'site-north' WHERE id = 'dev-south'"); err != nil {
		t.Fatalf("reassigning device: %v", err)
	}

	ok, err = resolver.UserCanAccessDevice(context.Background(), restricted.ID, "dev-south")
	if err != nil {
		t.Fatalf("UserCanAccessDevice() error = %v", err)
	}
	if !ok {
		t.Error("access did not follow the device to the user's site")
	}
}

func TestTokenCanAccessDevice(t *testing.T) {
	db := testDB(t)
	resolver := testResolver(t, db)
	access := NewSiteAccessRepository(db)
	seedTestSites(t, db)
	seedTestDevices(t, db)

	admin := seedTestUser(t, db, "admin", RoleSysAdmin)
	restricted := seedTestUser(t, db, "margot", RoleUser)
	if err := access.Assign(context.Background(), restricted.ID, "site-north", admin.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	northToken := &TokenInfo{Kind: TokenKindDevice, DeviceID: "dev-north", Name: "north ingest"}
	userToken := &TokenInfo{Kind: TokenKindUser, UserID: restricted.ID, Name: "dashboard"}
	adminToken := &TokenInfo{Kind: TokenKindUser, UserID: admin.ID, Name: "ops"}

	tests := []struct {
		name      string
		info      *TokenInfo
		deviceUID string
		want      bool
	}{
		{"device token reaches own device", northToken, "north-esp32", true},
		{"device token pinned, not roaming", northToken, "south-esp32", false},
		{"user token follows site scope", userToken, "north-esp32", true},
		{"user token blocked off-site", userToken, "south-esp32", false},
		{"admin user token reaches unassigned", adminToken, "loose-esp32", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.TokenCanAccessDevice(context.Background(), tt.info, tt.deviceUID)
			if err != nil {
				t.Fatalf("TokenCanAccessDevice() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("TokenCanAccessDevice() = %v, want %v", got, tt.want)
			}
		})
	}

	if ok, err := resolver.TokenCanAccessDevice(context.Background(), northToken, "ghost-esp32"); err != nil || ok {
		t.Errorf("TokenCanAccessDevice(unknown uid) = %v, %v, want false, nil", ok, err)
	}

	// Tokens with an unrecognised kind fail closed.
	odd := &TokenInfo{Kind: TokenKind("service"), Name: "odd"}
	if ok, err := resolver.TokenCanAccessDevice(context.Background(), odd, "north-esp32"); err != nil || ok {
		t.Errorf("TokenCanAccessDevice(unknown kind) = %v, %v, want false, nil", ok, err)
	}
}

func TestFilterDevicesByAccess(t *testing.T) {
	db := testDB(t)
	resolver := testResolver(t, db)
	access := NewSiteAccessRepository(db)
	seedTestSites(t, db)

	admin := seedTestUser(t, db, "admin", RoleSysAdmin)
	restricted := seedTestUser(t, db, "margot", RoleUser)
	if err := access.Assign(context.Background(), restricted.ID, "site-south", admin.ID); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	north := "site-north"
	south := "site-south"
	devices := []DeviceRef{
		{ID: "dev-north", UID: "north-esp32", SiteID: &north},
		{ID: "dev-south", UID: "south-esp32", SiteID: &south},
		{ID: "dev-loose", UID: "loose-esp32"},
	}

	all, err := resolver.FilterDevicesByAccess(context.Background(), admin.ID, devices)
	if err != nil {
		t.Fatalf("FilterDevicesByAccess(admin) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("admin sees %d devices, want 3", len(all))
	}

	visible, err := resolver.FilterDevicesByAccess(context.Background(), restricted.ID, devices)
	if err != nil {
		t.Fatalf("FilterDevicesByAccess(restricted) error = %v", err)
	}
	if len(visible) != 1 || visible[0].ID != "dev-south" {
		t.Errorf("restricted user sees %+v, want only dev-south", visible)
	}
}

func TestIsAdminUser(t *testing.T) {
	db := testDB(t)
	resolver := testResolver(t, db)

	admin := seedTestUser(t, db, "admin", RoleSysAdmin)
	plain := seedTestUser(t, db, "margot", RoleUser)

	if ok, err := resolver.IsAdminUser(context.Background(), admin.ID); err != nil || !ok {
		t.Errorf("IsAdminUser(admin) = %v, %v", ok, err)
	}
	if ok, err := resolver.IsAdminUser(context.Background(), plain.ID); err != nil || ok {
		t.Errorf("IsAdminUser(plain) = %v, %v", ok, err)
	}
	if ok, err := resolver.IsAdminUser(context.Background(), "usr-missing"); err != nil || ok {
		t.Errorf("IsAdminUser(missing) = %v, %v", ok, err)
	}
}
