package auth

import "testing"

func TestParseScope(t *testing.T) {
	tests := []struct {
		raw     string
		want    Scope
		wantErr bool
	}{
		{"read:devices", Scope{"read", "devices"}, false},
		{"admin:*", Scope{"admin", "*"}, false},
		{"write:*", Scope{"write", "*"}, false},
		{"*:telemetry", Scope{"*", "telemetry"}, false},
		{"read", Scope{}, true},
		{"read:", Scope{}, true},
		{":devices", Scope{}, true},
		{"a:b:c", Scope{}, true},
		{"", Scope{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseScope(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScope(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseScope(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestScopeSetAllows(t *testing.T) {
	tests := []struct {
		name     string
		scopes   ScopeSet
		action   string
		resource string
		want     bool
	}{
		{"exact match", ScopeSet{"read:devices"}, "read", "devices", true},
		{"exact mismatch resource", ScopeSet{"read:devices"}, "read", "telemetry", false},
		{"exact mismatch action", ScopeSet{"read:devices"}, "write", "devices", false},
		{"admin star grants all", ScopeSet{"admin:*"}, "write", "commands", true},
		{"action wildcard", ScopeSet{"read:*"}, "read", "telemetry", true},
		{"action wildcard wrong verb", ScopeSet{"read:*"}, "write", "telemetry", false},
		{"no resource-side wildcard", ScopeSet{"*:devices"}, "write", "devices", false},
		{"empty set", ScopeSet{}, "read", "devices", false},
		{"nil set", nil, "read", "devices", false},
		{"second grant matches", ScopeSet{"read:sites", "write:commands"}, "write", "commands", true},
		{"garbage is skipped", ScopeSet{"garbage", "read:devices"}, "read", "devices", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scopes.Allows(tt.action, tt.resource); got != tt.want {
				t.Errorf("Allows(%s, %s) = %v, want %v", tt.action, tt.resource, got, tt.want)
			}
		})
	}
}

func TestScopeSetValidate(t *testing.T) {
	if err := (ScopeSet{"read:devices", "admin:*"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v for valid set", err)
	}
	if err := (ScopeSet{"read:devices", "broken"}).Validate(); err == nil {
		t.Error("Validate() = nil for set with malformed scope")
	}
}
