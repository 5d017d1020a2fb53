package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleUser is a plot holder with explicit site grants.
	// Zero site assignments = no access.
	RoleUser Role = "user"

	// RoleSysAdmin has full control: every site, every device, user and
	// token management. Bypasses site scoping entirely.
	RoleSysAdmin Role = "sys_admin"
)

// ValidRoles is the set of valid user roles.
var ValidRoles = []Role{RoleUser, RoleSysAdmin}

// IsValidUserRole returns true if the role is a valid role for a user account.
func IsValidUserRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents a human account.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"` // never serialised
	FullName     string     `json:"full_name,omitempty"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsAdmin reports whether the user bypasses site scoping.
func (u *User) IsAdmin() bool {
	return u.Role == RoleSysAdmin
}

// Session is a short-lived browser credential created by a successful login.
type Session struct {
	Token     string    `json:"-"` // never serialised
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenKind distinguishes the two API token bindings.
type TokenKind string

const (
	// TokenKindUser is a token acting on behalf of a human account.
	TokenKindUser TokenKind = "user"

	// TokenKindDevice is a token issued to a field device.
	TokenKindDevice TokenKind = "device"
)

// APIToken is a long-lived bearer credential bound to exactly one of a
// user or a device.
type APIToken struct {
	Token       string     `json:"-"` // never serialised
	UserID      *string    `json:"user_id,omitempty"`
	DeviceID    *string    `json:"device_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Scopes      []string   `json:"scopes"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Kind returns the token's binding based on which owner column is set.
func (t *APIToken) Kind() TokenKind {
	if t.DeviceID != nil {
		return TokenKindDevice
	}
	return TokenKindUser
}

// UserInfo is the resolved identity of a validated session: the same
// projection a login returns, plus the session expiry so callers can set
// cookie lifetimes without a second lookup.
type UserInfo struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"full_name,omitempty"`
	Role           Role      `json:"role"`
	SessionExpires time.Time `json:"session_expires"`
}

// TokenInfo is the resolved identity of a validated API token. Validation
// joins the owning user or device so callers get a usable identity in one
// call: user tokens carry Username/Role/Email, device tokens carry the
// bound device's UID and site.
type TokenInfo struct {
	Kind      TokenKind `json:"kind"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Role      Role      `json:"role,omitempty"`
	Email     string    `json:"email,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	DeviceUID string    `json:"device_uid,omitempty"`
	SiteID    *string   `json:"site_id,omitempty"`
	Name      string    `json:"name"`
	Scopes    ScopeSet  `json:"scopes"`
}

// SiteScope holds the resolved site access for a user.
//
// Unrestricted is an explicit flag rather than a nil-slice convention:
// a user with zero assignments has an empty, restricted scope, while a
// sys_admin gets Unrestricted regardless of assignments.
type SiteScope struct {
	Unrestricted bool     `json:"unrestricted"`
	SiteIDs      []string `json:"site_ids"`
}

// CanAccessSite returns true if the site is inside the scope.
func (s SiteScope) CanAccessSite(siteID string) bool {
	if s.Unrestricted {
		return true
	}
	for _, id := range s.SiteIDs {
		if id == siteID {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrSessionInvalid     = errors.New("invalid or expired session")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrDeviceUnknown      = errors.New("device not known to access resolver")
)
