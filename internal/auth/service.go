package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
)

// Auditor records security-relevant events. The audit package provides the
// SQLite implementation; a nil auditor disables recording.
type Auditor interface {
	Record(ctx context.Context, event, actorID, actorName, subject string, detail map[string]any)
}

// Options configures the authentication service.
type Options struct {
	// SessionTTL is how long a login session stays valid.
	SessionTTL time.Duration

	// BcryptCost is the bcrypt work factor for new password hashes.
	BcryptCost int
}

// Service implements authentication: login/session lifecycle, API token
// lifecycle, and user management.
//
// Credential material (passwords, hashes, session tokens, API tokens)
// never appears in log output. Log lines carry usernames and IDs only.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	tokens   TokenRepository
	opts     Options
	logger   *logging.Logger
	audit    Auditor
	devices  DeviceDirectory
}

// NewService creates the authentication service.
func NewService(users UserRepository, sessions SessionRepository, tokens TokenRepository, opts Options, logger *logging.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		opts:     opts,
		logger:   logger,
	}
}

// SetAuditor wires an audit recorder. Safe to leave unset.
func (s *Service) SetAuditor(a Auditor) {
	s.audit = a
}

// SetDeviceDirectory wires device lookups so validated device tokens are
// enriched with the bound device's UID and site. Safe to leave unset;
// device tokens then resolve with the row ID only.
func (s *Service) SetDeviceDirectory(d DeviceDirectory) {
	s.devices = d
}

// record emits an audit event when an auditor is wired.
func (s *Service) record(ctx context.Context, event, actorID, actorName, subject string, detail map[string]any) {
	if s.audit != nil {
		s.audit.Record(ctx, event, actorID, actorName, subject, detail)
	}
}

// CreateUserParams carries a new account's details. Email and FullName are
// optional; email uniqueness is enforced by the store when present.
type CreateUserParams struct {
	Username  string
	Password  string
	Email     string
	FullName  string
	Role      Role
	CreatedBy string
}

// CreateUser registers a new account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	if !IsValidUsername(params.Username) {
		return nil, fmt.Errorf("%w: invalid username format", ErrInvalidCredentials)
	}
	if !IsValidUserRole(params.Role) {
		return nil, fmt.Errorf("invalid role %q", params.Role)
	}

	hash, err := HashPasswordCost(params.Password, s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: hash,
		FullName:     params.FullName,
		Role:         params.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "username", params.Username, "role", string(params.Role))
	s.record(ctx, "user.created", params.CreatedBy, "", user.ID, map[string]any{
		"username": params.Username,
		"role":     string(params.Role),
	})
	return user, nil
}

// AuthenticateUser verifies a username/password pair and opens a session.
//
// Failures are deliberately uniform: unknown username, inactive account
// and wrong password all return ErrInvalidCredentials so login responses
// don't leak which part was wrong.
func (s *Service) AuthenticateUser(ctx context.Context, username, password, ipAddress, userAgent string) (*User, *Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.logger.Warn("login failed", "username", username, "reason", "unknown user")
		s.record(ctx, "auth.login_failed", "", username, "", nil)
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.logger.Warn("login failed", "username", username, "reason", "inactive account")
		s.record(ctx, "auth.login_failed", user.ID, username, "", map[string]any{"reason": "inactive"})
		return nil, nil, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("verifying credentials for %s: %w", username, err)
	}
	if !ok {
		s.logger.Warn("login failed", "username", username, "reason", "bad password")
		s.record(ctx, "auth.login_failed", user.ID, username, "", nil)
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("recording last login failed", "username", username, "error", err)
	}

	s.logger.Info("login succeeded", "username", username, "role", string(user.Role))
	s.record(ctx, "auth.login", user.ID, username, "", nil)

	// callers get the identity, not the credential
	user.PasswordHash = ""
	return user, session, nil
}

// createSession generates a token and persists the session row.
func (s *Service) createSession(ctx context.Context, userID, ipAddress, userAgent string) (*Session, error) {
	token, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(s.opts.SessionTTL),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ValidateSession resolves a session token to the identity behind it.
//
// Expired sessions are purged first, so a token that expired a moment ago
// fails exactly like one that never existed. A session whose user has been
// deactivated since login is rejected and deleted.
func (s *Service) ValidateSession(ctx context.Context, token string) (*UserInfo, error) {
	if _, err := s.sessions.DeleteExpired(ctx); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if !user.IsActive {
		// The account was deactivated after login; drop the session.
		_ = s.sessions.Delete(ctx, token) //nolint:errcheck // best effort cleanup
		return nil, ErrSessionInvalid
	}

	return &UserInfo{
		UserID:         user.ID,
		Username:       user.Username,
		Email:          user.Email,
		FullName:       user.FullName,
		Role:           user.Role,
		SessionExpires: session.ExpiresAt,
	}, nil
}

// Logout deletes a session. Idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ChangePassword verifies the current password, stores the new hash, and
// terminates every other session for the account.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verifying current password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := HashPasswordCost(newPassword, s.opts.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	if _, err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Warn("terminating sessions after password change failed", "user_id", userID, "error", err)
	}

	s.logger.Info("password changed", "username", user.Username)
	s.record(ctx, "auth.password_changed", userID, user.Username, "", nil)
	return nil
}

// CreateTokenParams is the input for minting an API token.
type CreateTokenParams struct {
	// Exactly one of UserID or DeviceID must be set.
	UserID   *string
	DeviceID *string

	Name        string
	Description string
	Scopes      ScopeSet
	ExpiresAt   *time.Time
	CreatedBy   string
}

// CreateAPIToken mints a new API token and returns the token string. The
// string is shown once at creation; it is retrievable from the repository
// but never logged.
func (s *Service) CreateAPIToken(ctx context.Context, params CreateTokenParams) (*APIToken, error) {
	if (params.UserID == nil) == (params.DeviceID == nil) {
		return nil, fmt.Errorf("%w: token must bind exactly one of user or device", ErrTokenInvalid)
	}
	if params.Name == "" {
		return nil, fmt.Errorf("%w: token name is required", ErrTokenInvalid)
	}
	if err := params.Scopes.Validate(); err != nil {
		return nil, err
	}

	kind := TokenKindUser
	if params.DeviceID != nil {
		kind = TokenKindDevice
	}
	raw, err := GenerateAPIToken(kind)
	if err != nil {
		return nil, err
	}

	token := &APIToken{
		Token:       raw,
		UserID:      params.UserID,
		DeviceID:    params.DeviceID,
		Name:        params.Name,
		Description: params.Description,
		Scopes:      params.Scopes,
		IsActive:    true,
		ExpiresAt:   params.ExpiresAt,
		CreatedBy:   params.CreatedBy,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info("api token created", "name", params.Name, "kind", string(kind))
	s.record(ctx, "token.created", params.CreatedBy, "", params.Name, map[string]any{
		"kind":   string(kind),
		"scopes": []string(params.Scopes),
	})
	return token, nil
}

// ValidateAPIToken resolves a token string to the identity behind it.
//
// Expired tokens are purged first. The prefix check runs before the
// database lookup, and the stored binding must agree with the prefix.
func (s *Service) ValidateAPIToken(ctx context.Context, raw string) (*TokenInfo, error) {
	kind, err := ParseTokenKind(raw)
	if err != nil {
		return nil, err
	}

	if _, err := s.tokens.DeleteExpired(ctx); err != nil {
		return nil, err
	}

	token, err := s.tokens.GetByToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	if !token.IsActive {
		return nil, ErrTokenRevoked
	}
	if token.Kind() != kind {
		return nil, ErrTokenInvalid
	}

	if err := s.tokens.TouchLastUsed(ctx, raw, time.Now().UTC()); err != nil {
		s.logger.Warn("recording token use failed", "name", token.Name, "error", err)
	}

	info := &TokenInfo{
		Kind:   kind,
		Name:   token.Name,
		Scopes: ScopeSet(token.Scopes),
	}
	if token.UserID != nil {
		info.UserID = *token.UserID
		user, err := s.users.GetByID(ctx, info.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrTokenInvalid
			}
			return nil, fmt.Errorf("resolving token owner: %w", err)
		}
		info.Username = user.Username
		info.Role = user.Role
		info.Email = user.Email
	}
	if token.DeviceID != nil {
		info.DeviceID = *token.DeviceID
		if s.devices != nil {
			ref, err := s.devices.DeviceByID(ctx, info.DeviceID)
			if err != nil {
				if errors.Is(err, ErrDeviceUnknown) {
					return nil, ErrTokenInvalid
				}
				return nil, fmt.Errorf("resolving token device: %w", err)
			}
			info.DeviceUID = ref.UID
			info.SiteID = ref.SiteID
		}
	}
	return info, nil
}

// RevokeAPIToken soft-deletes a token.
func (s *Service) RevokeAPIToken(ctx context.Context, raw, revokedBy string) error {
	token, err := s.tokens.GetByToken(ctx, raw)
	if err != nil {
		return err
	}
	if err := s.tokens.Revoke(ctx, raw); err != nil {
		return err
	}

	s.logger.Info("api token revoked", "name", token.Name)
	s.record(ctx, "token.revoked", revokedBy, "", token.Name, nil)
	return nil
}
