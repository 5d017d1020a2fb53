package auth

import (
	"context"
	"errors"
	"fmt"
)

// DeviceRef is the minimal device view the resolver needs. It is defined
// here rather than importing the device package so resolution stays free
// of a dependency on the registry; main wires an adapter.
type DeviceRef struct {
	ID     string
	UID    string
	SiteID *string
}

// DeviceDirectory resolves device references for access decisions.
// The device package's repository satisfies this through an adapter.
// Implementations return ErrDeviceUnknown (possibly wrapped) when no
// device matches; the resolver turns that into a denial, not an error.
type DeviceDirectory interface {
	DeviceByID(ctx context.Context, id string) (*DeviceRef, error)
	DeviceByUID(ctx context.Context, uid string) (*DeviceRef, error)
}

// Resolver answers "who may see what" questions for sites and devices.
//
// Decision model:
//   - sys_admin: unrestricted, sees every site and every device,
//     including devices not assigned to any site.
//   - user: sees exactly the sites in user_site_assignments and the
//     devices assigned to those sites. Unassigned devices are invisible.
//   - device token: sees exactly the one device it is bound to.
type Resolver struct {
	users       UserRepository
	assignments SiteAccessRepository
	devices     DeviceDirectory
}

// NewResolver creates the access resolver.
func NewResolver(users UserRepository, assignments SiteAccessRepository, devices DeviceDirectory) *Resolver {
	return &Resolver{users: users, assignments: assignments, devices: devices}
}

// UserSiteAccess resolves a user's site scope.
//
// A sys_admin gets an unrestricted scope regardless of any assignment
// rows. A user with zero assignments gets an empty restricted scope,
// which grants nothing.
func (r *Resolver) UserSiteAccess(ctx context.Context, userID string) (SiteScope, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return SiteScope{}, err
	}

	if user.IsAdmin() {
		return SiteScope{Unrestricted: true}, nil
	}

	siteIDs, err := r.assignments.ListSiteIDs(ctx, userID)
	if err != nil {
		return SiteScope{}, err
	}
	return SiteScope{SiteIDs: siteIDs}, nil
}

// UserCanAccessSite reports whether a user may see a site.
func (r *Resolver) UserCanAccessSite(ctx context.Context, userID, siteID string) (bool, error) {
	scope, err := r.UserSiteAccess(ctx, userID)
	if err != nil {
		return false, err
	}
	return scope.CanAccessSite(siteID), nil
}

// UserCanAccessDevice reports whether a user may see a device.
//
// A device with no site assignment is only visible to sys_admins; there
// is no site through which a restricted user could reach it. An unknown
// device is a denial, not an error: absence of a row never surfaces as
// a failure at this boundary.
func (r *Resolver) UserCanAccessDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	scope, err := r.UserSiteAccess(ctx, userID)
	if err != nil {
		return false, err
	}
	if scope.Unrestricted {
		return true, nil
	}

	ref, err := r.devices.DeviceByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceUnknown) {
			return false, nil
		}
		return false, fmt.Errorf("resolving device %s: %w", deviceID, err)
	}
	if ref.SiteID == nil {
		return false, nil
	}
	return scope.CanAccessSite(*ref.SiteID), nil
}

// UserCanAccessDeviceByUID is UserCanAccessDevice keyed by the device's
// external UID, for callers holding the wire identifier rather than the
// row ID.
func (r *Resolver) UserCanAccessDeviceByUID(ctx context.Context, userID, deviceUID string) (bool, error) {
	ref, err := r.devices.DeviceByUID(ctx, deviceUID)
	if err != nil {
		if errors.Is(err, ErrDeviceUnknown) {
			return false, nil
		}
		return false, fmt.Errorf("resolving device %s: %w", deviceUID, err)
	}
	return r.UserCanAccessDevice(ctx, userID, ref.ID)
}

// TokenCanAccessDevice reports whether an API token may act on a device,
// identified by UID.
//
// Device tokens are pinned to their own device: the binding is the whole
// grant, scopes only narrow the verbs. User tokens inherit the owning
// user's site scope. Unknown UIDs and unknown token kinds both fail
// closed as denials.
func (r *Resolver) TokenCanAccessDevice(ctx context.Context, info *TokenInfo, deviceUID string) (bool, error) {
	ref, err := r.devices.DeviceByUID(ctx, deviceUID)
	if err != nil {
		if errors.Is(err, ErrDeviceUnknown) {
			return false, nil
		}
		return false, fmt.Errorf("resolving device %s: %w", deviceUID, err)
	}

	switch info.Kind {
	case TokenKindDevice:
		return info.DeviceID == ref.ID, nil
	case TokenKindUser:
		return r.UserCanAccessDevice(ctx, info.UserID, ref.ID)
	default:
		return false, nil
	}
}

// FilterDevicesByAccess returns the subset of devices the user may see,
// preserving input order. The whole input comes back for sys_admins.
func (r *Resolver) FilterDevicesByAccess(ctx context.Context, userID string, devices []DeviceRef) ([]DeviceRef, error) {
	scope, err := r.UserSiteAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if scope.Unrestricted {
		return devices, nil
	}

	visible := []DeviceRef{}
	for _, d := range devices {
		if d.SiteID != nil && scope.CanAccessSite(*d.SiteID) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

// IsAdminUser reports whether the user holds the sys_admin role.
func (r *Resolver) IsAdminUser(ctx context.Context, userID string) (bool, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin(), nil
}
