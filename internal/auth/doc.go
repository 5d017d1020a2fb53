// Package auth provides authentication and authorisation for Allotment Core.
//
// It implements a 2-tier role model (user → sys_admin) with:
//   - bcrypt password hashing
//   - Opaque session tokens with expiry-purge-before-validate semantics
//   - Prefixed API tokens (usr_/dev_) bound to a user or a field device
//   - action:resource scope grants on API tokens
//   - Explicit per-user site assignments resolved by the access Resolver
//
// Site scoping uses a "zero access by default, grant explicitly" model:
// a user with no site assignments cannot see anything. A sys_admin
// bypasses site scoping entirely, including devices assigned to no site.
// The distinction is carried explicitly in SiteScope.Unrestricted rather
// than inferred from an empty assignment list.
//
// Credential material — passwords, hashes, session tokens, API token
// strings — must never be logged. The single exception is the first-boot
// seed admin password, which has no other delivery channel.
package auth
