// Package audit keeps an append-only trail of security events: logins,
// failures, token lifecycle, command dispatches. Entries carry actor,
// subject and a small JSON detail blob — never credential material.
package audit
