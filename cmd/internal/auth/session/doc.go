// Package session issues and validates bearer sessions.
//
// One token scheme, one authority: login mints a signed JWT and records a
// Session row keyed by the SHA-256 hash of that token. Whether a bearer is
// currently valid is decided solely by the Session row (existence + expiry);
// the JWT signature exists so the value is unforgeable and self-describing,
// not as a second source of truth. Logout deletes the row, which invalidates
// the token immediately regardless of its embedded expiry.
package session
