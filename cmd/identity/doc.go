// Package identity implements Refind's user identity foundation.
//
// It contains the credential store boundary (users + bcrypt password digests),
// normalization rules, and the error taxonomy shared by the HTTP layer.
//
// This package is intentionally dependency-light and security-first.
package identity
