// Package auth verifies optional bearer tokens for reading captured leads. Tokens are
// checked against an HMAC secret or a JWKS endpoint; callers without a token are
// treated as anonymous and fall back to the session read policy.
package auth
