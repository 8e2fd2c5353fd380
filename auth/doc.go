// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and token generation utilities.

# Session Tokens

Session tokens use HMAC-SHA256 to create deterministic, verifiable tokens:

	token := auth.GenerateSessionToken(userID, salt)
	userID, err := auth.ParseSessionToken(token, salt)

A token is "<userID>.<sig>" where sig is the URL-safe base64 HMAC of the
user ID, padding stripped. Since it's deterministic, the same user and salt
always produce the same token. This allows validation without a session
table; rotating the salt invalidates every outstanding session at once.

ParseSessionToken returns ErrInvalidSessionToken for any malformed or
forged token. Callers still check the user row, since a well-formed token
may name a user that no longer exists or has been removed.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
