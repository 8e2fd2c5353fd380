// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSessionToken creates an HMAC-signed session token for a user.
// The token is "<userID>.<sig>"; it is deterministic and verifiable, so no
// session table is needed. Rotating the salt invalidates every session.
func GenerateSessionToken(userID, salt string) string {
	return userID + "." + sign(userID, salt)
}

// ParseSessionToken verifies a session token and returns the user ID it
// carries. Returns ErrInvalidSessionToken on any malformed or forged token.
func ParseSessionToken(token, salt string) (string, error) {
	userID, sig, ok := strings.Cut(token, ".")
	if !ok || userID == "" {
		return "", ErrInvalidSessionToken
	}
	if !hmac.Equal([]byte(sig), []byte(sign(userID, salt))) {
		return "", ErrInvalidSessionToken
	}
	return userID, nil
}

func sign(payload, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(payload))
	sum := h.Sum(nil)
	// URL-safe base64 and trim padding for cleaner tokens
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}
