// Chatpresence - Real-time presence synchronization client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chatpresence

package session

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/chatpresence/internal/config"
	"github.com/tomtom215/chatpresence/internal/models"
)

// DefaultUserIDClaim is the claim read when none is configured.
const DefaultUserIDClaim = "sub"

// fallbackUserIDClaims are tried, in order, when the configured claim is
// absent. Chat backends commonly issue one of these.
var fallbackUserIDClaims = []string{"sub", "nameid", "user_id"}

var (
	// ErrNoToken is returned when a credential is requested without a token.
	ErrNoToken = errors.New("session: access token is empty")

	// ErrNoUserID is returned when no user id can be found for a token.
	ErrNoUserID = errors.New("session: no user id in token claims")
)

// Credential is the signed-in identity the presence channel is opened for.
type Credential struct {
	AccessToken string
	UserID      models.UserID

	// ExpiresAt is the token expiry when the token carries one.
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseCredential builds a Credential from a bearer JWT.
//
// The signature is NOT verified. The hub and the REST API verify the token;
// the client only needs to know which user id to announce as its own. The
// user id is read from claim, falling back to sub, nameid and user_id.
//
// Example:
//
//	cred, err := session.ParseCredential(token, "sub")
//	if err != nil {
//	    return fmt.Errorf("invalid session token: %w", err)
//	}
func ParseCredential(token, claim string) (*Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	userID := userIDFromClaims(claims, claim)
	if userID == "" {
		return nil, ErrNoUserID
	}

	cred := &Credential{AccessToken: token, UserID: userID}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		cred.ExpiresAt = exp.Time
	}
	return cred, nil
}

func userIDFromClaims(claims jwt.MapClaims, claim string) models.UserID {
	names := fallbackUserIDClaims
	if claim != "" {
		names = append([]string{claim}, fallbackUserIDClaims...)
	}
	for _, name := range names {
		if id := claimString(claims[name]); id != "" {
			return models.UserID(id)
		}
	}
	return ""
}

// claimString renders string and numeric claims. Numeric ids arrive as
// float64 from the JSON decoder.
func claimString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// ReadTokenFile returns the trimmed token stored in path.
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s: %w", path, ErrNoToken)
	}
	return token, nil
}

// CredentialFromConfig resolves the configured credential. It returns
// (nil, nil) when no token source is configured, which means signed out.
//
// An explicit user_id is used as-is and the token is then treated as opaque.
// Otherwise the token must be a JWT carrying the user id claim.
func CredentialFromConfig(cfg config.SessionConfig) (*Credential, error) {
	if !cfg.HasCredential() {
		return nil, nil
	}

	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		var err error
		if token, err = ReadTokenFile(cfg.TokenFile); err != nil {
			return nil, err
		}
	}

	if cfg.UserID != "" {
		cred := &Credential{AccessToken: token, UserID: models.UserID(cfg.UserID)}
		if parsed, err := ParseCredential(token, cfg.UserIDClaim); err == nil {
			cred.ExpiresAt = parsed.ExpiresAt
		}
		return cred, nil
	}

	claim := cfg.UserIDClaim
	if claim == "" {
		claim = DefaultUserIDClaim
	}
	return ParseCredential(token, claim)
}
