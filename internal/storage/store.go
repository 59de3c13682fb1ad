// Package storage is the key space the mobile client keeps session,
// lockout and notification state in. Values are opaque strings, usually JSON
// blobs without a schema or version field.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	KeyAuthToken            = "authToken"
	KeySessionExpiry        = "sessionExpiry"
	KeyUser                 = "user"
	KeySelectedBusinessUnit = "selectedBusinessUnit"
	KeyFailedLoginAttempts  = "failedLoginAttempts"
	KeyLockoutTime          = "lockoutTime"
	KeyNotifications        = "notifications"
)

// ErrMalformed is returned by GetJSON when the stored blob cannot be decoded.
var ErrMalformed = errors.New("malformed stored value")

// Store is a scoped string key/value store.
type Store interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope string, keys ...string) error
	// Scopes lists every scope that currently holds key.
	Scopes(ctx context.Context, key string) ([]string, error)
}

// UserScope is the scope holding a signed-in user's session and notifications.
func UserScope(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}

// LoginScope is the scope holding failed-attempt and lockout bookkeeping for
// a login identity.
func LoginScope(email string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(email))
}

// ParseUserScope extracts the user id from a scope built by UserScope.
func ParseUserScope(scope string) (uint, bool) {
	raw, ok := strings.CutPrefix(scope, "user:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// GetJSON decodes the blob stored under key into out. found is false when the
// key is absent; a decode failure yields ErrMalformed.
func GetJSON(ctx context.Context, s Store, scope, key string, out any) (found bool, err error) {
	raw, ok, err := s.Get(ctx, scope, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return true, fmt.Errorf("%w: %s/%s: %v", ErrMalformed, scope, key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, scope, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	return s.Set(ctx, scope, key, string(b))
}

// GetInt64 reads an integer value; unparsable values count as absent.
func GetInt64(ctx context.Context, s Store, scope, key string) (int64, bool, error) {
	raw, ok, err := s.Get(ctx, scope, key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func SetInt64(ctx context.Context, s Store, scope, key string, n int64) error {
	return s.Set(ctx, scope, key, strconv.FormatInt(n, 10))
}
