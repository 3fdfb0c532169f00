// Package cache holds the Redis-backed identity cache and login throttle.
package cache

import (
	"strings"
)

const (
	identityPrefix     = "identity:"
	loginFailurePrefix = "login:failures:"
)

func identityKey(userID string) string {
	return identityPrefix + userID
}

func loginFailureKey(email string) string {
	return loginFailurePrefix + strings.ToLower(strings.TrimSpace(email))
}
