package utils

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

var (
	blacklist   = map[string]time.Time{}
	blacklistMu sync.Mutex
)

// BlacklistToken revokes a token id until its natural expiration.
// Redis is preferred; without it the revocation lives in process memory.
func BlacklistToken(ctx context.Context, jti string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		err := rc.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
		if err == nil {
			return
		}
		Logger.Warn("blacklist token in redis failed, keeping it in memory", zap.Error(err))
	}
	blacklistMu.Lock()
	blacklist[jti] = expiresAt
	blacklistMu.Unlock()
}

// IsTokenBlacklisted checks if a token id was revoked before natural expiration.
func IsTokenBlacklisted(ctx context.Context, jti string) bool {
	if jti == "" {
		return false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		n, err := rc.Exists(ctx, blacklistPrefix+jti).Result()
		if err == nil && n > 0 {
			return true
		}
		// fail open on redis errors; the in-memory list below still applies
	}

	blacklistMu.Lock()
	defer blacklistMu.Unlock()
	expiresAt, ok := blacklist[jti]
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		delete(blacklist, jti)
		return false
	}
	return true
}
