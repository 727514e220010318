package utils

import (
	"context"
	"strings"
	"time"
)

func regKey(parts ...string) string {
	return "reg:" + strings.Join(parts, ":")
}

// RegistrationCooldownTry enforces a cooldown between registration attempts per IP.
// It fails open when redis is unavailable or the cooldown is disabled.
func RegistrationCooldownTry(ctx context.Context, ip string, cooldown time.Duration) bool {
	cli := GetRedis()
	if cli == nil || cooldown <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	ok, err := cli.SetNX(ctx, regKey("cooldown", ip), "1", cooldown).Result()
	if err != nil {
		return true
	}
	return ok
}

// RegistrationDailyLimitCheck allows up to limit successful registrations per IP per UTC day.
func RegistrationDailyLimitCheck(ctx context.Context, ip string, limit int) bool {
	cli := GetRedis()
	if cli == nil || limit <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	n, err := cli.Get(ctx, regKey("succday", ip, time.Now().UTC().Format("20060102"))).Int()
	if err != nil {
		// redis.Nil: nothing recorded today; other errors fail open
		return true
	}
	return n < limit
}

// RegistrationDailyIncrement records a successful registration for today.
func RegistrationDailyIncrement(ctx context.Context, ip string) {
	cli := GetRedis()
	if cli == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 500*time.Millisecond)
	defer cancel()
	now := time.Now().UTC()
	key := regKey("succday", ip, now.Format("20060102"))
	if err := cli.Incr(ctx, key).Err(); err == nil {
		_ = cli.ExpireAt(ctx, key, now.Truncate(24*time.Hour).Add(24*time.Hour)).Err()
	}
}
