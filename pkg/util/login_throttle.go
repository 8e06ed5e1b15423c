package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR 和 PEXPIRE 必须原子执行，否则并发登录可能越过上限，或留下永不过期的 key
var attemptScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// LoginThrottle counts login attempts per email in Redis. The counter expires
// `window` after the first attempt and is cleared on success.
type LoginThrottle struct {
	rdb         redis.Cmdable
	window      time.Duration
	maxAttempts int64
}

func NewLoginThrottle(rdb redis.Cmdable, maxAttempts int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{rdb: rdb, window: window, maxAttempts: int64(maxAttempts)}
}

// Attempt reserves one login attempt for email and reports whether it is
// still within the limit.
func (t *LoginThrottle) Attempt(ctx context.Context, email string) (bool, error) {
	n, err := attemptScript.Run(ctx, t.rdb, []string{FormatLoginKey(email)}, t.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= t.maxAttempts, nil
}

// Reset clears the attempt count after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) error {
	return t.rdb.Del(ctx, FormatLoginKey(email)).Err()
}

// FormatLoginKey formats the Redis key holding attempts for email.
func FormatLoginKey(email string) string {
	return fmt.Sprintf("login_fail:%s", email)
}
