package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// loginLimiter caps login attempts per client IP and email in fixed hourly
// windows stored in Redis.
type loginLimiter struct {
	client redis.Cmdable
	limit  int64
	now    func() time.Time
}

// newLoginLimiter returns nil when client is nil or limit is not positive;
// a nil limiter allows everything.
func newLoginLimiter(client redis.Cmdable, limit int) *loginLimiter {
	if client == nil || limit <= 0 {
		return nil
	}
	return &loginLimiter{
		client: client,
		limit:  int64(limit),
		now:    time.Now,
	}
}

func (l *loginLimiter) key(ip, email string) string {
	return fmt.Sprintf("rate:login:%s:%s:%s", ip, strings.ToLower(email), l.now().UTC().Format("2006010215"))
}

// Allow records one attempt and reports whether it is within the limit.
func (l *loginLimiter) Allow(ctx context.Context, ip, email string) (bool, error) {
	if l == nil {
		return true, nil
	}

	key := l.key(ip, email)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Hour)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}
