package idgen

import (
	"context"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

// Clock abstracts the time source for the stamper.
type Clock interface {
	// Now returns the current timestamp in milliseconds.
	Now() int64
}

// SystemClock uses the local system time.
type SystemClock struct{}

func (s *SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// RedisClock uses the Redis TIME command so every gateway instance stamps
// uploads from the same time source.
type RedisClock struct {
	client  redis.Cmdable
	timeout time.Duration
}

func NewRedisClock(client redis.Cmdable) *RedisClock {
	return &RedisClock{
		client:  client,
		timeout: 500 * time.Millisecond,
	}
}

func (r *RedisClock) Now() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	// TIME returns [seconds, microseconds]
	res, err := r.client.Time(ctx).Result()
	if err != nil {
		logger.Warnw("Redis TIME failed, falling back to system clock", "error", err.Error())
		return time.Now().UnixMilli()
	}

	return res.Unix()*1000 + int64(res.Nanosecond())/1000000
}
