package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsroom.local/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const (
	defaultOpTimeout     = 100 * time.Millisecond
	defaultScanBudget    = 50
	defaultPurgeDeadline = 500 * time.Millisecond
	scanCount            = 200
)

// Redis 每个操作都有超时上限，连续失败后熔断，熔断期间所有操作立即返回 ErrUnavailable。
type Redis struct {
	client        redis.UniversalClient
	timeout       time.Duration
	scanBudget    int
	purgeDeadline time.Duration
	breaker       *gobreaker.CircuitBreaker

	now      func() time.Time
	scanPage func(ctx context.Context, cursor uint64, match string) ([]string, uint64, error)
}

type RedisOption func(*Redis)

func WithOpTimeout(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithScanBudget 限制一次前缀删除最多执行多少轮 SCAN
func WithScanBudget(n int) RedisOption {
	return func(r *Redis) {
		if n > 0 {
			r.scanBudget = n
		}
	}
}

// WithPurgeDeadline 一次前缀删除的总时长上限，到期后返回 ErrPartialPurge
func WithPurgeDeadline(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.purgeDeadline = d
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:        client,
		timeout:       defaultOpTimeout,
		scanBudget:    defaultScanBudget,
		purgeDeadline: defaultPurgeDeadline,
		now:           time.Now,
	}
	r.scanPage = func(ctx context.Context, cursor uint64, match string) ([]string, uint64, error) {
		return r.client.Scan(ctx, cursor, match, scanCount).Result()
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kvstore-redis",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 调用方主动取消不算 Redis 故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("kvstore breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

// do 给单次操作加超时和熔断；redis.Nil 在 fn 内部已经转换成正常结果。
// 调用方自己的 ctx 到期或取消导致的失败原样返回，但不计入熔断。
func (r *Redis) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kvstore %s: %w", op, err)
	}
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var callerErr error
	_, err := r.breaker.Execute(func() (any, error) {
		err := fn(opCtx)
		if err != nil && ctx.Err() != nil {
			callerErr = err
			return nil, nil
		}
		return nil, err
	})
	if err == nil {
		err = callerErr
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.KVOperations.WithLabelValues(op, "unavailable").Inc()
		return fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	default:
		metrics.KVOperations.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("kvstore %s: %w", op, err)
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	found := false
	err := r.do(ctx, "get", func(ctx context.Context) error {
		b, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		val, found = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if found {
		metrics.KVOperations.WithLabelValues("get", "ok").Inc()
	} else {
		metrics.KVOperations.WithLabelValues("get", "miss").Inc()
	}
	return val, found, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("kvstore set %s: ttl must be > 0", key)
	}
	return r.do(ctx, "set", func(ctx context.Context) error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.do(ctx, "delete", func(ctx context.Context) error {
		return r.client.Del(ctx, keys...).Err()
	})
}

// DeletePrefix 按轮执行 SCAN + DEL，每一轮单独计超时和熔断。
// 轮数预算或总时长用完、调用方 ctx 结束时返回 ErrPartialPurge，剩下的 key 等 TTL 过期。
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return errors.New("kvstore delete prefix: empty prefix")
	}
	pattern := escapeGlob(prefix) + "*"
	deadline := r.now().Add(r.purgeDeadline)

	var cursor uint64
	for i := 0; i < r.scanBudget; i++ {
		// 总时长只在第一轮之后检查
		if ctx.Err() != nil || (i > 0 && !r.now().Before(deadline)) {
			return ErrPartialPurge
		}

		var keys []string
		err := r.do(ctx, "scan", func(ctx context.Context) error {
			var err error
			keys, cursor, err = r.scanPage(ctx, cursor, pattern)
			return err
		})
		if err == nil && len(keys) > 0 {
			err = r.do(ctx, "delete", func(ctx context.Context) error {
				return r.client.Del(ctx, keys...).Err()
			})
		}
		if err != nil {
			if ctx.Err() != nil {
				return ErrPartialPurge
			}
			return err
		}
		if cursor == 0 {
			return nil
		}
	}
	return ErrPartialPurge
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.do(ctx, "exists", func(ctx context.Context) error {
		var err error
		n, err = r.client.Exists(ctx, key).Result()
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.do(ctx, "ping", func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})
}

// escapeGlob 转义 SCAN MATCH 的通配字符，前缀按字面量匹配
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
