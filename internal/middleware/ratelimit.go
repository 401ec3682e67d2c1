package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seatpack-sync/internal/config"
	"github.com/iliyamo/seatpack-sync/internal/logging"
)

// takeToken refills the bucket in whole intervals, then tries to take one
// token.  Returns {allowed, remaining, wait_ms}.
var takeToken = redis.NewScript(`
	local capacity = tonumber(ARGV[1])
	local per_step = tonumber(ARGV[2])
	local step_ms  = tonumber(ARGV[3])
	local ttl_ms   = tonumber(ARGV[4])
	local now      = tonumber(ARGV[5])

	local cur = redis.call('HMGET', KEYS[1], 'tokens', 'stamp')
	local tokens = tonumber(cur[1]) or capacity
	local stamp  = tonumber(cur[2]) or now

	local steps = math.floor(math.max(0, now - stamp) / step_ms)
	if steps > 0 then
		tokens = math.min(capacity, tokens + steps * per_step)
		stamp = stamp + steps * step_ms
	end

	local allowed, wait = 0, 0
	if tokens >= 1 then
		allowed = 1
		tokens = tokens - 1
	else
		wait = math.max(0, step_ms - (now - stamp))
	end

	redis.call('HSET', KEYS[1], 'tokens', tokens, 'stamp', stamp)
	redis.call('PEXPIRE', KEYS[1], ttl_ms)
	return { allowed, tokens, wait }
`)

// decision is the bucket's answer for one request.
type decision struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

type bucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
}

func (b bucket) take(ctx context.Context, key string) (decision, error) {
	vals, err := takeToken.Run(ctx, b.rdb, []string{key},
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		b.cfg.TTL.Milliseconds(),
		time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(vals) != 3 {
		return decision{}, redis.Nil
	}
	return decision{allowed: vals[0] == 1, remaining: vals[1], wait: time.Duration(vals[2]) * time.Millisecond}, nil
}

// NewTokenBucket limits requests per key with a Redis token bucket.  When
// Redis errors the request goes through; a limiter outage must not stop
// ingest.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = logging.Component(log, "ratelimit")
	b := bucket{rdb: rdb, cfg: cfg}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			d, err := b.take(c.Request().Context(), key)
			if err != nil {
				if cfg.Debug {
					log.Warn("limiter unavailable", zap.String("key", key), zap.Error(err))
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}

			secs := retryAfterSeconds(d.wait)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.Info("request throttled", zap.String("key", key), zap.Duration("wait", d.wait))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded", "retry_after": secs})
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// retryAfterSeconds rounds a wait up to whole seconds for Retry-After.
func retryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}

// buildRateKey joins the parts selected by cfg.KeyStrategy.  Workers share
// egress IPs, so the default strategy includes the token subject.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := map[string]string{
		"ip":    ip,
		"sub":   Subject(c),
		"route": c.Request().Method + " " + c.Path(),
	}

	var use []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		use = []string{"ip"}
	case "subject":
		use = []string{"sub"}
	case "route":
		use = []string{"route"}
	case "ip_subject":
		use = []string{"ip", "sub"}
	case "ip_route":
		use = []string{"ip", "route"}
	case "subject_route":
		use = []string{"sub", "route"}
	default:
		use = []string{"ip", "sub", "route"}
	}

	key := cfg.Prefix
	for _, name := range use {
		key += ":" + name + ":" + parts[name]
	}
	return key
}
