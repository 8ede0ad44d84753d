package api

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/livetrack/internal/metrics"
)

// RateLimitConfig tunes the per-client token bucket.
type RateLimitConfig struct {
	RPS           int
	Burst         int
	IdleTTL       time.Duration // drop a client's bucket after this much inactivity
	SweepInterval time.Duration
}

const (
	defaultIdleTTL       = 10 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// client holds one caller's remaining budget. Tokens refill lazily on the
// next request, proportional to the time since lastSeen.
type client struct {
	tokens   float64
	lastSeen time.Time
}

type limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    float64
	burst   float64
	idleTTL time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func newLimiter(cfg RateLimitConfig, m *metrics.Metrics, logger zerolog.Logger) *limiter {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &limiter{
		clients: make(map[string]*client),
		rate:    float64(cfg.RPS),
		burst:   float64(cfg.Burst),
		idleTTL: idleTTL,
		metrics: m,
		logger:  logger.With().Str("component", "ratelimit").Logger(),
	}
}

func (l *limiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &client{tokens: l.burst}
		l.clients[ip] = c
	} else {
		c.tokens += now.Sub(c.lastSeen).Seconds() * l.rate
		if c.tokens > l.burst {
			c.tokens = l.burst
		}
	}
	c.lastSeen = now

	if c.tokens < 1 {
		return false
	}
	c.tokens--
	return true
}

// sweep drops buckets whose owner has been idle longer than the TTL.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, ip)
		}
	}
}

func (l *limiter) run(interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := range ticker.C {
		l.sweep(now)
	}
}

// NewRateLimitMiddleware returns a per-client-IP token-bucket limiter.
// Health probes are exempt. Rejections answer with a 429 problem and are
// counted in livetrack_requests_rate_limited_total.
func NewRateLimitMiddleware(cfg RateLimitConfig, m *metrics.Metrics, logger zerolog.Logger) fiber.Handler {
	l := newLimiter(cfg, m, logger)
	go l.run(cfg.SweepInterval)

	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" {
			return c.Next()
		}

		if !l.allow(c.IP(), time.Now()) {
			l.logger.Debug().Str("ip", c.IP()).Str("path", path).Msg("request rate limited")
			if l.metrics != nil {
				l.metrics.RequestsRateLimited.Inc()
			}
			return problemResponse(c, fiber.StatusTooManyRequests,
				"rate_limit_exceeded", "Too Many Requests",
				"Rate limit exceeded. Please try again later.")
		}

		return c.Next()
	}
}
