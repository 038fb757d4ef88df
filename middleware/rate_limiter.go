package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/00anuyh/souvenir/utils"
)

// In-memory fixed-window rate limiting, per IP for the public auth routes and
// per authenticated user for the session routes. Designed to be replaced by
// Redis when the service runs on more than one node.

type timestamps []int64 // unix nanos

func nowUnix() int64 { return time.Now().UnixNano() }

// IPRateLimiter implements per-IP fixed-window counters with optional
// trusted-proxy parsing.
type IPRateLimiter struct {
	max         int
	window      time.Duration
	mu          sync.Mutex
	state       map[string]timestamps
	trustedCIDR []string
}

func NewIPRateLimiter(maxReq int, window time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{
		max:    maxReq,
		window: window,
		state:  make(map[string]timestamps),
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		l.trustedCIDR = strings.Split(v, ",")
	}
	go l.cleanupLoop()
	return l
}

// clientIPGeneric returns the client IP string. X-Forwarded-For / X-Real-IP
// headers are honored only when the remote addr is inside one of the trusted
// CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
				if remoteIP != nil && ipnet.Contains(remoteIP) {
					trusted = true
					break
				}
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIPGeneric(r, l.trustedCIDR)
		count, retryAfter := l.hit(key)

		remaining := l.max - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.max))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if count > l.max {
			writeLimited(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// hit records one request for key and returns the in-window count plus the
// seconds until the oldest entry rolls off.
func (l *IPRateLimiter) hit(key string) (int, int) {
	now := nowUnix()
	windowNs := int64(l.window)
	cutoff := now - windowNs

	l.mu.Lock()
	defer l.mu.Unlock()
	var filtered timestamps
	for _, ts := range l.state[key] {
		if ts >= cutoff {
			filtered = append(filtered, ts)
		}
	}
	filtered = append(filtered, now)
	l.state[key] = filtered

	retryAfter := int(l.window.Seconds())
	if len(filtered) > 0 {
		oldest := filtered[0]
		if ra := (oldest + windowNs - now) / 1e9; ra > 0 {
			retryAfter = int(ra)
		} else {
			retryAfter = 1
		}
	}
	return len(filtered), retryAfter
}

func (l *IPRateLimiter) cleanupLoop() {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for range tick.C {
		cutoff := nowUnix() - int64(l.window)
		l.mu.Lock()
		for key, arr := range l.state {
			var filtered timestamps
			for _, ts := range arr {
				if ts >= cutoff {
					filtered = append(filtered, ts)
				}
			}
			if len(filtered) == 0 {
				delete(l.state, key)
			} else {
				l.state[key] = filtered
			}
		}
		l.mu.Unlock()
	}
}

// UserRateLimiter keys on the authenticated user id, with separate budgets
// for reads and writes. Unauthenticated requests fall back to the client IP.
type UserRateLimiter struct {
	read  *IPRateLimiter
	write *IPRateLimiter
}

func NewUserRateLimiter(maxRead, maxWrite int, windowSeconds int) *UserRateLimiter {
	window := time.Duration(windowSeconds) * time.Second
	return &UserRateLimiter{
		read:  NewIPRateLimiter(maxRead, window),
		write: NewIPRateLimiter(maxWrite, window),
	}
}

func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := l.read
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			limiter = l.write
		}
		key := clientIPGeneric(r, limiter.trustedCIDR)
		if uid, ok := utils.GetUserID(r); ok && uid != 0 {
			key = fmt.Sprintf("u:%d", uid)
		}
		count, retryAfter := limiter.hit(key)
		if count > limiter.max {
			writeLimited(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요",
		"data":    map[string]interface{}{"retry_after_seconds": retryAfter},
	})
}
