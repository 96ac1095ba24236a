package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

// idleLimiterTTL is how long an unused per-user window is kept.
const idleLimiterTTL = 30 * time.Minute

// UserRateLimiter allows each user at most Messages requests inside any
// sliding Window.
type UserRateLimiter struct {
	mu       sync.Mutex
	messages int
	window   time.Duration
	users    map[string]*userWindow
	now      func() time.Time
	lastGC   time.Time
}

// userWindow is a ring of the accepted request times of one user. next
// points at the oldest entry once the ring is full.
type userWindow struct {
	times    []time.Time
	next     int
	lastSeen time.Time
}

func NewUserRateLimiter(messages int, window time.Duration) *UserRateLimiter {
	if messages <= 0 {
		messages = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &UserRateLimiter{
		messages: messages,
		window:   window,
		users:    make(map[string]*userWindow),
		now:      time.Now,
	}
}

// Reserve records a request for userID. When the window is full it returns
// false and how long until the oldest request leaves it.
func (l *UserRateLimiter) Reserve(userID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gc(now)

	uw, ok := l.users[userID]
	if !ok {
		uw = &userWindow{times: make([]time.Time, 0, l.messages)}
		l.users[userID] = uw
	}
	uw.lastSeen = now

	if len(uw.times) < l.messages {
		uw.times = append(uw.times, now)
		return true, 0
	}

	oldest := uw.times[uw.next]
	if wait := oldest.Add(l.window).Sub(now); wait > 0 {
		return false, wait
	}
	uw.times[uw.next] = now
	uw.next = (uw.next + 1) % l.messages
	return true, 0
}

func (l *UserRateLimiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < idleLimiterTTL {
		return
	}
	l.lastGC = now
	for id, uw := range l.users {
		if now.Sub(uw.lastSeen) > idleLimiterTTL && now.Sub(uw.lastSeen) > l.window {
			delete(l.users, id)
		}
	}
}

// RateLimit rejects requests of users above their message rate with 429.
// It must run after APIKeyAuth.
func RateLimit(limiter *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Reserve(GetUserID(r.Context()))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				api.HandleError(w, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
