package guard

import (
	"path"
	"sync"
	"time"
)

// limiter enforces per-tool sliding-window rate limits. Every checked tool
// call counts against the window, including calls that end up blocked by a
// pattern rule, so a caller cannot reset the budget by tripping other rules.
type limiter struct {
	limits []RateLimit
	mu     sync.Mutex
	calls  map[string][]time.Time
	now    func() time.Time
}

func newLimiter(limits []RateLimit) *limiter {
	return &limiter{
		limits: limits,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// record registers one invocation of the tool and reports the rate limit it
// exceeded, if any.
func (l *limiter) record(tool string) (RateLimit, bool) {
	rl, ok := l.limitFor(tool)
	if !ok {
		return RateLimit{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := time.Duration(rl.WindowSeconds) * time.Second
	cutoff := now.Add(-window)

	kept := l.calls[tool][:0]
	for _, t := range l.calls[tool] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	l.calls[tool] = kept

	if len(kept) > rl.Max {
		return rl, true
	}
	return RateLimit{}, false
}

func (l *limiter) limitFor(tool string) (RateLimit, bool) {
	for _, rl := range l.limits {
		if ok, _ := path.Match(rl.ToolGlob, tool); ok {
			return rl, true
		}
	}
	return RateLimit{}, false
}
