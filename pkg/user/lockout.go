package user

import (
	"sync"
	"time"

	"micecheckin/pkg/cache"
)

const (
	maxLoginAttempts = 5
	lockDuration     = 15 * time.Minute
)

// Lockout counts failed logins per email and locks the email for
// lockDuration once maxLoginAttempts is reached.
type Lockout struct {
	mu       sync.Mutex
	attempts *cache.Memory[int]
	locked   *cache.Memory[struct{}]
	max      int
	lockFor  time.Duration
}

func NewLockout(opts ...cache.Option) *Lockout {
	return &Lockout{
		attempts: cache.New[int](opts...),
		locked:   cache.New[struct{}](opts...),
		max:      maxLoginAttempts,
		lockFor:  lockDuration,
	}
}

func (l *Lockout) Locked(email string) bool {
	_, ok := l.locked.Get(email)
	return ok
}

func (l *Lockout) Fail(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, _ := l.attempts.Get(email)
	n++
	if n >= l.max {
		l.attempts.Delete(email)
		l.locked.Set(email, struct{}{}, l.lockFor)
		return
	}
	l.attempts.Set(email, n, l.lockFor)
}

func (l *Lockout) Reset(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts.Delete(email)
	l.locked.Delete(email)
}

func (l *Lockout) Close() {
	l.attempts.Close()
	l.locked.Close()
}
