package lock

import (
	"sync"
	"time"

	"github.com/0chain/errors"
)

// GuardCleanInterval start to clean unused guards at specified interval
var GuardCleanInterval = 10 * time.Minute

// ErrAlreadyRunning is returned by Acquire when a guard for the same
// (subject, operation) pair is currently held.
var ErrAlreadyRunning = errors.New("already_running", "an operation for this subject is already in flight")

var (
	guardPool = make(map[string]*guard)
	poolMutex sync.Mutex
)

// guard serializes logically-overlapping invocations for one subject across
// the suspension points of a single operation. It is not a mutex: a second
// acquire fails immediately instead of blocking.
type guard struct {
	// key guard key in pool
	key string
	// held whether some handle currently owns the guard
	held bool
}

// Handle is the scoped ownership of a guard. Release is idempotent, so
// `defer h.Release()` guarantees release on every exit path.
type Handle struct {
	g    *guard
	once sync.Once
}

// Acquire takes the guard for (subject, operation), or fails immediately
// with ErrAlreadyRunning if it is held.
func Acquire(subject, operation string) (*Handle, error) {
	guardKey := subject + ":" + operation
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if g, ok := guardPool[guardKey]; ok {
		if g.held {
			return nil, errors.Throw(ErrAlreadyRunning, guardKey)
		}
		g.held = true
		return &Handle{g: g}, nil
	}

	g := &guard{key: guardKey, held: true}
	guardPool[guardKey] = g

	return &Handle{g: g}, nil
}

// Release gives the guard back. Calling it more than once is a no-op.
func (h *Handle) Release() {
	h.once.Do(func() {
		poolMutex.Lock()
		h.g.held = false
		poolMutex.Unlock()
	})
}

func init() {
	go startWorker()
}

func cleanUnusedGuards() {
	poolMutex.Lock()

	for k, g := range guardPool {
		if !g.held {
			delete(guardPool, k)
		}
	}

	poolMutex.Unlock()
}

func startWorker() {
	for {
		time.Sleep(GuardCleanInterval)

		cleanUnusedGuards()
	}
}
