package refinement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

type flight struct {
	id          uint64
	fingerprint string
	ctx         context.Context
	cancel      context.CancelFunc
	// waiters counts joined requests, interested every caller still waiting
	waiters    int
	interested int
}

// inflight allows one run per workflow phase. A request identical to the
// running one joins it and receives the same outcome. The shared run is
// detached from any single caller and is cancelled only once every caller
// has stopped waiting for it.
type inflight struct {
	mu      sync.Mutex
	running map[string]*flight
	nextID  uint64
	group   singleflight.Group
}

func phaseKey(workflowID, phaseID string) string {
	return workflowID + "\x00" + phaseID
}

func fingerprint(response string, maxIterations int) string {
	sum := sha256.Sum256([]byte(response))
	return hex.EncodeToString(sum[:]) + ":" + strconv.Itoa(maxIterations)
}

// do runs fn unless another request holds key. It returns false without
// calling fn when a different request is running for key.
//
// A caller whose ctx ends while others still wait gets an internal error
// outcome at once. The last caller to give up cancels the run and receives
// its outcome once it winds down.
func (f *inflight) do(ctx context.Context, key, fp string, fn func(ctx context.Context) Outcome) (Outcome, bool) {
	f.mu.Lock()
	if f.running == nil {
		f.running = make(map[string]*flight)
	}
	current, busy := f.running[key]
	if busy && (current.fingerprint != fp || current.interested == 0) {
		f.mu.Unlock()
		return Outcome{}, false
	}
	joined := busy
	if joined {
		current.waiters++
	} else {
		f.nextID++
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		current = &flight{id: f.nextID, fingerprint: fp, ctx: runCtx, cancel: cancel}
		f.running[key] = current
	}
	current.interested++

	// Joining happens under mu and the leader releases key under mu before
	// its result is delivered, so a waiter that found the flight always
	// shares its call. The flight id keeps a later leader from joining a
	// finished call.
	ch := f.group.DoChan(key+"\x00"+strconv.FormatUint(current.id, 10), func() (v interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				v = Outcome{Kind: OutcomeInternalError, Err: fmt.Errorf("refinement run panicked: %v", r)}
			}
			f.mu.Lock()
			if f.running[key] == current {
				delete(f.running, key)
			}
			f.mu.Unlock()
			current.cancel()
		}()
		return fn(current.ctx), nil
	})
	f.mu.Unlock()

	select {
	case res := <-ch:
		f.leave(current, joined)
		return res.Val.(Outcome), true
	case <-ctx.Done():
	}

	if f.leave(current, joined) {
		current.cancel()
		res := <-ch
		return res.Val.(Outcome), true
	}
	return Outcome{Kind: OutcomeInternalError, Err: fmt.Errorf("stopped waiting for refinement: %w", ctx.Err())}, true
}

// leave drops a caller from the flight and reports whether it was the last
// one waiting
func (f *inflight) leave(current *flight, joined bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if joined {
		current.waiters--
	}
	current.interested--
	return current.interested == 0
}

// waiting returns the number of requests joined to the flight for key
func (f *inflight) waiting(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if current, ok := f.running[key]; ok {
		return current.waiters
	}
	return 0
}
