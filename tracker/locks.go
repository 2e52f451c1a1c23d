package tracker

import (
	"context"
	"sync"
)

// guildLocks serializes read-modify-write cycles per guild id.
type guildLocks struct {
	mu    sync.Mutex
	locks map[string]*guildLock
}

type guildLock struct {
	sem  chan struct{}
	refs int
}

func newGuildLocks() *guildLocks {
	return &guildLocks{locks: make(map[string]*guildLock)}
}

// lock blocks until the guild is free or ctx is done. The returned func
// releases it.
func (l *guildLocks) lock(ctx context.Context, guildID string) (func(), error) {
	l.mu.Lock()
	gl, ok := l.locks[guildID]
	if !ok {
		gl = &guildLock{sem: make(chan struct{}, 1)}
		l.locks[guildID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	select {
	case gl.sem <- struct{}{}:
		return func() {
			<-gl.sem
			l.release(guildID, gl)
		}, nil
	case <-ctx.Done():
		l.release(guildID, gl)
		return nil, ctx.Err()
	}
}

func (l *guildLocks) release(guildID string, gl *guildLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	gl.refs--
	if gl.refs == 0 {
		delete(l.locks, guildID)
	}
}
