package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/session"
	"chatd/internal/store"
)

// persister saves the session checkpoint in the background whenever a turn
// finishes. Notifications that arrive while a save is running coalesce into
// one more save.
type persister struct {
	store   *store.Store
	convID  string
	modelID string
	timeout time.Duration
	log     zerolog.Logger

	sess *session.Session
	kick chan struct{}
	done chan struct{}

	mu      sync.Mutex
	stopped bool
}

func newPersister(st *store.Store, convID, modelID string, timeout time.Duration, log zerolog.Logger) *persister {
	return &persister{
		store:   st,
		convID:  convID,
		modelID: modelID,
		timeout: timeout,
		log:     log,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// start binds the session and launches the save loop.
func (p *persister) start(sess *session.Session) {
	p.sess = sess
	go p.loop()
}

func (p *persister) loop() {
	defer close(p.done)
	for range p.kick {
		p.save()
	}
}

// notify is the session finish hook; it never blocks the worker. Calls after
// stop are ignored.
func (p *persister) notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// stop waits for pending saves, then writes a final checkpoint. The session
// must already be closed so its state no longer changes.
func (p *persister) stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.kick)
	p.mu.Unlock()
	<-p.done
	p.save()
}

func (p *persister) save() {
	if p.store == nil || p.sess == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	cp := p.sess.Checkpoint()
	if err := p.store.SaveCheckpoint(ctx, p.convID, p.modelID, cp); err != nil {
		p.log.Error().Err(err).Str("conversation", p.convID).Msg("persist checkpoint")
	}
}
