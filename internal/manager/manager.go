package manager

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/engine"
	"chatd/internal/session"
	"chatd/internal/store"
	"chatd/pkg/types"
)

type Manager struct {
	mu           sync.RWMutex
	state        State
	cur          *ModelInfo
	err          string
	registry     []types.Model
	defaultModel string

	sessCfg        session.Config
	modelParams    engine.ModelParams
	loader         ModelLoader
	store          *store.Store
	persistTimeout time.Duration
	log            zerolog.Logger
	metrics        *session.Metrics
	recovery       session.RecoveryFunc
	onFatal        engine.FatalHandler
	publisher      EventPublisher

	// loadMu serializes EnsureModel, Unload, Close and Clear.
	loadMu sync.Mutex
	model  engine.Model
	sess   *session.Session
	saver  *persister

	opSeq         atomic.Uint64
	loads         atomic.Uint64
	pastEvictions atomic.Uint64
	startTime     time.Time
}

// Ready reports whether a model is loaded and serving.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.sess != nil
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// return a shallow copy to avoid external mutation
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// SetEventPublisher installs p; nil restores the no-op publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

func (m *Manager) publish(name, modelID string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, ModelID: modelID, Fields: fields})
}

func (m *Manager) nextOpID() string { return fmt.Sprintf("op-%d", m.opSeq.Add(1)) }

func (m *Manager) setState(st State, errMsg string) {
	m.mu.Lock()
	m.state = st
	m.err = errMsg
	m.mu.Unlock()
}
