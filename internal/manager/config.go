package manager

import (
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/engine"
	"chatd/internal/session"
	"chatd/internal/store"
	"chatd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultPersistTimeout = 10 * time.Second
)

// ModelLoader opens a model file. engine.Load is used when unset.
type ModelLoader func(path string, params engine.ModelParams) (engine.Model, error)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Registry     []types.Model
	DefaultModel string

	Session     session.Config
	ModelParams engine.ModelParams
	Loader      ModelLoader

	// Store persists conversations; nil keeps them in memory only.
	Store          *store.Store
	PersistTimeout time.Duration

	Logger   *zerolog.Logger
	Metrics  *session.Metrics
	Recovery session.RecoveryFunc
	// FatalHandler replaces the engine's default (log and exit).
	FatalHandler engine.FatalHandler
	Publisher    EventPublisher
}

// New constructs a Manager from Config. No model is loaded until
// EnsureModel or the first chat call.
func New(cfg Config) *Manager {
	m := &Manager{
		state:          StateUnloaded,
		registry:       cfg.Registry,
		defaultModel:   cfg.DefaultModel,
		sessCfg:        cfg.Session,
		modelParams:    cfg.ModelParams,
		loader:         cfg.Loader,
		store:          cfg.Store,
		persistTimeout: cfg.PersistTimeout,
		log:            zerolog.Nop(),
		metrics:        cfg.Metrics,
		recovery:       cfg.Recovery,
		onFatal:        cfg.FatalHandler,
		publisher:      cfg.Publisher,
		startTime:      time.Now(),
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	}
	if m.loader == nil {
		m.loader = engine.Load
	}
	if m.persistTimeout <= 0 {
		m.persistTimeout = defaultPersistTimeout
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	return m
}
