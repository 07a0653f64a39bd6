package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/parse"
	"github.com/jamesokelly/jobsheet-importer/internal/reconcile"
	"github.com/jamesokelly/jobsheet-importer/internal/table"
)

// Manager builds sessions and enforces the single in-flight rule: a
// second import started while one is active is refused, not interleaved.
type Manager struct {
	log       *zap.SugaredLogger
	store     Store
	extractor Extractor
	tmpl      table.Template
	rowTol    float64
	scoring   common.ScoringConfig

	mu     sync.Mutex
	active bool
}

// NewManager wires the pipeline dependencies shared by all sessions.
func NewManager(log *zap.SugaredLogger, store Store, extractor Extractor, tmpl table.Template, rowTolerance float64, scoring common.ScoringConfig) *Manager {
	return &Manager{
		log:       log,
		store:     store,
		extractor: extractor,
		tmpl:      tmpl,
		rowTol:    rowTolerance,
		scoring:   scoring,
	}
}

// Begin creates a new idle session, or refuses with ErrImportInFlight.
// The slot is freed when the session completes, fails, or is discarded.
func (m *Manager) Begin(progress ProgressFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil, common.ErrImportInFlight
	}
	m.active = true

	var once sync.Once
	s := &Session{
		id:            uuid.New(),
		log:           m.log,
		store:         m.store,
		extractor:     m.extractor,
		reconstructor: table.NewReconstructor(m.log, m.tmpl, m.rowTol),
		parser:        parse.NewParser(m.log),
		scorer:        parse.NewScorer(m.scoring),
		reconciler:    reconcile.NewReconciler(m.log),
		progress:      progress,
		status:        constants.StatusIdle,
	}
	s.release = func() {
		once.Do(func() {
			m.mu.Lock()
			m.active = false
			m.mu.Unlock()
		})
	}
	return s, nil
}
