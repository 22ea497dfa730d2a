package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gridworld-editor/backend/internal/index"
	"github.com/gridworld-editor/backend/internal/logging"
	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/parser"
	"github.com/gridworld-editor/backend/internal/storage"
)

// MaxSessions limits concurrently open genomes
const MaxSessions = 10

// SessionMaxAge is how long an idle session is kept before cleanup
const SessionMaxAge = 30 * time.Minute

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrTooManySessions  = errors.New("too many open sessions with unsaved changes")
	ErrNodeNotFound     = errors.New("node not found")
	ErrInvalidOperation = errors.New("invalid operation")
)

// ChangeListener is called after a session changed, outside the manager lock.
type ChangeListener func(event string, session models.EditSession)

// Change events passed to listeners.
const (
	EventOpened  = "session:opened"
	EventUpdated = "genome:updated"
	EventSaved   = "genome:saved"
	EventClosed  = "session:closed"
)

// Manager holds the genomes currently open for editing.
type Manager struct {
	sessions    map[string]*SessionState
	mu          sync.RWMutex
	store       storage.Store
	log         *logging.Logger
	maxSessions int
	indexOpts   index.Options

	listenersMu sync.RWMutex
	listeners   []ChangeListener
}

// SessionState holds the session metadata and the open genome.
type SessionState struct {
	Session      *models.EditSession
	Genome       *models.CreatureDNA
	Index        *index.GeneIndex // built on first search
	LastAccessed time.Time
}

// NewManager creates a session manager backed by store.
func NewManager(store storage.Store, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Discard()
	}
	return &Manager{
		sessions:    make(map[string]*SessionState),
		store:       store,
		log:         log.With("Session"),
		maxSessions: MaxSessions,
	}
}

// SetMaxSessions overrides MaxSessions.
func (m *Manager) SetMaxSessions(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// SetIndexOptions configures the gene index built for searches.
func (m *Manager) SetIndexOptions(opts index.Options) {
	m.mu.Lock()
	m.indexOpts = opts
	m.mu.Unlock()
}

// OnChange registers a listener for session events.
func (m *Manager) OnChange(fn ChangeListener) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

func (m *Manager) notify(event string, s models.EditSession) {
	m.listenersMu.RLock()
	listeners := append([]ChangeListener(nil), m.listeners...)
	m.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(event, s)
	}
}

// Open reads and parses a stored genome file. A file that fails to parse
// opens no session.
func (m *Manager) Open(fileID string) (*models.EditSession, error) {
	info, err := m.store.Get(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	content, err := m.store.ReadContent(fileID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fileID, err)
	}

	start := time.Now()
	dna, err := parser.ParseCreatureDNA(string(content))
	if err != nil {
		m.log.Warnf("Failed to parse %s (%s): %v", info.Name, shortID(fileID), err)
		return nil, fmt.Errorf("parsing %s: %w", info.Name, err)
	}

	if err := m.cleanupOldSessionsIfNeeded(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	sess := models.NewEditSession(id, fileID, info.Name)
	sess.OpenedAt = time.Now().UnixMilli()
	sess.UpdateCounts(dna)

	m.mu.Lock()
	m.sessions[id] = &SessionState{
		Session:      sess,
		Genome:       dna,
		LastAccessed: time.Now(),
	}
	snapshot := *sess
	m.mu.Unlock()

	m.log.Infof("Opened %s as %s: %d cells, %d DNA blocks, %d genes in %s",
		info.Name, shortID(id), sess.CellCount, sess.DnaCount, sess.GeneCount, time.Since(start))
	m.notify(EventOpened, snapshot)
	return &snapshot, nil
}

// GetSession returns a copy of the session metadata.
func (m *Manager) GetSession(id string) (*models.EditSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	return &snapshot, true
}

// ListSessions returns copies of all open sessions.
func (m *Manager) ListSessions() []models.EditSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.EditSession, 0, len(m.sessions))
	for _, state := range m.sessions {
		out = append(out, *state.Session)
	}
	return out
}

// TouchSession updates the last accessed time of a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// View runs fn with read access to the open genome.
func (m *Manager) View(id string, fn func(dna *models.CreatureDNA) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(state.Genome)
}

// Genome returns a deep copy of the open genome.
func (m *Manager) Genome(id string) (*models.CreatureDNA, error) {
	var out *models.CreatureDNA
	err := m.View(id, func(dna *models.CreatureDNA) error {
		out = dna.Clone()
		return nil
	})
	return out, err
}

// Text serializes the open genome.
func (m *Manager) Text(id string) (string, error) {
	var out string
	err := m.View(id, func(dna *models.CreatureDNA) error {
		out = parser.WriteCreatureDNA(dna)
		return nil
	})
	return out, err
}

// Update applies fn to a copy of the genome and keeps the copy only when fn
// returns nil and the edited genome still reads back unchanged from its text.
func (m *Manager) Update(id string, fn func(dna *models.CreatureDNA) error) (*models.EditSession, error) {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	working := state.Genome.Clone()
	if err := fn(working); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if _, err := parser.VerifyRoundTrip(working); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrInvalidOperation, err)
	}
	snapshot := m.commitLocked(state, working)
	m.mu.Unlock()

	m.notify(EventUpdated, snapshot)
	return &snapshot, nil
}

// ReplaceText re-parses the genome from text. On a parse error the open
// genome is left untouched.
func (m *Manager) ReplaceText(id, text string) (*models.EditSession, error) {
	dna, err := parser.ParseCreatureDNA(text)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	snapshot := m.commitLocked(state, dna)
	m.mu.Unlock()

	m.notify(EventUpdated, snapshot)
	return &snapshot, nil
}

func (m *Manager) commitLocked(state *SessionState, dna *models.CreatureDNA) models.EditSession {
	state.Genome = dna
	state.LastAccessed = time.Now()
	state.Session.Revision++
	state.Session.Status = models.SessionStatusDirty
	state.Session.UpdateCounts(dna)
	return *state.Session
}

// Save writes the serialized genome back to its file.
func (m *Manager) Save(id string) (*models.EditSession, error) {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	text := parser.WriteCreatureDNA(state.Genome)
	if _, err := m.store.WriteContent(state.Session.FileID, []byte(text)); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("saving %s: %w", state.Session.FileName, err)
	}
	snapshot := m.markSavedLocked(state)
	m.mu.Unlock()

	m.log.Infof("Saved %s (%d bytes)", snapshot.FileName, len(text))
	m.notify(EventSaved, snapshot)
	return &snapshot, nil
}

// SaveAs writes the genome to a new file and binds the session to it.
func (m *Manager) SaveAs(id, name string) (*models.EditSession, *models.FileInfo, error) {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}

	text := parser.WriteCreatureDNA(state.Genome)
	info, err := m.store.SaveBytes(name, []byte(text))
	if err != nil {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("saving as %s: %w", name, err)
	}
	state.Session.FileID = info.ID
	state.Session.FileName = info.Name
	snapshot := m.markSavedLocked(state)
	m.mu.Unlock()

	m.log.Infof("Saved %s as new file %s", snapshot.FileName, shortID(info.ID))
	m.notify(EventSaved, snapshot)
	return &snapshot, info, nil
}

func (m *Manager) markSavedLocked(state *SessionState) models.EditSession {
	state.LastAccessed = time.Now()
	state.Session.Status = models.SessionStatusOpen
	state.Session.SavedAt = time.Now().UnixMilli()
	return *state.Session
}

// Close discards an open session without saving.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		m.closeLocked(id, state)
	}
	m.mu.Unlock()

	if ok {
		m.notify(EventClosed, *state.Session)
	}
	return ok
}

func (m *Manager) closeLocked(id string, state *SessionState) {
	if state.Index != nil {
		if err := state.Index.Close(); err != nil {
			m.log.Warnf("Closing index of %s: %v", shortID(id), err)
		}
	}
	delete(m.sessions, id)
}

// CleanupOldSessions closes sessions idle for longer than maxAge. Sessions
// with unsaved changes are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	now := time.Now()
	var closed []models.EditSession
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusDirty {
			continue
		}
		if now.Sub(state.LastAccessed) > maxAge {
			m.log.Infof("Cleaning up idle session %s", shortID(id))
			m.closeLocked(id, state)
			closed = append(closed, *state.Session)
		}
	}
	m.mu.Unlock()

	for _, s := range closed {
		m.notify(EventClosed, s)
	}
	return len(closed)
}

// cleanupOldSessionsIfNeeded evicts the least recently used clean session
// when the session limit is reached.
func (m *Manager) cleanupOldSessionsIfNeeded() error {
	m.mu.Lock()
	if len(m.sessions) < m.maxSessions {
		m.mu.Unlock()
		return nil
	}

	var oldestID string
	var oldest time.Time
	for id, state := range m.sessions {
		if state.Session.Status == models.SessionStatusDirty {
			continue
		}
		if oldestID == "" || state.LastAccessed.Before(oldest) {
			oldestID = id
			oldest = state.LastAccessed
		}
	}
	if oldestID == "" {
		m.mu.Unlock()
		return ErrTooManySessions
	}

	m.log.Infof("Session limit reached, evicting %s", shortID(oldestID))
	evicted := m.sessions[oldestID]
	m.closeLocked(oldestID, evicted)
	m.mu.Unlock()

	m.notify(EventClosed, *evicted.Session)
	return nil
}

// Search queries the gene index of a session, rebuilding it when the genome changed.
func (m *Manager) Search(ctx context.Context, id string, q index.Query) ([]index.Hit, error) {
	idx, err := m.freshIndex(ctx, id)
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, q)
}

// TypeCounts returns per-neuron-type counts of a session's genome.
func (m *Manager) TypeCounts(ctx context.Context, id string) ([]index.TypeCount, error) {
	idx, err := m.freshIndex(ctx, id)
	if err != nil {
		return nil, err
	}
	return idx.TypeCounts(ctx)
}

func (m *Manager) freshIndex(ctx context.Context, id string) (*index.GeneIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	state.LastAccessed = time.Now()

	if state.Index == nil {
		idx, err := index.NewGeneIndex(m.indexOpts)
		if err != nil {
			return nil, fmt.Errorf("creating gene index: %w", err)
		}
		state.Index = idx
	}
	if state.Index.Revision() != state.Session.Revision {
		start := time.Now()
		if err := state.Index.Load(ctx, state.Genome, state.Session.Revision); err != nil {
			return nil, fmt.Errorf("loading gene index: %w", err)
		}
		m.log.Debugf("Indexed %s revision %d: %d rows in %s",
			shortID(id), state.Session.Revision, state.Index.Len(), time.Since(start))
	}
	return state.Index, nil
}

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
