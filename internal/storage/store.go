package storage

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"pizzeria/internal/apperr"
)

// Store is an in-memory, table-per-kind object store with auto-increment
// identities. It must be connected before use. Every entity crossing the
// store boundary is cloned, so callers never alias stored rows.
type Store struct {
	mu        sync.RWMutex
	connected bool
	tables    map[Kind]map[int64]Entity
	seq       *Sequence
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tables: make(map[Kind]map[int64]Entity),
		seq:    NewSequence(),
		logger: logger,
	}
}

// Connect marks the store as connected. It always succeeds.
func (s *Store) Connect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		s.logger.Info("store connected")
	}
	s.connected = true
	return true
}

func (s *Store) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		s.logger.Info("store disconnected")
	}
	s.connected = false
}

func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.connected
}

// Save inserts e, assigning an identity first when e has none. An entity that
// already carries an identity is upserted.
func (s *Store) Save(e Entity) (Entity, error) {
	if isNil(e) {
		return nil, fmt.Errorf("save: nil entity: %w", apperr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("save %s: %w", e.Kind(), apperr.ErrNotConnected)
	}

	kind := e.Kind()
	if e.EntityID() == 0 {
		e.SetEntityID(s.seq.Next(kind))
	} else {
		s.seq.Observe(kind, e.EntityID())
	}

	table, ok := s.tables[kind]
	if !ok {
		table = make(map[int64]Entity)
		s.tables[kind] = table
	}
	table[e.EntityID()] = e.Clone()

	s.logger.Debug("row saved", "kind", kind, "id", e.EntityID())
	return e.Clone(), nil
}

// FindByID reports false when no row exists for kind/id.
func (s *Store) FindByID(kind Kind, id int64) (Entity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, false, fmt.Errorf("find %s %d: %w", kind, id, apperr.ErrNotConnected)
	}

	row, ok := s.tables[kind][id]
	if !ok {
		return nil, false, nil
	}
	return row.Clone(), true, nil
}

// Update replaces an existing row wholesale.
func (s *Store) Update(e Entity) (Entity, error) {
	if isNil(e) {
		return nil, fmt.Errorf("update: nil entity: %w", apperr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind, id := e.Kind(), e.EntityID()
	if !s.connected {
		return nil, fmt.Errorf("update %s %d: %w", kind, id, apperr.ErrNotConnected)
	}
	if id == 0 {
		return nil, fmt.Errorf("update %s: entity has no identity: %w", kind, apperr.ErrValidation)
	}

	table := s.tables[kind]
	if _, ok := table[id]; !ok {
		return nil, fmt.Errorf("update %s %d: %w", kind, id, apperr.ErrNotFound)
	}
	table[id] = e.Clone()

	s.logger.Debug("row updated", "kind", kind, "id", id)
	return e.Clone(), nil
}

// Delete reports whether a row existed and was removed.
func (s *Store) Delete(kind Kind, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return false, fmt.Errorf("delete %s %d: %w", kind, id, apperr.ErrNotConnected)
	}

	table := s.tables[kind]
	if _, ok := table[id]; !ok {
		return false, nil
	}
	delete(table, id)

	s.logger.Debug("row deleted", "kind", kind, "id", id)
	return true, nil
}

// FindAll returns every row of kind in no particular order.
func (s *Store) FindAll(kind Kind) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, fmt.Errorf("find all %s: %w", kind, apperr.ErrNotConnected)
	}

	table := s.tables[kind]
	rows := make([]Entity, 0, len(table))
	for _, row := range table {
		rows = append(rows, row.Clone())
	}
	return rows, nil
}

func (s *Store) Count(kind Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return 0, fmt.Errorf("count %s: %w", kind, apperr.ErrNotConnected)
	}
	return len(s.tables[kind]), nil
}

// isNil also catches a typed nil pointer held in the interface.
func isNil(e Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Get is FindByID with the row converted to its concrete type.
func Get[T Entity](s *Store, kind Kind, id int64) (T, bool, error) {
	var zero T

	row, ok, err := s.FindByID(kind, id)
	if err != nil || !ok {
		return zero, ok, err
	}

	typed, ok := row.(T)
	if !ok {
		return zero, false, fmt.Errorf("find %s %d: unexpected row type %T: %w", kind, id, row, apperr.ErrValidation)
	}
	return typed, true, nil
}

// List is FindAll with every row converted to its concrete type.
func List[T Entity](s *Store, kind Kind) ([]T, error) {
	rows, err := s.FindAll(kind)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		typed, ok := row.(T)
		if !ok {
			return nil, fmt.Errorf("find all %s: unexpected row type %T: %w", kind, row, apperr.ErrValidation)
		}
		out = append(out, typed)
	}
	return out, nil
}
