// Package session holds the process-wide current dataset. Readers take one
// immutable snapshot per request; writers build a replacement off to the
// side and publish it with a single atomic swap.
package session

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"tabviz/internal/dataprocessing"
	"tabviz/internal/dataset"
)

// ErrNoDataset is returned by Require before the first load
var ErrNoDataset = errors.New("no dataset loaded")

// Fingerprint combines the content hash of a source with the settings that
// shaped its cleaned frame. The same bytes cleaned under different settings
// never share a fingerprint.
func Fingerprint(content uint64, settings []byte) uint64 {
	buf := binary.LittleEndian.AppendUint64(make([]byte, 0, 8+len(settings)), content)
	return xxh3.Hash(append(buf, settings...))
}

// Snapshot is an immutable cleaned dataset. Nothing may modify the frame or
// the log once the snapshot is published.
type Snapshot struct {
	ID          uuid.UUID
	Source      string
	Fingerprint uint64
	Frame       *dataset.Frame
	Log         dataprocessing.CleaningLog
	LoadedAt    time.Time
	// Parent is the snapshot this one was derived from, uuid.Nil for a fresh load
	Parent uuid.UUID
}

// NewSnapshot stamps a new snapshot with a fresh id
func NewSnapshot(source string, fingerprint uint64, frame *dataset.Frame, log dataprocessing.CleaningLog) *Snapshot {
	return &Snapshot{
		ID:          uuid.New(),
		Source:      source,
		Fingerprint: fingerprint,
		Frame:       frame,
		Log:         log,
		LoadedAt:    time.Now().UTC(),
	}
}

// Derive returns a child snapshot with a new frame and extra log entries.
// The fingerprint changes so cached renderings of the parent never match.
func (s *Snapshot) Derive(frame *dataset.Frame, extra dataprocessing.CleaningLog) *Snapshot {
	log := make(dataprocessing.CleaningLog, 0, len(s.Log)+len(extra))
	log = append(log, s.Log...)
	log = append(log, extra...)
	child := NewSnapshot(s.Source, s.Fingerprint, frame, log)
	child.Parent = s.ID
	child.Fingerprint = Fingerprint(s.Fingerprint, child.ID[:])
	return child
}

// Store publishes snapshots
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Current returns the published snapshot, nil before the first load
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Require returns the published snapshot or ErrNoDataset
func (s *Store) Require() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoDataset
	}
	return snap, nil
}

// Version counts published snapshots
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Update serializes writers. build receives the current snapshot (possibly
// nil) and returns its replacement; on error nothing is published.
func (s *Store) Update(build func(prev *Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := build(s.current.Load())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, errors.New("snapshot builder returned nil")
	}
	s.current.Store(next)
	s.version.Add(1)
	return next, nil
}
