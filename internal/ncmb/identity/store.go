package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/apierr"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/session"
)

// Kind selects which identity document a call refers to.
type Kind string

const (
	KindUser         Kind = "currentUser"
	KindInstallation Kind = "currentInstallation"
)

const filePermissions = 0600

// Document is a flat identity record as stored on disk.
type Document map[string]any

// ObjectID returns the record id, empty for an anonymous document.
func (d Document) ObjectID() string {
	if id, ok := d["objectId"].(string); ok {
		return id
	}
	return ""
}

// Store persists the current-user and current-installation documents
// under dir, one JSON file per kind, with an in-memory cache in front.
// Every write is a merge: fields present in the old document but
// absent from the update survive. A single lock per kind covers the
// whole read-merge-write sequence, so a concurrent reader never sees a
// document mid-merge.
type Store struct {
	dir  string
	sess *session.Session
	log  *slog.Logger

	mu    map[Kind]*sync.Mutex
	cache map[Kind]Document
}

func NewStore(dir string, sess *session.Session, log *slog.Logger) *Store {
	return &Store{
		dir:  dir,
		sess: sess,
		log:  log,
		mu: map[Kind]*sync.Mutex{
			KindUser:         {},
			KindInstallation: {},
		},
		cache: make(map[Kind]Document),
	}
}

// Load returns the cached document, reading it from disk on first
// access. A missing or unreadable file yields an empty document, not
// an error.
func (s *Store) Load(kind Kind) Document {
	s.mu[kind].Lock()
	defer s.mu[kind].Unlock()
	return clone(s.loadLocked(kind))
}

func (s *Store) loadLocked(kind Kind) Document {
	if doc, ok := s.cache[kind]; ok {
		return doc
	}

	doc := Document{}
	data, err := os.ReadFile(s.path(kind))
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &doc); err != nil {
			// Corrupt file: start over rather than fail every call.
			s.log.Warn("identity document is corrupt, resetting",
				"kind", kind, "error", err)
			_ = os.Remove(s.path(kind))
			doc = Document{}
		}
	case !os.IsNotExist(err):
		s.log.Warn("identity document unreadable", "kind", kind, "error", err)
	}

	s.cache[kind] = doc
	return doc
}

// WriteMerge merges responseBody over a copy of requestParams
// (response wins per key), merges that onto the existing document (new
// wins, untouched old keys survive), persists the result and replaces
// the cache. The merged document is returned.
func (s *Store) WriteMerge(kind Kind, requestParams, responseBody Document) (Document, error) {
	s.mu[kind].Lock()
	defer s.mu[kind].Unlock()

	update := clone(requestParams)
	for k, v := range responseBody {
		update[k] = cloneValue(v)
	}

	merged := clone(s.loadLocked(kind))
	for k, v := range update {
		merged[k] = v
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal identity document: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(s.path(kind), data, filePermissions); err != nil {
		return nil, fmt.Errorf("write identity document: %w", err)
	}

	s.cache[kind] = merged
	s.log.Debug("identity document saved", "kind", kind, "objectId", merged.ObjectID())
	return clone(merged), nil
}

// Clear deletes the on-disk document and resets the cache. Clearing
// the user kind also drops the ambient login state. Safe to call when
// nothing is stored.
func (s *Store) Clear(kind Kind) error {
	s.mu[kind].Lock()
	defer s.mu[kind].Unlock()

	if err := os.Remove(s.path(kind)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove identity document: %w", err)
	}
	s.cache[kind] = Document{}

	if kind == KindUser {
		s.sess.Clear()
	}
	s.log.Debug("identity cleared", "kind", kind)
	return nil
}

// HandleNotFound clears the stored identity when an operation against
// its own id came back "not found". The original error is always
// returned so the caller still observes it.
func (s *Store) HandleNotFound(kind Kind, objectID string, err error) error {
	if err == nil || objectID == "" {
		return err
	}
	if !apierr.HasCode(err, apierr.CodeDataNotFound) {
		return err
	}
	if s.Load(kind).ObjectID() != objectID {
		return err
	}
	if clearErr := s.Clear(kind); clearErr != nil {
		s.log.Warn("identity auto-clear failed", "kind", kind, "error", clearErr)
	}
	return err
}

func (s *Store) path(kind Kind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

// clone copies a document deeply: nested maps and slices (Date and
// GeoPoint values, arrays) must not alias the in-memory cache.
func clone(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return map[string]any(clone(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
