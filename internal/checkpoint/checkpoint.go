// Package checkpoint persists a single run snapshot in a kv.Store so an
// interrupted run can resume.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/kv"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "paused_processing_state"

// ErrCorrupt is returned by Load when the stored value cannot be decoded or
// fails its checksum.
var ErrCorrupt = eris.New("checkpoint: corrupt")

// envelopeVersion is bumped when the payload layout changes incompatibly.
const envelopeVersion = 1

type envelope struct {
	Version  int             `json:"version"`
	SavedAt  time.Time       `json:"saved_at"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Info describes a stored checkpoint without decoding its payload.
type Info struct {
	SavedAt time.Time
	Size    int
}

// Store reads and writes one checkpoint key.
type Store struct {
	kv  kv.Store
	key string
	now func() time.Time
}

// New returns a checkpoint Store. An empty key uses DefaultKey.
func New(store kv.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: store, key: key, now: time.Now}
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Save encodes v and writes it as a single key upsert.
func (s *Store) Save(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode payload")
	}
	env := envelope{
		Version:  envelopeVersion,
		SavedAt:  s.now().UTC(),
		Checksum: checksum(payload),
		Payload:  payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode envelope")
	}
	if err := s.kv.Set(ctx, map[string][]byte{s.key: data}); err != nil {
		return eris.Wrap(err, "checkpoint: save")
	}
	return nil
}

// Load decodes the stored checkpoint into v. It reports false when no
// checkpoint exists and wraps ErrCorrupt when one exists but is unusable.
func (s *Store) Load(ctx context.Context, v any) (bool, error) {
	env, ok, err := s.read(ctx)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return true, eris.Wrapf(ErrCorrupt, "decode payload: %v", err)
	}
	return true, nil
}

// Stat reports whether a valid checkpoint exists and when it was saved.
func (s *Store) Stat(ctx context.Context) (*Info, error) {
	env, ok, err := s.read(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return &Info{SavedAt: env.SavedAt, Size: len(env.Payload)}, nil
}

// Clear removes the checkpoint. Clearing a missing checkpoint is not an error.
func (s *Store) Clear(ctx context.Context) error {
	return eris.Wrap(s.kv.Remove(ctx, s.key), "checkpoint: clear")
}

func (s *Store) read(ctx context.Context) (*envelope, bool, error) {
	vals, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, false, eris.Wrap(err, "checkpoint: load")
	}
	data, ok := vals[s.key]
	if !ok {
		return nil, false, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, true, eris.Wrapf(ErrCorrupt, "decode envelope: %v", err)
	}
	if env.Version != envelopeVersion {
		return nil, true, eris.Wrapf(ErrCorrupt, "unsupported version %d", env.Version)
	}
	if checksum(env.Payload) != env.Checksum {
		return nil, true, eris.Wrap(ErrCorrupt, "checksum mismatch")
	}
	return &env, true, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
