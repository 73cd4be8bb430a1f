// Package checkpoint persists the layered heap and runtime state as an
// opaque blob plus a journal of post-checkpoint blocks, spec.md §6
// "Persisted state". The format is node-local; the contract is only that
// restoring a checkpoint and replaying its journal yields the identical
// heap a from-genesis replay would.
//
// Journal segments are named by ksuid (teacher dependency
// segmentio/ksuid): ids are k-sortable, so the newest checkpoint is the
// lexicographically largest file, and segments can be rotated and
// garbage-collected independently of block height.
package checkpoint

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"

	"github.com/HigherOrderCO/kindelia/internal/kast"
	"github.com/HigherOrderCO/kindelia/internal/runtime"
	"github.com/HigherOrderCO/kindelia/internal/snapshot"
	"github.com/HigherOrderCO/kindelia/internal/term"
)

const (
	checkpointExt = ".ckpt"
	journalExt    = ".journal"
)

// ErrNoCheckpoint is returned by Load when the directory holds none.
var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint found")

// Image is the serialized form of one checkpoint.
type Image struct {
	ID     string
	Height uint64
	Heap   []term.LayerImage
	State  []runtime.OverlayImage
}

// Manager owns one checkpoint directory: at most one active journal
// segment, appended to after every committed block.
type Manager struct {
	dir     string
	current ksuid.KSUID
}

// NewManager opens (creating if needed) a checkpoint directory.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "checkpoint: create directory")
	}
	return &Manager{dir: dir}, nil
}

// Save writes a full checkpoint of the store and starts a fresh journal
// segment for the blocks that follow it.
func (m *Manager) Save(s *snapshot.Store) (ksuid.KSUID, error) {
	id := ksuid.New()
	if m.current != ksuid.Nil && ksuid.Compare(id, m.current) <= 0 {
		// same-second ids order by their random payload; keep the newest largest
		id = m.current.Next()
	}
	img := Image{
		ID:     id.String(),
		Height: s.Height(),
		Heap:   s.Heap().Image(),
		State:  s.State().Image(),
	}
	path := filepath.Join(m.dir, id.String()+checkpointExt)
	f, err := os.Create(path)
	if err != nil {
		return ksuid.Nil, errors.Wrap(err, "checkpoint: create blob")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(&img); err != nil {
		return ksuid.Nil, errors.Wrap(err, "checkpoint: encode blob")
	}
	m.current = id
	return id, nil
}

// Append records one committed block into the current journal segment.
// Must follow a Save (or Load) so the segment is bound to a checkpoint.
func (m *Manager) Append(b *kast.Block) error {
	if m.current == ksuid.Nil {
		return errors.New("checkpoint: no active segment; Save first")
	}
	path := filepath.Join(m.dir, m.current.String()+journalExt)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "checkpoint: open journal")
	}
	defer f.Close()
	return errors.Wrap(gob.NewEncoder(f).Encode(b), "checkpoint: append block")
}

// Load restores the newest checkpoint and returns its store together with
// the journaled blocks to replay on top of it, oldest first.
func (m *Manager) Load() (*snapshot.Store, []*kast.Block, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, nil, errors.Wrap(err, "checkpoint: read directory")
	}
	var ids []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), checkpointExt) {
			ids = append(ids, strings.TrimSuffix(e.Name(), checkpointExt))
		}
	}
	if len(ids) == 0 {
		return nil, nil, ErrNoCheckpoint
	}
	sort.Strings(ids)
	latest := ids[len(ids)-1]

	f, err := os.Open(filepath.Join(m.dir, latest+checkpointExt))
	if err != nil {
		return nil, nil, errors.Wrap(err, "checkpoint: open blob")
	}
	defer f.Close()
	var img Image
	if err := gob.NewDecoder(f).Decode(&img); err != nil {
		return nil, nil, errors.Wrap(err, "checkpoint: decode blob")
	}

	store := snapshot.NewStoreFrom(term.RestoreHeap(img.Heap), runtime.RestoreState(img.State), img.Height)

	blocks, err := m.readJournal(latest)
	if err != nil {
		return nil, nil, err
	}
	m.current, err = ksuid.Parse(latest)
	if err != nil {
		return nil, nil, errors.Wrap(err, "checkpoint: bad segment id")
	}
	return store, blocks, nil
}

func (m *Manager) readJournal(id string) ([]*kast.Block, error) {
	f, err := os.Open(filepath.Join(m.dir, id+journalExt))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: open journal")
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	var blocks []*kast.Block
	for {
		var b kast.Block
		if err := dec.Decode(&b); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrap(err, "checkpoint: decode journal block")
		}
		blocks = append(blocks, &b)
	}
	return blocks, nil
}

// GC removes every checkpoint and journal segment older than the current
// one, once the consensus collaborator signals the covered range is final.
func (m *Manager) GC() error {
	if m.current == ksuid.Nil {
		return nil
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return errors.Wrap(err, "checkpoint: read directory")
	}
	cur := m.current.String()
	for _, e := range entries {
		name := e.Name()
		base := strings.TrimSuffix(strings.TrimSuffix(name, checkpointExt), journalExt)
		if base < cur {
			if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
				return errors.Wrap(err, "checkpoint: remove stale segment")
			}
		}
	}
	return nil
}
