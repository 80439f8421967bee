// Package ledger keeps the durable record of every asset the watcher has
// classified. It is the source of truth for duplicate detection and for the
// watermark that bounds the next asset-store query.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/maheshrc27/postwatcher/internal/models"
	"github.com/rs/zerolog/log"
)

// epoch is the watermark of an empty ledger.
var epoch = time.Unix(0, 0).UTC()

// Ledger maps asset id to the entry recorded when the asset was first seen.
// It is not safe for concurrent mutation; the ingestion loop is its only
// writer.
type Ledger struct {
	path    string
	entries map[string]models.LedgerEntry
	// signatures counts entries per signature so classification does not
	// scan the whole map.
	signatures map[string]int
}

// Load reads the ledger file at path. A missing file yields an empty ledger.
// An unreadable or malformed file also yields an empty ledger, with a
// warning: previously seen assets may then be classified as novel again.
func Load(path string) *Ledger {
	l := &Ledger{
		path:       path,
		entries:    map[string]models.LedgerEntry{},
		signatures: map[string]int{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Unreadable ledger file, starting fresh")
		}
		return l
	}
	if len(data) == 0 {
		return l
	}

	var entries map[string]models.LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Malformed ledger file, starting fresh")
		return l
	}
	for id, e := range entries {
		l.entries[id] = e
		l.signatures[e.Signature]++
	}

	log.Info().Str("path", path).Int("entries", len(l.entries)).Msg("Ledger loaded")
	return l
}

// RecordAndClassify records the asset and reports whether its signature
// matches an entry recorded earlier. The entry is written even for
// duplicates, and the ledger is persisted before returning. An asset id that
// is already present is left untouched and its stored flag is returned.
func (l *Ledger) RecordAndClassify(asset models.Asset) (bool, error) {
	if e, ok := l.entries[asset.ID]; ok {
		return e.Duplicate, nil
	}

	sig := asset.Signature()
	duplicate := l.signatures[sig] > 0

	l.entries[asset.ID] = models.LedgerEntry{
		CreatedAt: asset.CreatedAt.UTC(),
		URL:       asset.URL,
		Signature: sig,
		Duplicate: duplicate,
	}
	l.signatures[sig]++

	if err := l.save(); err != nil {
		return duplicate, err
	}
	return duplicate, nil
}

// Watermark returns the latest creation time recorded, or the Unix epoch when
// the ledger is empty.
func (l *Ledger) Watermark() time.Time {
	w := epoch
	for _, e := range l.entries {
		if e.CreatedAt.After(w) {
			w = e.CreatedAt
		}
	}
	return w
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) Duplicates() int {
	n := 0
	for _, e := range l.entries {
		if e.Duplicate {
			n++
		}
	}
	return n
}

func (l *Ledger) Seen(id string) bool {
	_, ok := l.entries[id]
	return ok
}

// Entry returns the recorded entry for id.
func (l *Ledger) Entry(id string) (models.LedgerEntry, bool) {
	e, ok := l.entries[id]
	return e, ok
}

// save rewrites the whole file through a temp file in the same directory so
// a crash mid-write leaves the previous version in place.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
