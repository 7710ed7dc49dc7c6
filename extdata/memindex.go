package extdata

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/schmidtdse/josh/cmn"
)

// MemoryIndex is a queryable in-memory index of export records, backed
// by an in-memory buntdb database. It is not bounded: every record put
// into it is kept and nothing is evicted. It serves interactive
// inspection and tests; it is not the writer target for §6's "map"
// selection, which lives outside the core like CSV/NetCDF export.
type MemoryIndex struct {
	db *buntdb.DB
}

// NewMemoryIndex opens an in-memory (":memory:") buntdb database.
func NewMemoryIndex() (*MemoryIndex, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, cmn.Wrap(cmn.KindIoError, err, "open in-memory index")
	}
	return &MemoryIndex{db: db}, nil
}

func recordKey(rec *Record) string {
	return fmt.Sprintf("%s/%020d/%s", rec.Replicate, rec.Step, rec.EntityID)
}

// Put indexes rec, JSON-encoded for human-readable range scans.
func (m *MemoryIndex) Put(rec *Record) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return cmn.Wrap(cmn.KindIoError, err, "marshal record for index")
	}
	return m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(recordKey(rec), string(blob), nil)
		return err
	})
}

// RangeByReplicate returns every record for replicate in ascending
// (step, entity-id) order, matching the core's export-order guarantee
// (§5: "timestep ascending, entity-id deterministic order").
func (m *MemoryIndex) RangeByReplicate(replicate string) ([]*Record, error) {
	var out []*Record
	err := m.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterThan("", replicate+"/", func(key, value string) bool {
			if len(key) < len(replicate)+1 || key[:len(replicate)+1] != replicate+"/" {
				return false
			}
			var rec Record
			if err := json.Unmarshal([]byte(value), &rec); err == nil {
				out = append(out, &rec)
			}
			return true
		})
	})
	if err != nil {
		return nil, cmn.Wrap(cmn.KindIoError, err, "range scan index for replicate %s", replicate)
	}
	return out, nil
}

// Close releases the underlying database.
func (m *MemoryIndex) Close() error {
	return cmn.Wrap(cmn.KindIoError, m.db.Close(), "close in-memory index")
}
