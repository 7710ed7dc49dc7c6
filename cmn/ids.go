package cmn

import (
	"math/rand"
	"sync"

	"github.com/teris-io/shortid"
)

// Adapted from cmn/shortid.go: a human-readable, collision-resistant ID
// generator used for the IDs of entity instances created at commit
// (replicate IDs are supplied by the caller of NewReplicate). IDs here are
// opaque outside of export ordering (see SPEC_FULL.md's Open Question
// decision on replicate numbering) — nothing in this repo parses them.
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sidMu sync.Mutex
	sid   *shortid.Shortid
)

// InitShortID (re)seeds the process-wide ID generator. Called once at
// program start; safe to call again in tests that need determinism.
func InitShortID(seed uint64) {
	sidMu.Lock()
	defer sidMu.Unlock()
	sid = shortid.MustNew(4, uuidABC, seed)
}

func init() { InitShortID(1) }

// GenUUID generates a short, human-readable, unique ID.
func GenUUID() string {
	sidMu.Lock()
	s := sid
	sidMu.Unlock()
	uuid := s.MustGenerate()
	var h, t string
	if !isAlpha(uuid[0]) {
		h = string(rune('A' + rand.Int()%26))
	}
	c := uuid[len(uuid)-1]
	if c == '-' || c == '_' {
		t = string(rune('a' + rand.Int()%26))
	}
	return h + uuid + t
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsValidUUID reports whether uuid looks like one of ours.
func IsValidUUID(uuid string) bool {
	const idlen = 9
	return len(uuid) >= idlen && isAlpha(uuid[0])
}
