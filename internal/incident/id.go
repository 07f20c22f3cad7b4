package incident

import (
	"regexp"
	"sync"
	"time"
)

// idLayout renders the date and time-of-day parts of an incident id.
const idLayout = "20060102-150405"

// IDPattern matches a complete incident identifier.
var IDPattern = regexp.MustCompile(`^INC-\d{8}-\d{6}$`)

// IDGenerator issues time-derived incident ids of the form INC-YYYYMMDD-HHMMSS.
// Ids are strictly increasing per generator: a second request within the same
// second is pushed to the next free second.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewIDGenerator returns a generator reading the given clock. A nil clock uses time.Now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns the next unused incident id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now().UTC().Truncate(time.Second)
	if !t.After(g.last) {
		t = g.last.Add(time.Second)
	}
	g.last = t
	return "INC-" + t.Format(idLayout)
}
