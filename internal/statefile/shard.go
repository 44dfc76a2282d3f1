// Shard naming, the in-memory shard record and the on-disk document.

package statefile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/maruel/sfdb/internal/schema"
)

// MaxSeq is the highest shard sequence number.
const MaxSeq = 999

// Shard is one crack file of a container.
//
// Its units are only in memory while it is loaded. The newest shard is always
// loaded; older ones are loaded on demand.
type Shard struct {
	// Path is the full path of the crack file.
	Path string
	// Seq is the sequence number parsed from the file name.
	Seq int

	units  []schema.Unit
	loaded bool
}

// Loaded reports whether the shard units are in memory.
func (s *Shard) Loaded() bool {
	return s.loaded
}

// Len returns the number of units in memory.
func (s *Shard) Len() int {
	return len(s.units)
}

// Units returns the in-memory units. The slice is owned by the shard.
func (s *Shard) Units() []schema.Unit {
	return s.units
}

// SetUnits replaces the units and marks the shard loaded.
func (s *Shard) SetUnits(units []schema.Unit) {
	if units == nil {
		units = []schema.Unit{}
	}
	s.units = units
	s.loaded = true
}

// Release drops the units from memory.
func (s *Shard) Release() {
	s.units = nil
	s.loaded = false
}

// Document is the content of one crack file.
type Document struct {
	Meta     *Meta         `json:"meta"`
	Unittype schema.Schema `json:"unittype"`
	Data     []schema.Unit `json:"data"`
}

// shardPattern matches sf.<n>.<substate>.<ext> with n in 1..999 and no
// leading zero.
func shardPattern(substate, ext string) *regexp.Regexp {
	return regexp.MustCompile(`^sf\.([1-9][0-9]{0,2})\.` + regexp.QuoteMeta(substate) + `\.` + regexp.QuoteMeta(ext) + `$`)
}

// shardName returns the file name of crack seq.
func shardName(seq int, substate, ext string) string {
	return fmt.Sprintf("sf.%d.%s.%s", seq, substate, ext)
}

// matchSeq returns the sequence number of a shard file name, or false when
// name is not a shard of this substate.
func matchSeq(re *regexp.Regexp, name string) (int, bool) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// seqOf extracts the second dot separated component of name as an integer,
// 0 when it is not one. Used to check a shard's declared identity.
func seqOf(name string) int {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return 0
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return n
}
