package statefile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maruel/sfdb/internal/schema"
)

// ValidateShard parses content read from path and checks that it is a shard
// of this container.
//
// The checks run in order: the meta, unittype and data sections must be
// present ([ErrStructural]); meta.substate must match and meta.crack must
// equal the sequence number in the file name ([ErrIdentityMismatch]); the
// shard schema must be compatible with the container schema
// ([ErrSchemaIncompatible]). When the container has no schema yet, the
// shard's is adopted.
func (c *Container) ValidateShard(content []byte, path string) (*Document, error) {
	var doc Document
	if err := c.codec.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStructural, path, err)
	}
	var missing []string
	if doc.Meta == nil {
		missing = append(missing, "meta")
	}
	if doc.Unittype == nil {
		missing = append(missing, "unittype")
	}
	if doc.Data == nil {
		missing = append(missing, "data")
	}
	if len(missing) != 0 {
		return nil, fmt.Errorf("%w: %s: missing %s", ErrStructural, path, strings.Join(missing, ", "))
	}
	if doc.Meta.Substate != c.meta.Substate {
		return nil, fmt.Errorf("%w: %s: substate %q, want %q", ErrIdentityMismatch, path, doc.Meta.Substate, c.meta.Substate)
	}
	if want := seqOf(filepath.Base(path)); doc.Meta.Crack != want {
		return nil, fmt.Errorf("%w: %s: crack %d, want %d", ErrIdentityMismatch, path, doc.Meta.Crack, want)
	}
	if c.unittype == nil {
		c.unittype = doc.Unittype.Clone()
	} else if !schema.IsCompatible(doc.Unittype, c.unittype) {
		return nil, fmt.Errorf("%w: %s: missing %s", ErrSchemaIncompatible, path, strings.Join(schema.Missing(doc.Unittype, c.unittype), ", "))
	}
	for i, u := range doc.Data {
		if u == nil {
			doc.Data[i] = schema.Unit{}
		}
	}
	return &doc, nil
}
