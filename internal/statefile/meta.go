// Metadata record and attribute access.

package statefile

import (
	"encoding/json"
	"maps"
	"math"
)

const (
	keySubstate = "substate"
	keyCrack    = "crack"
	keySealed   = "sealed"
	keyPasskey  = "passkey"
	keySimul    = "simul"
	keyLimit    = "limit"
)

// Meta is the container level metadata, snapshotted into every shard.
type Meta struct {
	// Substate is the partition name.
	Substate string
	// Crack is the sequence number of the newest shard.
	Crack int
	// Passkey is an opaque access token, empty when unset.
	Passkey string
	// Simul makes every mutation persist before returning.
	Simul bool
	// Limit is the rollover size recorded by SetLimit, 0 when never set.
	Limit int
	// Attrs holds the free-form attributes.
	Attrs map[string]any
}

// Clone returns a copy with its own attribute map.
func (m Meta) Clone() Meta {
	m.Attrs = maps.Clone(m.Attrs)
	return m
}

// Sealed reports whether the sealed attribute is set to a truthy value.
func (m Meta) Sealed() bool {
	switch v := m.Attrs[keySealed].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	default:
		return true
	}
}

// MarshalJSON flattens the attributes next to the typed keys.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Attrs)+5)
	maps.Copy(out, m.Attrs)
	out[keySubstate] = m.Substate
	out[keyCrack] = m.Crack
	out[keyPasskey] = m.Passkey
	out[keySimul] = m.Simul
	if m.Limit > 0 {
		out[keyLimit] = m.Limit
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any object. Typed keys holding a value of the wrong
// type decode to a value that fails validation (an empty substate, crack 0).
// A missing simul flag defaults to true.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Meta{Simul: true}
	for k, v := range raw {
		switch k {
		case keySubstate:
			m.Substate, _ = v.(string)
		case keyCrack:
			m.Crack = asInt(v)
		case keyPasskey:
			m.Passkey, _ = v.(string)
		case keySimul:
			if b, ok := v.(bool); ok {
				m.Simul = b
			}
		case keyLimit:
			m.Limit = asInt(v)
		default:
			if m.Attrs == nil {
				m.Attrs = make(map[string]any)
			}
			m.Attrs[k] = v
		}
	}
	return nil
}

// asInt returns v as a positive integer, or 0.
func asInt(v any) int {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// isProtected reports whether key is one the generic attribute interface must
// not touch: the identity keys and the keys with a dedicated accessor.
func isProtected(key string) bool {
	switch key {
	case keySubstate, keyCrack, keySealed, keyPasskey, keySimul, keyLimit:
		return true
	default:
		return false
	}
}

// Meta returns a copy of the metadata.
func (c *Container) Meta() Meta {
	return c.meta.Clone()
}

// GetAttr returns a free-form attribute. Protected keys are never returned.
func (c *Container) GetAttr(key string) (any, bool) {
	if isProtected(key) {
		return nil, false
	}
	v, ok := c.meta.Attrs[key]
	return v, ok
}

// SetAttr sets a free-form attribute.
//
// It returns false, without touching the metadata or persisting anything,
// for the protected keys substate, crack and sealed, and for passkey, simul
// and limit which have their own accessors. The error reports a failed
// persist; the attribute is set in memory regardless.
func (c *Container) SetAttr(key string, value any) (bool, error) {
	if isProtected(key) || key == "" {
		return false, nil
	}
	if c.meta.Attrs == nil {
		c.meta.Attrs = make(map[string]any)
	}
	c.meta.Attrs[key] = value
	return true, c.persist()
}

// RmvAttr removes a free-form attribute, with the same protection rules as
// SetAttr.
func (c *Container) RmvAttr(key string) (bool, error) {
	if isProtected(key) || key == "" {
		return false, nil
	}
	delete(c.meta.Attrs, key)
	return true, c.persist()
}

// Limit returns the number of units a shard holds before rollover.
func (c *Container) Limit() int {
	return c.limit
}

// SetLimit updates the rollover size. Only the newest shard is rewritten to
// record it; existing shards are never reshaped.
func (c *Container) SetLimit(n int) error {
	if n < 1 {
		return ErrInvalidLimit
	}
	c.limit = n
	c.meta.Limit = n
	return c.saver.SaveCrack(c, len(c.shards)-1)
}

// Simul reports whether mutations persist immediately.
func (c *Container) Simul() bool {
	return c.meta.Simul
}

// SetSimul toggles immediate persistence and saves the whole container,
// which also flushes any deferred change.
func (c *Container) SetSimul(simul bool) error {
	c.meta.Simul = simul
	return c.save()
}
