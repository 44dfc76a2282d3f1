package statefile

import "errors"

// Shard rejections. A rejected shard is not merged into the container; it is
// fatal only for the newest shard at construction.
var (
	// ErrStructural means the shard could not be parsed or lacks its meta,
	// unittype or data section.
	ErrStructural = errors.New("malformed shard")
	// ErrIdentityMismatch means the shard belongs to another substate or its
	// declared sequence number differs from its file name.
	ErrIdentityMismatch = errors.New("shard identity mismatch")
	// ErrSchemaIncompatible means the shard schema lacks fields the container
	// schema requires.
	ErrSchemaIncompatible = errors.New("shard schema is incompatible")
)

var (
	// ErrSequenceRange is returned when a rollover would go past MaxSeq.
	ErrSequenceRange = errors.New("shard sequence number out of range")
	// ErrIndexOutOfRange is returned for a unit index past the last unit.
	ErrIndexOutOfRange = errors.New("unit index out of range")
	// ErrInvalidLimit is returned by SetLimit for a non positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")

	errSubstateRequired = errors.New("substate name is required")
	errSubstateInvalid  = errors.New("substate name must not contain a path separator")
)

// IsRejection reports whether err is a shard rejection rather than a storage
// failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrStructural) || errors.Is(err, ErrIdentityMismatch) || errors.Is(err, ErrSchemaIncompatible)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrStructural):
		return "structural"
	case errors.Is(err, ErrIdentityMismatch):
		return "identity"
	case errors.Is(err, ErrSchemaIncompatible):
		return "schema"
	default:
		return "storage"
	}
}
