package cart

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a time-ordered (UUIDv7) identifier shared by carts, items,
// products, and tasks. Equality is bitwise; ordering approximates
// creation order.
type ID struct {
	value uuid.UUID
}

// NewID generates a fresh UUIDv7 identifier.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system entropy source is broken;
		// there is no sane fallback to construct an ordered id from.
		panic(fmt.Sprintf("cart: failed to generate id: %v", err))
	}
	return ID{value: id}
}

// ParseID parses s and rejects anything that is not a version-7 UUID.
func ParseID(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, &UUIDNotCompatibleError{Value: s, cause: err}
	}
	if parsed.Version() != 7 {
		return ID{}, &UUIDNotCompatibleError{Value: s}
	}
	return ID{value: parsed}, nil
}

func (id ID) String() string { return id.value.String() }

// IsZero reports whether id is the zero value (never parsed/generated).
func (id ID) IsZero() bool { return id.value == uuid.Nil }

// UUIDNotCompatibleError is returned when an externally supplied
// identifier is not a version-7 UUID.
type UUIDNotCompatibleError struct {
	Value string
	cause error
}

func (e *UUIDNotCompatibleError) Error() string {
	return fmt.Sprintf("uuid %s is not compatible: version 7 uuid is required", e.Value)
}

func (e *UUIDNotCompatibleError) Unwrap() error { return e.cause }
