package memory

import "github.com/google/uuid"

// IDGenerator mints item identifiers. The prefix names the collection.
type IDGenerator func(prefix string) string

// NewItemID returns "<prefix>_<uuid v4>".
func NewItemID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
