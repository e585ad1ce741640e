package ids

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a uuid for database rows and token ids.
func New() string {
	return uuid.NewString()
}

// Sortable returns a k-sortable id, used where lexical order should follow
// creation time (object keys).
func Sortable() string {
	return ksuid.New().String()
}
