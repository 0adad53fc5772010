package graph

import "github.com/google/uuid"

// IDFunc returns a fresh identifier for nodes and links created by graph operations.
type IDFunc func() string

// UUIDs returns an IDFunc producing random UUIDs.
func UUIDs() IDFunc {
	return uuid.NewString
}
