// Package identity mints the opaque public identifiers that name capture
// records and their on-disk artifacts.
package identity

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Lowercase alphanumerics keep ids URL-safe and filesystem-safe.
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	length   = 10
)

// Generator produces fixed-length, collision-resistant, unguessable record
// identifiers backed by crypto/rand. Uniqueness is ultimately enforced by the
// record store's primary key at insertion time.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) NewID() (string, error) {
	return gonanoid.Generate(alphabet, length)
}
