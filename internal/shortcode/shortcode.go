// Package shortcode generates the random alphanumeric codes that identify shortened URLs.
//
// Generation does not consult storage: uniqueness is enforced by the store and
// collisions are resolved by the caller regenerating a code.
package shortcode

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the set of symbols a short code is drawn from: 26 lowercase letters,
// 26 uppercase letters and 10 digits.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the length of generated codes when none is configured.
const DefaultLength = 7

// ErrInvalidLength is returned when a code of non-positive length is requested.
var ErrInvalidLength = errors.New("short code length must be positive")

// Source is a source of uniformly distributed integers in [0, n).
// *math/rand/v2.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Generator produces short codes from a Source. It is safe for concurrent use
// when its Source is.
type Generator struct {
	src Source
}

// New returns a Generator drawing from src.
func New(src Source) *Generator {
	return &Generator{src: src}
}

// NewRandom returns a Generator backed by the process-wide math/rand/v2 source,
// which is seeded once per process and safe for concurrent use.
func NewRandom() *Generator {
	return New(globalSource{})
}

type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// Generate returns a code of exactly length symbols, each chosen independently
// and uniformly from Alphabet.
func (g *Generator) Generate(length int) (string, error) {
	const op = "shortcode.Generator.Generate"

	if length <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	var sb strings.Builder
	sb.Grow(length)

	for i := 0; i < length; i++ {
		sb.WriteByte(Alphabet[g.src.IntN(len(Alphabet))])
	}

	return sb.String(), nil
}

// NanoID generates codes with the nanoid algorithm restricted to Alphabet.
type NanoID struct{}

// Generate returns a code of exactly length symbols drawn from Alphabet.
func (NanoID) Generate(length int) (string, error) {
	const op = "shortcode.NanoID.Generate"

	if length <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidLength)
	}

	code, err := gonanoid.Generate(Alphabet, length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate code: %w", op, err)
	}

	return code, nil
}

// Valid reports whether code is non-empty and consists only of Alphabet symbols.
func Valid(code string) bool {
	if code == "" {
		return false
	}

	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}

	return true
}
