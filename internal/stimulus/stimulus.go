// Package stimulus builds the word sequences pushed into the device and
// expected back out of it.
//
// A Sequence is never handed from the driver to the monitor. Both sides call
// Generate with the same Rule, seed, width and length, so they agree on the
// data by construction.
package stimulus

import "fmt"

// Rule names a generation rule mapping (seed, index) to a word.
type Rule string

const (
	// Descending produces 2^width-1, 2^width-2, ... and ignores the seed.
	Descending Rule = "descending"

	// Random produces a seed-dependent pseudo-random word per index.
	Random Rule = "random"
)

// Rules lists the supported rules.
var Rules = []Rule{Descending, Random}

// ParseRule validates a rule name. The empty string selects Descending.
func ParseRule(s string) (Rule, error) {
	if s == "" {
		return Descending, nil
	}
	for _, r := range Rules {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown stimulus pattern %q: must be one of %v", s, Rules)
}

// Sequence is an immutable ordered list of words.
type Sequence struct {
	words []uint64
}

// Generate builds n words of the given width (1..64).
func Generate(rule Rule, seed uint64, width, n int) (Sequence, error) {
	if width < 1 || width > 64 {
		return Sequence{}, fmt.Errorf("stimulus: invalid data width %d", width)
	}
	if n < 0 {
		return Sequence{}, fmt.Errorf("stimulus: negative length %d", n)
	}
	mask := Mask(width)

	words := make([]uint64, n)
	for i := range words {
		switch rule {
		case Descending, "":
			words[i] = (mask - uint64(i)) & mask
		case Random:
			words[i] = mix(seed, uint64(i)) & mask
		default:
			return Sequence{}, fmt.Errorf("stimulus: unknown rule %q", rule)
		}
	}
	return Sequence{words: words}, nil
}

// Len returns the number of words.
func (s Sequence) Len() int { return len(s.words) }

// At returns word i.
func (s Sequence) At(i int) uint64 { return s.words[i] }

// Words returns a copy of the words.
func (s Sequence) Words() []uint64 {
	out := make([]uint64, len(s.words))
	copy(out, s.words)
	return out
}

// Mask returns the all-ones value for a width.
func Mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// mix is the splitmix64 finalizer applied to seed and index.
func mix(seed, index uint64) uint64 {
	z := seed + (index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
