package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestValue_Deterministic(t *testing.T) {
	rec := map[string]any{"seed": uint64(1337), "words": []uint64{255, 254}}

	d1, err := DigestValue(DomainRun, rec)
	require.NoError(t, err)
	d2, err := DigestValue(DomainRun, map[string]any{"words": []uint64{255, 254}, "seed": uint64(1337)})
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
}

func TestDigest_DomainSeparation(t *testing.T) {
	data := []byte(`{"seed":1}`)
	assert.NotEqual(t, Digest(DomainRun, data), Digest(DomainPoint, data))
	// The separator keeps the domain/data boundary unambiguous.
	assert.NotEqual(t, Digest("ab", []byte("c")), Digest("a", []byte("bc")))
}

func TestDigestValue_ChangesWithContent(t *testing.T) {
	a := MustDigestValue(DomainRun, map[string]any{"words": []uint64{1, 2}})
	b := MustDigestValue(DomainRun, map[string]any{"words": []uint64{2, 1}})
	assert.NotEqual(t, a, b)
}

func TestMustDigestValue_Panics(t *testing.T) {
	assert.Panics(t, func() { MustDigestValue(DomainRun, 1.5) })
}
