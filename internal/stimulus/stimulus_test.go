package stimulus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Descending(t *testing.T) {
	seq, err := Generate(Descending, 1337, 8, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{255, 254, 253, 252, 251}, seq.Words())
	assert.Equal(t, 5, seq.Len())
}

func TestGenerate_DescendingWrapsWithinWidth(t *testing.T) {
	seq, err := Generate(Descending, 0, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2, 1, 0, 3, 2}, seq.Words())
}

func TestGenerate_RandomIsSeedDependentAndMasked(t *testing.T) {
	a, err := Generate(Random, 1, 16, 64)
	require.NoError(t, err)
	b, err := Generate(Random, 1, 16, 64)
	require.NoError(t, err)
	c, err := Generate(Random, 2, 16, 64)
	require.NoError(t, err)

	assert.Equal(t, a.Words(), b.Words())
	assert.NotEqual(t, a.Words(), c.Words())
	for i := 0; i < a.Len(); i++ {
		assert.LessOrEqual(t, a.At(i), uint64(0xffff))
	}
}

func TestGenerate_FullWidth(t *testing.T) {
	seq, err := Generate(Descending, 0, 64, 2)
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), seq.At(0))
	assert.Equal(t, ^uint64(0)-1, seq.At(1))
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(Descending, 0, 0, 1)
	assert.Error(t, err)
	_, err = Generate(Descending, 0, 65, 1)
	assert.Error(t, err)
	_, err = Generate(Descending, 0, 8, -1)
	assert.Error(t, err)
	_, err = Generate(Rule("zigzag"), 0, 8, 1)
	assert.Error(t, err)
}

func TestWords_ReturnsCopy(t *testing.T) {
	seq, err := Generate(Descending, 0, 8, 3)
	require.NoError(t, err)
	w := seq.Words()
	w[0] = 0
	assert.Equal(t, uint64(255), seq.At(0))
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule("")
	require.NoError(t, err)
	assert.Equal(t, Descending, r)

	r, err = ParseRule("random")
	require.NoError(t, err)
	assert.Equal(t, Random, r)

	_, err = ParseRule("zigzag")
	assert.Error(t, err)
}
