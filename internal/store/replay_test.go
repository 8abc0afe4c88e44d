package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSweepState_Partial(t *testing.T) {
	s := createTestStore(t)
	sw := createTestSweep(t, s, "partial", 4)

	require.NoError(t, s.WritePoint(t.Context(), sw.ID, passedResult(createTestPoint(0, 1))))
	require.NoError(t, s.WritePoint(t.Context(), sw.ID, failedResult(createTestPoint(2, 3))))

	state, err := s.GetSweepState(t.Context(), sw.ID)
	require.NoError(t, err)
	assert.Equal(t, sw.ID, state.Sweep.ID)
	assert.Len(t, state.Points, 2)
	assert.Equal(t, 1, state.Passed)
	assert.Equal(t, 1, state.Failed)
	assert.Equal(t, []int{1, 3}, state.Missing)
	assert.False(t, state.IsComplete)
	assert.False(t, state.OK())
	assert.Equal(t, int64(2), state.LastSeq)
}

func TestGetSweepState_Complete(t *testing.T) {
	s := createTestStore(t)
	sw := createTestSweep(t, s, "done", 2)

	for i := range 2 {
		require.NoError(t, s.WritePoint(t.Context(), sw.ID, passedResult(createTestPoint(i, uint64(i)))))
	}

	state, err := s.GetSweepState(t.Context(), sw.ID)
	require.NoError(t, err)
	assert.Empty(t, state.Missing)
	assert.True(t, state.IsComplete)
	assert.True(t, state.OK())
}

func TestGetSweepState_CompleteWithFailure(t *testing.T) {
	s := createTestStore(t)
	sw := createTestSweep(t, s, "done", 1)
	require.NoError(t, s.WritePoint(t.Context(), sw.ID, failedResult(createTestPoint(0, 1))))

	state, err := s.GetSweepState(t.Context(), sw.ID)
	require.NoError(t, err)
	assert.True(t, state.IsComplete)
	assert.False(t, state.OK())
}

func TestGetSweepState_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetSweepState(t.Context(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
