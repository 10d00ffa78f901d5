package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/MazeGo/internal/logic/mapping"
	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleLog() movelog.Log {
	return movelog.Log{
		{Code: movelog.Start},
		{Code: movelog.North, Value: 4},
		{Code: movelog.East, Value: 3},
		{Code: movelog.South, Value: 1},
		{Code: movelog.IR, Value: 12.5},
		{Code: movelog.West},
		{Code: movelog.North, Value: 5},
		{Code: movelog.End},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := sampleLog()
	m, err := mapping.Build(l, 5)
	require.NoError(t, err)

	started := time.Date(2024, 4, 12, 10, 0, 0, 0, time.UTC)
	id, err := s.SaveRun(ctx, RunInfo{
		Team:       "73",
		MapNumber:  1,
		Cargo:      "Fuel",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		UnitLength: 5,
	}, l, m)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	got, err := s.LoadLog(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(l, got); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Width)
	assert.Equal(t, 8, run.Height)
	assert.Equal(t, 0, run.OriginColumn)
	assert.Equal(t, len(l), run.Records)
	assert.Empty(t, run.Error)
	require.Len(t, run.Hazards, 1)
	assert.Equal(t, "IR", run.Hazards[0].Kind)
	assert.Equal(t, 15.0, run.Hazards[0].X)
	assert.Equal(t, 10.0, run.Hazards[0].Y)
}

func TestSaveRun_WithoutMap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := movelog.Log{{Code: movelog.Start}, {Code: movelog.North}, {Code: movelog.End}}
	id, err := s.SaveRun(ctx, RunInfo{Team: "73", Err: errors.New("front distance: echo timeout")}, l, nil)
	require.NoError(t, err)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, run.Height)
	assert.Equal(t, "front distance: echo timeout", run.Error)
	assert.Empty(t, run.Hazards)
}

func TestListRuns_MostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 12, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.SaveRun(ctx, RunInfo{Team: "73", MapNumber: i + 1, StartedAt: base.Add(time.Duration(i) * time.Hour)}, sampleLog(), nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)
	assert.Empty(t, runs[0].Moves, "list does not load move logs")
}

func TestLoadLog_UnknownRun(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadLog(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestDeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, RunInfo{Team: "73"}, sampleLog(), nil)
	require.NoError(t, err)
	require.NoError(t, s.DeleteRun(ctx, id))

	_, err = s.LoadLog(ctx, id)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.DeleteRun(ctx, id), ErrRunNotFound)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	id, err := s.SaveRun(context.Background(), RunInfo{Team: "73"}, sampleLog(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	l, err := s.LoadLog(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, l, len(sampleLog()))
}
