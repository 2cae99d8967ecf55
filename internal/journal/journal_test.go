package journal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndRecent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "db", "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, j.Record(ctx, Entry{
		CycleID: "c1", CoinID: "x1", Name: "Elon Musk Coin", Symbol: "EMC", Price: "unknown",
		Reference: "Elon Musk", Delivered: []string{"webhook"}, Failed: []string{"email"}, Marked: true, CreatedAt: at,
	}))
	require.NoError(t, j.Record(ctx, Entry{
		CycleID: "c2", CoinID: "x3", Name: "Swift Inu", Symbol: "SWI", Price: "$1",
		Reference: "Taylor Swift", Description: strings.Repeat("é", 1500), Failed: []string{"webhook"},
		PersistError: "disk full",
	}))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "x3", entries[0].CoinID)
	require.False(t, entries[0].Marked)
	require.Equal(t, "disk full", entries[0].PersistError)
	require.Empty(t, entries[0].Delivered)
	require.Len(t, []rune(entries[0].Description), 1000)

	require.Equal(t, "x1", entries[1].CoinID)
	require.True(t, entries[1].Marked)
	require.Equal(t, []string{"webhook"}, entries[1].Delivered)
	require.Equal(t, []string{"email"}, entries[1].Failed)
	require.True(t, at.Equal(entries[1].CreatedAt))

	one, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)

	var j *Journal
	require.NoError(t, j.Close())
}
