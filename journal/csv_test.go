package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.csv")
	tradesPath := filepath.Join(dir, "trades.csv")

	j, err := NewCSV(eventsPath, tradesPath)
	require.NoError(t, err)
	for _, e := range sampleEvents() {
		require.NoError(t, j.Emit(e))
	}
	require.NoError(t, j.RecordTrade(sampleTrade()))
	require.NoError(t, j.Close())

	events := readCSV(t, eventsPath)
	require.Len(t, events, 5)
	assert.Equal(t, eventHeader, events[0])
	assert.Equal(t, []string{"P1", "2", "BTCUSDT", "2024-03-15T12:00:00Z", "take_profit", "105.000000", "breakeven_armed", "1", "0.500000", "100.000000", "0.500000", "0.700000", "false", ""}, events[3])

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 2)
	assert.Equal(t, tradeHeader, trades[0])
	row := trades[1]
	assert.Equal(t, "P1", row[0])
	assert.Equal(t, "long", row[2])
	assert.Equal(t, "stop_hit", row[11])
	assert.Equal(t, "0.500000", row[14])
	assert.Equal(t, "take_profit@105.000000*0.5;stop_hit@100.000000*0.5", row[15])
}

func TestCSVJournal_BadPath(t *testing.T) {
	t.Parallel()
	_, err := NewCSV(filepath.Join(t.TempDir(), "missing", "e.csv"), "t.csv")
	assert.Error(t, err)
}
