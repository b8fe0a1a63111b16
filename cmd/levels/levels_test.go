package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"level-observer/src/models"
)

// Rows are out of order on purpose; the dip at 3 is the only level.
const dipCSV = `timestamp,open,high,low,close,volume
10800,3.5,4,3,3.5,1
3600,5.5,6,5,5.5,1
7200,4.5,5,4,4.5,1
14400,4.5,5,4,4.5,1
18000,5.5,6,5,5.5,1
21600,6.5,7,6,6.5,1
25200,7.5,8,7,7.5,1
`

func runLevels(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCandlesSortsByTime(t *testing.T) {
	candles, err := readCandles(strings.NewReader(dipCSV))
	require.NoError(t, err)
	require.Len(t, candles, 7)
	assert.Equal(t, int64(3600), candles[0].Timestamp)
	assert.Equal(t, 3.0, candles[2].Low)
}

func TestDetectCommand(t *testing.T) {
	path := writeCSV(t, dipCSV)

	out, err := runLevels(t, "detect", "--csv", path, "--price", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "1 levels over 7 candles")
	assert.Contains(t, out, "support")
	assert.Contains(t, out, "below")
	assert.Contains(t, out, "-70.00%")

	out, err = runLevels(t, "detect", "--csv", path, "--price", "2", "--order", "recency")
	require.NoError(t, err)
	assert.Contains(t, out, "resistance")
}

func TestDetectCommandErrors(t *testing.T) {
	path := writeCSV(t, dipCSV)

	_, err := runLevels(t, "detect", "--csv", path, "--order", "size")
	assert.Error(t, err)

	_, err = runLevels(t, "detect", "--csv", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = runLevels(t, "detect")
	assert.Error(t, err)

	empty := writeCSV(t, "timestamp,open,high,low,close,volume\n")
	_, err = runLevels(t, "detect", "--csv", empty)
	assert.Error(t, err)
}

func TestCandleFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	in := []models.MCandle{{Timestamp: 60, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 9}}
	require.NoError(t, writeCandlesFile(path, in))

	got, err := readCandlesFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
