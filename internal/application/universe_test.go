package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUniverse(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadUniverse_ParsesTickers(t *testing.T) {
	path := writeUniverse(t, "# megacaps\naapl\nMSFT # fortress balance sheet\n\n  nvda  \nAAPL\n")

	tickers, err := LoadUniverse(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, tickers)
}

func TestLoadUniverse_EmptyFileErrors(t *testing.T) {
	path := writeUniverse(t, "# nothing here\n\n")

	_, err := LoadUniverse(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tickers")
}

func TestLoadUniverse_MissingFileErrors(t *testing.T) {
	_, err := LoadUniverse(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}
