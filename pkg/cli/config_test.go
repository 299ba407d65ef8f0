package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestLoadTunablesDefaults(t *testing.T) {
	tun, err := loadTunables("")
	gt.NoError(t, err)
	gt.Equal(t, tun.Chunking.Size, 1200)
	gt.Equal(t, tun.Chunking.Overlap, 100)
	gt.Equal(t, tun.Search.TopK, 20)
	gt.Equal(t, tun.Search.Alpha, 0.5)
	gt.Equal(t, tun.Discovery.Beta, 0.7)
	gt.Equal(t, tun.Discovery.StarBoost, 1.5)
	gt.Equal(t, tun.Workers, 4)
}

func TestLoadTunablesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := `
search:
  alpha: 0.8
  topK: 5
discovery:
  beta: 0.4
models:
  openaiChat: gpt-4o-mini
workers: 2
`
	gt.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	tun, err := loadTunables(path)
	gt.NoError(t, err)
	gt.Equal(t, tun.Search.Alpha, 0.8)
	gt.Equal(t, tun.Search.TopK, 5)
	gt.Equal(t, tun.Discovery.Beta, 0.4)
	gt.Equal(t, tun.Models.OpenAIChat, "gpt-4o-mini")
	gt.Equal(t, tun.Workers, 2)

	// Untouched keys keep their defaults.
	gt.Equal(t, tun.Chunking.Size, 1200)
	gt.Equal(t, tun.Discovery.StarBoost, 1.5)
}

func TestLoadTunablesMissingFile(t *testing.T) {
	_, err := loadTunables(filepath.Join(t.TempDir(), "nope.yml"))
	gt.Error(t, err)
}

func TestLoadTunablesBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	gt.NoError(t, os.WriteFile(path, []byte("search: [not a map"), 0o644))
	_, err := loadTunables(path)
	gt.Error(t, err)
}
