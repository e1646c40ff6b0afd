package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pms/internal/adapters/config"
	"go.trai.ch/pms/internal/core/domain"
	"go.trai.ch/pms/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	logger := mocks.NewMockLogger(gomock.NewController(t))
	logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	return config.NewLoader(logger)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	loader := newLoader(t)

	cfg, err := loader.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/", cfg.RootDir)
	assert.Equal(t, "/var/lib/pms", cfg.StateDir)
	assert.Equal(t, "/var/cache/pms", cfg.CacheDir)
	assert.Equal(t, filepath.Join("/var/lib/pms", domain.SourcesFileName), cfg.SourcesPath)
	assert.Equal(t, uint64(4), cfg.FetchRetries)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)

	assert.Equal(t, filepath.Join("/var/lib/pms", domain.StatusFileName), cfg.StatusPath())
	assert.Equal(t, "/var/lib/pms/info", cfg.InfoDir())
	assert.Equal(t, "/var/cache/pms/archives", cfg.ArchiveDir())
	assert.Equal(t, "/var/cache/pms/tmp", cfg.TempDir())
}

func TestLoadFile(t *testing.T) {
	loader := newLoader(t)
	path := writeConfig(t, `
root: /srv/target
state: /srv/state
cache: /srv/cache
sources: /srv/state/sources.list
fetch:
  retries: 2
  timeout: 5s
`)

	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/target", cfg.RootDir)
	assert.Equal(t, "/srv/state", cfg.StateDir)
	assert.Equal(t, "/srv/cache", cfg.CacheDir)
	assert.Equal(t, "/srv/state/sources.list", cfg.SourcesPath)
	assert.Equal(t, uint64(2), cfg.FetchRetries)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
}

func TestLoadPartialFile(t *testing.T) {
	loader := newLoader(t)
	path := writeConfig(t, "state: /srv/state\n")

	cfg, err := loader.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/", cfg.RootDir)
	assert.Equal(t, "/srv/state", cfg.StateDir)
	// Sources default follows the configured state dir.
	assert.Equal(t, filepath.Join("/srv/state", domain.SourcesFileName), cfg.SourcesPath)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"malformed yaml":      "root: [\n",
		"negative retries":    "fetch:\n  retries: -1\n",
		"unparsable timeout":  "fetch:\n  timeout: soon\n",
		"nonpositive timeout": "fetch:\n  timeout: 0s\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			loader := newLoader(t)
			_, err := loader.Load(writeConfig(t, content))
			assert.ErrorIs(t, err, domain.ErrConfigLoadFailed)
		})
	}
}

func TestDefaultPathOverride(t *testing.T) {
	t.Setenv(config.EnvConfigPath, "/tmp/custom.yaml")
	assert.Equal(t, "/tmp/custom.yaml", config.DefaultPath())
}
