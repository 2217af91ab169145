package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ".agora", cfg.Root)
	assert.Equal(t, 32, cfg.MaxDepth)
	assert.Equal(t, 10<<20, cfg.MaxPayloadBytes)
	assert.Equal(t, filepath.Join(".agora", "index.db"), cfg.IndexPath())

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_NoSources(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.env")
	cfg, err := load("", []string{missing}, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	yamlPath := writeFile(t, "agora.yaml", `
root: /srv/yaml
max_depth: 8
log_level: warn
log_format: json
`)
	dotenv := writeFile(t, "test.env", `
AGORA_ROOT=/srv/dotenv
AGORA_MAX_DEPTH=16
AGORA_INDEX=/var/lib/agora/catalog.db
`)
	vars := map[string]string{
		"AGORA_ROOT": "/srv/env",
		"UNRELATED":  "ignored",
	}

	cfg, err := load(yamlPath, []string{dotenv}, vars)
	require.NoError(t, err)

	assert.Equal(t, "/srv/env", cfg.Root, "the environment beats .env")
	assert.Equal(t, 16, cfg.MaxDepth, ".env beats YAML")
	assert.Equal(t, "/var/lib/agora/catalog.db", cfg.IndexPath())
	assert.Equal(t, "warn", cfg.LogLevel, "YAML beats defaults")
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10<<20, cfg.MaxPayloadBytes, "unset everywhere keeps the default")
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := load(writeFile(t, "empty.yaml", "\n"), []string{filepath.Join(t.TempDir(), "none")}, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	none := []string{filepath.Join(t.TempDir(), "none")}

	tests := []struct {
		name string
		path string
		vars map[string]string
		want string
	}{
		{
			name: "missing yaml",
			path: filepath.Join(t.TempDir(), "nope.yaml"),
			want: "read config",
		},
		{
			name: "unknown yaml field",
			path: writeFile(t, "bad.yaml", "rooot: /x\n"),
			want: "parse config bad.yaml",
		},
		{
			name: "non-numeric depth",
			vars: map[string]string{"AGORA_MAX_DEPTH": "deep"},
			want: "parse environment",
		},
		{
			name: "zero depth",
			vars: map[string]string{"AGORA_MAX_DEPTH": "0"},
			want: "max_depth must be positive",
		},
		{
			name: "bad level",
			vars: map[string]string{"AGORA_LOG_LEVEL": "loud"},
			want: "log_level",
		},
		{
			name: "bad format",
			vars: map[string]string{"AGORA_LOG_FORMAT": "xml"},
			want: "log_format",
		},
		{
			name: "blank root",
			vars: map[string]string{"AGORA_ROOT": "  "},
			want: "root is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := tt.vars
			if vars == nil {
				vars = map[string]string{}
			}
			_, err := load(tt.path, none, vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLimits(t *testing.T) {
	cfg := Default()
	cfg.MaxDepth = 4
	cfg.MaxPayloadBytes = 128

	l := cfg.Limits()
	assert.Equal(t, 4, l.MaxDepth)
	assert.Equal(t, 128, l.MaxBytes)
}
