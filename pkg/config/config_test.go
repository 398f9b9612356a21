package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_TOKEN", "s3cret")
	path := writeFile(t, "port: 9000\ntoken: ${SAMPLE_TOKEN}\n")

	cfg := sample{Name: "default"}
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "s3cret", cfg.Token)
}

func TestLoad_Errors(t *testing.T) {
	var cfg sample
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
	assert.Error(t, Load(writeFile(t, "port: [nope"), &cfg))

	err := Load(writeFile(t, "name: x\n"), &cfg)
	assert.ErrorContains(t, err, "config validation failed")
}

func TestLoadOptional(t *testing.T) {
	cfg := sample{Port: 1}
	require.NoError(t, LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
	assert.Equal(t, 1, cfg.Port)

	empty := sample{}
	assert.Error(t, LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &empty))
}
