package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AllFields(t *testing.T) {
	dir := t.TempDir()
	content := `connection:
  driver: mysql
  host: myhost
  port: 3307
  username: myuser
  database: kingsley
  sslmode: require
  connect_timeout: 5s
  auth_method: aws-iam
  aws_region: us-west-2

server:
  read_only: true
  update_token: s3cret
  query_timeout: 30s
  max_concurrency: 8
  instructions: |
    Default schema: kingsley
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "mysql", cfg.Connection.Driver)
	assert.Equal(t, "myhost", cfg.Connection.Host)
	assert.Equal(t, 3307, cfg.Connection.Port)
	assert.Equal(t, "myuser", cfg.Connection.Username)
	assert.Equal(t, "kingsley", cfg.Connection.Database)
	assert.Equal(t, "require", cfg.Connection.SSLMode)
	assert.Equal(t, "5s", cfg.Connection.ConnectTimeout)
	assert.Equal(t, "aws-iam", cfg.Connection.AuthMethod)
	assert.Equal(t, "us-west-2", cfg.Connection.AWSRegion)
	assert.True(t, cfg.Server.ReadOnly)
	assert.Equal(t, "s3cret", cfg.Server.UpdateToken)
	assert.Equal(t, "30s", cfg.Server.QueryTimeout)
	assert.Equal(t, 8, cfg.Server.MaxConcurrency)
	assert.Equal(t, "Default schema: kingsley\n", cfg.Server.Instructions)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(t.TempDir())
	assert.True(t, errors.Is(err, ErrConfigNotFound), "expected ErrConfigNotFound, got: %v", err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{{invalid"), 0644))

	cfg, err := Load(dir)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, FileConfig{}, *cfg)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("query_timeout", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseDuration("query_timeout", "1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("query_timeout", "soon")
	assert.ErrorContains(t, err, "invalid query_timeout")

	_, err = ParseDuration("query_timeout", "-1s")
	assert.ErrorContains(t, err, "must not be negative")
}

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "SQLMCP_TEST_HOST=fromfile\nSQLMCP_TEST_FRESH='quoted value'\n# comment\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("SQLMCP_TEST_HOST", "fromenv")
	t.Setenv("SQLMCP_TEST_FRESH", "")
	require.NoError(t, os.Unsetenv("SQLMCP_TEST_FRESH"))

	require.NoError(t, LoadEnv(path))

	assert.Equal(t, "fromenv", os.Getenv("SQLMCP_TEST_HOST"))
	assert.Equal(t, "quoted value", os.Getenv("SQLMCP_TEST_FRESH"))
}

func TestLoadEnv_MissingExplicitFile(t *testing.T) {
	err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "load env file")
}

func TestLoadEnv_MissingDefaultFileIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, LoadEnv(""))
}
