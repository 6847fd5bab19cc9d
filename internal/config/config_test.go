package config

import (
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	c, err := FromEnv(env(nil))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	require.Equal(t, 7, c.FreshnessDays)
	require.Equal(t, "xjgu-z4ju", c.CurrentEndpoint)
	require.Equal(t, "data.lacity.org", c.Domain)
	require.Equal(t, 50000, c.PageSize)
	require.Equal(t, 100*time.Millisecond, c.PageDelay)
	require.Equal(t, "lapd_calls_for_service.parquet", c.StorePaths().Parquet)
	require.Equal(t, 0, c.Pipeline().BoundaryYear)
	require.False(t, c.Publish.Enabled())
}

func TestConfig_EnvThenFlags(t *testing.T) {
	t.Parallel()

	c, err := FromEnv(env(map[string]string{
		"LAPD_BOUNDARY_YEAR": "2023",
		"LAPD_PAGE_SIZE":     "1000",
		"LAPD_PAGE_DELAY":    "250ms",
		"SOCRATA_APP_TOKEN":  "secret",
		"LAPD_BACKUP_DIR":    "/var/backups",
		"LAPD_FORCE":         "true",
	}))
	require.NoError(t, err)
	require.Equal(t, 2023, c.BoundaryYear)
	require.Equal(t, "secret", c.SocrataOptions().AppToken)
	require.Equal(t, 250*time.Millisecond, c.SocrataOptions().PageDelay)
	require.True(t, c.Pipeline().Force)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--page-size", "200", "--parquet", "out/calls.parquet"}))
	require.Equal(t, 200, c.PageSize)
	require.Equal(t, "out/calls.parquet", c.ParquetPath)
	require.Equal(t, 2023, c.BoundaryYear)
	require.Equal(t, "/var/backups", c.BackupDir)
}

func TestConfig_EnvErrors(t *testing.T) {
	t.Parallel()

	_, err := FromEnv(env(map[string]string{"LAPD_PAGE_SIZE": "lots", "LAPD_PAGE_DELAY": "soon"}))
	require.ErrorContains(t, err, "LAPD_PAGE_SIZE")
	require.ErrorContains(t, err, "LAPD_PAGE_DELAY")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"page size", func(c *Config) { c.PageSize = 0 }, "page size must be positive"},
		{"freshness", func(c *Config) { c.FreshnessDays = -1 }, "freshness days"},
		{"parquet path", func(c *Config) { c.ParquetPath = "" }, "parquet path"},
		{"backup dir", func(c *Config) { c.BackupDir = "" }, "backup dir path"},
		{"publish endpoint", func(c *Config) { c.Publish.Bucket = "lapd" }, "publish endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			require.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
