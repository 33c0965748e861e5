package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	NewLoader().setupViperDefaults()

	assert.Equal(t, DefaultTTL, viper.GetString("ttl"))
	assert.Equal(t, DefaultCWDMode, viper.GetString("cwd"))
	assert.False(t, viper.GetBool("force"))
	assert.False(t, viper.GetBool("lock"))
}

func TestLoader_EnvironmentBindings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("RUNCACHE_TTL", "120")
	t.Setenv("RUNCACHE_DIR", "/tmp/runcache-env")
	t.Setenv("RUNCACHE_CWD", CWDYes)
	t.Setenv("RUNCACHE_CONTEXT", "ci")

	l := NewLoader()
	l.setupViperDefaults()
	l.bindEnvironment()

	cfg, err := Load([]string{"date"})
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.TTL)
	assert.Equal(t, "/tmp/runcache-env", cfg.CacheRoot)
	assert.Equal(t, CWDYes, cfg.CWDMode)
	assert.Equal(t, "ci", cfg.Context)
}

func TestLoader_EnvironmentOverridesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("RUNCACHE_TTL", "0")

	l := NewLoader()
	l.setupViperDefaults()
	l.bindEnvironment()

	cfg, err := Load([]string{"date"})
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.TTL, "env TTL should beat the never default")
}
