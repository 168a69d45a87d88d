package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := Env
	Env = values
	t.Cleanup(func() { Env = prev })
}

func TestGetEnv_PrefersLoadedMap(t *testing.T) {
	withEnv(t, map[string]string{"INVOICEFOX_TEST_KEY": "from-file"})
	t.Setenv("INVOICEFOX_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("INVOICEFOX_TEST_KEY", "def"))
}

func TestGetEnv_FallsBackToOSAndDefault(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("INVOICEFOX_OS_ONLY", "os")

	assert.Equal(t, "os", GetEnv("INVOICEFOX_OS_ONLY", "def"))
	assert.Equal(t, "def", GetEnv("INVOICEFOX_MISSING", "def"))
}

func TestTypedGetters(t *testing.T) {
	withEnv(t, map[string]string{
		"WORKERS":     "8",
		"BAD_WORKERS": "eight",
		"TIMEOUT":     "90s",
		"TIMEOUT_SEC": "30",
		"BAD_TIMEOUT": "soon",
		"ENABLED":     "true",
		"BAD_BOOL":    "maybe",
	})

	assert.Equal(t, 8, GetIntEnv("WORKERS", 4))
	assert.Equal(t, 4, GetIntEnv("BAD_WORKERS", 4))
	assert.Equal(t, 4, GetIntEnv("UNSET_WORKERS", 4))

	assert.Equal(t, 90*time.Second, GetDurationEnv("TIMEOUT", time.Minute))
	assert.Equal(t, 30*time.Second, GetDurationEnv("TIMEOUT_SEC", time.Minute))
	assert.Equal(t, time.Minute, GetDurationEnv("BAD_TIMEOUT", time.Minute))

	assert.True(t, GetBoolEnv("ENABLED", false))
	assert.False(t, GetBoolEnv("BAD_BOOL", false))
}
