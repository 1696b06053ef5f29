package config

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "providers:\n  - name: zhipu\n    base_url: https://open.bigmodel.cn/api/paas/v4\n    model: glm-4-flash\n")

	var got *Config
	w, err := NewWatcher(path, func(c *Config) error {
		got = c
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	w.Reload()
	require.NotNil(t, got)
	assert.Equal(t, "glm-4-flash", got.Providers[0].Model)
}

func TestWatcher_ReloadKeepsCurrentOnError(t *testing.T) {
	path := writeConfig(t, "providers:\n  - name: zhipu\n    base_url: https://open.bigmodel.cn/api/paas/v4\n")

	var calls int32
	w, err := NewWatcher(path, func(*Config) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("rejected")
	}, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	// Apply func errors are swallowed and logged
	w.Reload()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Invalid files never reach the apply func
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: \"\"\n"), 0o600))
	w.Reload()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "providers:\n  - name: zhipu\n    base_url: https://open.bigmodel.cn/api/paas/v4\n    model: glm-4-flash\n")

	var model atomic.Value
	w, err := NewWatcher(path, func(c *Config) error {
		model.Store(c.Providers[0].Model)
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: zhipu\n    base_url: https://open.bigmodel.cn/api/paas/v4\n    model: glm-4-plus\n"), 0o600))

	assert.Eventually(t, func() bool {
		v, _ := model.Load().(string)
		return v == "glm-4-plus"
	}, 5*time.Second, 50*time.Millisecond)
}
