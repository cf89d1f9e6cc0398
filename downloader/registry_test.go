package downloader

import (
	"testing"

	"github.com/aluiziolira/go-image-harvest/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetUnknownReturnsNil(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nope"))
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", "a stub downloader", false, func(cfg *config.Config, metrics *Metrics) (Downloader, error) {
		return nil, nil
	})

	require.NotNil(t, r.Get("stub"))

	meta := r.ListAll()
	require.Contains(t, meta, "stub")
	assert.Equal(t, "a stub downloader", meta["stub"].Description)
	assert.False(t, meta["stub"].Disabled)
	assert.False(t, meta["stub"].Experimental)
}

func TestRegistryEnableDisableAreLive(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", "a stub downloader", true, func(cfg *config.Config, metrics *Metrics) (Downloader, error) {
		return nil, nil
	})

	r.Disable("stub")
	assert.Nil(t, r.Get("stub"), "disabled entries are hidden from Get")
	assert.True(t, r.ListAll()["stub"].Disabled, "discovery still lists disabled entries")
	assert.True(t, r.ListAll()["stub"].Experimental)

	r.Enable("stub")
	assert.NotNil(t, r.Get("stub"))

	// Toggling unknown names is a no-op, not a panic.
	r.Enable("ghost")
	r.Disable("ghost")
}

func TestDefaultRegistryEntries(t *testing.T) {
	r := NewDefaultRegistry()
	meta := r.ListAll()
	for _, name := range []string{"ddgs", "engine", "auto"} {
		require.Contains(t, meta, name)
		require.NotNil(t, r.Get(name), "default entry %s should be enabled", name)
	}
}

func TestDefaultRegistryBuildsSingleSource(t *testing.T) {
	r := NewDefaultRegistry()
	factory := r.Get("ddgs")
	require.NotNil(t, factory)

	d, err := factory(config.DefaultConfig(), NewMetrics())
	require.NoError(t, err)
	assert.Equal(t, "ddgs", d.Name())
}
