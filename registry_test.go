package swarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func stubAgent(name string, caps ...Capability) Agent {
	return NewAgentFunction(name, caps,
		func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
			return &Response{AgentName: name, Content: message, Success: true}, nil
		})
}

func TestRegistryRegister(t *testing.T) {
	t.Run("duplicate name rejected", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Register(stubAgent("a", CapabilityWebSearch))
		require.NoError(t, err)

		_, err = r.Register(stubAgent("a", CapabilityWebSearch))
		require.ErrorIs(t, err, ErrDuplicateAgent)
		require.Equal(t, 1, r.Count(false))
	})

	t.Run("replace keeps count", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Register(stubAgent("a", CapabilityWebSearch))
		require.NoError(t, err)

		entry, err := r.Register(stubAgent("a", CapabilityCodeAnalysis), WithReplace())
		require.NoError(t, err)
		require.Equal(t, 1, r.Count(false))
		require.Equal(t, []Capability{CapabilityCodeAnalysis}, entry.Capabilities())
	})
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(stubAgent("a", CapabilityWebSearch))
	require.NoError(t, err)

	require.NotNil(t, r.Get("a"))
	require.Nil(t, r.Get("missing"))
}

func TestRegistryGetByCapability(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(stubAgent("first", CapabilityWebSearch), WithPriority(1))
	require.NoError(t, err)
	_, err = r.Register(stubAgent("second", CapabilityWebSearch), WithPriority(10))
	require.NoError(t, err)
	_, err = r.Register(stubAgent("other", CapabilityCodeGeneration))
	require.NoError(t, err)

	t.Run("registration order", func(t *testing.T) {
		entries := r.GetByCapability(CapabilityWebSearch)
		require.Len(t, entries, 2)
		require.Equal(t, "first", entries[0].Name())
		require.Equal(t, "second", entries[1].Name())
	})

	t.Run("disabled agents filtered", func(t *testing.T) {
		require.True(t, r.Disable("first"))
		defer r.Enable("first")

		entries := r.GetByCapability(CapabilityWebSearch)
		require.Len(t, entries, 1)
		require.Equal(t, "second", entries[0].Name())
	})

	t.Run("no match", func(t *testing.T) {
		require.Empty(t, r.GetByCapability(CapabilityValuation))
	})
}

func TestRegistryGetBestForCapability(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(stubAgent("low", CapabilityWebSearch), WithPriority(1))
	require.NoError(t, err)
	_, err = r.Register(stubAgent("high", CapabilityWebSearch), WithPriority(10))
	require.NoError(t, err)

	t.Run("highest priority wins", func(t *testing.T) {
		best := r.GetBestForCapability(CapabilityWebSearch)
		require.NotNil(t, best)
		require.Equal(t, "high", best.Name())
	})

	t.Run("tie broken by registration order", func(t *testing.T) {
		r2 := NewRegistry()
		_, err := r2.Register(stubAgent("earlier", CapabilityWebSearch), WithPriority(5))
		require.NoError(t, err)
		_, err = r2.Register(stubAgent("later", CapabilityWebSearch), WithPriority(5))
		require.NoError(t, err)

		best := r2.GetBestForCapability(CapabilityWebSearch)
		require.Equal(t, "earlier", best.Name())
	})

	t.Run("disabled best falls through", func(t *testing.T) {
		require.True(t, r.Disable("high"))
		defer r.Enable("high")

		best := r.GetBestForCapability(CapabilityWebSearch)
		require.Equal(t, "low", best.Name())
	})

	t.Run("nil when nothing advertises", func(t *testing.T) {
		require.Nil(t, r.GetBestForCapability(CapabilityImageGeneration))
	})
}

func TestRegistryEnableDisable(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(stubAgent("a", CapabilityWebSearch))
	require.NoError(t, err)

	require.True(t, r.Disable("a"))
	require.Equal(t, 0, r.Count(true))
	require.Equal(t, 1, r.Count(false))

	require.True(t, r.Enable("a"))
	require.Equal(t, 1, r.Count(true))

	require.False(t, r.Disable("missing"))
	require.False(t, r.Enable("missing"))
}

func TestRegistryCapabilities(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(stubAgent("a", CapabilityWebSearch, CapabilityRAGRetrieval))
	require.NoError(t, err)
	_, err = r.Register(stubAgent("b", CapabilityWebSearch, CapabilityCodeGeneration))
	require.NoError(t, err)

	// Disabled agents still contribute to the capability inventory.
	require.True(t, r.Disable("b"))

	caps := r.Capabilities()
	require.Equal(t, []Capability{
		CapabilityCodeGeneration,
		CapabilityRAGRetrieval,
		CapabilityWebSearch,
	}, caps)
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(stubAgent("a", CapabilityWebSearch))
	require.NoError(t, err)
	_, err = r.Register(stubAgent("b", CapabilityCodeGeneration))
	require.NoError(t, err)
	require.True(t, r.Disable("b"))

	require.Len(t, r.List(false), 2)

	enabled := r.List(true)
	require.Len(t, enabled, 1)
	require.Equal(t, "a", enabled[0].Name())
}
