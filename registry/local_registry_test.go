package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRegistryBindLookup(t *testing.T) {
	reg := NewLocalRegistry()

	want := Binding{Path: "/api/greet", Verb: VerbPost}
	require.NoError(t, reg.Bind("greet", want))

	got, err := reg.Lookup("greet")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Re-binding replaces the previous binding.
	want2 := Binding{Path: "/api/v2/greet", Verb: VerbGet}
	require.NoError(t, reg.Bind("greet", want2))
	got, err = reg.Lookup("greet")
	require.NoError(t, err)
	assert.Equal(t, want2, got)
}

func TestLocalRegistryUnregistered(t *testing.T) {
	reg := NewLocalRegistry()

	_, err := reg.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnregisteredMethod)

	require.NoError(t, reg.Bind("greet", Binding{Path: "/api/greet", Verb: VerbPost}))
	require.NoError(t, reg.Unbind("greet"))
	_, err = reg.Lookup("greet")
	assert.ErrorIs(t, err, ErrUnregisteredMethod)
}

func TestLocalRegistryInstances(t *testing.T) {
	reg := NewLocalRegistry()

	require.NoError(t, reg.RegisterInstance("echo", ServiceInstance{Addr: "http://a:1", Weight: 10}, 0))
	require.NoError(t, reg.RegisterInstance("echo", ServiceInstance{Addr: "http://b:1", Weight: 5}, 0))

	insts, err := reg.Discover("echo")
	require.NoError(t, err)
	require.Len(t, insts, 2)

	// Registering an existing address updates it in place.
	require.NoError(t, reg.RegisterInstance("echo", ServiceInstance{Addr: "http://a:1", Weight: 20}, 0))
	insts, err = reg.Discover("echo")
	require.NoError(t, err)
	require.Len(t, insts, 2)

	require.NoError(t, reg.DeregisterInstance("echo", "http://a:1"))
	insts, err = reg.Discover("echo")
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, "http://b:1", insts[0].Addr)
}

func TestLocalRegistryWatch(t *testing.T) {
	reg := NewLocalRegistry()
	ch := reg.Watch("echo")

	require.NoError(t, reg.RegisterInstance("echo", ServiceInstance{Addr: "http://a:1"}, 0))

	insts := <-ch
	require.Len(t, insts, 1)
	assert.Equal(t, "http://a:1", insts[0].Addr)
}
