package cascade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMarchRegistered(t *testing.T) {
	m, ok := LookupMarch(DefaultMarchName)
	require.True(t, ok)
	require.Equal(t, DefaultMarchName, m.Name)
}

func TestRegisterMarchAndLookup(t *testing.T) {
	RegisterMarch(March{Name: "test-march-verilator32", Attributes: map[string]string{"clock_period": "10"}})

	m, ok := LookupMarch("test-march-verilator32")
	require.True(t, ok)
	require.Equal(t, "10", m.Attributes["clock_period"])

	_, ok = LookupMarch("no-such-march")
	require.False(t, ok)
}

func TestRegisterMarchOverwritesExisting(t *testing.T) {
	RegisterMarch(March{Name: "test-march-overwrite", Attributes: map[string]string{"a": "1"}})
	RegisterMarch(March{Name: "test-march-overwrite", Attributes: map[string]string{"a": "2"}})

	m, ok := LookupMarch("test-march-overwrite")
	require.True(t, ok)
	require.Equal(t, "2", m.Attributes["a"])
}

func TestRegisterMarchCopiesAttributes(t *testing.T) {
	attrs := map[string]string{"x": "1"}
	RegisterMarch(March{Name: "test-march-copy", Attributes: attrs})
	attrs["x"] = "mutated"

	m, _ := LookupMarch("test-march-copy")
	require.Equal(t, "1", m.Attributes["x"])
}
