package hal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArch(t *testing.T) {
	cases := map[string]Arch{
		"32":    Arch32,
		"64":    Arch64,
		"32+64": Arch3264,
		"":      ArchNone,
	}
	for input, want := range cases {
		got, err := ParseArch(input)
		require.NoError(t, err, "input %q", input)
		require.Equal(t, want, got, "input %q", input)
	}

	_, err := ParseArch("128")
	require.Error(t, err)
}

func TestArchSupports(t *testing.T) {
	// A 64-bit-only implementation serves a 64-bit request, not a 32-bit one.
	require.True(t, Arch64.Supports(Arch64))
	require.False(t, Arch64.Supports(Arch32))
	require.True(t, Arch32.Supports(Arch32))
	require.False(t, Arch32.Supports(Arch64))

	// An implementation declared for both bitnesses serves either.
	require.True(t, Arch3264.Supports(Arch32))
	require.True(t, Arch3264.Supports(Arch64))
	require.True(t, Arch3264.Supports(Arch3264))

	// Nothing serves an unknown caller bitness.
	require.False(t, Arch64.Supports(ArchNone))
	require.False(t, ArchNone.Supports(Arch64))
}

func TestArchString(t *testing.T) {
	require.Equal(t, "32", Arch32.String())
	require.Equal(t, "64", Arch64.String())
	require.Equal(t, "32+64", Arch3264.String())
	require.Equal(t, "none", ArchNone.String())
}
