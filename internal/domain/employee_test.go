package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAccessLevel(t *testing.T) {
	t.Parallel()

	for text, want := range map[string]AccessLevel{
		"Level 1":   Level1,
		"Level 2":   Level2,
		"Level 3":   Level3,
		" Level 2 ": Level2,
	} {
		got, err := ParseAccessLevel(text)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, want.String(), got.String())
	}

	for _, text := range []string{"", "Level 4", "level 1", "admin"} {
		_, err := ParseAccessLevel(text)
		require.Error(t, err, "text %q", text)
	}
}

func TestAccessLevelGates(t *testing.T) {
	t.Parallel()

	require.False(t, Level1.Administrative())
	require.True(t, Level2.Administrative())
	require.True(t, Level3.Administrative())

	require.False(t, Level1.RequiresTwoFactor())
	require.True(t, Level2.RequiresTwoFactor())
	require.True(t, Level3.RequiresTwoFactor())
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	e := Employee{Username: "jdoe", FirstName: "Jane", LastName: "Doe"}
	require.Equal(t, "jdoe", e.DisplayName())

	e.Username = ""
	require.Equal(t, "Jane Doe", e.DisplayName())

	e.MiddleName = "Q"
	require.Equal(t, "Jane Q Doe", e.DisplayName())
}
