package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFullConfig(t *testing.T) {
	src := `
		# soup geometry
		soup_size = 4096
		seed = 12345

		mutation_rate = 0.02
		max_organisms = 32
		defrag_theta = 0.6
		check_spawn_ownership = false
		error_threshold = 100
		cycles = 500000

		inject = ancestor.asm@0
		inject = predator.asm @ 2048
	`
	p, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	require.Equal(t, 4096, p.Sim.SoupSize)
	require.EqualValues(t, 12345, p.Sim.Seed)
	require.InDelta(t, 0.02, p.Sim.MutationRate, 1e-9)
	require.Equal(t, 32, p.Sim.MaxOrganisms)
	require.InDelta(t, 0.6, p.Sim.DefragTheta, 1e-9)
	require.False(t, p.Sim.CheckSpawnOwnership)
	require.EqualValues(t, 100, p.Sim.ErrorThreshold)
	require.EqualValues(t, 500000, p.Cycles)

	require.Len(t, p.Injections, 2)
	require.Equal(t, "ancestor.asm", p.Injections[0].Path)
	require.EqualValues(t, 0, p.Injections[0].Addr)
	require.Equal(t, "predator.asm", p.Injections[1].Path)
	require.EqualValues(t, 2048, p.Injections[1].Addr)
}

func TestParseDefaultsUnsetFieldsFromSimDefaults(t *testing.T) {
	p, err := Parse(strings.NewReader("soup_size = 256\n"))
	require.NoError(t, err)
	require.Equal(t, 256, p.Sim.SoupSize)
	require.True(t, p.Sim.CheckSpawnOwnership) // DefaultConfig's value, unmodified
}

func TestParseUnknownKey(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus = 1\n"))
	require.Error(t, err)
}

func TestParseMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("not a key value pair\n"))
	require.Error(t, err)
}

func TestParseBadNumber(t *testing.T) {
	_, err := Parse(strings.NewReader("soup_size = abc\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/proteus.conf")
	require.Error(t, err)
}
