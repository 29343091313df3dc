package checkpoint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"proteus/ancestor"
	"proteus/sim"
)

func runFixture(t *testing.T, cycles int64) *sim.Simulator {
	t.Helper()
	cfg := sim.DefaultConfig()
	cfg.SoupSize = 1024
	cfg.MaxOrganisms = 8
	cfg.Seed = 12345
	cfg.MutationRate = 0.1
	s := sim.New(cfg, nil)
	_, err := s.Inject(ancestor.Adam(), 0)
	require.NoError(t, err)
	s.RunCycles(cycles)
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := runFixture(t, 300)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, s))

	loaded, err := Load(&buf, nil)
	require.NoError(t, err)

	require.Equal(t, s.Cycle(), loaded.Cycle())
	require.Equal(t, s.Stats(), loaded.Stats())
	require.Equal(t, s.Table.Count(), loaded.Table.Count())
	require.Equal(t, s.RNG.Snapshot(), loaded.RNG.Snapshot())

	for i := 0; i < s.Soup.Len(); i++ {
		require.Equal(t, s.Soup.Read(int32(i)), loaded.Soup.Read(int32(i)), "word %d mismatch", i)
	}
}

func TestSaveSaveByteIdentical(t *testing.T) {
	s := runFixture(t, 300)

	var buf1, buf2 bytes.Buffer
	require.NoError(t, Save(&buf1, s))
	require.NoError(t, Save(&buf2, s))

	require.Equal(t, buf1.Bytes(), buf2.Bytes())
}

func TestLoadRejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 2}), nil)
	require.Error(t, err)
}

func TestLoadRejectsOldVersion(t *testing.T) {
	var buf bytes.Buffer
	s := runFixture(t, 10)
	require.NoError(t, Save(&buf, s))

	raw := buf.Bytes()
	raw[7] = 1 // force version to 1
	_, err := Load(bytes.NewReader(raw), nil)
	require.Error(t, err)
}

func TestDeterministicResumeMatches(t *testing.T) {
	base := runFixture(t, 1000)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, base))

	resumeAndRun := func() ([]byte, error) {
		r := bytes.NewReader(buf.Bytes())
		loaded, err := Load(r, nil)
		if err != nil {
			return nil, err
		}
		loaded.RunCycles(1000)
		var out bytes.Buffer
		if err := Save(&out, loaded); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}

	a, err := resumeAndRun()
	require.NoError(t, err)
	b, err := resumeAndRun()
	require.NoError(t, err)
	require.Equal(t, a, b)
}
