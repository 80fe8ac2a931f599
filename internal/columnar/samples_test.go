package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/quorumlab/internal/constants"
)

func TestSamplesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.arrow")
	h := Header{Sampler: "calibrated", Seed: 42, Workers: 4, Policy: "retain"}
	steps := []StepSamples{
		{Step: constants.StepSoft, Samples: []int{300, 312, 298}},
		{Step: constants.StepCert, Samples: []int{150, 149}},
	}

	require.NoError(t, WriteSamplesFile(path, h, steps))

	gotH, got, err := ReadSamplesFile(path)
	require.NoError(t, err)
	assert.Equal(t, h, gotH)
	assert.Equal(t, steps, got)
}

func TestSamples_EmptyStep(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "empty.arrow"))
	require.NoError(t, err)
	defer f.Close()
	steps := []StepSamples{
		{Step: constants.StepSoft},
		{Step: constants.StepCert, Samples: []int{7}},
	}
	require.NoError(t, WriteSamples(f, Header{Sampler: "exact"}, steps))

	h, got, err := ReadSamples(f)
	require.NoError(t, err)
	assert.Equal(t, "exact", h.Sampler)
	assert.Equal(t, uint64(0), h.Seed)

	// A step with no trials writes an empty batch and reads back as absent.
	require.Len(t, got, 1)
	assert.Equal(t, constants.StepCert, got[0].Step)
	assert.Equal(t, []int{7}, got[0].Samples)
}

func TestReadSamples_NotArrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.arrow")
	require.NoError(t, os.WriteFile(path, []byte("not an arrow file"), 0644))

	_, _, err := ReadSamplesFile(path)
	assert.Error(t, err)
}
