package neat

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	p, g1, _ := testPopulation(t, true)
	_, err := g1.SplitConnection(p.Innovations, ConnectionKey{SourceID: 0, TargetID: 2})
	require.NoError(t, err)
	g1.Fitness = FitnessInfo{Primary: 2.5, Auxiliary: []float64{1}}
	g1.EvaluationCount = 3
	p.GenomeIDs.Next()

	var buf bytes.Buffer
	require.NoError(t, p.WriteCheckpoint(&buf, 12))

	restored, generation, err := ReadCheckpoint(&buf, p.Config)
	require.NoError(t, err)
	assert.Equal(t, 12, generation)
	assert.Equal(t, p.GenomeIDs.Peek(), restored.GenomeIDs.Peek())
	assert.Equal(t, p.Innovations.InnovationIDs().Peek(), restored.Innovations.InnovationIDs().Peek())

	require.Len(t, restored.Genomes, 2)
	got := restored.Genomes[0]
	assert.Equal(t, g1.ID, got.ID)
	assert.Equal(t, g1.Connections, got.Connections)
	assert.Equal(t, g1.Fitness, got.Fitness)
	assert.Equal(t, 3, got.EvaluationCount)
	assert.Same(t, &p.Config.Genome, got.Config)
	assert.True(t, got.HasNode(5))
}

func TestCheckpoint_File(t *testing.T) {
	p, _, _ := testPopulation(t, true)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "neat.ini")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[NEAT]\npop_size = 20\nspecies_count = 3\n"), 0o644))
	cpPath := filepath.Join(dir, "gen-4.gz")

	require.NoError(t, p.SaveCheckpoint(cpPath, 4))
	restored, generation, err := LoadCheckpoint(cpPath, cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 4, generation)
	assert.Len(t, restored.Genomes, 2)
	assert.Equal(t, 20, restored.Config.Neat.PopSize)
}

func TestCheckpoint_Corrupt(t *testing.T) {
	cfg := testConfig(true)
	_, _, err := ReadCheckpoint(bytes.NewReader([]byte("not a checkpoint")), cfg)
	assert.Error(t, err)
}

func TestSaveCheckpoint_Errors(t *testing.T) {
	p, _, _ := testPopulation(t, true)
	dir := t.TempDir()

	err := p.SaveCheckpoint(filepath.Join(dir, "missing", "gen-1.gz"), 1)
	assert.ErrorContains(t, err, "failed to create checkpoint file")

	path := filepath.Join(dir, "gen-1.gz")
	require.NoError(t, p.SaveCheckpoint(path, 1))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
