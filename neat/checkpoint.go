package neat

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// checkpointData holds the parts of a Population needed to resume a run. The config is
// not saved; it is reloaded from its original file. The innovation history is not saved
// either: a resumed run only loses reuse of ids for mutations made before the
// checkpoint.
type checkpointData struct {
	Generation       int
	NextGenomeID     int
	NextInnovationID int
	Genomes          []genomeData
}

type genomeData struct {
	ID              int
	BirthGeneration int
	Connections     []ConnectionGene
	Fitness         FitnessInfo
	EvaluationCount int
}

// WriteCheckpoint writes a gzip-compressed snapshot of the population at generation to w.
func (p *Population) WriteCheckpoint(w io.Writer, generation int) error {
	data := checkpointData{
		Generation:       generation,
		NextGenomeID:     p.GenomeIDs.Peek(),
		NextInnovationID: p.Innovations.InnovationIDs().Peek(),
		Genomes:          make([]genomeData, len(p.Genomes)),
	}
	for i, g := range p.Genomes {
		data.Genomes[i] = genomeData{
			ID:              g.ID,
			BirthGeneration: g.BirthGeneration,
			Connections:     g.Connections,
			Fitness:         g.Fitness,
			EvaluationCount: g.EvaluationCount,
		}
	}

	gzWriter := gzip.NewWriter(w)
	if err := gob.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	return nil
}

// ReadCheckpoint restores a population from a snapshot written by WriteCheckpoint. The
// saved id sequences are handed to NewPopulationWithSequences, so a corrupt snapshot whose
// sequences lag its own ids is rejected. It returns the saved generation number.
func ReadCheckpoint(r io.Reader, config *Config, opts ...PopulationOption) (*Population, int, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	var data checkpointData
	if err := gob.NewDecoder(gzReader).Decode(&data); err != nil {
		return nil, 0, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}

	// Genomes are re-linked to the freshly loaded genome config.
	genomes := make([]*Genome, len(data.Genomes))
	for i, gd := range data.Genomes {
		g, err := NewGenome(gd.ID, gd.BirthGeneration, &config.Genome, gd.Connections)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to restore genome %d: %w", gd.ID, err)
		}
		g.Fitness = gd.Fitness
		g.EvaluationCount = gd.EvaluationCount
		genomes[i] = g
	}

	p, err := NewPopulationWithSequences(config, genomes,
		NewIDSequence(data.NextGenomeID), NewIDSequence(data.NextInnovationID), opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to restore population: %w", err)
	}
	return p, data.Generation, nil
}

// SaveCheckpoint saves the population to a file.
func (p *Population) SaveCheckpoint(filePath string, generation int) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	if err := p.WriteCheckpoint(file, generation); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint file '%s': %w", filePath, err)
	}
	p.logger.Info("checkpoint saved", "path", filePath, "generation", generation)
	return nil
}

// LoadCheckpoint loads a population from a checkpoint file. It requires the original
// configuration file path to reconstruct the Config.
func LoadCheckpoint(checkpointPath, configPath string, opts ...PopulationOption) (*Population, int, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load config '%s' for checkpoint: %w", configPath, err)
	}

	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()

	p, generation, err := ReadCheckpoint(file, config, opts...)
	if err != nil {
		return nil, 0, err
	}
	p.logger.Info("checkpoint loaded", "path", checkpointPath, "generation", generation)
	return p, generation, nil
}
