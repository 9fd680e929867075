package neat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Config stores the configuration parameters for the NEAT algorithm.
type Config struct {
	Neat         NeatConfig         `yaml:"neat"`
	Genome       GenomeConfig       `yaml:"genome"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Speciation   SpeciationConfig   `yaml:"speciation"`
}

// NeatConfig holds run-level parameters.
type NeatConfig struct {
	PopSize            int   `ini:"pop_size" yaml:"pop_size"`
	SpeciesCount       int   `ini:"species_count" yaml:"species_count"`
	EvaluationWorkers  int   `ini:"evaluation_workers" yaml:"evaluation_workers"`   // 0 = runtime.NumCPU()
	CheckpointInterval int   `ini:"checkpoint_interval" yaml:"checkpoint_interval"` // 0 = never
	Seed               int64 `ini:"seed" yaml:"seed"`
}

// GenomeConfig is the metadata shared by every genome of a population. It is read-only
// once a population has been built around it.
type GenomeConfig struct {
	NumInputs   int  `ini:"num_inputs" yaml:"num_inputs"`
	NumOutputs  int  `ini:"num_outputs" yaml:"num_outputs"`
	FeedForward bool `ini:"feed_forward" yaml:"feed_forward"` // acyclic mode: recurrent connections are rejected

	ActivationFn                      string  `ini:"activation_fn" yaml:"activation_fn"`
	ConnectionWeightScale             float64 `ini:"connection_weight_scale" yaml:"connection_weight_scale"`
	CyclesPerActivation               int     `ini:"cycles_per_activation" yaml:"cycles_per_activation"` // cyclic networks only
	InitialInterconnectionsProportion float64 `ini:"initial_interconnections_proportion" yaml:"initial_interconnections_proportion"`
	BoundedOutput                     bool    `ini:"bounded_output" yaml:"bounded_output"`
	InnovationHistoryCapacity         int     `ini:"innovation_history_capacity" yaml:"innovation_history_capacity"`
}

// ReproductionConfig holds parameters related to reproduction.
type ReproductionConfig struct {
	ElitismProportion            float64 `ini:"elitism_proportion" yaml:"elitism_proportion"`
	SelectionProportion          float64 `ini:"selection_proportion" yaml:"selection_proportion"`
	OffspringAsexualProportion   float64 `ini:"offspring_asexual_proportion" yaml:"offspring_asexual_proportion"`
	InterspeciesMatingProportion float64 `ini:"interspecies_mating_proportion" yaml:"interspecies_mating_proportion"`

	WeightMutateProb float64 `ini:"weight_mutate_prob" yaml:"weight_mutate_prob"`
	NodeAddProb      float64 `ini:"node_add_prob" yaml:"node_add_prob"`
	ConnAddProb      float64 `ini:"conn_add_prob" yaml:"conn_add_prob"`
	ConnDeleteProb   float64 `ini:"conn_delete_prob" yaml:"conn_delete_prob"`

	WeightMutatePower       float64 `ini:"weight_mutate_power" yaml:"weight_mutate_power"`
	WeightReplaceRate       float64 `ini:"weight_replace_rate" yaml:"weight_replace_rate"`
	SecondaryParentGeneProb float64 `ini:"secondary_parent_gene_prob" yaml:"secondary_parent_gene_prob"`
}

// SpeciationConfig holds parameters related to speciation.
type SpeciationConfig struct {
	CompatibilityDisjointCoefficient float64 `ini:"compatibility_disjoint_coefficient" yaml:"compatibility_disjoint_coefficient"`
	CompatibilityWeightCoefficient   float64 `ini:"compatibility_weight_coefficient" yaml:"compatibility_weight_coefficient"`
	MaxKMeansIterations              int     `ini:"max_kmeans_iterations" yaml:"max_kmeans_iterations"`
}

// DefaultConfig returns a configuration that runs out of the box for a 2-input,
// 1-output acyclic task.
func DefaultConfig() *Config {
	return &Config{
		Neat: NeatConfig{
			PopSize:      150,
			SpeciesCount: 10,
		},
		Genome: GenomeConfig{
			NumInputs:                         2,
			NumOutputs:                        1,
			FeedForward:                       true,
			ActivationFn:                      "sigmoid",
			ConnectionWeightScale:             5.0,
			CyclesPerActivation:               1,
			InitialInterconnectionsProportion: 1.0,
			InnovationHistoryCapacity:         0x20000,
		},
		Reproduction: ReproductionConfig{
			ElitismProportion:            0.2,
			SelectionProportion:          0.2,
			OffspringAsexualProportion:   0.5,
			InterspeciesMatingProportion: 0.01,
			WeightMutateProb:             0.94,
			NodeAddProb:                  0.01,
			ConnAddProb:                  0.025,
			ConnDeleteProb:               0.025,
			WeightMutatePower:            0.5,
			WeightReplaceRate:            0.1,
			SecondaryParentGeneProb:      0.1,
		},
		Speciation: SpeciationConfig{
			CompatibilityDisjointCoefficient: 1.0,
			CompatibilityWeightCoefficient:   0.5,
			MaxKMeansIterations:              5,
		},
	}
}

// LoadConfig loads configuration parameters from a file. Files ending in .yaml or .yml
// are parsed as YAML, anything else as INI. Values missing from the file keep the
// defaults from DefaultConfig.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
		}
	default:
		if err := loadIni(filePath, config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadIni(filePath string, config *Config) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true, // Allow # comments starting with # or ;
		UnescapeValueCommentSymbols: true, // If # or ; appear in value, treat as value
	}, filePath)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	// Map sections to structs
	sections := []struct {
		name   string
		target any
	}{
		{"NEAT", &config.Neat},
		{"Genome", &config.Genome},
		{"Reproduction", &config.Reproduction},
		{"Speciation", &config.Speciation},
	}
	for _, s := range sections {
		if !cfg.HasSection(s.name) {
			continue
		}
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	config.Genome.ActivationFn = cleanIniString(config.Genome.ActivationFn)
	return nil
}

// Validate checks parameter ranges and returns the first problem found.
func (c *Config) Validate() error {
	if c.Neat.PopSize <= 0 {
		return fmt.Errorf("config error: pop_size must be positive")
	}
	if c.Neat.SpeciesCount <= 0 {
		return fmt.Errorf("config error: species_count must be positive")
	}
	if c.Neat.SpeciesCount > c.Neat.PopSize {
		return fmt.Errorf("config error: species_count (%d) cannot exceed pop_size (%d)", c.Neat.SpeciesCount, c.Neat.PopSize)
	}
	if c.Neat.EvaluationWorkers < 0 {
		return fmt.Errorf("config error: evaluation_workers cannot be negative")
	}
	if c.Neat.CheckpointInterval < 0 {
		return fmt.Errorf("config error: checkpoint_interval cannot be negative")
	}
	if err := c.Genome.Validate(); err != nil {
		return err
	}

	r := c.Reproduction
	probabilities := []struct {
		name  string
		value float64
	}{
		{"elitism_proportion", r.ElitismProportion},
		{"selection_proportion", r.SelectionProportion},
		{"offspring_asexual_proportion", r.OffspringAsexualProportion},
		{"interspecies_mating_proportion", r.InterspeciesMatingProportion},
		{"weight_mutate_prob", r.WeightMutateProb},
		{"node_add_prob", r.NodeAddProb},
		{"conn_add_prob", r.ConnAddProb},
		{"conn_delete_prob", r.ConnDeleteProb},
		{"weight_replace_rate", r.WeightReplaceRate},
		{"secondary_parent_gene_prob", r.SecondaryParentGeneProb},
	}
	for _, p := range probabilities {
		if p.value < 0 || p.value > 1 {
			return fmt.Errorf("config error: %s must be between 0 and 1", p.name)
		}
	}
	if r.SelectionProportion == 0 {
		return fmt.Errorf("config error: selection_proportion must be positive")
	}
	if r.WeightMutateProb+r.NodeAddProb+r.ConnAddProb+r.ConnDeleteProb <= 0 {
		return fmt.Errorf("config error: at least one mutation probability must be positive")
	}
	if r.WeightMutatePower < 0 {
		return fmt.Errorf("config error: weight_mutate_power cannot be negative")
	}

	if c.Speciation.CompatibilityDisjointCoefficient < 0 {
		return fmt.Errorf("config error: compatibility_disjoint_coefficient cannot be negative")
	}
	if c.Speciation.CompatibilityWeightCoefficient < 0 {
		return fmt.Errorf("config error: compatibility_weight_coefficient cannot be negative")
	}
	if c.Speciation.MaxKMeansIterations <= 0 {
		return fmt.Errorf("config error: max_kmeans_iterations must be positive")
	}
	return nil
}

// Validate checks the genome metadata.
func (gc *GenomeConfig) Validate() error {
	if gc.NumInputs <= 0 {
		return fmt.Errorf("config error: num_inputs must be positive")
	}
	if gc.NumOutputs <= 0 {
		return fmt.Errorf("config error: num_outputs must be positive")
	}
	if gc.ConnectionWeightScale <= 0 {
		return fmt.Errorf("config error: connection_weight_scale must be positive")
	}
	if !gc.FeedForward && gc.CyclesPerActivation <= 0 {
		return fmt.Errorf("config error: cycles_per_activation must be positive for recurrent genomes")
	}
	if gc.InitialInterconnectionsProportion < 0 || gc.InitialInterconnectionsProportion > 1 {
		return fmt.Errorf("config error: initial_interconnections_proportion must be between 0 and 1")
	}
	if gc.InnovationHistoryCapacity <= 0 {
		return fmt.Errorf("config error: innovation_history_capacity must be positive")
	}
	if gc.ActivationFn == "" {
		return fmt.Errorf("config error: activation_fn must be specified")
	}
	return nil
}

// FixedNodeCount returns the number of input plus output nodes.
func (gc *GenomeConfig) FixedNodeCount() int {
	return gc.NumInputs + gc.NumOutputs
}

// IsInputNode reports whether id is one of the input node ids.
func (gc *GenomeConfig) IsInputNode(id int) bool {
	return id >= 0 && id < gc.NumInputs
}

// IsOutputNode reports whether id is one of the output node ids.
func (gc *GenomeConfig) IsOutputNode(id int) bool {
	return id >= gc.NumInputs && id < gc.FixedNodeCount()
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	// Remove comments starting with # or ;
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
