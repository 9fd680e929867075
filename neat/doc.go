// Package neat provides a Go implementation of the NeuroEvolution of Augmenting Topologies (NEAT) algorithm.
//
// NEAT is a genetic algorithm for the generation of evolving artificial neural networks.
// It alters both the weighting parameters and structures of networks, attempting to find
// a balance between the fitness of evolved solutions and their diversity.
//
// Genomes are lists of connection genes ordered by innovation id. Every structural
// mutation goes through Genome.AddConnection or Genome.SplitConnection, which consult the
// population's InnovationTracker so that the same mutation made independently in two
// genomes is given the same ids, and (for acyclic genomes) a graph.CycleDetector so that
// no feedback connection is ever accepted.
//
// Basic usage:
//
//	config, err := neat.LoadConfig("path/to/config.ini")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	pop, err := neat.CreateInitialPopulation(config, rand.New(rand.NewSource(config.Neat.Seed)))
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
// The evolution package drives a population through generations; the nn package
// decodes genomes into runnable networks.
package neat
