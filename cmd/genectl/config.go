package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gene/pkg/gene"
)

func loadRunRequestFromConfig(path string) (gene.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gene.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return gene.RunRequest{}, err
	}

	var req gene.RunRequest
	if v, ok := asString(raw["scorer"]); ok {
		req.Scorer = v
	}
	if v, ok := asString(raw["target"]); ok {
		req.Target = []byte(v)
	}
	if v, ok := asInt(raw["population_size"]); ok {
		req.PopulationSize = v
	}
	if v, ok := asInt(raw["genetic_code_length"]); ok {
		req.GeneticCodeLength = v
	}
	if v, ok := asFloat64(raw["keep_threshold"]); ok {
		req.KeepThreshold = gene.Float64(v)
	}
	if v, ok := asFloat64(raw["mutation_chance_percent"]); ok {
		req.MutationChancePercent = gene.Float64(v)
	}
	if v, ok := asString(raw["mutation_gate"]); ok {
		req.MutationGate = v
	}
	if v, ok := asInt(raw["emit_result_every"]); ok {
		req.EmitResultEvery = v
	}
	if v, ok := asInt(raw["max_generations"]); ok {
		req.MaxGenerations = v
	}
	if v, ok := asInt(raw["snapshot_buffer"]); ok {
		req.SnapshotBuffer = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies explicitly set flags on top of a config file.
// Fields left unset by both fall back to the defaults of gene.ConfigFromRequest.
func overrideFromFlags(req *gene.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "scorer":
			req.Scorer = v.(string)
		case "target":
			req.Target = []byte(v.(string))
		case "pop":
			req.PopulationSize = v.(int)
		case "length":
			req.GeneticCodeLength = v.(int)
		case "keep":
			req.KeepThreshold = gene.Float64(v.(float64))
		case "mutation-chance":
			req.MutationChancePercent = gene.Float64(v.(float64))
		case "mutation-gate":
			req.MutationGate = v.(string)
		case "emit-every":
			req.EmitResultEvery = v.(int)
		case "max-gens":
			req.MaxGenerations = v.(int)
		case "buffer":
			req.SnapshotBuffer = v.(int)
		case "seed":
			req.Seed = v.(int64)
		default:
			return fmt.Errorf("unsupported flag override: %s", name)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (gene.RunRequest, error) {
	if configPath == "" {
		return gene.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return gene.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
