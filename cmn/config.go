// Package cmn provides common low-level types, errors, and utilities shared
// by every package in the simulation core. Adapted from the teacher's
// cmn/config.go: same load-then-Validate() shape, same json-iterator
// dependency, repurposed from cluster/bucket configuration to simulation
// run configuration.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package cmn

import (
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Validator is implemented by config sections that can self-check after
// load, mirroring the teacher's cmn/config.go Validator interface.
type Validator interface {
	Validate() error
}

// Config is the process-wide configuration for a run of the simulation
// core: which execution mode (seed, replicate count, decimal precision
// mode) governs value algebra and the scheduler. DSL program content,
// geospatial file bindings, and writer target selection are NOT part of
// this struct — those are supplied by the external collaborators named in
// §6 and merely referenced here by opaque paths/URIs.
type Config struct {
	// Seed is the RNG seed; every replicate uses Seed unchanged, so no
	// per-replicate seed is derived from a replicate index.
	Seed int64 `json:"seed"`
	// Replicates is the number of independent replicates to run.
	Replicates int `json:"replicates"`
	// StartStep/EndStep bound the outer timestep loop (§4.7).
	StartStep int64 `json:"start_step"`
	EndStep   int64 `json:"end_step"`
	// BigDecimal is decoded and stored, but nothing in the core reads it:
	// decimal mode is chosen per value by the constructor used
	// (value.DecimalBig or value.DecimalFloat), not by this field.
	BigDecimal bool `json:"big_decimal"`
	// MaxParallelReplicates bounds the errgroup worker count for §5's
	// "parallel execution of replicates"; 0 means no limit.
	MaxParallelReplicates int `json:"max_parallel_replicates"`
	// Variation is the raw job-variation binding string, parsed by
	// extdata.ParseVariation.
	Variation string `json:"variation"`
}

// Validate implements Validator.
func (c *Config) Validate() error {
	if c.Replicates <= 0 {
		return New(KindParseError, "replicates must be positive, got %d", c.Replicates)
	}
	if c.EndStep < c.StartStep {
		return New(KindParseError, "end_step %d precedes start_step %d", c.EndStep, c.StartStep)
	}
	return nil
}

// LoadConfig decodes JSON config bytes via json-iterator (the teacher's
// own drop-in encoding/json replacement) and validates the result.
func LoadConfig(data []byte) (*Config, error) {
	cfg := &Config{MaxParallelReplicates: 0}
	if err := jsonAPI.Unmarshal(data, cfg); err != nil {
		return nil, Wrap(KindParseError, err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MarshalJSON re-exposes the jsoniter encoder for other packages (e.g.
// extdata's export sink) that want the same JSON behavior without taking
// a direct jsoniter dependency.
func MarshalJSON(v interface{}) ([]byte, error) { return jsonAPI.Marshal(v) }

// UnmarshalJSON mirrors MarshalJSON for decoding.
func UnmarshalJSON(data []byte, v interface{}) error { return jsonAPI.Unmarshal(data, v) }
