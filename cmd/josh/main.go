// Package main is the Josh simulation core's process entrypoint.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/entity"
	"github.com/schmidtdse/josh/extdata"
	"github.com/schmidtdse/josh/internal/testutil"
	"github.com/schmidtdse/josh/scheduler"
)

// CLI surface (reference, spec.md §6): validate | run | server |
// preprocess | discoverConfig | test. Only run and test actually invoke
// the simulation core below; the rest belong to the external CLI/HTTP
// shells spec.md places out of scope, and this binary reports them as
// unsupported rather than silently no-opping.
func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		cmn.Log.Errorf("usage: josh <validate|run|server|preprocess|discoverConfig|test> [flags]")
		return 1
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "validate":
		return runValidate(rest)
	case "run":
		return runSimulation(rest, false)
	case "test":
		return runSimulation(rest, true)
	case "server", "preprocess", "discoverConfig":
		cmn.Log.Errorf("%s: serviced by the external CLI/HTTP shell, not by this core binary", cmd)
		return 1
	default:
		cmn.Log.Errorf("unknown command %q", cmd)
		return 1
	}
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON run config")
	if err := fs.Parse(args); err != nil {
		cmn.Log.Errorf("validate: %v", err)
		return 1
	}
	if *configPath == "" {
		cmn.Log.Errorf("validate: -config is required")
		return 1
	}
	data, err := os.ReadFile(*configPath)
	if err != nil {
		cmn.Log.Errorf("validate: reading config: %v", err)
		return 1
	}
	if _, err := cmn.LoadConfig(data); err != nil {
		cmn.Log.Errorf("validate: %v", err)
		return 1
	}
	fmt.Println("config ok")
	return 0
}

// runSimulation drives one built-in demo replicate through the scheduler
// against the given or default config. Wiring a real DSL-built Program
// here is the external collaborator's job (§1); this entrypoint exercises
// the same invocation contract (run and test both call scheduler.Replicate
// via the identical path) with the canonical grid scenario from
// internal/testutil, standing in for a DSL-supplied handler tree.
func runSimulation(args []string, smokeTest bool) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON run config (optional)")
	outPath := fs.String("out", "", "path to write exported records (optional, stdout-equivalent discard if empty)")
	gridWidth := fs.Int("width", 4, "demo grid width")
	gridHeight := fs.Int("height", 4, "demo grid height")
	if err := fs.Parse(args); err != nil {
		cmn.Log.Errorf("%v", err)
		return 1
	}

	config := &cmn.Config{Seed: 1, Replicates: 1, StartStep: 0, EndStep: 3}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			cmn.Log.Errorf("reading config: %v", err)
			return 1
		}
		loaded, err := cmn.LoadConfig(data)
		if err != nil {
			cmn.Log.Errorf("loading config: %v", err)
			return 1
		}
		config = loaded
	}
	if smokeTest {
		// test mode favors a short, fast deterministic run over the
		// config-supplied step range.
		config.EndStep = config.StartStep + 1
	}

	var sinkWriter *os.File
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			cmn.Log.Errorf("creating output: %v", err)
			return 1
		}
		defer f.Close()
		sinkWriter = f
	} else {
		sinkWriter = devNull()
		defer sinkWriter.Close()
	}
	sink := extdata.NewFileExportSink(sinkWriter, false)
	defer sink.Close()

	et, instances, reg := testutil.GridScenario(*gridWidth, *gridHeight)
	program := &scheduler.Program{
		Registry: reg,
		Types:    map[string]*entity.EntityType{et.TypeName(): et},
	}
	rep := scheduler.NewReplicate("r0", program, config, sink, instances)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := rep.Run(ctx); err != nil {
		cmn.Log.Errorf("replicate run failed: %v", err)
		return 1
	}
	cmn.Log.Infof("%s: replicate %s completed %d timesteps over %d entities in %s",
		commandLabel(smokeTest), rep.ID, config.EndStep-config.StartStep+1, len(instances), time.Since(start))
	return 0
}

func commandLabel(smokeTest bool) string {
	if smokeTest {
		return "test"
	}
	return "run"
}

func devNull() *os.File {
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		// os.DevNull must exist on every supported platform; fall back to
		// a throwaway temp file rather than crash the whole run.
		f, _ = os.CreateTemp("", "josh-discard-*")
	}
	return f
}
