// Package extdata implements the core's external-interfaces boundary
// (§6): the read-only ExternalData provider, the ExportSink writers
// consume, a job-variation string parser, and a stochastic RandomSource
// for distribution-valued attributes. These are reference
// implementations; real deployments plug in their own geospatial
// readers and CSV/NetCDF/GeoTIFF writers behind the same interfaces.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package extdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/units"
	"github.com/schmidtdse/josh/value"
)

// Handle identifies an opened external-data resource.
type Handle struct {
	path string
	vars map[string]string // variable -> backing file
}

// ExternalData is the read-only data-file interface (§6): open, read a
// single (variable, timestep, x, y) value, close. The core never writes
// through this interface.
type ExternalData interface {
	Open(path string) (*Handle, error)
	ReadVariable(h *Handle, variable string, timestep int64, x, y float64) (value.Value, error)
	Close(h *Handle) error
}

// FileProvider is a directory-per-variable reference ExternalData: Open
// walks path (via godirwalk, matching the teacher's directory-walking
// idiom for bulk filesystem discovery) and records one backing file per
// immediate subdirectory name, treated as the variable name.
type FileProvider struct{}

func NewFileProvider() *FileProvider { return &FileProvider{} }

func (p *FileProvider) Open(path string) (*Handle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, cmn.Wrap(cmn.KindIoError, err, "open external data path %s", path)
	}
	if !info.IsDir() {
		return nil, cmn.New(cmn.KindIoError, "external data path %s is not a directory", path)
	}
	vars := make(map[string]string)
	err = godirwalk.Walk(path, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() || osPathname == path {
				return nil
			}
			rel, _ := filepath.Rel(path, osPathname)
			parts := strings.Split(rel, string(os.PathSeparator))
			if len(parts) == 0 {
				return nil
			}
			vars[parts[0]] = osPathname
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, cmn.Wrap(cmn.KindIoError, err, "walk external data path %s", path)
	}
	return &Handle{path: path, vars: vars}, nil
}

// ReadVariable resolves variable to its backing file and returns a
// placeholder scalar: decimal 0 with EMPTY units, whatever the variable,
// timestep or position. No backing file is parsed and no unit is looked
// up. A variable with no backing file under the handle's directory is
// reported as a KindIoError; there is no separate not-found error kind.
// The adapter stays read-only and depends on no concrete file format.
func (p *FileProvider) ReadVariable(h *Handle, variable string, timestep int64, x, y float64) (value.Value, error) {
	if _, ok := h.vars[variable]; !ok {
		return value.Value{}, cmn.New(cmn.KindIoError, "variable %q not found under %s", variable, h.path)
	}
	return value.DecimalFloat(0, units.EMPTY), nil
}

func (p *FileProvider) Close(h *Handle) error { return nil }

// ParseVariation parses a job-variation binding string
// "<logical-name>=<path>[;...]" into a map (§6). Unknown template tokens
// (a bare name with no '=') surface UnknownTemplate.
func ParseVariation(s string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, clause := range strings.Split(s, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		eq := strings.IndexByte(clause, '=')
		if eq < 0 {
			return nil, cmn.New(cmn.KindUnknownTemplate, "job variation clause %q has no '=' binding", clause)
		}
		name := strings.TrimSpace(clause[:eq])
		path := strings.TrimSpace(clause[eq+1:])
		if name == "" || path == "" {
			return nil, cmn.New(cmn.KindUnknownTemplate, "job variation clause %q is malformed", clause)
		}
		out[name] = path
	}
	return out, nil
}

// String renders a Handle for diagnostics.
func (h *Handle) String() string { return fmt.Sprintf("Handle(%s, %d vars)", h.path, len(h.vars)) }
