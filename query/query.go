// Package query implements the cross-replicate query/metrics layer
// (C8): given a target set of per-replicate records and a DataQuery,
// gather every record that carries the queried variable, group by
// timestep and grid cell, and compute the requested aggregate. Records
// are not filtered by entity type: a non-patch record carrying the
// variable is gathered too.
//
// Grounded on ec/manager.go's role of combining many independent
// erasure-coded slices into one reconstructed object: here the "slices"
// are each replicate's independent records for one variable, combined
// into one SummarizedResult. Counter naming follows
// stats/target_stats.go's "*.n" (count) / "*.ns" (latency) convention, adapted
// to this package's metric names.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package query

import (
	"math"
	"sort"
	"time"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/extdata"
)

// Metric names the aggregate strategy (§4.8).
type Metric string

const (
	MetricMean        Metric = "mean"
	MetricMedian      Metric = "median"
	MetricMin         Metric = "min"
	MetricMax         Metric = "max"
	MetricStd         Metric = "std"
	MetricProbability Metric = "probability"
)

// Conditional names the probability metric's comparison (§4.8).
type Conditional string

const (
	ConditionalExceeds    Conditional = "exceeds"
	ConditionalFallsBelow Conditional = "falls_below"
	ConditionalIsBetween  Conditional = "is_between"
)

// DataQuery is the query input (§4.8).
type DataQuery struct {
	Variable    string
	Metric      Metric
	MetricType  Conditional
	TargetA     float64
	TargetB     float64
	HasTargetB  bool
}

// SummarizedResult is the query output (§4.8).
type SummarizedResult struct {
	MinX, MinY, MaxX, MaxY float64
	ValuePerTimestep       map[int64]float64
	GridPerTimestep        map[int64]map[[2]float64]float64
}

// ReplicateResult is one replicate's exported records, the query
// input's unit of gathering (§4.8's "target : list<ReplicateResult>").
type ReplicateResult struct {
	ReplicateID string
	Records     []*extdata.Record
}

// cell rounds (x, y) to 2 decimal places, matching §4.8's "(timestep,
// round(x,2), round(y,2))" grouping key.
func cell(x, y float64) [2]float64 {
	return [2]float64{math.Round(x*100) / 100, math.Round(y*100) / 100}
}

// Run executes query over target (§4.8). seen is a scratch cuckoo
// filter that Run always builds and fills with every (timestep, cell)
// key; it is not consulted before the exact per-cell map insert below,
// which alone feeds the aggregate, so it introduces no approximation.
func Run(target []ReplicateResult, q DataQuery) (*SummarizedResult, error) {
	if len(target) == 0 {
		return nil, cmn.New(cmn.KindEmptyInput, "query: no replicates supplied")
	}
	if !isKnownMetric(q.Metric) {
		return nil, cmn.New(cmn.KindUnknownMetric, "query: unknown metric %q", q.Metric)
	}
	if q.Metric == MetricProbability && q.MetricType == ConditionalIsBetween && !q.HasTargetB {
		return nil, cmn.New(cmn.KindRangeMismatch, "query: is_between requires target_b")
	}

	gatherStart := time.Now()
	byTimestep := make(map[int64][]float64)
	byCell := make(map[int64]map[[2]float64][]float64)

	seen := cuckoo.NewFilter(1024)

	for _, rep := range target {
		for _, rec := range rep.Records {
			val, ok := attrFloat(rec, q.Variable)
			if !ok {
				continue
			}
			byTimestep[rec.Step] = append(byTimestep[rec.Step], val)

			c := cell(rec.PositionX, rec.PositionY)
			key := cellKey(rec.Step, c)
			if !seen.Lookup(key) {
				seen.Insert(key)
			}
			if byCell[rec.Step] == nil {
				byCell[rec.Step] = make(map[[2]float64][]float64)
			}
			byCell[rec.Step][c] = append(byCell[rec.Step][c], val)
		}
	}

	gatherCount.Inc()
	gatherLatency.Observe(float64(time.Since(gatherStart).Nanoseconds()))

	totalCells := 0
	for _, cells := range byCell {
		totalCells += len(cells)
	}
	cellCount.Set(float64(totalCells))

	result := &SummarizedResult{
		ValuePerTimestep: make(map[int64]float64),
		GridPerTimestep:  make(map[int64]map[[2]float64]float64),
	}
	result.MinX, result.MinY, result.MaxX, result.MaxY = bounds(byCell)

	for step, vals := range byTimestep {
		v, err := aggregate(vals, q)
		if err != nil {
			return nil, err
		}
		result.ValuePerTimestep[step] = v
	}
	for step, cells := range byCell {
		grid := make(map[[2]float64]float64, len(cells))
		for c, vals := range cells {
			v, err := aggregate(vals, q)
			if err != nil {
				return nil, err
			}
			grid[c] = v
		}
		result.GridPerTimestep[step] = grid
	}
	return result, nil
}

func cellKey(step int64, c [2]float64) []byte {
	buf := make([]byte, 0, 24)
	buf = appendInt64(buf, step)
	buf = appendInt64(buf, int64(c[0]*100))
	buf = appendInt64(buf, int64(c[1]*100))
	return buf
}

func appendInt64(buf []byte, v int64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}

func bounds(byCell map[int64]map[[2]float64][]float64) (minX, minY, maxX, maxY float64) {
	first := true
	for _, cells := range byCell {
		for c := range cells {
			if first {
				minX, maxX = c[0], c[0]
				minY, maxY = c[1], c[1]
				first = false
				continue
			}
			minX = math.Min(minX, c[0])
			maxX = math.Max(maxX, c[0])
			minY = math.Min(minY, c[1])
			maxY = math.Max(maxY, c[1])
		}
	}
	return
}

func attrFloat(rec *extdata.Record, variable string) (float64, bool) {
	for _, a := range rec.Attributes {
		if a.Name != variable {
			continue
		}
		switch a.Kind {
		case "int64":
			return float64(a.I), true
		case "decimal":
			return a.F, true
		case "bool":
			if a.B {
				return 1, true
			}
			return 0, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func isKnownMetric(m Metric) bool {
	switch m {
	case MetricMean, MetricMedian, MetricMin, MetricMax, MetricStd, MetricProbability:
		return true
	default:
		return false
	}
}

func aggregate(vals []float64, q DataQuery) (float64, error) {
	switch q.Metric {
	case MetricMean:
		return mean(vals), nil
	case MetricMedian:
		return median(vals), nil
	case MetricMin:
		return extremum(vals, true), nil
	case MetricMax:
		return extremum(vals, false), nil
	case MetricStd:
		return std(vals), nil
	case MetricProbability:
		return probability(vals, q)
	default:
		return 0, cmn.New(cmn.KindUnknownMetric, "unknown metric %q", q.Metric)
	}
}

// probability implements §4.8's "count(matching) / total" rule,
// including §8's boundary law that an inverted is_between range (a > b)
// yields probability 0, never an error.
func probability(vals []float64, q DataQuery) (float64, error) {
	if len(vals) == 0 {
		return 0, cmn.New(cmn.KindEmptyInput, "probability: no values")
	}
	match := 0
	for _, v := range vals {
		switch q.MetricType {
		case ConditionalExceeds:
			if v > q.TargetA {
				match++
			}
		case ConditionalFallsBelow:
			if v < q.TargetA {
				match++
			}
		case ConditionalIsBetween:
			if q.TargetA <= q.TargetB && v >= q.TargetA && v <= q.TargetB {
				match++
			}
		default:
			return 0, cmn.New(cmn.KindUnknownMetric, "probability: unknown conditional %q", q.MetricType)
		}
	}
	return float64(match) / float64(len(vals)), nil
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func extremum(vals []float64, min bool) float64 {
	best := vals[0]
	for _, v := range vals[1:] {
		if (min && v < best) || (!min && v > best) {
			best = v
		}
	}
	return best
}

func std(vals []float64) float64 {
	if len(vals) <= 1 {
		return 0
	}
	m := mean(vals)
	var sumSq float64
	for _, v := range vals {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vals)))
}
