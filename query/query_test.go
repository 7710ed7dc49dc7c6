package query

import (
	"testing"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/extdata"
)

func record(step int64, x, y, rain float64) *extdata.Record {
	return &extdata.Record{
		Step:      step,
		PositionX: x,
		PositionY: y,
		Attributes: []extdata.Attribute{
			{Name: "rain", Kind: "decimal", F: rain},
		},
	}
}

func TestProbabilityExceedsAcrossReplicates(t *testing.T) {
	target := []ReplicateResult{
		{ReplicateID: "r0", Records: []*extdata.Record{record(0, 1, 1, 2.0)}},
		{ReplicateID: "r1", Records: []*extdata.Record{record(0, 1, 1, 4.0)}},
		{ReplicateID: "r2", Records: []*extdata.Record{record(0, 1, 1, 6.0)}},
	}
	result, err := Run(target, DataQuery{
		Variable:   "rain",
		Metric:     MetricProbability,
		MetricType: ConditionalExceeds,
		TargetA:    3.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := result.ValuePerTimestep[0]
	if !ok {
		t.Fatal("expected timestep 0 in result")
	}
	want := 2.0 / 3.0
	if got != want {
		t.Fatalf("expected probability %v, got %v", want, got)
	}
	grid, ok := result.GridPerTimestep[0]
	if !ok {
		t.Fatal("expected grid entry for timestep 0")
	}
	if v, ok := grid[[2]float64{1, 1}]; !ok || v != want {
		t.Fatalf("expected cell (1,1) == %v, got %v ok=%v", want, v, ok)
	}
}

func TestRunEmptyInput(t *testing.T) {
	_, err := Run(nil, DataQuery{Variable: "rain", Metric: MetricMean})
	if cmn.KindOf(err) != cmn.KindEmptyInput {
		t.Fatalf("expected EmptyInput, got %v", err)
	}
}

func TestRunUnknownMetric(t *testing.T) {
	target := []ReplicateResult{{ReplicateID: "r0", Records: []*extdata.Record{record(0, 0, 0, 1.0)}}}
	_, err := Run(target, DataQuery{Variable: "rain", Metric: "bogus"})
	if cmn.KindOf(err) != cmn.KindUnknownMetric {
		t.Fatalf("expected UnknownMetric, got %v", err)
	}
}

func TestRunRangeMismatchWithoutTargetB(t *testing.T) {
	target := []ReplicateResult{{ReplicateID: "r0", Records: []*extdata.Record{record(0, 0, 0, 1.0)}}}
	_, err := Run(target, DataQuery{
		Variable:   "rain",
		Metric:     MetricProbability,
		MetricType: ConditionalIsBetween,
		TargetA:    1.0,
	})
	if cmn.KindOf(err) != cmn.KindRangeMismatch {
		t.Fatalf("expected RangeMismatch, got %v", err)
	}
}

func TestMeanAcrossReplicatesSameCell(t *testing.T) {
	target := []ReplicateResult{
		{ReplicateID: "r0", Records: []*extdata.Record{record(1, 2, 2, 10.0)}},
		{ReplicateID: "r1", Records: []*extdata.Record{record(1, 2, 2, 20.0)}},
	}
	result, err := Run(target, DataQuery{Variable: "rain", Metric: MetricMean})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.ValuePerTimestep[1]; got != 15.0 {
		t.Fatalf("expected mean 15.0, got %v", got)
	}
}
