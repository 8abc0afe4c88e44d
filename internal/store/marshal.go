package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/harness"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
	"github.com/LukasVik/funny-fifo/internal/sweep"
)

// paramsRecord is the stored form of harness.Params. The seed is always
// concrete: a stored point is replayed from exactly this record.
type paramsRecord struct {
	Seed             uint64       `json:"seed"`
	DataWidth        int          `json:"data_width"`
	FIFODepth        int          `json:"fifo_depth"`
	WriteClockPeriod int64        `json:"write_clock_period"`
	ReadClockPeriod  int64        `json:"read_clock_period"`
	WriteStall       stall.Config `json:"write_stall"`
	ReadStall        stall.Config `json:"read_stall"`
	Pattern          string       `json:"pattern"`
	WordCount        int          `json:"word_count"`
	Timeout          int64        `json:"timeout"`
	DrainCycles      int          `json:"drain_cycles"`
	StrictProtocol   bool         `json:"strict_protocol"`
}

// planRecord is the stored form of sweep.Plan.
type planRecord struct {
	Name             string       `json:"name"`
	RegressionSeeds  []uint64     `json:"regression_seeds"`
	RandomSeeds      int          `json:"random_seeds"`
	DataWidths       []int        `json:"data_widths"`
	FIFODepths       []int        `json:"fifo_depths"`
	Variant          string       `json:"variant"`
	Pattern          string       `json:"pattern"`
	WriteStall       stall.Config `json:"write_stall"`
	ReadStall        stall.Config `json:"read_stall"`
	WriteClockPeriod int64        `json:"write_clock_period"`
	ReadClockPeriod  int64        `json:"read_clock_period"`
	Timeout          int64        `json:"timeout"`
	DrainCycles      int          `json:"drain_cycles"`
	StrictProtocol   bool         `json:"strict_protocol"`
	Parallel         int          `json:"parallel"`
}

// encodeJSON renders v without HTML escaping or a trailing newline. Struct
// field order is fixed, so equal values always produce equal text.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func marshalParams(p harness.Params) (string, error) {
	if p.Seed == nil {
		return "", fmt.Errorf("marshal params: seed is not resolved")
	}
	data, err := encodeJSON(paramsRecord{
		Seed:             *p.Seed,
		DataWidth:        p.DataWidth,
		FIFODepth:        p.FIFODepth,
		WriteClockPeriod: int64(p.WriteClockPeriod),
		ReadClockPeriod:  int64(p.ReadClockPeriod),
		WriteStall:       p.WriteStall,
		ReadStall:        p.ReadStall,
		Pattern:          string(p.Pattern),
		WordCount:        p.WordCount,
		Timeout:          int64(p.Timeout),
		DrainCycles:      p.DrainCycles,
		StrictProtocol:   p.StrictProtocol,
	})
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return data, nil
}

func unmarshalParams(data string) (harness.Params, error) {
	var r paramsRecord
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return harness.Params{}, fmt.Errorf("unmarshal params: %w", err)
	}
	return harness.Params{
		Seed:             harness.Seed(r.Seed),
		DataWidth:        r.DataWidth,
		FIFODepth:        r.FIFODepth,
		WriteClockPeriod: sim.Time(r.WriteClockPeriod),
		ReadClockPeriod:  sim.Time(r.ReadClockPeriod),
		WriteStall:       r.WriteStall,
		ReadStall:        r.ReadStall,
		Pattern:          stimulus.Rule(r.Pattern),
		WordCount:        r.WordCount,
		Timeout:          sim.Time(r.Timeout),
		DrainCycles:      r.DrainCycles,
		StrictProtocol:   r.StrictProtocol,
	}, nil
}

func marshalPlan(p sweep.Plan) (string, error) {
	data, err := encodeJSON(planRecord{
		Name:             p.Name,
		RegressionSeeds:  p.RegressionSeeds,
		RandomSeeds:      p.RandomSeeds,
		DataWidths:       p.DataWidths,
		FIFODepths:       p.FIFODepths,
		Variant:          string(p.Variant),
		Pattern:          string(p.Pattern),
		WriteStall:       p.WriteStall,
		ReadStall:        p.ReadStall,
		WriteClockPeriod: int64(p.WriteClockPeriod),
		ReadClockPeriod:  int64(p.ReadClockPeriod),
		Timeout:          int64(p.Timeout),
		DrainCycles:      p.DrainCycles,
		StrictProtocol:   p.StrictProtocol,
		Parallel:         p.Parallel,
	})
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	return data, nil
}

func unmarshalPlan(data string) (sweep.Plan, error) {
	var r planRecord
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return sweep.Plan{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	return sweep.Plan{
		Name:             r.Name,
		RegressionSeeds:  r.RegressionSeeds,
		RandomSeeds:      r.RandomSeeds,
		DataWidths:       r.DataWidths,
		FIFODepths:       r.FIFODepths,
		Variant:          dut.Variant(r.Variant),
		Pattern:          stimulus.Rule(r.Pattern),
		WriteStall:       r.WriteStall,
		ReadStall:        r.ReadStall,
		WriteClockPeriod: sim.Time(r.WriteClockPeriod),
		ReadClockPeriod:  sim.Time(r.ReadClockPeriod),
		Timeout:          sim.Time(r.Timeout),
		DrainCycles:      r.DrainCycles,
		StrictProtocol:   r.StrictProtocol,
		Parallel:         r.Parallel,
	}, nil
}

// marshalFailure returns nil for a nil failure so the column stays NULL.
func marshalFailure(f *harness.Failure) (*string, error) {
	if f == nil {
		return nil, nil
	}
	data, err := encodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("marshal failure: %w", err)
	}
	return &data, nil
}

func unmarshalFailure(data *string) (*harness.Failure, error) {
	if data == nil || *data == "" {
		return nil, nil
	}
	var f harness.Failure
	if err := json.Unmarshal([]byte(*data), &f); err != nil {
		return nil, fmt.Errorf("unmarshal failure: %w", err)
	}
	return &f, nil
}
