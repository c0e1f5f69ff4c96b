package supervisor

import (
	"testing"

	"github.com/markus8006/plcfleet/pkg/models"
)

func cfg(name string, rt models.RegisterType, address, count int) models.RegisterConfig {
	return models.RegisterConfig{
		Name:         name,
		RegisterType: rt,
		Address:      address,
		Count:        count,
		Active:       true,
	}
}

func TestBuildBatches_merges_adjacent_and_splits_types(t *testing.T) {
	configs := []models.RegisterConfig{
		cfg("a", models.RegisterHolding, 100, 1),
		cfg("b", models.RegisterHolding, 101, 2),
		cfg("c", models.RegisterHolding, 110, 1),
		cfg("d", models.RegisterInput, 200, 1),
		cfg("e", models.RegisterHolding, 104, 1),
	}

	batches := BuildBatches(configs)
	if len(batches) != 3 {
		t.Fatalf("len(batches) = %d, want 3", len(batches))
	}

	first := batches[0]
	if first.Type != models.RegisterHolding || first.Start != 100 || first.Count != 5 {
		t.Errorf("first batch = %s %d+%d, want holding 100+5", first.Type, first.Start, first.Count)
	}
	if len(first.Members) != 3 {
		t.Errorf("first batch members = %d, want 3 (a, b, e)", len(first.Members))
	}

	second := batches[1]
	if second.Type != models.RegisterHolding || second.Start != 110 || second.Count != 1 {
		t.Errorf("second batch = %s %d+%d, want holding 110+1", second.Type, second.Start, second.Count)
	}

	third := batches[2]
	if third.Type != models.RegisterInput || third.Start != 200 || third.Count != 1 {
		t.Errorf("third batch = %s %d+%d, want input 200+1", third.Type, third.Start, third.Count)
	}
}

func TestBuildBatches_respects_register_limit(t *testing.T) {
	var configs []models.RegisterConfig
	for i := 0; i < 200; i++ {
		configs = append(configs, cfg("r", models.RegisterHolding, i, 1))
	}

	batches := BuildBatches(configs)
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(batches))
	}
	if batches[0].Count != maxReadRegisters {
		t.Errorf("first batch count = %d, want %d", batches[0].Count, maxReadRegisters)
	}
	if batches[1].Start != maxReadRegisters || batches[1].Count != 75 {
		t.Errorf("second batch = %d+%d, want %d+75", batches[1].Start, batches[1].Count, maxReadRegisters)
	}
}

func TestBuildBatches_wide_gap_splits(t *testing.T) {
	configs := []models.RegisterConfig{
		cfg("a", models.RegisterHolding, 0, 1),
		cfg("b", models.RegisterHolding, 50, 1),
	}

	batches := BuildBatches(configs)
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(batches))
	}
}

func TestBuildBatches_members_covered(t *testing.T) {
	configs := []models.RegisterConfig{
		cfg("a", models.RegisterHolding, 10, 1),
		cfg("b", models.RegisterHolding, 11, 2),
		cfg("c", models.RegisterCoil, 0, 1),
		cfg("d", models.RegisterCoil, 1, 1),
		cfg("e", models.RegisterDiscrete, 5, 1),
	}

	batches := BuildBatches(configs)

	total := 0
	for _, b := range batches {
		total += len(b.Members)
		for i := range b.Members {
			c := &b.Members[i]
			if c.Address < b.Start || c.End() > b.End() {
				t.Errorf("member %s (%d+%d) outside batch %d+%d",
					c.Name, c.Address, c.Count, b.Start, b.Count)
			}
			off := b.Offset(c)
			if off < 0 || off+c.Count > b.Count {
				t.Errorf("member %s offset %d out of range", c.Name, off)
			}
		}
	}
	if total != len(configs) {
		t.Errorf("members across batches = %d, want %d", total, len(configs))
	}
}

func TestBuildBatches_empty(t *testing.T) {
	if got := BuildBatches(nil); len(got) != 0 {
		t.Errorf("BuildBatches(nil) = %v, want empty", got)
	}
}
