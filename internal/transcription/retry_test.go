package transcription

import (
	"slices"
	"testing"
)

func TestPartitionSplitsAtThreshold(t *testing.T) {
	high, low := Partition([]float64{-0.4, -2.1, -1.5, -0.3}, -1.5)
	if !slices.Equal(high, []float64{-0.4, -1.5, -0.3}) {
		t.Fatalf("unexpected high side: %v", high)
	}
	if !slices.Equal(low, []float64{-2.1}) {
		t.Fatalf("unexpected low side: %v", low)
	}
}

func TestPartitionEmptyInput(t *testing.T) {
	high, low := Partition(nil, -1.5)
	if high != nil || low != nil {
		t.Fatalf("expected empty partitions, got %v / %v", high, low)
	}
}

func TestNextModelEscalatesOneTier(t *testing.T) {
	policy := RetryPolicy{Threshold: -1.5, MaxModel: "large-v3"}
	next, ok := policy.NextModel("small", []float64{-0.4, -2.1, -0.3})
	if !ok || next != "medium" {
		t.Fatalf("expected escalation to medium, got %q ok=%v", next, ok)
	}
}

func TestNextModelSkipsConfidentRuns(t *testing.T) {
	policy := RetryPolicy{Threshold: -1.5}
	if next, ok := policy.NextModel("small", []float64{-0.4, -1.5, -0.3}); ok {
		t.Fatalf("expected no escalation at threshold boundary, got %q", next)
	}
}

func TestNextModelRespectsCap(t *testing.T) {
	policy := RetryPolicy{Threshold: -1.5, MaxModel: "small"}
	if next, ok := policy.NextModel("small", []float64{-3.0}); ok {
		t.Fatalf("expected cap to block escalation, got %q", next)
	}
}

func TestNextModelStopsAtTopTier(t *testing.T) {
	policy := RetryPolicy{}
	if next, ok := policy.NextModel("large-v3", []float64{-3.0}); ok {
		t.Fatalf("expected no tier above large-v3, got %q", next)
	}
}

func TestNextModelIgnoresUnknownModels(t *testing.T) {
	policy := RetryPolicy{}
	if next, ok := policy.NextModel("turbo-custom", []float64{-3.0}); ok {
		t.Fatalf("expected unknown model to skip escalation, got %q", next)
	}
}

func TestNextModelDefaultsThreshold(t *testing.T) {
	policy := RetryPolicy{}
	if _, ok := policy.NextModel("tiny", []float64{-1.4}); ok {
		t.Fatal("-1.4 should clear the default threshold")
	}
	if next, ok := policy.NextModel("tiny", []float64{-1.6}); !ok || next != "base" {
		t.Fatalf("expected escalation to base, got %q ok=%v", next, ok)
	}
}

func TestNextModelNoSegments(t *testing.T) {
	policy := RetryPolicy{}
	if _, ok := policy.NextModel("small", nil); ok {
		t.Fatal("expected no escalation without segments")
	}
}
