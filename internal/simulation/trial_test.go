package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/quorumlab/internal/sampler"
	"github.com/nvandessel/quorumlab/internal/sortition"
)

func TestVotersToThreshold(t *testing.T) {
	tests := []struct {
		name        string
		weights     []uint64
		threshold   uint64
		wantVoters  int
		wantReached bool
	}{
		{"whale first", []uint64{700, 300, 113}, 1000, 2, true},
		{"arrival order", []uint64{113, 300, 700}, 1000, 3, true},
		{"first voter suffices", []uint64{5000, 1}, 1000, 1, true},
		{"exact hit", []uint64{400, 600}, 1000, 2, true},
		{"unreached", []uint64{1, 1}, 5, 2, false},
		{"empty", nil, 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voters, reached := VotersToThreshold(tt.weights, tt.threshold)
			if voters != tt.wantVoters || reached != tt.wantReached {
				t.Errorf("VotersToThreshold() = (%d, %v), want (%d, %v)", voters, reached, tt.wantVoters, tt.wantReached)
			}
		})
	}
}

func TestTrialPrefixIsMinimal(t *testing.T) {
	stakes := make([]float64, 0, 300)
	for i := 0; i < 300; i++ {
		stakes = append(stakes, float64(50+i*40))
	}
	var total float64
	for _, s := range stakes {
		total += s
	}
	model, err := sortition.NewModel(2990 / total)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	probs := model.SelectionProbabilities(stakes)

	ts := &trialState{r: sampler.New(7), sampler: &sampler.Calibrated{}}
	reachedOnce := false
	for i := 0; i < 50; i++ {
		out := ts.run(stakes, probs, model.Ratio(), 2267)
		if out.empty {
			continue
		}
		if out.selected != len(ts.weights) {
			t.Fatalf("selected = %d, weights = %d", out.selected, len(ts.weights))
		}
		if !out.reached {
			continue
		}
		reachedOnce = true
		AssertPrefixMinimal(t, ts.weights, 2267, out.voters)
	}
	if !reachedOnce {
		t.Fatal("no trial reached the threshold")
	}
}

func TestTrialEmptyWhenNothingSelected(t *testing.T) {
	ts := &trialState{r: sampler.New(1), sampler: &sampler.Calibrated{}}
	out := ts.run([]float64{10, 20}, []float64{0, 0}, 0.01, 5)
	if !out.empty {
		t.Errorf("expected empty trial, got %+v", out)
	}
	if out.voters != 0 {
		t.Errorf("voters = %d, want 0", out.voters)
	}
}

func TestSummarizeIsPopulationStd(t *testing.T) {
	mean, std := summarize([]int{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(mean-5) > 1e-12 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if math.Abs(std-2) > 1e-12 {
		t.Errorf("std = %v, want 2", std)
	}

	mean, std = summarize(nil)
	if mean != 0 || std != 0 {
		t.Errorf("summarize(nil) = (%v, %v), want (0, 0)", mean, std)
	}
}
