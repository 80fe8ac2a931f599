package tiering

import (
	"fmt"
	"math"
	"testing"

	"github.com/nvandessel/quorumlab/internal/constants"
	"github.com/nvandessel/quorumlab/internal/models"
)

func testDistribution(t *testing.T, n int) *models.StakeDistribution {
	t.Helper()
	accounts := make([]models.StakeAccount, n)
	for i := range accounts {
		// Rank i+1 has stake n-i.
		accounts[i] = models.StakeAccount{Address: fmt.Sprintf("A%03d", i+1), Stake: float64(n - i)}
	}
	d, err := models.NewStakeDistribution(accounts)
	if err != nil {
		t.Fatalf("NewStakeDistribution() error = %v", err)
	}
	return d
}

func TestProfiler_Profile(t *testing.T) {
	mapper, err := NewTierMapper(DefaultTierConfig())
	if err != nil {
		t.Fatalf("NewTierMapper() error = %v", err)
	}
	p := NewProfiler(testDistribution(t, 600), mapper)

	if r, ok := p.Rank("A001"); !ok || r != 1 {
		t.Errorf("Rank(A001) = (%d, %v), want (1, true)", r, ok)
	}

	soft := models.NewVoteLog(constants.StepSoft)
	soft.Add(1, models.VoteRecord{Sender: "A001", Weight: 60})
	soft.Add(1, models.VoteRecord{Sender: "A015", Weight: 20})
	soft.Add(2, models.VoteRecord{Sender: "A550", Weight: 5})
	soft.Add(2, models.VoteRecord{Sender: "GHOST", Weight: 15})

	cert := models.NewVoteLog(constants.StepCert)
	cert.Add(1, models.VoteRecord{Sender: "A002", Weight: 10})
	cert.Add(1, models.VoteRecord{Sender: "GHOST", Weight: 1})
	cert.Add(1, models.VoteRecord{Sender: "OTHER", Weight: 1})

	prof := p.Profile(soft, cert)
	if len(prof.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(prof.Steps))
	}

	sp := prof.Steps[0]
	if sp.Step != constants.StepSoft {
		t.Errorf("Step = %q, want soft", sp.Step)
	}
	if sp.TotalVotes != 4 || sp.TotalWeight != 100 {
		t.Errorf("totals = (%d, %d), want (4, 100)", sp.TotalVotes, sp.TotalWeight)
	}
	if sp.Rounds != 2 || sp.VotesPerRound() != 2 {
		t.Errorf("Rounds = %d, VotesPerRound = %v", sp.Rounds, sp.VotesPerRound())
	}
	if sp.UnknownVotes != 1 {
		t.Errorf("UnknownVotes = %d, want 1", sp.UnknownVotes)
	}

	byLabel := make(map[string]TierStats)
	for _, ts := range sp.Tiers {
		byLabel[ts.Label] = ts
	}
	if got := byLabel["1-10"]; got.Votes != 1 || got.Weight != 60 || got.WeightPercent != 60 || got.VotesPercent != 25 {
		t.Errorf("1-10 = %+v", got)
	}
	if got := byLabel["11-20"]; got.Weight != 20 {
		t.Errorf("11-20 weight = %d, want 20", got.Weight)
	}
	if got := byLabel["500+"]; got.Votes != 2 || got.Weight != 20 || got.AvgWeight != 10 {
		t.Errorf("500+ = %+v", got)
	}
	if got := byLabel["21-30"]; got.Votes != 0 || got.AvgWeight != 0 || got.WeightPercent != 0 {
		t.Errorf("21-30 = %+v, want zero", got)
	}

	if got := sp.TopWeightPercent(10); math.Abs(got-60) > 1e-9 {
		t.Errorf("TopWeightPercent(10) = %v, want 60", got)
	}
	if got := sp.TopWeightPercent(20); math.Abs(got-80) > 1e-9 {
		t.Errorf("TopWeightPercent(20) = %v, want 80", got)
	}

	want := []string{"GHOST", "OTHER"}
	if len(prof.UnknownSenders) != len(want) {
		t.Fatalf("UnknownSenders = %v, want %v", prof.UnknownSenders, want)
	}
	for i := range want {
		if prof.UnknownSenders[i] != want[i] {
			t.Errorf("UnknownSenders[%d] = %q, want %q", i, prof.UnknownSenders[i], want[i])
		}
	}
}

func TestProfiler_EmptyLog(t *testing.T) {
	mapper, _ := NewTierMapper(DefaultTierConfig())
	p := NewProfiler(testDistribution(t, 3), mapper)

	prof := p.Profile(models.NewVoteLog(constants.StepCert))
	sp := prof.Steps[0]
	if sp.TotalVotes != 0 || sp.VotesPerRound() != 0 || sp.TopWeightPercent(10) != 0 {
		t.Errorf("empty profile = %+v", sp)
	}
	if len(sp.Tiers) != 8 {
		t.Errorf("len(Tiers) = %d, want 8", len(sp.Tiers))
	}
	if prof.UnknownSenders == nil {
		t.Error("UnknownSenders should be empty, not nil")
	}
}

func TestProfiler_DormantSenderIsKnown(t *testing.T) {
	mapper, err := NewTierMapper(DefaultTierConfig())
	if err != nil {
		t.Fatalf("NewTierMapper() error = %v", err)
	}
	accounts := make([]models.StakeAccount, 0, 601)
	for i := 0; i < 600; i++ {
		accounts = append(accounts, models.StakeAccount{Address: fmt.Sprintf("A%03d", i+1), Stake: float64(600 - i)})
	}
	accounts = append(accounts, models.StakeAccount{Address: "EMPTY", Stake: 0})
	dist, err := models.NewStakeDistribution(accounts)
	if err != nil {
		t.Fatalf("NewStakeDistribution() error = %v", err)
	}
	p := NewProfiler(dist, mapper)

	if r, ok := p.Rank("EMPTY"); !ok || r != 601 {
		t.Errorf("Rank(EMPTY) = (%d, %v), want (601, true)", r, ok)
	}

	vl := models.NewVoteLog(constants.StepCert)
	vl.Add(1, models.VoteRecord{Sender: "EMPTY", Weight: 3})
	prof := p.Profile(vl)

	if len(prof.UnknownSenders) != 0 {
		t.Errorf("UnknownSenders = %v, want none", prof.UnknownSenders)
	}
	sp := prof.Steps[0]
	if sp.UnknownVotes != 0 {
		t.Errorf("UnknownVotes = %d, want 0", sp.UnknownVotes)
	}
	last := sp.Tiers[len(sp.Tiers)-1]
	if last.Label != "500+" || last.Votes != 1 || last.Weight != 3 {
		t.Errorf("open tier = %+v, want one vote of weight 3 in 500+", last)
	}
}
