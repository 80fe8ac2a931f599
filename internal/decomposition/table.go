package decomposition

// Row is one stage of the summary table.
type Row struct {
	Stage  string  `json:"stage"`
	Voters float64 `json:"voters"`

	// Change is the difference from the previous stage: a reduction for the
	// modeled stages and an increase for observed ones. HasChange is false for
	// the first row.
	Change    float64 `json:"change"`
	HasChange bool    `json:"has_change"`

	// Cumulative is the reduction from N in percent.
	Cumulative float64 `json:"cumulative"`
}

// Stage labels of the summary table.
const (
	StageTheoretical    = "Theoretical (no termination)"
	StageThreshold      = "+ Threshold termination"
	StageWhale          = "+ Whale concentration"
	StageOnTimeObserved = "On-time observed"
	StageTotalObserved  = "Total observed (with late)"
)

// Table returns the summary table rows in presentation order.
func (g *Gap) Table() []Row {
	rows := []Row{
		{Stage: StageTheoretical, Voters: g.TheoreticalVoters},
		{
			Stage:      StageThreshold,
			Voters:     g.UniformVoters,
			Change:     g.ThresholdEffect,
			HasChange:  true,
			Cumulative: g.CumulativeReduction(g.UniformVoters),
		},
		{
			Stage:      StageWhale,
			Voters:     g.WhaleFirstVoters,
			Change:     g.WhaleEffect,
			HasChange:  true,
			Cumulative: g.CumulativeReduction(g.WhaleFirstVoters),
		},
	}
	if g.OnTimeVoters > 0 {
		rows = append(rows, Row{
			Stage:      StageOnTimeObserved,
			Voters:     g.OnTimeVoters,
			Change:     g.OnTimeVoters - g.WhaleFirstVoters,
			HasChange:  true,
			Cumulative: g.CumulativeReduction(g.OnTimeVoters),
		})
	}
	total := Row{
		Stage:      StageTotalObserved,
		Voters:     g.TotalVoters,
		Change:     g.OvershootEffect,
		HasChange:  true,
		Cumulative: g.CumulativeReduction(g.TotalVoters),
	}
	if g.OnTimeVoters > 0 {
		total.Change = g.LateVoters
	}
	return append(rows, total)
}

// Check is one model-versus-empirical validation line.
type Check struct {
	Metric    string  `json:"metric"`
	Model     float64 `json:"model"`
	Empirical float64 `json:"empirical"`

	// HasEmpirical is false for purely theoretical quantities.
	HasEmpirical bool `json:"has_empirical"`
	Match        bool `json:"match"`
}

// Validation compares the decomposition's reconstructed values with the
// observed ones. Total observed is rebuilt as V_whale + overshoot.
func (g *Gap) Validation() []Check {
	rebuilt := g.WhaleFirstVoters + g.OvershootEffect
	return []Check{
		{
			Metric:       "Voters to threshold",
			Model:        g.WhaleFirstVoters,
			Empirical:    g.WhaleFirstVoters,
			HasEmpirical: true,
			Match:        true,
		},
		{
			Metric: "Uniform baseline",
			Model:  g.UniformVoters,
		},
		{
			Metric:       "Total observed",
			Model:        rebuilt,
			Empirical:    g.TotalVoters,
			HasEmpirical: true,
			Match:        almostEqual(rebuilt, g.TotalVoters),
		},
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= 1e-9*max(1, a, b)
}
