package models

import (
	"sort"
	"time"

	"github.com/nvandessel/quorumlab/internal/constants"
)

// VoteRecord is one observed vote from a node's consensus log.
type VoteRecord struct {
	Sender    string    `json:"sender"`
	Weight    uint64    `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
	IsLate    bool      `json:"is_late"`
}

// ObservedRound groups the votes of a single round and step.
type ObservedRound struct {
	Round uint64         `json:"round"`
	Step  constants.Step `json:"step"`
	Votes []VoteRecord   `json:"votes"`
}

// TotalWeight returns the sum of vote weights in the round.
func (r ObservedRound) TotalWeight() uint64 {
	var total uint64
	for _, v := range r.Votes {
		total += v.Weight
	}
	return total
}

// Weights returns the vote weights in observed order.
func (r ObservedRound) Weights() []uint64 {
	out := make([]uint64, len(r.Votes))
	for i, v := range r.Votes {
		out[i] = v.Weight
	}
	return out
}

// VoteLog holds all observed rounds of one step, keyed by round number.
type VoteLog struct {
	Step   constants.Step
	Rounds map[uint64]*ObservedRound
}

// NewVoteLog returns an empty log for step.
func NewVoteLog(step constants.Step) *VoteLog {
	return &VoteLog{Step: step, Rounds: make(map[uint64]*ObservedRound)}
}

// Add appends a vote to its round, creating the round on first use.
func (l *VoteLog) Add(round uint64, v VoteRecord) {
	r, ok := l.Rounds[round]
	if !ok {
		r = &ObservedRound{Round: round, Step: l.Step}
		l.Rounds[round] = r
	}
	r.Votes = append(r.Votes, v)
}

// Sorted returns the rounds ordered by round number.
func (l *VoteLog) Sorted() []ObservedRound {
	out := make([]ObservedRound, 0, len(l.Rounds))
	for _, r := range l.Rounds {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// VoteCount returns the total number of votes across all rounds.
func (l *VoteLog) VoteCount() int {
	n := 0
	for _, r := range l.Rounds {
		n += len(r.Votes)
	}
	return n
}
