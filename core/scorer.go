package core

import (
	"time"

	"github.com/mythologiq/hearthlink-core/domain"
)

// ScoreFactors are the deterministic inputs to a performance scorer.
// Balance is in [0,1]: 1 means every participant contributed an equal share
// of the message log, 0 means a single participant produced everything.
type ScoreFactors struct {
	Duration         time.Duration
	ParticipantCount int
	MessageCount     int
	TurnSwitchCount  int
	Balance          float64
}

// Scorer turns session counters into a performance score. Implementations
// must be pure and monotonic in Balance: more balanced participation never
// yields a lower score.
type Scorer func(f ScoreFactors) float64

// DefaultScorer mirrors the historical score breakdown: points for session
// uptime, activity, collaboration breadth, and participation balance.
func DefaultScorer(f ScoreFactors) float64 {
	uptime := f.Duration.Hours() * 10
	if uptime > 100 {
		uptime = 100
	}

	activity := float64(f.MessageCount) * 2
	if activity > 30 {
		activity = 30
	}

	collaboration := float64(f.ParticipantCount) * 5
	if collaboration > 25 {
		collaboration = 25
	}

	balance := f.Balance * 25

	return uptime + activity + collaboration + balance
}

// participationBalance computes how evenly the message log is spread over
// participants. Sessions with no messages or a single participant count as
// perfectly balanced.
func participationBalance(s *domain.ChatSession) float64 {
	if len(s.Messages) == 0 || len(s.Participants) < 2 {
		return 1
	}

	counts := make(map[string]int, len(s.Participants))
	for _, m := range s.Messages {
		counts[m.SenderID]++
	}

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	n := float64(len(s.Participants))
	maxShare := float64(max) / float64(len(s.Messages))
	even := 1 / n

	// Scale the dominant share onto [0,1] where even contribution is 1.
	balance := 1 - (maxShare-even)/(1-even)
	if balance < 0 {
		balance = 0
	}
	return balance
}
