package game

import "time"

// ContinuationScheduler abstracts delayed continuations so tests can fire
// them by hand instead of sleeping.
type ContinuationScheduler interface {
	AfterFunc(d time.Duration, fn func())
}

type realScheduler struct{}

func NewScheduler() ContinuationScheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// Timings are the pacing delays between orchestrated phases. They exist so
// humans can follow the broadcasts; tests zero them out.
type Timings struct {
	// lobby
	AutofillGrace  time.Duration // wait after quorum before seating stand-ins
	StartBroadcast time.Duration // wait after the table fills before dealing

	// turn flow
	AnswerReveal   time.Duration // between answer echo and the next step
	BotThink       time.Duration // automated decisions and turn openings
	TurnHandover   time.Duration // before a stand-in opens its first round
	SurpriseReveal time.Duration // before a rolled surprise is broadcast
	RemovalPause   time.Duration // extra delay when a removal was shown first
	StepPacing     time.Duration // per-tile movement animation allowance
	FetchRetry     time.Duration // re-check for a player's question list
}

func DefaultTimings() Timings {
	return Timings{
		AutofillGrace:  time.Second,
		StartBroadcast: 2 * time.Second,
		AnswerReveal:   2 * time.Second,
		BotThink:       3 * time.Second,
		TurnHandover:   3 * time.Second,
		SurpriseReveal: 3 * time.Second,
		RemovalPause:   3 * time.Second,
		StepPacing:     time.Second,
		FetchRetry:     500 * time.Millisecond,
	}
}
