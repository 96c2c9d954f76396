package game

// Phase is the session's position in the turn state machine.
// Transitions: Lobby -> Questioning -> Moving -> Surprise -> {Questioning | Finished}.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseQuestioning
	PhaseMoving
	PhaseSurprise
	PhaseFinished
)

var phaseNames = map[Phase]string{
	PhaseLobby:       "Lobby",
	PhaseQuestioning: "Questioning",
	PhaseMoving:      "Moving",
	PhaseSurprise:    "Surprise",
	PhaseFinished:    "Finished",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "Unknown"
}
