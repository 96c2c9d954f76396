package game

// Player is one seat in a session. The struct survives for the whole game:
// collision losers stay in the slice with Removed set so indexes keep meaning,
// and disconnected humans become automated stand-ins instead of leaving.
type Player struct {
	Id              string `json:"id"`
	Name            string `json:"name"`
	Color           string `json:"color"`
	InitialPosition int    `json:"initialPosition"`
	Position        int    `json:"position"`
	Moved           bool   `json:"moved"`
	Removed         bool   `json:"removed"`
	Automated       bool   `json:"isBot"`
	Disconnected    bool   `json:"disconnected"`

	// nil until the provider fetch for this player completes, empty once
	// every question has been consumed.
	questions []Question
}

// Automatic reports whether the seat is driven by the orchestration layer
// rather than a live connection.
func (p *Player) Automatic() bool {
	return p.Automated || p.Disconnected
}
