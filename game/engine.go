package game

import (
	"context"
	"strings"
)

// Surprise is a randomized post-movement event. Step is the signed tile
// delta it applies to the current player, 0 meaning no movement.
type Surprise struct {
	Step    int    `json:"step"`
	Message string `json:"message"`
}

var surpriseTable = [4]Surprise{
	{Step: -1, Message: "hehe oops... you need to take one step back"},
	{Step: -2, Message: "ouch... two steps back for you"},
	{Step: 1, Message: "lucky you! one step forward"},
	{Step: 2, Message: "jackpot! two steps forward"},
}

// MoveResult describes a single movement of the current player for broadcast.
type MoveResult struct {
	StartPosition int `json:"startPosition"`
	EndPosition   int `json:"endPosition"`
	Direction     int `json:"direction"`
}

// Session owns the full mutable state of one game. All methods must be
// called from the single goroutine that drives the session; there is no
// internal locking.
type Session struct {
	id         string
	name       string
	secretHash string
	capacity   int

	phase           Phase
	players         []*Player
	creatorId       string
	currentPlayer   int
	currentQuestion *Question
	correctAnswers  int
	pendingSurprise *Surprise

	random RandomPolicy
	ids    UniqueIdGenerator

	// one-shot winner notification, created at Start and consumed by the
	// orchestration layer
	finished chan Player
}

func NewSession(id, name, secretHash string, capacity int, random RandomPolicy, ids UniqueIdGenerator) *Session {
	if capacity <= 0 || capacity > MaxSeats {
		capacity = MaxSeats
	}
	return &Session{
		id:         id,
		name:       name,
		secretHash: secretHash,
		capacity:   capacity,
		phase:      PhaseLobby,
		random:     random,
		ids:        ids,
	}
}

func (s *Session) Id() string         { return s.id }
func (s *Session) Name() string       { return s.name }
func (s *Session) SecretHash() string { return s.secretHash }
func (s *Session) Capacity() int      { return s.capacity }
func (s *Session) Phase() Phase       { return s.phase }
func (s *Session) Locked() bool       { return s.secretHash != "" }

func (s *Session) CorrectAnswers() int { return s.correctAnswers }

func (s *Session) CurrentIndex() int { return s.currentPlayer }

func (s *Session) CurrentPlayer() *Player {
	if s.currentPlayer >= len(s.players) {
		return nil
	}
	return s.players[s.currentPlayer]
}

func (s *Session) PlayerCount() int { return len(s.players) }

func (s *Session) Full() bool { return len(s.players) >= s.capacity }

// LiveCount counts connected human seats.
func (s *Session) LiveCount() int {
	n := 0
	for _, p := range s.players {
		if !p.Automatic() {
			n++
		}
	}
	return n
}

// Roster returns value copies of every seat in join/seat order.
func (s *Session) Roster() []Player {
	roster := make([]Player, len(s.players))
	for i, p := range s.players {
		roster[i] = *p
	}
	return roster
}

// Finished yields the winner exactly once per game. It is nil before Start.
func (s *Session) Finished() <-chan Player { return s.finished }

// Join appends a new seat. Name must have more than one character after
// trimming; the table must not be full.
func (s *Session) Join(name string, automated bool) (*Player, error) {
	name = strings.TrimSpace(name)
	if len(name) <= 1 {
		return nil, ErrInvalidPlayerName
	}
	if s.Full() {
		return nil, ErrSessionFull
	}
	p := &Player{
		Id:        s.ids.Generate(),
		Name:      name,
		Automated: automated,
	}
	if len(s.players) == 0 {
		s.creatorId = p.Id
	}
	s.players = append(s.players, p)
	return p, nil
}

// IsAdmin reports whether the id belongs to the first joiner, the de-facto
// session owner. The claim survives the seating shuffle at game start.
func (s *Session) IsAdmin(playerId string) bool {
	return playerId != "" && playerId == s.creatorId
}

// Leave removes the seat entirely while still in the lobby. Once the game
// has started the seat is kept and promoted to an automated stand-in, since
// dropping it would break index-based turn and position bookkeeping.
func (s *Session) Leave(playerId string) {
	if s.phase == PhaseLobby {
		for i, p := range s.players {
			if p.Id == playerId {
				s.players = append(s.players[:i], s.players[i+1:]...)
				if playerId == s.creatorId {
					s.creatorId = ""
					if len(s.players) > 0 {
						s.creatorId = s.players[0].Id
					}
				}
				return
			}
		}
		return
	}
	for _, p := range s.players {
		if p.Id == playerId {
			p.Disconnected = true
			p.Automated = true
			return
		}
	}
}

// Start shuffles the seating order, assigns colors and starting sectors and
// kicks off one question fetch per player. Fetches run concurrently and
// finish in any order; results must be fed back through AssignQuestions on
// the session's own goroutine.
func (s *Session) Start(ctx context.Context, provider QuestionProvider, deliver func(playerId string, questions []Question, err error)) {
	s.random.Shuffle(len(s.players), func(i, j int) {
		s.players[i], s.players[j] = s.players[j], s.players[i]
	})

	for idx, p := range s.players {
		p.Color = seatColors[idx]
		p.InitialPosition = idx * SectorSize
		p.Position = p.InitialPosition

		go func(id string) {
			questions, err := provider.FetchQuestions(ctx)
			deliver(id, questions, err)
		}(p.Id)
	}

	s.currentPlayer = 0
	s.correctAnswers = 0
	s.pendingSurprise = nil
	s.finished = make(chan Player, 1)
	s.phase = PhaseQuestioning
}

// AssignQuestions stores a completed fetch result on the owning seat.
func (s *Session) AssignQuestions(playerId string, questions []Question) {
	for _, p := range s.players {
		if p.Id == playerId {
			p.questions = questions
			return
		}
	}
}

// QuestionsReady reports whether the current player's fetch has completed.
func (s *Session) QuestionsReady() bool {
	p := s.CurrentPlayer()
	return p != nil && p.questions != nil
}

// BeginQuestionRound opens a fresh question round for the current player.
func (s *Session) BeginQuestionRound() {
	s.correctAnswers = 0
	s.phase = PhaseQuestioning
}

// NextQuestion pops the current player's next question from the tail of
// their list and poses it.
func (s *Session) NextQuestion() (string, Question, error) {
	p := s.CurrentPlayer()
	if p == nil || len(p.questions) == 0 {
		return "", Question{}, ErrNoQuestionsRemaining
	}
	q := p.questions[len(p.questions)-1]
	p.questions = p.questions[:len(p.questions)-1]
	s.currentQuestion = &q
	return p.Id, q, nil
}

// SubmitAnswer scores a choice against the posed question and reports
// whether it was correct. The round length cap lives in the orchestration
// layer; the engine only keeps the running tally.
func (s *Session) SubmitAnswer(choiceIndex int) bool {
	q := s.currentQuestion
	if q == nil || choiceIndex < 0 || choiceIndex >= len(q.Answers) {
		return false
	}
	if q.Answers[choiceIndex] != q.CorrectAnswer {
		return false
	}
	s.correctAnswers++
	return true
}

// RollSurprise draws the post-movement event for the current turn and
// stores it as pending. A turn with no correct answers and a player sitting
// exactly on their starting tile both resolve deterministically without
// consulting the random policy.
func (s *Session) RollSurprise() Surprise {
	p := s.CurrentPlayer()

	var surprise Surprise
	switch {
	case s.correctAnswers == 0:
		surprise = Surprise{Step: 0, Message: "oops... you did not have any correct answer"}
	case p.Position == p.InitialPosition:
		surprise = Surprise{Step: 0, Message: "back at start, no surprise this time"}
	default:
		roll := (s.random.Intn(10) & 1) | (s.random.Intn(10) & 1)
		if roll == 0 {
			surprise = surpriseTable[s.random.Intn(len(surpriseTable))]
		} else {
			surprise = Surprise{Step: 0, Message: "more luck next time"}
		}
	}

	s.pendingSurprise = &surprise
	s.phase = PhaseSurprise
	return surprise
}

// PendingSurprise returns the unresolved surprise for the current turn, if any.
func (s *Session) PendingSurprise() *Surprise { return s.pendingSurprise }

// Move advances the current player by this round's correct-answer tally.
func (s *Session) Move() MoveResult {
	return s.moveSteps(s.correctAnswers)
}

// MoveBy applies an explicit surprise step, consuming the pending surprise.
func (s *Session) MoveBy(step int) MoveResult {
	s.pendingSurprise = nil
	return s.moveSteps(step)
}

// moveSteps walks the player one tile at a time in the sign direction of
// step, wrapping around the board. Completing a lap stops the walk early;
// a backward arrival exactly on the starting tile undoes lap credit, so
// only forward arrivals can win.
func (s *Session) moveSteps(step int) MoveResult {
	p := s.CurrentPlayer()
	start := p.Position
	direction := sign(step)

	if !p.Moved && step != 0 {
		p.Moved = true
	}

	for i := 0; i < abs(step); i++ {
		p.Position = wrapMod(p.Position+direction, BoardSize)
		if p.Moved && p.Position == p.InitialPosition {
			if direction < 0 {
				p.Moved = false
			}
			break
		}
	}

	s.phase = PhaseMoving
	return MoveResult{StartPosition: start, EndPosition: p.Position, Direction: direction}
}

// CheckCollision removes the earliest-indexed other player sharing the
// current player's tile. At most one seat is removed per call.
func (s *Session) CheckCollision() (int, *Player) {
	cur := s.CurrentPlayer()
	for i, p := range s.players {
		if i == s.currentPlayer || p.Removed {
			continue
		}
		if p.Position == cur.Position {
			p.Removed = true
			return i, p
		}
	}
	return -1, nil
}

// CheckTermination finishes the game when the current player has completed
// a lap back to their starting tile with no surprise left to resolve.
func (s *Session) CheckTermination() bool {
	if s.pendingSurprise != nil {
		return false
	}
	p := s.CurrentPlayer()
	if p == nil || !p.Moved || p.Position != p.InitialPosition {
		return false
	}
	s.FinishGame()
	return true
}

// FinishGame declares the current player the winner, publishes the one-shot
// notification and resets the session to lobby defaults.
func (s *Session) FinishGame() {
	winner := *s.CurrentPlayer()
	done := s.finished

	s.phase = PhaseFinished
	s.reset()

	if done != nil {
		done <- winner
	}
}

func (s *Session) reset() {
	s.players = nil
	s.creatorId = ""
	s.currentPlayer = 0
	s.currentQuestion = nil
	s.correctAnswers = 0
	s.pendingSurprise = nil
	s.finished = nil
	s.phase = PhaseLobby
}

// AdvanceTurn hands the turn to the next non-removed seat, clearing the
// per-turn tallies. When every other seat has been removed the rotation is
// over and the caller decides the terminal outcome.
func (s *Session) AdvanceTurn() (int, error) {
	s.correctAnswers = 0
	s.pendingSurprise = nil
	s.currentQuestion = nil

	n := len(s.players)
	for i := 1; i < n; i++ {
		idx := wrapMod(s.currentPlayer+i, n)
		if !s.players[idx].Removed {
			s.currentPlayer = idx
			s.phase = PhaseQuestioning
			return idx, nil
		}
	}
	return 0, ErrNoEligiblePlayers
}
