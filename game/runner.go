package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// questionsPerTurn is the round length the orchestration layer enforces;
// the engine itself only keeps the correct-answer tally.
const questionsPerTurn = 5

// autofillQuorum is the number of live joiners after which the lobby stops
// waiting for a full table and seats automated stand-ins.
const autofillQuorum = 2

var standInNames = []string{"trivia-tron", "quizzard", "botzilla", "sir-guessalot"}

// Participant is a live connection bound to a seat. The write side must
// never block the runner; Send fails fast when the peer cannot keep up.
// Seat identity travels inside each command, never through the Participant:
// the connection mutates its own binding on its read goroutine.
type Participant interface {
	Send(data []byte) error
	Ack(seq int64, err error, result any)
}

// SessionDirectory is the runner's view of the registry.
type SessionDirectory interface {
	RequestUpdateDescription(desc SessionDescription)
	RemoveSession(sessionId string)
}

// SecretHasher guards session access secrets.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) (bool, error)
}

// ResultRecorder persists the outcome of a finished game.
type ResultRecorder interface {
	RecordMatchResult(ctx context.Context, sessionName string, winner Player) error
}

type command struct {
	from Participant
	// playerId is the sender's seat, snapshotted when the command is
	// posted; the binding on the connection may change before dispatch
	playerId string
	event    string
	seq      int64
	payload  json.RawMessage

	// internal continuation; runs only while the session is still in the
	// phase it was scheduled for, so stale timers become no-ops
	fn       func()
	expect   Phase
	anyPhase bool
}

type joinRequest struct {
	name   string
	secret string
	from   Participant
	reply  chan joinReply
}

type joinReply struct {
	runner *Runner
	player Player
	err    error
}

// Runner drives one session end to end: it serializes every engine call on
// a single goroutine and sequences phases with delayed continuations.
type Runner struct {
	session  *Session
	provider QuestionProvider
	random   RandomPolicy
	timers   ContinuationScheduler
	timings  Timings
	lobby    SessionDirectory
	hasher   SecretHasher
	results  ResultRecorder

	clients map[string]Participant

	inbox        chan command
	joinRequests chan joinRequest
	finish       <-chan Player
	closed       chan struct{}

	started bool
	asked   int
}

func NewRunner(session *Session, provider QuestionProvider, random RandomPolicy, timers ContinuationScheduler, timings Timings, lobby SessionDirectory, hasher SecretHasher, results ResultRecorder) *Runner {
	return &Runner{
		session:      session,
		provider:     provider,
		random:       random,
		timers:       timers,
		timings:      timings,
		lobby:        lobby,
		hasher:       hasher,
		results:      results,
		clients:      make(map[string]Participant),
		inbox:        make(chan command, 256),
		joinRequests: make(chan joinRequest, 8),
		closed:       make(chan struct{}),
	}
}

func (r *Runner) SessionId() string { return r.session.Id() }

// Post queues a command for the session goroutine. It reports false once
// the session has been torn down.
func (r *Runner) Post(cmd command) bool {
	select {
	case <-r.closed:
		return false
	default:
	}
	select {
	case r.inbox <- cmd:
		return true
	case <-r.closed:
		return false
	}
}

// Join forwards a join request to the session goroutine. The reply arrives
// on jr.reply.
func (r *Runner) Join(jr joinRequest) {
	select {
	case <-r.closed:
		jr.reply <- joinReply{err: ErrSessionNotFound}
		return
	default:
	}
	select {
	case r.joinRequests <- jr:
	case <-r.closed:
		jr.reply <- joinReply{err: ErrSessionNotFound}
	}
}

// GameLoop is the single goroutine owning all session state.
func (r *Runner) GameLoop() {
	for {
		select {
		case <-r.closed:
			r.drainJoins()
			return
		case jr := <-r.joinRequests:
			r.handleJoin(jr)
		case cmd := <-r.inbox:
			r.dispatch(cmd)
		case winner := <-r.finish:
			r.handleFinished(winner)
		}
	}
}

func (r *Runner) drainJoins() {
	for {
		select {
		case jr := <-r.joinRequests:
			jr.reply <- joinReply{err: ErrSessionNotFound}
		default:
			return
		}
	}
}

// schedule queues fn to run on the session goroutine after d, but only if
// the session is still in the given phase when the timer fires.
func (r *Runner) schedule(d time.Duration, expect Phase, fn func()) {
	r.timers.AfterFunc(d, func() {
		r.Post(command{fn: fn, expect: expect})
	})
}

func (r *Runner) scheduleAny(d time.Duration, fn func()) {
	r.timers.AfterFunc(d, func() {
		r.Post(command{fn: fn, anyPhase: true})
	})
}

func (r *Runner) dispatch(cmd command) {
	if cmd.fn != nil {
		if !cmd.anyPhase && r.session.Phase() != cmd.expect {
			slog.Debug("dropping stale continuation",
				"session", r.session.Id(),
				"expected", cmd.expect.String(),
				"actual", r.session.Phase().String(),
			)
			return
		}
		cmd.fn()
		return
	}

	switch cmd.event {
	case EventStartGame:
		r.handleStartGame(cmd)
	case EventSubmitAnswer:
		r.handleSubmitAnswer(cmd)
	case EventRequestNextQuestion:
		r.handleRequest(cmd, PhaseQuestioning, r.openRound)
	case EventRequestSurprise:
		r.handleRequest(cmd, PhaseMoving, r.resolveSurprise)
	case EventRequestNextPlayer:
		r.handleRequest(cmd, PhaseSurprise, r.nextTurn)
	case EventLeaveSession:
		r.handleLeave(cmd)
	default:
		slog.Debug("unknown session event", "session", r.session.Id(), "event", cmd.event)
	}
}

func (r *Runner) ack(cmd command, err error, result any) {
	if cmd.from != nil && cmd.seq != 0 {
		cmd.from.Ack(cmd.seq, err, result)
	}
}

func (r *Runner) broadcast(event string, payload any) {
	data, err := json.Marshal(ServerEnvelope{Event: event, Payload: payload})
	if err != nil {
		slog.Error("marshal broadcast", "session", r.session.Id(), "event", event, "err", err)
		return
	}
	for id, c := range r.clients {
		if err := c.Send(data); err != nil {
			slog.Debug("dropping frame for slow client",
				"session", r.session.Id(), "player", id, "event", event, "err", err)
		}
	}
}

func (r *Runner) description() SessionDescription {
	return SessionDescription{
		Id:       r.session.Id(),
		Name:     r.session.Name(),
		Players:  r.session.PlayerCount(),
		Capacity: r.session.Capacity(),
		Locked:   r.session.Locked(),
		Started:  r.session.Phase() != PhaseLobby,
	}
}

// --- lobby flow ---

func (r *Runner) handleJoin(jr joinRequest) {
	if r.session.Locked() {
		ok, err := r.hasher.Compare(r.session.SecretHash(), jr.secret)
		if err != nil || !ok {
			jr.reply <- joinReply{err: ErrWrongAccessSecret}
			return
		}
	} else if jr.secret != "" {
		jr.reply <- joinReply{err: ErrWrongAccessSecret}
		return
	}
	if r.session.Phase() != PhaseLobby {
		jr.reply <- joinReply{err: ErrSessionFull}
		return
	}

	p, err := r.session.Join(jr.name, false)
	if err != nil {
		jr.reply <- joinReply{err: err}
		return
	}

	r.clients[p.Id] = jr.from
	jr.reply <- joinReply{runner: r, player: *p}

	r.broadcast(EventPlayersChanged, r.session.Roster())
	r.lobby.RequestUpdateDescription(r.description())

	if r.session.LiveCount() == autofillQuorum && !r.session.Full() {
		r.schedule(r.timings.AutofillGrace, PhaseLobby, r.autofill)
	}
	if r.session.Full() {
		r.schedule(r.timings.StartBroadcast, PhaseLobby, r.dealAndAnnounce)
	}
}

// autofill seats automated stand-ins on every empty chair so a lobby with a
// quorum of humans is not blocked waiting for capacity.
func (r *Runner) autofill() {
	if r.session.Full() {
		return
	}
	for i := 0; !r.session.Full(); i++ {
		name := standInNames[i%len(standInNames)]
		if _, err := r.session.Join(name, true); err != nil {
			slog.Error("seat automated player", "session", r.session.Id(), "err", err)
			break
		}
	}
	r.broadcast(EventPlayersChanged, r.session.Roster())
	r.lobby.RequestUpdateDescription(r.description())

	if r.session.Full() {
		r.schedule(r.timings.StartBroadcast, PhaseLobby, r.dealAndAnnounce)
	}
}

// dealAndAnnounce shuffles seats, kicks off the question fetches and tells
// every client the table layout.
func (r *Runner) dealAndAnnounce() {
	r.session.Start(context.Background(), r.provider, func(playerId string, questions []Question, err error) {
		r.scheduleAny(0, func() { r.handleQuestionsFetched(playerId, questions, err) })
	})
	r.finish = r.session.Finished()

	r.broadcast(EventInitGame, InitGameBroadcast{Players: r.session.Roster()})
	r.lobby.RequestUpdateDescription(r.description())
}

func (r *Runner) handleQuestionsFetched(playerId string, questions []Question, err error) {
	if err != nil {
		slog.Error("question fetch failed", "session", r.session.Id(), "player", playerId, "err", err)
		// the seat plays with an exhausted list rather than stalling the game
		questions = []Question{}
	}
	r.session.AssignQuestions(playerId, questions)
}

// --- turn flow ---

func (r *Runner) handleStartGame(cmd command) {
	if !r.session.IsAdmin(cmd.playerId) {
		r.ack(cmd, ErrNotAdmin, nil)
		return
	}
	if r.started {
		r.ack(cmd, ErrAlreadyStarted, nil)
		return
	}
	if r.session.Phase() == PhaseLobby {
		r.ack(cmd, ErrNotStarted, nil)
		return
	}

	r.started = true
	r.ack(cmd, nil, nil)

	if cur := r.session.CurrentPlayer(); cur != nil && cur.Automatic() {
		r.schedule(r.timings.TurnHandover, PhaseQuestioning, r.openRound)
	}
}

// handleRequest runs a phase-gated client request.
func (r *Runner) handleRequest(cmd command, expect Phase, fn func()) {
	if !r.started {
		r.ack(cmd, ErrNotStarted, nil)
		return
	}
	if r.session.Phase() != expect {
		r.ack(cmd, ErrUnexpectedPhase, nil)
		return
	}
	r.ack(cmd, nil, nil)
	fn()
}

// openRound starts the current player's question round.
func (r *Runner) openRound() {
	r.session.BeginQuestionRound()
	r.asked = 0
	r.emitQuestion()
}

func (r *Runner) emitQuestion() {
	if !r.session.QuestionsReady() {
		r.schedule(r.timings.FetchRetry, PhaseQuestioning, r.emitQuestion)
		return
	}

	playerId, question, err := r.session.NextQuestion()
	if err != nil {
		// exhausted mid-game: close the round with the tally earned so far
		slog.Warn("question list exhausted", "session", r.session.Id(), "player", r.session.CurrentPlayer().Id)
		r.doMove()
		return
	}

	r.broadcast(EventNextQuestion, NextQuestionBroadcast{Player: playerId, Question: question})

	if cur := r.session.CurrentPlayer(); cur.Automatic() {
		r.schedule(r.timings.BotThink, PhaseQuestioning, func() {
			r.scoreAnswer(command{}, r.random.Intn(4))
		})
	}
}

func (r *Runner) handleSubmitAnswer(cmd command) {
	if !r.started {
		r.ack(cmd, ErrNotStarted, nil)
		return
	}
	if r.session.Phase() != PhaseQuestioning {
		r.ack(cmd, ErrUnexpectedPhase, nil)
		return
	}
	var req SubmitAnswerRequest
	if err := json.Unmarshal(cmd.payload, &req); err != nil {
		r.ack(cmd, ErrInvalidRequestFormat, nil)
		return
	}
	r.scoreAnswer(cmd, req.ChoiceIndex)
}

func (r *Runner) scoreAnswer(cmd command, choiceIndex int) {
	r.session.SubmitAnswer(choiceIndex)
	r.asked++
	r.ack(cmd, nil, nil)
	r.broadcast(EventQuestionAnswer, choiceIndex)

	r.schedule(r.timings.AnswerReveal, PhaseQuestioning, func() {
		if r.asked < questionsPerTurn {
			r.emitQuestion()
		} else {
			r.doMove()
		}
	})
}

func (r *Runner) doMove() {
	steps := r.session.CorrectAnswers()
	res := r.session.Move()
	r.broadcastMovement(res)

	if cur := r.session.CurrentPlayer(); cur.Automatic() {
		r.schedule(r.pacing(steps+1), PhaseMoving, r.resolveSurprise)
	}
}

func (r *Runner) pacing(tiles int) time.Duration {
	return time.Duration(tiles) * r.timings.StepPacing
}

func (r *Runner) broadcastMovement(res MoveResult) {
	r.broadcast(EventPlayersChanged, MovementBroadcast{
		StartPosition:   res.StartPosition,
		EndPosition:     res.EndPosition,
		Direction:       res.Direction,
		CurrentPlayerId: r.session.CurrentPlayer().Id,
	})
}

// resolveSurprise closes out the movement phase: win check, collision
// check, then the surprise roll and its delayed application.
func (r *Runner) resolveSurprise() {
	if r.session.CheckTermination() {
		// winner arrives through the completion channel
		return
	}

	_, removed := r.session.CheckCollision()
	var revealDelay time.Duration
	if removed != nil {
		r.broadcast(EventPlayerRemoved, PlayerRemovedBroadcast{
			NewPlayers:    r.session.Roster(),
			RemovedPlayer: []Player{*removed},
		})
		revealDelay = r.timings.RemovalPause
	}

	surprise := r.session.RollSurprise()

	r.schedule(revealDelay, PhaseSurprise, func() {
		r.broadcast(EventPlayerSurprise, PlayerSurpriseBroadcast{Surprise: surprise})
	})
	r.schedule(revealDelay+r.timings.SurpriseReveal, PhaseSurprise, func() {
		if surprise.Step != 0 {
			r.applySurprise(surprise.Step)
		} else {
			r.nextTurn()
		}
	})
}

func (r *Runner) applySurprise(step int) {
	res := r.session.MoveBy(step)
	r.broadcastMovement(res)

	if cur := r.session.CurrentPlayer(); cur.Automatic() {
		r.schedule(r.pacing(abs(step)), PhaseMoving, r.resolveSurprise)
	}
}

func (r *Runner) nextTurn() {
	idx, err := r.session.AdvanceTurn()
	if errors.Is(err, ErrNoEligiblePlayers) {
		// every other seat was removed by collisions: the survivor wins
		r.session.FinishGame()
		return
	}

	r.broadcast(EventNextPlayer, idx)

	if cur := r.session.CurrentPlayer(); cur.Automatic() {
		r.schedule(r.timings.TurnHandover, PhaseQuestioning, r.openRound)
	}
}

// --- departures and teardown ---

func (r *Runner) handleLeave(cmd command) {
	playerId := cmd.playerId
	if _, ok := r.clients[playerId]; !ok {
		return
	}

	running := r.session.Phase() != PhaseLobby
	leaverHadTurn := running && r.session.CurrentPlayer() != nil && r.session.CurrentPlayer().Id == playerId

	r.session.Leave(playerId)
	delete(r.clients, playerId)

	if running {
		r.broadcast(EventPlayerLeft, playerId)
	} else {
		r.broadcast(EventPlayersChanged, r.session.Roster())
	}
	r.lobby.RequestUpdateDescription(r.description())

	if r.session.LiveCount() == 0 {
		r.destroy()
		return
	}

	if leaverHadTurn && r.started {
		// keep the turn flowing for the promoted stand-in
		switch r.session.Phase() {
		case PhaseQuestioning:
			r.schedule(r.timings.BotThink, PhaseQuestioning, func() {
				r.scoreAnswer(command{}, r.random.Intn(4))
			})
		case PhaseMoving:
			r.schedule(r.timings.BotThink, PhaseMoving, r.resolveSurprise)
		}
		// PhaseSurprise already has its continuations queued
	}
}

func (r *Runner) handleFinished(winner Player) {
	r.started = false
	r.asked = 0
	r.finish = nil

	r.broadcast(EventFinishedGame, winner)

	if r.results != nil {
		name := r.session.Name()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.results.RecordMatchResult(ctx, name, winner); err != nil {
				slog.Error("record match result", "session", name, "err", err)
			}
		}()
	}

	r.destroy()
}

// destroy tears the session down. Remaining clients keep their sockets;
// their next command fails over to session-not-found and they can join or
// create another session.
func (r *Runner) destroy() {
	r.lobby.RemoveSession(r.session.Id())
	close(r.closed)
	r.clients = make(map[string]Participant)
}
