package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type runnerFixture struct {
	runner   *Runner
	session  *Session
	sched    *fakeScheduler
	lobby    *MockSessionDirectory
	hasher   *MockSecretHasher
	provider *MockQuestionProvider
	results  *MockResultRecorder
	random   RandomPolicy
}

func setupRunner(t *testing.T, secretHash string, rolls []int) *runnerFixture {
	return setupRunnerWith(t, secretHash, &stubRandom{rolls: rolls})
}

func setupRunnerWith(t *testing.T, secretHash string, random RandomPolicy) *runnerFixture {
	t.Helper()

	f := &runnerFixture{
		sched:    &fakeScheduler{},
		lobby:    &MockSessionDirectory{},
		hasher:   &MockSecretHasher{},
		provider: &MockQuestionProvider{},
		results:  &MockResultRecorder{},
		random:   random,
	}
	f.lobby.On("RequestUpdateDescription", mock.Anything).Return()
	f.lobby.On("RemoveSession", mock.Anything).Return()
	f.provider.On("FetchQuestions", mock.Anything).Return(sampleQuestions(5), nil)

	f.session = NewSession("sess-1", "friday quiz", secretHash, MaxSeats, f.random, &seqIdGen{})
	f.runner = NewRunner(f.session, f.provider, f.random, f.sched, DefaultTimings(), f.lobby, f.hasher, f.results)
	return f
}

// pump dispatches everything the continuations posted to the inbox, the way
// the game loop would.
func (f *runnerFixture) pump() {
	for {
		select {
		case cmd := <-f.runner.inbox:
			f.runner.dispatch(cmd)
		default:
			return
		}
	}
}

// fire runs the oldest captured continuation and pumps its effects.
func (f *runnerFixture) fire(t *testing.T) {
	t.Helper()
	require.True(t, f.sched.fireNext(), "no continuation scheduled")
	f.pump()
}

func (f *runnerFixture) join(t *testing.T, name, secret string) (Player, *MockParticipant) {
	t.Helper()
	from := &MockParticipant{}
	from.On("Send", mock.Anything).Return(nil)
	from.On("Ack", mock.Anything, mock.Anything, mock.Anything).Return()

	reply := make(chan joinReply, 1)
	f.runner.handleJoin(joinRequest{name: name, secret: secret, from: from, reply: reply})
	rep := <-reply
	require.NoError(t, rep.err)
	require.Equal(t, f.runner, rep.runner)
	return rep.player, from
}

// startGame walks a two-human lobby through autofill, dealing and the
// admin's start command.
func (f *runnerFixture) startGame(t *testing.T) (Player, *MockParticipant, Player, *MockParticipant) {
	t.Helper()

	admin, adminConn := f.join(t, "alice", "")
	other, otherConn := f.join(t, "bobby", "")

	f.fire(t) // autofill grace expired: seat stand-ins
	require.True(t, f.session.Full())
	f.fire(t) // start broadcast: deal and announce
	require.Equal(t, PhaseQuestioning, f.session.Phase())

	// wait for the four concurrent fetches to post their deliveries
	require.Eventually(t, func() bool { return f.sched.pending() == 4 }, time.Second, time.Millisecond)
	for i := 0; i < 4; i++ {
		f.fire(t)
	}
	require.True(t, f.session.QuestionsReady())

	f.runner.dispatch(command{from: adminConn, playerId: admin.Id, event: EventStartGame, seq: 1})
	require.True(t, f.runner.started)

	return admin, adminConn, other, otherConn
}

func TestRunner_HandleJoin_SeatsPlayerAndBroadcasts(t *testing.T) {
	f := setupRunner(t, "", nil)

	player, conn := f.join(t, "alice", "")

	assert.NotEmpty(t, player.Id)
	assert.Equal(t, 1, f.session.PlayerCount())
	conn.AssertCalled(t, "Send", mock.Anything)
	f.lobby.AssertCalled(t, "RequestUpdateDescription", mock.Anything)
	assert.Equal(t, 0, f.sched.pending(), "single joiner must not arm any timer")
}

func TestRunner_HandleJoin_QuorumArmsAutofill(t *testing.T) {
	f := setupRunner(t, "", nil)

	f.join(t, "alice", "")
	f.join(t, "bobby", "")

	assert.Equal(t, 1, f.sched.pending())
}

func TestRunner_HandleJoin_WrongSecret(t *testing.T) {
	f := setupRunner(t, "some-hash", nil)
	f.hasher.On("Compare", "some-hash", "nope").Return(false, nil)

	reply := make(chan joinReply, 1)
	f.runner.handleJoin(joinRequest{name: "alice", secret: "nope", from: &MockParticipant{}, reply: reply})

	assert.ErrorIs(t, (<-reply).err, ErrWrongAccessSecret)
	assert.Equal(t, 0, f.session.PlayerCount())
}

func TestRunner_HandleJoin_OpenSessionRejectsSecret(t *testing.T) {
	f := setupRunner(t, "", nil)

	reply := make(chan joinReply, 1)
	f.runner.handleJoin(joinRequest{name: "alice", secret: "unexpected", from: &MockParticipant{}, reply: reply})

	assert.ErrorIs(t, (<-reply).err, ErrWrongAccessSecret)
}

func TestRunner_HandleJoin_RejectedOnceRunning(t *testing.T) {
	f := setupRunner(t, "", nil)
	f.join(t, "alice", "")
	f.session.phase = PhaseQuestioning

	reply := make(chan joinReply, 1)
	f.runner.handleJoin(joinRequest{name: "late", from: &MockParticipant{}, reply: reply})

	assert.ErrorIs(t, (<-reply).err, ErrSessionFull)
}

func TestRunner_Autofill_SeatsStandInsAndArmsDeal(t *testing.T) {
	f := setupRunner(t, "", nil)
	f.join(t, "alice", "")
	f.join(t, "bobby", "")

	f.fire(t)

	require.True(t, f.session.Full())
	roster := f.session.Roster()
	assert.False(t, roster[0].Automated)
	assert.False(t, roster[1].Automated)
	assert.True(t, roster[2].Automated)
	assert.True(t, roster[3].Automated)
	assert.Equal(t, 1, f.sched.pending(), "deal must be armed")
}

func TestRunner_StaleContinuationIsDropped(t *testing.T) {
	f := setupRunner(t, "", nil)
	ran := false
	f.runner.schedule(time.Second, PhaseQuestioning, func() { ran = true })

	f.fire(t) // session is still in the lobby

	assert.False(t, ran)
}

func TestRunner_StartGame_NonAdminRejected(t *testing.T) {
	f := setupRunner(t, "", nil)
	f.join(t, "alice", "")
	other, otherConn := f.join(t, "bobby", "")

	f.runner.dispatch(command{from: otherConn, playerId: other.Id, event: EventStartGame, seq: 7})

	otherConn.AssertCalled(t, "Ack", int64(7), ErrNotAdmin, nil)
	assert.False(t, f.runner.started)
}

func TestRunner_StartGame_BeforeDealRejected(t *testing.T) {
	f := setupRunner(t, "", nil)
	admin, adminConn := f.join(t, "alice", "")

	f.runner.dispatch(command{from: adminConn, playerId: admin.Id, event: EventStartGame, seq: 3})

	adminConn.AssertCalled(t, "Ack", int64(3), ErrNotStarted, nil)
}

func TestRunner_StartGame_Twice(t *testing.T) {
	f := setupRunner(t, "", nil)
	admin, adminConn, _, _ := f.startGame(t)

	f.runner.dispatch(command{from: adminConn, playerId: admin.Id, event: EventStartGame, seq: 9})

	adminConn.AssertCalled(t, "Ack", int64(9), ErrAlreadyStarted, nil)
}

// TestRunner_StartGame_AfterShuffle pins the admin claim to the first joiner
// even when the seating shuffle moves them away from seat 0.
func TestRunner_StartGame_AfterShuffle(t *testing.T) {
	f := setupRunnerWith(t, "", &reversingRandom{})

	admin, adminConn := f.join(t, "alice", "")
	f.join(t, "bobby", "")

	f.fire(t) // autofill
	f.fire(t) // deal: reversed order seats a stand-in first
	require.Eventually(t, func() bool { return f.sched.pending() == 4 }, time.Second, time.Millisecond)
	for i := 0; i < 4; i++ {
		f.fire(t)
	}

	require.NotEqual(t, admin.Id, f.session.Roster()[0].Id, "shuffle must have displaced the creator")

	f.runner.dispatch(command{from: adminConn, playerId: admin.Id, event: EventStartGame, seq: 1})

	adminConn.AssertCalled(t, "Ack", int64(1), nil, nil)
	assert.True(t, f.runner.started)
	assert.True(t, f.session.CurrentPlayer().Automatic())
	assert.Equal(t, 1, f.sched.pending(), "the stand-in's first round must be armed")
}

func TestRunner_QuestionRound_FiveAnswersThenMove(t *testing.T) {
	f := setupRunner(t, "", []int{1}) // surprise roll: odd parity, no event
	_, adminConn, _, _ := f.startGame(t)

	f.runner.dispatch(command{from: adminConn, event: EventRequestNextQuestion, seq: 2})
	require.Equal(t, PhaseQuestioning, f.session.Phase())

	correct, _ := json.Marshal(SubmitAnswerRequest{ChoiceIndex: 1})
	for i := 0; i < questionsPerTurn; i++ {
		f.runner.dispatch(command{from: adminConn, event: EventSubmitAnswer, seq: int64(10 + i), payload: correct})
		f.fire(t) // answer reveal: next question, or movement after the fifth
	}

	assert.Equal(t, PhaseMoving, f.session.Phase())
	assert.Equal(t, 5, f.session.CorrectAnswers())
	assert.Equal(t, 5, f.session.CurrentPlayer().Position)
}

func TestRunner_SubmitAnswer_WrongPhase(t *testing.T) {
	f := setupRunner(t, "", nil)
	_, adminConn := f.join(t, "alice", "")

	f.runner.dispatch(command{from: adminConn, event: EventSubmitAnswer, seq: 4, payload: []byte(`{"choiceIndex":1}`)})

	adminConn.AssertCalled(t, "Ack", int64(4), ErrNotStarted, nil)
}

func TestRunner_SubmitAnswer_BadPayload(t *testing.T) {
	f := setupRunner(t, "", nil)
	_, adminConn, _, _ := f.startGame(t)
	f.runner.dispatch(command{from: adminConn, event: EventRequestNextQuestion, seq: 2})

	f.runner.dispatch(command{from: adminConn, event: EventSubmitAnswer, seq: 5, payload: []byte(`{"choiceIndex":`)})

	adminConn.AssertCalled(t, "Ack", int64(5), ErrInvalidRequestFormat, nil)
}

func TestRunner_SurpriseWithoutEventHandsTurnOver(t *testing.T) {
	f := setupRunner(t, "", []int{1}) // odd parity: "more luck next time"
	_, adminConn, _, _ := f.startGame(t)

	f.runner.dispatch(command{from: adminConn, event: EventRequestNextQuestion, seq: 2})
	correct, _ := json.Marshal(SubmitAnswerRequest{ChoiceIndex: 1})
	for i := 0; i < questionsPerTurn; i++ {
		f.runner.dispatch(command{from: adminConn, event: EventSubmitAnswer, seq: int64(10 + i), payload: correct})
		f.fire(t)
	}
	require.Equal(t, PhaseMoving, f.session.Phase())

	f.runner.dispatch(command{from: adminConn, event: EventRequestSurprise, seq: 20})
	require.Equal(t, PhaseSurprise, f.session.Phase())
	require.NotNil(t, f.session.PendingSurprise())
	assert.Equal(t, 0, f.session.PendingSurprise().Step)

	f.fire(t) // surprise broadcast
	f.fire(t) // resolution: step 0 means next turn

	assert.Equal(t, PhaseQuestioning, f.session.Phase())
	assert.Equal(t, 1, f.session.CurrentIndex())
}

func TestRunner_SurpriseStepIsApplied(t *testing.T) {
	f := setupRunner(t, "", []int{2, 4, 2}) // even parity, table entry 2: one step forward
	_, adminConn, _, _ := f.startGame(t)

	f.runner.dispatch(command{from: adminConn, event: EventRequestNextQuestion, seq: 2})
	correct, _ := json.Marshal(SubmitAnswerRequest{ChoiceIndex: 1})
	for i := 0; i < questionsPerTurn; i++ {
		f.runner.dispatch(command{from: adminConn, event: EventSubmitAnswer, seq: int64(10 + i), payload: correct})
		f.fire(t)
	}

	f.runner.dispatch(command{from: adminConn, event: EventRequestSurprise, seq: 20})
	require.Equal(t, 1, f.session.PendingSurprise().Step)

	f.fire(t) // surprise broadcast
	f.fire(t) // resolution applies the step

	assert.Equal(t, 6, f.session.CurrentPlayer().Position)
	assert.Nil(t, f.session.PendingSurprise())
	assert.Equal(t, PhaseMoving, f.session.Phase())
}

func TestRunner_CollisionRemovesSeat(t *testing.T) {
	f := setupRunner(t, "", []int{1})
	_, adminConn, _, _ := f.startGame(t)

	// park the next seat right where the mover will land
	f.session.players[1].Position = 5

	f.runner.dispatch(command{from: adminConn, event: EventRequestNextQuestion, seq: 2})
	correct, _ := json.Marshal(SubmitAnswerRequest{ChoiceIndex: 1})
	for i := 0; i < questionsPerTurn; i++ {
		f.runner.dispatch(command{from: adminConn, event: EventSubmitAnswer, seq: int64(10 + i), payload: correct})
		f.fire(t)
	}

	f.runner.dispatch(command{from: adminConn, event: EventRequestSurprise, seq: 20})

	assert.True(t, f.session.players[1].Removed)
}

func TestRunner_SoleSurvivorWins(t *testing.T) {
	f := setupRunner(t, "", nil)
	admin, _, _, _ := f.startGame(t)

	for i := 1; i < f.session.PlayerCount(); i++ {
		f.session.players[i].Removed = true
	}

	f.runner.nextTurn()

	select {
	case winner := <-f.runner.finish:
		assert.Equal(t, admin.Id, winner.Id)
	default:
		t.Fatal("no winner published")
	}
}

func TestRunner_HandleFinished_RecordsAndDestroys(t *testing.T) {
	f := setupRunner(t, "", nil)
	admin, _, _, _ := f.startGame(t)

	recorded := make(chan struct{})
	f.results.On("RecordMatchResult", mock.Anything, "friday quiz", mock.Anything).
		Run(func(args mock.Arguments) { close(recorded) }).
		Return(nil)

	f.runner.handleFinished(admin)

	select {
	case <-recorded:
	case <-time.After(time.Second):
		t.Fatal("match result was never recorded")
	}
	f.lobby.AssertCalled(t, "RemoveSession", "sess-1")
	assert.False(t, f.runner.Post(command{event: EventLeaveSession}), "runner must refuse commands after teardown")
}

func TestRunner_HandleLeave_LastHumanDestroysSession(t *testing.T) {
	f := setupRunner(t, "", nil)
	admin, adminConn := f.join(t, "alice", "")

	f.runner.handleLeave(command{from: adminConn, playerId: admin.Id, event: EventLeaveSession})

	assert.Equal(t, 0, f.session.PlayerCount())
	f.lobby.AssertCalled(t, "RemoveSession", "sess-1")
}

func TestRunner_HandleLeave_MidGameKeepsSeatAutomated(t *testing.T) {
	f := setupRunner(t, "", nil)
	_, _, other, otherConn := f.startGame(t)

	f.runner.handleLeave(command{from: otherConn, playerId: other.Id, event: EventLeaveSession})

	assert.Equal(t, 4, f.session.PlayerCount())
	for _, p := range f.session.Roster() {
		if p.Id == other.Id {
			assert.True(t, p.Disconnected)
			assert.True(t, p.Automated)
		}
	}
}

func TestRunner_Join_AfterTeardown(t *testing.T) {
	f := setupRunner(t, "", nil)
	f.runner.destroy()

	reply := make(chan joinReply, 1)
	f.runner.Join(joinRequest{name: "alice", reply: reply})

	assert.ErrorIs(t, (<-reply).err, ErrSessionNotFound)
}
