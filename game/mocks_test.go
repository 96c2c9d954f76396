package game

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// --- QuestionProvider ---

type MockQuestionProvider struct {
	mock.Mock
}

func (m *MockQuestionProvider) FetchQuestions(ctx context.Context) ([]Question, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Question), args.Error(1)
}

// --- Participant ---

type MockParticipant struct {
	mock.Mock
}

func (m *MockParticipant) Send(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockParticipant) Ack(seq int64, err error, result any) {
	m.Called(seq, err, result)
}

// --- SessionDirectory ---

type MockSessionDirectory struct {
	mock.Mock
}

func (m *MockSessionDirectory) RequestUpdateDescription(desc SessionDescription) {
	m.Called(desc)
}

func (m *MockSessionDirectory) RemoveSession(sessionId string) {
	m.Called(sessionId)
}

// --- SecretHasher ---

type MockSecretHasher struct {
	mock.Mock
}

func (m *MockSecretHasher) Hash(secret string) (string, error) {
	args := m.Called(secret)
	return args.String(0), args.Error(1)
}

func (m *MockSecretHasher) Compare(hash, secret string) (bool, error) {
	args := m.Called(hash, secret)
	return args.Bool(0), args.Error(1)
}

// --- ResultRecorder ---

type MockResultRecorder struct {
	mock.Mock
}

func (m *MockResultRecorder) RecordMatchResult(ctx context.Context, sessionName string, winner Player) error {
	args := m.Called(ctx, sessionName, winner)
	return args.Error(0)
}

// --- NetworkSession ---

type MockNetworkSession struct {
	mock.Mock
}

func (m *MockNetworkSession) Close(reason string) {
	m.Called(reason)
}

func (m *MockNetworkSession) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockNetworkSession) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockNetworkSession) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- test doubles that need behavior, not just call recording ---

// stubRandom plays back a fixed list of Intn results and leaves seating
// order untouched. Rolls past the end of the script return 0.
type stubRandom struct {
	rolls []int
}

func (s *stubRandom) Intn(n int) int {
	if len(s.rolls) == 0 {
		return 0
	}
	v := s.rolls[0]
	s.rolls = s.rolls[1:]
	return v % n
}

func (s *stubRandom) Shuffle(n int, swap func(i, j int)) {}

// reversingRandom flips the seating order on every shuffle and otherwise
// behaves like stubRandom.
type reversingRandom struct {
	stubRandom
}

func (r *reversingRandom) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

// seqIdGen hands out id-1, id-2, ... deterministically.
type seqIdGen struct {
	n int
}

func (g *seqIdGen) Generate() string {
	g.n++
	return "id-" + strconv.Itoa(g.n)
}

// fakeScheduler captures continuations instead of arming timers, so tests
// fire them synchronously and in order. Deliveries from fetch goroutines
// land here too, hence the lock.
type fakeScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (f *fakeScheduler) AfterFunc(d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fn)
}

func (f *fakeScheduler) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// fireNext pops and runs the oldest captured continuation.
func (f *fakeScheduler) fireNext() bool {
	f.mu.Lock()
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return false
	}
	fn := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()
	fn()
	return true
}
