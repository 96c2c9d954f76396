package game

import (
	"context"
	"strings"
)

type createRequest struct {
	name   string
	secret string
	join   joinRequest
	reply  chan createReply
}

type createReply struct {
	sessionId string
	err       error
}

type joinForward struct {
	sessionId string
	join      joinRequest
}

// Registry is the explicit session store: a single actor goroutine owning
// the id -> runner map. Every external actor reaches a session only through
// it, so no session state is shared across goroutines.
type Registry struct {
	runners      map[string]*Runner
	descriptions map[string]SessionDescription

	createChan chan createRequest
	joinChan   chan joinForward
	listChan   chan chan []SessionDescription
	removeChan chan string
	descChan   chan SessionDescription

	ids      UniqueIdGenerator
	random   RandomPolicy
	timers   ContinuationScheduler
	timings  Timings
	hasher   SecretHasher
	provider QuestionProvider
	results  ResultRecorder
}

func NewRegistry(ids UniqueIdGenerator, random RandomPolicy, timers ContinuationScheduler, timings Timings, hasher SecretHasher, provider QuestionProvider, results ResultRecorder) *Registry {
	return &Registry{
		runners:      make(map[string]*Runner),
		descriptions: make(map[string]SessionDescription),
		createChan:   make(chan createRequest, 32),
		joinChan:     make(chan joinForward, 256),
		listChan:     make(chan chan []SessionDescription, 256),
		removeChan:   make(chan string, 32),
		descChan:     make(chan SessionDescription, 256),
		ids:          ids,
		random:       random,
		timers:       timers,
		timings:      timings,
		hasher:       hasher,
		provider:     provider,
		results:      results,
	}
}

// RequestCreateSession creates a session and seats the creator in it. The
// session id arrives on the reply channel; the seat assignment arrives on
// the join request's own reply channel.
func (reg *Registry) RequestCreateSession(ctx context.Context, req createRequest) {
	select {
	case reg.createChan <- req:
	case <-ctx.Done():
		req.reply <- createReply{err: ctx.Err()}
	}
}

// ForwardJoinRequest routes a join to the owning session.
func (reg *Registry) ForwardJoinRequest(ctx context.Context, fwd joinForward) {
	select {
	case reg.joinChan <- fwd:
	case <-ctx.Done():
		fwd.join.reply <- joinReply{err: ctx.Err()}
	}
}

// ListSessions returns the directory entries of every current session.
func (reg *Registry) ListSessions(ctx context.Context) []SessionDescription {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	respChan := make(chan []SessionDescription, 1)
	select {
	case reg.listChan <- respChan:
		select {
		case resp := <-respChan:
			return resp
		case <-ctx.Done():
			return nil
		}
	case <-ctx.Done():
		return nil
	}
}

// RequestUpdateDescription refreshes a session's directory entry. Updates
// are best effort; a full channel drops the refresh.
func (reg *Registry) RequestUpdateDescription(desc SessionDescription) {
	select {
	case reg.descChan <- desc:
	default:
	}
}

// RemoveSession drops a session from the directory.
func (reg *Registry) RemoveSession(sessionId string) {
	reg.removeChan <- sessionId
}

// RegistryActor owns the session map. started is closed once the actor is
// draining its channels.
func (reg *Registry) RegistryActor(started chan struct{}) {
	close(started)

	for {
		select {
		case req := <-reg.createChan:
			reg.handleCreate(req)
		case fwd := <-reg.joinChan:
			reg.handleJoinForward(fwd)
		case respChan := <-reg.listChan:
			reg.handleList(respChan)
		case desc := <-reg.descChan:
			if _, ok := reg.runners[desc.Id]; ok {
				reg.descriptions[desc.Id] = desc
			}
		case sessionId := <-reg.removeChan:
			delete(reg.runners, sessionId)
			delete(reg.descriptions, sessionId)
		}
	}
}

func (reg *Registry) handleCreate(req createRequest) {
	name := strings.TrimSpace(req.name)
	if len(name) < 2 {
		req.reply <- createReply{err: ErrInvalidSessionName}
		req.join.reply <- joinReply{err: ErrInvalidSessionName}
		return
	}

	secretHash := ""
	if req.secret != "" {
		hash, err := reg.hasher.Hash(req.secret)
		if err != nil {
			req.reply <- createReply{err: err}
			req.join.reply <- joinReply{err: err}
			return
		}
		secretHash = hash
	}

	id := reg.ids.Generate()
	session := NewSession(id, name, secretHash, MaxSeats, reg.random, reg.ids)
	runner := NewRunner(session, reg.provider, reg.random, reg.timers, reg.timings, reg, reg.hasher, reg.results)

	reg.runners[id] = runner
	reg.descriptions[id] = SessionDescription{
		Id:       id,
		Name:     name,
		Capacity: session.Capacity(),
		Locked:   session.Locked(),
	}
	go runner.GameLoop()

	req.reply <- createReply{sessionId: id}
	runner.Join(req.join)
}

func (reg *Registry) handleJoinForward(fwd joinForward) {
	runner, ok := reg.runners[fwd.sessionId]
	if !ok {
		fwd.join.reply <- joinReply{err: ErrSessionNotFound}
		return
	}
	runner.Join(fwd.join)
}

func (reg *Registry) handleList(respChan chan []SessionDescription) {
	list := make([]SessionDescription, 0, len(reg.descriptions))
	for _, desc := range reg.descriptions {
		list = append(list, desc)
	}
	respChan <- list
}
