package game

import "errors"

var (
	ErrSessionFull          = errors.New("session-full")
	ErrInvalidPlayerName    = errors.New("invalid-player-name")
	ErrInvalidSessionName   = errors.New("invalid-session-name")
	ErrWrongAccessSecret    = errors.New("wrong-access-secret")
	ErrSessionNotFound      = errors.New("session-not-found")
	ErrNoQuestionsRemaining = errors.New("no-questions-remaining")
	ErrNoEligiblePlayers    = errors.New("no-eligible-players")
	ErrNotAdmin             = errors.New("not-admin")
	ErrAlreadyStarted       = errors.New("game-already-started")
	ErrNotStarted           = errors.New("game-not-started")
	ErrUnexpectedPhase      = errors.New("unexpected-phase")
	ErrInvalidRequestFormat = errors.New("invalid-request-format")
)

var ErrSendBufferFull = errors.New("send-buffer-full")
