package game

import "encoding/json"

// Inbound event names. The names are part of the client protocol and must
// not change.
const (
	EventCreateSession       = "create-session"
	EventJoinSession         = "join-session"
	EventStartGame           = "start-game"
	EventSubmitAnswer        = "submit-answer"
	EventRequestNextPlayer   = "request-next-player"
	EventRequestNextQuestion = "request-next-question"
	EventRequestSurprise     = "request-surprise"
	EventLeaveSession        = "leave-session"
)

// Outbound event names.
const (
	EventPlayersChanged = "players-changed"
	EventInitGame       = "init-game"
	EventNextQuestion   = "next-question"
	EventQuestionAnswer = "question-answer"
	EventPlayerSurprise = "player-surprise"
	EventPlayerRemoved  = "player-removed"
	EventNextPlayer     = "next-player"
	EventPlayerLeft     = "player-left"
	EventFinishedGame   = "finished-game"
	EventAck            = "ack"
)

// ClientEnvelope is one inbound websocket frame. A non-zero Seq requests an
// ack frame carrying the (error, result) pair for that call.
type ClientEnvelope struct {
	Event   string          `json:"event"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEnvelope is one outbound websocket frame.
type ServerEnvelope struct {
	Event   string `json:"event"`
	Seq     int64  `json:"seq,omitempty"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type PlayerDescriptor struct {
	Name string `json:"name"`
}

type CreateSessionRequest struct {
	Name         string           `json:"name"`
	AccessSecret string           `json:"accessSecret"`
	Player       PlayerDescriptor `json:"player"`
}

type JoinSessionRequest struct {
	SessionId    string           `json:"sessionId"`
	AccessSecret string           `json:"accessSecret"`
	Player       PlayerDescriptor `json:"player"`
}

type SubmitAnswerRequest struct {
	ChoiceIndex int `json:"choiceIndex"`
}

// JoinResult is the ack payload for create-session and join-session.
type JoinResult struct {
	SessionId string `json:"sessionId"`
	PlayerId  string `json:"playerId"`
}

// MovementBroadcast is the players-changed payload after a move; the lobby
// variant of players-changed carries the full roster instead.
type MovementBroadcast struct {
	StartPosition   int    `json:"startPosition"`
	EndPosition     int    `json:"endPosition"`
	Direction       int    `json:"direction"`
	CurrentPlayerId string `json:"currentPlayerId"`
}

type InitGameBroadcast struct {
	Players []Player `json:"players"`
}

type NextQuestionBroadcast struct {
	Player   string   `json:"player"`
	Question Question `json:"question"`
}

type PlayerSurpriseBroadcast struct {
	Surprise Surprise `json:"surprise"`
}

type PlayerRemovedBroadcast struct {
	NewPlayers    []Player `json:"newPlayers"`
	RemovedPlayer []Player `json:"removedPlayer"`
}

// SessionDescription is the lobby directory entry for one session.
type SessionDescription struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Players  int    `json:"players"`
	Capacity int    `json:"capacity"`
	Locked   bool   `json:"locked"`
	Started  bool   `json:"started"`
}
