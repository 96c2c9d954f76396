package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// NetworkSession is one live client connection, abstracted so pumps can be
// tested against a mock.
type NetworkSession interface {
	Close(reason string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type websocketConnection struct {
	socket *websocket.Conn
}

func NewWebsocketConnection(conn *websocket.Conn) *websocketConnection {
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})
	return &websocketConnection{socket: conn}
}

func (wc *websocketConnection) Write(data []byte) error {
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	return wc.socket.WriteMessage(websocket.PingMessage, nil)
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Close(reason string) {
	wc.socket.SetWriteDeadline(time.Now().Add(time.Second * 20))
	wc.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
	wc.socket.Close()
}

const (
	outboxSize   = 256
	pingInterval = 30 * time.Second
	replyTimeout = 5 * time.Second
)

// Client is one connected participant. A connection is the player identity:
// it belongs to at most one session at a time, and disconnecting is leaving.
type Client struct {
	playerId string
	runner   *Runner

	registry  *Registry
	socket    NetworkSession
	outbox    chan []byte
	limiter   *rate.Limiter
	ctx       context.Context
	cancelCtx context.CancelFunc
}

func NewClient(registry *Registry, socket NetworkSession) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		registry:  registry,
		socket:    socket,
		outbox:    make(chan []byte, outboxSize),
		limiter:   rate.NewLimiter(rate.Limit(1), 5),
		ctx:       ctx,
		cancelCtx: cancel,
	}
}

// Send queues a frame for the write pump without ever blocking the caller.
func (c *Client) Send(data []byte) error {
	select {
	case c.outbox <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) Ack(seq int64, err error, result any) {
	envelope := ServerEnvelope{Event: EventAck, Seq: seq, Payload: result}
	if err != nil {
		envelope.Error = err.Error()
	}
	data, merr := json.Marshal(envelope)
	if merr != nil {
		slog.Error("marshal ack", "err", merr)
		return
	}
	if serr := c.Send(data); serr != nil {
		slog.Debug("dropping ack for slow client", "player", c.playerId, "err", serr)
	}
}

func (c *Client) CancelAndRelease() {
	c.cancelCtx()
}

// ReadPump drives the connection's inbound side until the peer goes away,
// then files the implicit leave.
func (c *Client) ReadPump() {
	defer func() {
		if c.runner != nil {
			c.runner.Post(command{from: c, playerId: c.playerId, event: EventLeaveSession})
		}
		c.cancelCtx()
		c.socket.Close("")
	}()

	for {
		data, err := c.socket.Read()
		if err != nil {
			return
		}
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		if !c.limiter.Allow() {
			slog.Debug("rate limited frame", "player", c.playerId)
			continue
		}

		var envelope ClientEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			slog.Debug("unparseable frame", "player", c.playerId, "err", err)
			continue
		}
		c.dispatch(envelope)
	}
}

// WritePump owns all socket writes, including keepalive pings.
func (c *Client) WritePump() {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.outbox:
			if err := c.socket.Write(data); err != nil {
				c.cancelCtx()
				return
			}
		case <-pingTicker.C:
			if err := c.socket.Ping(); err != nil {
				c.cancelCtx()
				return
			}
		}
	}
}

func (c *Client) dispatch(envelope ClientEnvelope) {
	switch envelope.Event {
	case EventCreateSession:
		c.handleCreateSession(envelope)
	case EventJoinSession:
		c.handleJoinSession(envelope)
	case EventLeaveSession:
		c.handleLeaveSession(envelope)
	default:
		c.forward(envelope)
	}
}

func (c *Client) forward(envelope ClientEnvelope) {
	if c.runner == nil {
		c.Ack(envelope.Seq, ErrSessionNotFound, nil)
		return
	}
	ok := c.runner.Post(command{
		from:     c,
		playerId: c.playerId,
		event:    envelope.Event,
		seq:      envelope.Seq,
		payload:  envelope.Payload,
	})
	if !ok {
		// the session was torn down under us
		c.runner = nil
		c.playerId = ""
		c.Ack(envelope.Seq, ErrSessionNotFound, nil)
	}
}

func (c *Client) handleCreateSession(envelope ClientEnvelope) {
	if c.runner != nil {
		c.Ack(envelope.Seq, ErrAlreadyStarted, nil)
		return
	}
	var req CreateSessionRequest
	if err := json.Unmarshal(envelope.Payload, &req); err != nil {
		c.Ack(envelope.Seq, ErrInvalidRequestFormat, nil)
		return
	}

	join := joinRequest{
		name:   req.Player.Name,
		secret: req.AccessSecret,
		from:   c,
		reply:  make(chan joinReply, 1),
	}
	create := createRequest{
		name:   req.Name,
		secret: req.AccessSecret,
		join:   join,
		reply:  make(chan createReply, 1),
	}

	ctx, cancel := context.WithTimeout(c.ctx, replyTimeout)
	defer cancel()
	c.registry.RequestCreateSession(ctx, create)

	created, ok := c.awaitCreate(ctx, create.reply)
	if !ok {
		c.Ack(envelope.Seq, context.DeadlineExceeded, nil)
		return
	}
	if created.err != nil {
		c.Ack(envelope.Seq, created.err, nil)
		return
	}
	c.awaitJoin(ctx, envelope.Seq, created.sessionId, join.reply)
}

func (c *Client) handleJoinSession(envelope ClientEnvelope) {
	if c.runner != nil {
		c.Ack(envelope.Seq, ErrAlreadyStarted, nil)
		return
	}
	var req JoinSessionRequest
	if err := json.Unmarshal(envelope.Payload, &req); err != nil {
		c.Ack(envelope.Seq, ErrInvalidRequestFormat, nil)
		return
	}

	join := joinRequest{
		name:   req.Player.Name,
		secret: req.AccessSecret,
		from:   c,
		reply:  make(chan joinReply, 1),
	}

	ctx, cancel := context.WithTimeout(c.ctx, replyTimeout)
	defer cancel()
	c.registry.ForwardJoinRequest(ctx, joinForward{sessionId: req.SessionId, join: join})
	c.awaitJoin(ctx, envelope.Seq, req.SessionId, join.reply)
}

func (c *Client) awaitCreate(ctx context.Context, reply chan createReply) (createReply, bool) {
	select {
	case created := <-reply:
		return created, true
	case <-ctx.Done():
		return createReply{}, false
	}
}

func (c *Client) awaitJoin(ctx context.Context, seq int64, sessionId string, reply chan joinReply) {
	select {
	case joined := <-reply:
		if joined.err != nil {
			c.Ack(seq, joined.err, nil)
			return
		}
		c.playerId = joined.player.Id
		c.runner = joined.runner
		c.Ack(seq, nil, JoinResult{SessionId: sessionId, PlayerId: joined.player.Id})
	case <-ctx.Done():
		c.Ack(seq, context.DeadlineExceeded, nil)
	}
}

func (c *Client) handleLeaveSession(envelope ClientEnvelope) {
	if c.runner == nil {
		c.Ack(envelope.Seq, ErrSessionNotFound, nil)
		return
	}
	// snapshot the seat before clearing the binding; the runner processes
	// the leave after this method has returned
	c.runner.Post(command{from: c, playerId: c.playerId, event: EventLeaveSession})
	c.runner = nil
	c.playerId = ""
	c.Ack(envelope.Seq, nil, nil)
}
