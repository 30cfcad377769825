package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mythologiq/hearthlink-core/services"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsMaxFrameSize = 1 << 16
)

// Gateway upgrades HTTP requests into tracked realtime channels.
//
// The handshake carries the access token and self-declared identity fields
// as query parameters. A failed handshake tears the channel down with no
// reply so valid credentials cannot be probed.
type Gateway struct {
	auth     *services.AuthService
	registry *Registry
}

// NewGateway constructs a Gateway.
func NewGateway(auth *services.AuthService, registry *Registry) *Gateway {
	return &Gateway{auth: auth, registry: registry}
}

// Handle runs the websocket handshake and the connection's read loop.
func (g *Gateway) Handle(c echo.Context) error {
	r := c.Request()

	conn, err := websocket.Accept(c.Response(), r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin policy is the proxy's concern
	})
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket accept failed")
		return nil
	}
	conn.SetReadLimit(wsMaxFrameSize)

	query := r.URL.Query()
	claims, err := g.auth.Validate(r.Context(), query.Get("token"))
	if err != nil {
		// Silent termination: no close frame, no error body.
		_ = conn.CloseNow()
		log.Info().Str("remote", r.RemoteAddr).Msg("websocket handshake rejected")
		return nil
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	record := NewConnection(
		uuid.NewString(),
		claims.SubjectID,
		query.Get("agentClass"),
		query.Get("agentLabel"),
		query.Get("channelLabel"),
		r.RemoteAddr,
	)
	// When the registry drops this record (sweep, failed send, drain) the
	// socket must die with it, or a silent client would pin the read loop
	// and its TCP connection forever.
	record.OnClose(func() {
		cancel()
		_ = conn.CloseNow()
	})
	g.registry.Add(record)
	defer g.registry.Remove(record.ID)

	logger := log.With().
		Str("connection_id", record.ID).
		Str("subject_id", record.SubjectID).
		Str("agent_class", record.AgentClass).
		Logger()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writePump(ctx, conn, record, logger)
	}()

	if err := g.registry.Send(record.ID, NewConnectionAck(record.ID)); err != nil {
		logger.Warn().Err(err).Msg("failed to enqueue connection ack")
		return nil
	}

	g.readLoop(ctx, conn, record, logger)

	cancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func (g *Gateway) writePump(ctx context.Context, conn *websocket.Conn, record *Connection, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-record.Done():
			return
		case frame := <-record.send:
			if err := writeFrame(ctx, conn, frame); err != nil {
				logger.Info().Err(err).Msg("write failed, tearing down connection")
				g.registry.Remove(record.ID)
				return
			}
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, record *Connection, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-record.Done():
			return
		default:
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && ctx.Err() == nil {
				logger.Info().Err(err).Msg("read failed, closing connection")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed payloads are logged and dropped, never fatal.
			logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		g.dispatch(record, frame, logger)
	}
}

// dispatch handles one inbound frame. The kind set is closed; unknown kinds
// are a logged no-op.
func (g *Gateway) dispatch(record *Connection, frame Frame, logger zerolog.Logger) {
	now := time.Now()

	switch frame.Type {
	case FramePing:
		record.TouchPing(now)
		if err := g.registry.Send(record.ID, NewPong(frame.TraceID, now)); err != nil {
			logger.Info().Err(err).Msg("pong delivery failed")
		}
	case FramePong:
		record.TouchPing(now)
	case FrameClientLog:
		g.relayClientLog(record, frame, logger)
	default:
		logger.Debug().Str("frame", string(frame.Type)).Msg("dropping unrecognized frame type")
	}
}

// relayClientLog forwards a client-side log frame into the structured log
// sink at the client's requested level.
func (g *Gateway) relayClientLog(record *Connection, frame Frame, logger zerolog.Logger) {
	level, err := zerolog.ParseLevel(frame.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger.WithLevel(level).
		Str("component", frame.Component).
		Str("agent_label", record.AgentLabel).
		Interface("context", frame.Context).
		Msg(frame.LogMessage())
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
