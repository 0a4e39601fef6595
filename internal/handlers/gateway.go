package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"toohak-backend/api"
	"toohak-backend/internal/config"
	errs "toohak-backend/internal/errors"
	"toohak-backend/internal/quiz"
	"toohak-backend/internal/rate"
	"toohak-backend/internal/store"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const requestTimeout = 5 * time.Second

var validate = newValidator()

// newValidator reports failing fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationFields(err error) map[string]string {
	fields := map[string]string{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}

// RoomLookup resolves rooms of the directory.
type RoomLookup interface {
	GetRoom(ctx context.Context, id string) (store.Room, error)
}

// GatewayHandler upgrades connections to websocket and routes the room
// events they send to the matching quiz session.
type GatewayHandler struct {
	cfg        config.Config
	rooms      RoomLookup
	hub        *Hub
	sessions   *quiz.Sessions
	acceptOpts websocket.AcceptOptions
}

func NewGatewayHandler(cfg config.Config, rooms RoomLookup, hub *Hub, sessions *quiz.Sessions, acceptOpts websocket.AcceptOptions) *GatewayHandler {
	return &GatewayHandler{
		cfg:        cfg,
		rooms:      rooms,
		hub:        hub,
		sessions:   sessions,
		acceptOpts: acceptOpts,
	}
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &h.acceptOpts)
	if err != nil {
		// Accept already writes a status code and error message.
		slog.ErrorContext(r.Context(), "websocket accept failed", slog.Any("error", err))
		return
	}
	ws.SetReadLimit(h.cfg.Room.WebsocketReadLimit)

	conn := &Conn{
		ID: uuid.New().String(),
		ws: ws,
	}
	limiter := rate.NewLimiter(h.cfg.Room.EventRateWindow, h.cfg.Room.EventRateLimit)

	ctx := r.Context()
	slog.DebugContext(ctx, "websocket connected", slog.String("conn_id", conn.ID))

	go ping(ctx, ws, h.cfg.Room.PingInterval) // Detect timed out connection.
	defer h.handleDisconnect(ctx, conn)

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.DebugContext(ctx, "websocket read failed",
					slog.String("conn_id", conn.ID),
					slog.Any("error", err))
			}
			return
		}

		if typ != websocket.MessageText {
			errs.WriteWebsocketError(ctx, ws, errs.InvalidRequestError(nil, api.RequestTypeUnknown, "expected a text frame"))
			continue
		}

		req := api.Request[json.RawMessage]{}
		if err := json.Unmarshal(data, &req); err != nil {
			errs.WriteWebsocketError(ctx, ws, errs.InvalidRequestError(err, api.RequestTypeUnknown, "malformed json"))
			continue
		}

		if !limiter.Allow() {
			errs.WriteWebsocketError(ctx, ws, errs.TooManyRequestsError(req.Type, limiter.RetryAfter()))
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		if err := h.dispatch(reqCtx, conn, req); err != nil {
			errs.WriteWebsocketError(ctx, ws, err)
		}
		cancel()
	}
}

func (h *GatewayHandler) dispatch(ctx context.Context, conn *Conn, req api.Request[json.RawMessage]) error {
	switch req.Type {
	case api.RequestTypeJoinRoom:
		data, err := decodeRequest[api.JoinRoomRequestData](req)
		if err != nil {
			return err
		}
		return h.handleJoinRoom(ctx, conn, data, req.Type)
	case api.RequestTypeNewPlayer:
		data, err := decodeRequest[api.NewPlayerRequestData](req)
		if err != nil {
			return err
		}
		sess, err := h.roomSession(ctx, data.RoomID, req.Type)
		if err != nil {
			return err
		}
		h.hub.Join(data.RoomID, conn)
		return sessionError(sess.Join(ctx, data.PlayerID, conn.ID), req.Type)
	case api.RequestTypeStartQuiz:
		data, err := decodeRequest[api.StartQuizRequestData](req)
		if err != nil {
			return err
		}
		sess, err := h.roomSession(ctx, data.RoomID, req.Type)
		if err != nil {
			return err
		}
		return sessionError(sess.StartQuiz(ctx, data.QuizID), req.Type)
	case api.RequestTypeRecvQuestion:
		data, err := decodeRequest[api.RecvQuestionRequestData](req)
		if err != nil {
			return err
		}
		return h.withSession(data.RoomID, req.Type, func(sess *quiz.Session) error {
			return sess.AckQuestion(ctx)
		})
	case api.RequestTypeAnswer:
		data, err := decodeRequest[api.AnswerRequestData](req)
		if err != nil {
			return err
		}
		return h.withSession(data.RoomID, req.Type, func(sess *quiz.Session) error {
			return sess.SubmitAnswer(ctx, data.PlayerID, data.Answer)
		})
	case api.RequestTypeWaitForQuiz:
		data, err := decodeRequest[api.WaitForQuizRequestData](req)
		if err != nil {
			return err
		}
		return h.withSession(data.RoomID, req.Type, func(sess *quiz.Session) error {
			return sess.ReadyForNext(ctx, data.PlayerID)
		})
	default:
		return errs.InvalidRequestError(nil, req.Type, "unknown request type")
	}
}

// handleJoinRoom subscribes the connection to the room broadcasts and
// acknowledges it so the client knows it will not miss later events.
func (h *GatewayHandler) handleJoinRoom(ctx context.Context, conn *Conn, data api.JoinRoomRequestData, req api.RequestType) error {
	if _, err := h.roomSession(ctx, data.RoomID, req); err != nil {
		return err
	}
	h.hub.Join(data.RoomID, conn)

	res := api.Response[api.JoinRoomResponseData]{
		Type: api.ResponseTypeJoinedRoom,
		Data: api.JoinRoomResponseData{RoomID: data.RoomID},
	}
	if err := wsjson.Write(ctx, conn.ws, res); err != nil {
		slog.ErrorContext(ctx, "join room: failed to write response",
			slog.String("conn_id", conn.ID),
			slog.Any("error", err))
	}
	return nil
}

// roomSession returns the live session of roomID, installing one if the
// room exists in the directory.
func (h *GatewayHandler) roomSession(ctx context.Context, roomID string, req api.RequestType) (*quiz.Session, error) {
	if sess, ok := h.sessions.Get(roomID); ok {
		return sess, nil
	}

	if _, err := h.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.RoomNotFoundError(err, req)
		}
		return nil, errs.InternalServerError(err, req)
	}
	return h.sessions.GetOrCreate(roomID), nil
}

// withSession runs fn on the live session of roomID. Events for a room
// without a session are rejected.
func (h *GatewayHandler) withSession(roomID string, req api.RequestType, fn func(*quiz.Session) error) error {
	sess, ok := h.sessions.Get(roomID)
	if !ok {
		return errs.RoomNotFoundError(quiz.ErrSessionNotFound, req)
	}
	return sessionError(fn(sess), req)
}

func (h *GatewayHandler) handleDisconnect(ctx context.Context, conn *Conn) {
	conn.ws.CloseNow()
	h.hub.Leave(conn)

	if h.sessions.Disconnect(context.WithoutCancel(ctx), conn.ID) {
		slog.DebugContext(ctx, "player disconnected", slog.String("conn_id", conn.ID))
	}
}

func decodeRequest[T any](req api.Request[json.RawMessage]) (T, error) {
	data, err := api.DecodeJSON[T](req.Data)
	if err != nil {
		return data, errs.InvalidRequestError(err, req.Type, "invalid request data")
	}
	if err := validate.Struct(data); err != nil {
		return data, errs.InputValidationError(err, req.Type, validationFields(err))
	}
	return data, nil
}

func sessionError(err error, req api.RequestType) error {
	if err == nil {
		return nil
	}
	return errs.SessionError(err, req)
}

func ping(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(timeoutCtx)
			cancel()
			if err != nil {
				slog.DebugContext(ctx, "ping failed, closing conn", slog.Any("error", err))
				conn.CloseNow()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
