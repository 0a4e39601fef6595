// Package client speaks the room gateway protocol over a websocket.
package client

import (
	"context"
	"encoding/json"
	"time"

	"toohak-backend/api"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// Dial connects to the gateway at url. A zero timeout disables the
// per-message deadline.
func Dial(ctx context.Context, url string, timeout time.Duration) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, timeout), nil
}

func NewClient(conn *websocket.Conn, timeout time.Duration) *Client {
	return &Client{
		conn:    conn,
		timeout: timeout,
	}
}

func (c *Client) Close() {
	c.conn.CloseNow()
}

func (c *Client) context() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(context.Background(), c.timeout)
	}
	return context.WithCancel(context.Background())
}

// Send writes a request of type typ carrying data.
func (c *Client) Send(typ api.RequestType, data any) error {
	ctx, cancel := c.context()
	defer cancel()
	return wsjson.Write(ctx, c.conn, api.Request[any]{Type: typ, Data: data})
}

// SendRaw writes b as a single text frame.
func (c *Client) SendRaw(b []byte) error {
	ctx, cancel := c.context()
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, b)
}

// ReadResponse reads the next message pushed by the gateway. A read
// deadline hit closes the connection.
func (c *Client) ReadResponse() (api.Response[json.RawMessage], error) {
	ctx, cancel := c.context()
	defer cancel()

	res := api.Response[json.RawMessage]{}
	err := wsjson.Read(ctx, c.conn, &res)
	return res, err
}

// JoinRoom subscribes to the room broadcasts and waits for the
// acknowledgement.
func (c *Client) JoinRoom(roomID string) (api.Response[json.RawMessage], error) {
	if err := c.Send(api.RequestTypeJoinRoom, api.JoinRoomRequestData{RoomID: roomID}); err != nil {
		return api.Response[json.RawMessage]{}, err
	}
	return c.ReadResponse()
}

func (c *Client) NewPlayer(roomID, playerID string) error {
	return c.Send(api.RequestTypeNewPlayer, api.NewPlayerRequestData{
		RoomID:   roomID,
		PlayerID: playerID,
	})
}

func (c *Client) StartQuiz(roomID, quizID string) error {
	return c.Send(api.RequestTypeStartQuiz, api.StartQuizRequestData{
		RoomID: roomID,
		QuizID: quizID,
	})
}

func (c *Client) RecvQuestion(roomID string) error {
	return c.Send(api.RequestTypeRecvQuestion, api.RecvQuestionRequestData{RoomID: roomID})
}

func (c *Client) Answer(roomID, playerID, answer string) error {
	return c.Send(api.RequestTypeAnswer, api.AnswerRequestData{
		RoomID:   roomID,
		PlayerID: playerID,
		Answer:   answer,
	})
}

func (c *Client) WaitForQuiz(roomID, playerID string) error {
	return c.Send(api.RequestTypeWaitForQuiz, api.WaitForQuizRequestData{
		RoomID:   roomID,
		PlayerID: playerID,
	})
}
