package api

type HTTPErrorData struct {
	Code    HTTPErrorCode `json:"code"`
	Message string        `json:"message,omitempty"`
	Extra   any           `json:"extra,omitempty"`
}

type HTTPErrorCode uint8

const (
	MissingURLQueryHTTPCode     HTTPErrorCode = 101
	InternalServerErrorHTTPCode HTTPErrorCode = 102
	InvalidBodyHTTPCode         HTTPErrorCode = 103
	NotFoundHTTPCode            HTTPErrorCode = 104
)

type WebsocketErrorData struct {
	Request RequestType        `json:"request,omitempty"`
	Code    WebsocketErrorCode `json:"code"`
	Message string             `json:"message,omitempty"`
	Extra   any                `json:"extra,omitempty"`
}

type WebsocketErrorCode uint8

const (
	InvalidRequestCode      WebsocketErrorCode = 201
	RoomNotFoundCode        WebsocketErrorCode = 202
	InvalidInputCode        WebsocketErrorCode = 203
	InternalServerErrorCode WebsocketErrorCode = 204
	QuizNotFoundErrorCode   WebsocketErrorCode = 205
	InvalidPhaseCode        WebsocketErrorCode = 206
	TooManyRequestsCode     WebsocketErrorCode = 207
)

type ErrorCode interface {
	HTTPErrorCode | WebsocketErrorCode
}

type ErrorData[T ErrorCode] struct { //nolint: errname
	Request RequestType `json:"request,omitempty"`
	Code    T           `json:"code"`
	Message string      `json:"message,omitempty"`
	Extra   any         `json:"extra,omitempty"`
	Err     error       `json:"-"`
}

func (e ErrorData[T]) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

func (e ErrorData[T]) Unwrap() error {
	return e.Err
}
