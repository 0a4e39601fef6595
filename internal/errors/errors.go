package errors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"toohak-backend/api"
	"toohak-backend/internal/quiz"
	"toohak-backend/internal/store"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

var errorCodeHTTPStatusCode = map[api.HTTPErrorCode]int{
	api.MissingURLQueryHTTPCode:     http.StatusBadRequest,
	api.InternalServerErrorHTTPCode: http.StatusInternalServerError,
	api.InvalidBodyHTTPCode:         http.StatusBadRequest,
	api.NotFoundHTTPCode:            http.StatusNotFound,
}

func WriteHTTPError(ctx context.Context, w http.ResponseWriter, err error) {
	res := api.HTTPErrorData{
		Code:    api.InternalServerErrorHTTPCode,
		Message: "unexpected error",
	}
	statusCode := http.StatusInternalServerError

	apiErr := &api.ErrorData[api.HTTPErrorCode]{}
	if err != nil && errors.As(err, apiErr) {
		res.Code = apiErr.Code
		res.Message = apiErr.Message
		res.Extra = apiErr.Extra
		if code, ok := errorCodeHTTPStatusCode[apiErr.Code]; ok {
			statusCode = code
		}
	}

	slog.ErrorContext(ctx, "http error",
		slog.Any("error", err),
		slog.Any("error_code", res.Code),
		slog.Int("status_code", statusCode))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.ErrorContext(ctx, "http error: failed to encode response", slog.Any("error", err))
	}
}

// WriteWebsocketError reports err to the requesting connection only.
func WriteWebsocketError(ctx context.Context, conn *websocket.Conn, err error) {
	res := api.Response[api.WebsocketErrorData]{
		Type: api.ResponseTypeError,
		Data: api.WebsocketErrorData{
			Code:    api.InternalServerErrorCode,
			Message: "unexpected error",
		},
	}

	apiErr := &api.ErrorData[api.WebsocketErrorCode]{}
	if err != nil && errors.As(err, apiErr) {
		res.Data.Request = apiErr.Request
		res.Data.Code = apiErr.Code
		res.Data.Message = apiErr.Message
		res.Data.Extra = apiErr.Extra
	}

	slog.ErrorContext(ctx, "ws error",
		slog.Any("error", err),
		slog.Any("error_code", res.Data.Code))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := wsjson.Write(ctx, conn, res); err != nil {
		slog.ErrorContext(ctx, "ws error: failed to write response", slog.Any("error", err))
	}
}

// SessionError maps an error returned by a room session to its API error.
func SessionError(err error, req api.RequestType) api.ErrorData[api.WebsocketErrorCode] {
	switch {
	case errors.Is(err, quiz.ErrInvalidPhase), errors.Is(err, quiz.ErrAlreadyAnswered):
		return InvalidPhaseError(err, req)
	case errors.Is(err, quiz.ErrNoQuestions), errors.Is(err, store.ErrNotFound):
		return QuizNotFoundError(err, req)
	case errors.Is(err, quiz.ErrSessionNotFound):
		return RoomNotFoundError(err, req)
	default:
		return InternalServerError(err, req)
	}
}

func InvalidRequestError(err error, req api.RequestType, cause string) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.InvalidRequestCode,
		Message: "invalid request",
		Extra: struct {
			Cause string `json:"cause"`
		}{
			Cause: cause,
		},
		Err: err,
	}
}

func InputValidationError(err error, req api.RequestType, fields map[string]string) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.InvalidInputCode,
		Message: "invalid input",
		Extra:   fields,
		Err:     err,
	}
}

func InvalidPhaseError(err error, req api.RequestType) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.InvalidPhaseCode,
		Message: "request not allowed now",
		Err:     err,
	}
}

func RoomNotFoundError(err error, req api.RequestType) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.RoomNotFoundCode,
		Message: "room not found",
		Err:     err,
	}
}

func QuizNotFoundError(err error, req api.RequestType) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.QuizNotFoundErrorCode,
		Message: "quiz not found",
		Err:     err,
	}
}

func TooManyRequestsError(req api.RequestType, retryAfter time.Duration) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.TooManyRequestsCode,
		Message: "too many requests",
		Extra: struct {
			RetryAfterMs int64 `json:"retryAfterMs"`
		}{
			RetryAfterMs: retryAfter.Milliseconds(),
		},
	}
}

func InternalServerError(err error, req api.RequestType) api.ErrorData[api.WebsocketErrorCode] {
	return api.ErrorData[api.WebsocketErrorCode]{
		Request: req,
		Code:    api.InternalServerErrorCode,
		Message: "internal server error",
		Err:     err,
	}
}

func MissingURLQueryError(query string) api.ErrorData[api.HTTPErrorCode] {
	return api.ErrorData[api.HTTPErrorCode]{
		Code:    api.MissingURLQueryHTTPCode,
		Message: "missing url query",
		Extra: struct {
			Query string `json:"query"`
		}{
			Query: query,
		},
	}
}

func InvalidBodyError(err error, fields map[string]string) api.ErrorData[api.HTTPErrorCode] {
	return api.ErrorData[api.HTTPErrorCode]{
		Code:    api.InvalidBodyHTTPCode,
		Message: "invalid body",
		Extra:   fields,
		Err:     err,
	}
}

// HTTPStoreError maps a store error to its HTTP API error.
func HTTPStoreError(err error, resource string) api.ErrorData[api.HTTPErrorCode] {
	if errors.Is(err, store.ErrNotFound) {
		return api.ErrorData[api.HTTPErrorCode]{
			Code:    api.NotFoundHTTPCode,
			Message: resource + " not found",
			Err:     err,
		}
	}
	return HTTPInternalServerError(err)
}

func HTTPInternalServerError(err error) api.ErrorData[api.HTTPErrorCode] {
	return api.ErrorData[api.HTTPErrorCode]{
		Code:    api.InternalServerErrorHTTPCode,
		Message: "internal server error",
		Err:     err,
	}
}
