package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/accounthub/apiserver/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

const (
	nameAuthorization    = "AuthorizationError"
	nameRouteNotFound    = "NotFoundError"
	nameMethodNotAllowed = "MethodNotAllowedError"

	msgNotLoggedIn      = "你尚未登入！"
	msgBadRequest       = "欄位未正確填寫"
	msgRouteNotFound    = "無此路由資訊"
	msgMethodNotAllowed = "不支援此請求方法"
)

// SuccessResponse is the envelope for every successful answer.
type SuccessResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope for every failed answer.
type ErrorResponse struct {
	Status  bool   `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func withUserID(ctx context.Context, id primitive.ObjectID) context.Context {
	return context.WithValue(ctx, contextSubjectKey, id)
}

func userIDFromContext(ctx context.Context) (primitive.ObjectID, error) {
	id, ok := ctx.Value(contextSubjectKey).(primitive.ObjectID)
	if !ok || id.IsZero() {
		return primitive.NilObjectID, errors.New("missing subject")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, SuccessResponse{Status: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, name, message string) {
	writeJSON(w, status, ErrorResponse{Status: false, Name: name, Message: message})
}

// writeServiceError answers with the status and message carried by a
// services.Error. Anything else is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = services.InternalError(err)
	}
	if svcErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, svcErr.Status, svcErr.Name, svcErr.Message)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst zeroed.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// NotFound answers unknown routes with the error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, nameRouteNotFound, msgRouteNotFound)
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, nameMethodNotAllowed, msgMethodNotAllowed)
}
