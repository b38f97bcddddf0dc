package errors

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func requestFields(r *http.Request, fields ...zap.Field) []zap.Field {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return append(fields, zap.String("method", r.Method), zap.String("path", r.URL.Path))
}

// InternalError logs err and answers with a generic 500.
func InternalError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error, message string) {
	logger.Error(message, requestFields(r, zap.Error(err))...)

	// Return generic error to client
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func BadRequestError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	logger.Warn("bad request", requestFields(r, zap.Error(err))...)
	http.Error(w, clientMessage, http.StatusBadRequest)
}

// ClientError answers with status and clientMessage after logging at debug.
func ClientError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error, status int, clientMessage string) {
	logger.Debug("request rejected", requestFields(r, zap.Int("status", status), zap.Error(err))...)
	http.Error(w, clientMessage, status)
}

func LogError(logger *zap.Logger, r *http.Request, message string, err error) {
	logger.Error(message, requestFields(r, zap.Error(err))...)
}

func LogInfo(logger *zap.Logger, r *http.Request, message string) {
	logger.Info(message, requestFields(r)...)
}
