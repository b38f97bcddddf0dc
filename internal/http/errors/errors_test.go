package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInternalErrorHidesDetails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/editor/save", nil)
	InternalError(logger, rec, req, errors.New("pq: connection refused"), "save failed")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatal("internal error details leaked to the client")
	}
	entries := logs.FilterMessage("save failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["path"] != "/v1/editor/save" {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
}

func TestClientError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/editor/ops", nil)

	ClientError(zap.New(core), rec, req, errors.New("invalid value"), http.StatusUnprocessableEntity, "invalid value")

	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "invalid value") {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one log entry, got %d", logs.Len())
	}
}
