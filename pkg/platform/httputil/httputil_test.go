package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "bulwark/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("rate limited includes detail fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := dErrors.New(dErrors.CodeRateLimited, "user limit exceeded").
			WithDetail("retry_after", 60).
			WithDetail("limit", 100)
		WriteError(w, err)

		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "rate_limited" {
			t.Fatalf("expected error code rate_limited, got %q", body["error"])
		}
		if body["retry_after"] != float64(60) {
			t.Fatalf("expected retry_after 60, got %v", body["retry_after"])
		}
		if body["limit"] != float64(100) {
			t.Fatalf("expected limit 100, got %v", body["limit"])
		}
	})
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","bogus":1}`))
	_, err := DecodeJSON[payload](r)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if dErrors.CodeOf(err) != dErrors.CodeBadRequest {
		t.Fatalf("expected bad_request code, got %s", dErrors.CodeOf(err))
	}
}
