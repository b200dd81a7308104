// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddleware(t *testing.T) {
	Enable()

	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login/options", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	count := testutil.CollectAndCount(HTTPRequestsTotal)
	if count != 1 {
		t.Errorf("Expected 1 request recorded, got %d", count)
	}
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	Enable()

	HTTPRequestsTotal.Reset()

	statuses := []int{http.StatusOK, http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError}
	for _, status := range statuses {
		handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != status {
			t.Errorf("Expected status %d, got %d", status, rec.Code)
		}
	}

	count := testutil.CollectAndCount(HTTPRequestsTotal)
	if count != len(statuses) {
		t.Errorf("Expected %d label combinations, got %d", len(statuses), count)
	}
}

func TestHTTPMiddlewareWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	HTTPRequestsTotal.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	count := testutil.CollectAndCount(HTTPRequestsTotal)
	if count != 0 {
		t.Errorf("Expected no requests recorded while disabled, got %d", count)
	}
}

func TestResponseWriterDefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapper := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	// Write without an explicit WriteHeader should report 200
	if _, err := wrapper.Write([]byte("ok")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if wrapper.statusCode != http.StatusOK {
		t.Errorf("Expected default status 200, got %d", wrapper.statusCode)
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapper := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	wrapper.WriteHeader(http.StatusNotFound)
	wrapper.WriteHeader(http.StatusOK) // second call must not overwrite

	if wrapper.statusCode != http.StatusNotFound {
		t.Errorf("Expected captured status 404, got %d", wrapper.statusCode)
	}
}

func TestCeremonyRecorderAdapter(t *testing.T) {
	Enable()

	CeremoniesTotal.Reset()

	var recorder CeremonyRecorder
	recorder.RecordCeremony(CeremonyRegistration, OutcomeExpired)

	value := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, OutcomeExpired))
	if value != 1 {
		t.Errorf("Expected 1 ceremony recorded through adapter, got %f", value)
	}
}
