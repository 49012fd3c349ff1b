package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"job_id": "j1"})
	}))
	defer srv.Close()

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := PostJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.JobID != "j1" {
		t.Errorf("JobID = %q", out.JobID)
	}
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"pipeline: no active session"}`))
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.URL, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusConflict || se.Body != "pipeline: no active session" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"active":true}`))
	}))
	defer srv.Close()

	var out struct{ Active bool }
	if err := GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !out.Active {
		t.Error("Active = false")
	}
}
