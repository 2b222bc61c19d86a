package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoctorWithProbe(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runUsers(t, cfgPath, nil, "add", "erin@example.com", "--auto-password"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cmd := newDoctorCmd()
	cmd.SetArgs([]string{"-c", cfgPath, "--probe", srv.URL + "/"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("doctor: %v", err)
	}
}

func TestDoctorProbeFailure(t *testing.T) {
	cfgPath := writeTestConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cmd := newDoctorCmd()
	cmd.SetArgs([]string{"-c", cfgPath, "--probe", srv.URL})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected probe failure")
	}
}
