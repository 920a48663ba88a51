// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"net/http"
	"net/http/httptest"
	"os/user"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/decred/slog"
)

// TestParseAndSetDebugLevels ensures global and per-subsystem debug levels
// are validated and applied.
func TestParseAndSetDebugLevels(t *testing.T) {
	defer setLogLevels(defaultLogLevel)

	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{"global level", "debug", false},
		{"single subsystem", "MINR=trace", false},
		{"multiple subsystems", "MINR=trace,RPCS=warn", false},
		{"invalid global level", "loud", true},
		{"invalid subsystem", "NOPE=info", true},
		{"invalid subsystem level", "MINR=loud", true},
		{"missing pair delimiter", "MINR=info,RPCS", true},
	}

	for _, test := range tests {
		err := parseAndSetDebugLevels(test.level)
		if test.wantErr != (err != nil) {
			t.Errorf("%q: unexpected result %v", test.name, err)
		}
	}

	if err := parseAndSetDebugLevels("CHAN=warn,MINR=trace"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := chanLog.Level(); got != slog.LevelWarn {
		t.Errorf("mismatched CHAN level - got %v, want %v", got,
			slog.LevelWarn)
	}
	if got := minrLog.Level(); got != slog.LevelTrace {
		t.Errorf("mismatched MINR level - got %v, want %v", got,
			slog.LevelTrace)
	}
}

// TestParseLogSize ensures log sizes are converted to kilobytes.
func TestParseLogSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "512K", want: 512},
		{in: "10M", want: 10 * 1024},
		{in: "10m", want: 10 * 1024},
		{in: "2G", want: 2 * 1024 * 1024},
		{in: "3", want: 3 * 1024},
		{in: "0M", wantErr: true},
		{in: "-1K", wantErr: true},
		{in: "tenM", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, test := range tests {
		got, err := parseLogSize(test.in)
		if test.wantErr {
			if err == nil {
				t.Errorf("%q: did not receive expected error", test.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", test.in, err)
			continue
		}
		if got != test.want {
			t.Errorf("%q: mismatched size - got %d, want %d", test.in, got,
				test.want)
		}
	}
}

// TestNormalizeAddresses ensures default ports are added and duplicates are
// removed while preserving order.
func TestNormalizeAddresses(t *testing.T) {
	addrs := []string{"localhost", "127.0.0.1:8000", "localhost:9619", "::1",
		"[::1]:9619"}
	want := []string{"localhost:9619", "127.0.0.1:8000", "[::1]:9619"}
	got := normalizeAddresses(addrs, "9619")
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched addresses - got %q, want %q", got, want)
	}
}

// TestCleanAndExpandPath ensures environment variables and the home directory
// are expanded.
func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("SONOMAD_TEST_DIR", "/tmp/sonoma")

	if got := cleanAndExpandPath(""); got != "" {
		t.Errorf("empty path expanded to %q", got)
	}
	want := filepath.Clean("/tmp/sonoma/data")
	if got := cleanAndExpandPath("$SONOMAD_TEST_DIR/./data/"); got != want {
		t.Errorf("mismatched path - got %q, want %q", got, want)
	}
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		want := filepath.Join(u.HomeDir, "sonomad")
		if got := cleanAndExpandPath("~/sonomad"); got != want {
			t.Errorf("mismatched path - got %q, want %q", got, want)
		}
	}
}

// TestParseListeners ensures listen addresses are mapped to the correct
// networks.
func TestParseListeners(t *testing.T) {
	addrs, err := parseListeners([]string{"127.0.0.1:9619", "[::1]:9619",
		":9620"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []simpleAddr{
		{net: "tcp4", addr: "127.0.0.1:9619"},
		{net: "tcp6", addr: "[::1]:9619"},
		{net: "tcp4", addr: ":9620"},
		{net: "tcp6", addr: ":9620"},
	}
	if len(addrs) != len(want) {
		t.Fatalf("mismatched number of addresses - got %d, want %d",
			len(addrs), len(want))
	}
	for i, addr := range addrs {
		if addr.Network() != want[i].net || addr.String() != want[i].addr {
			t.Errorf("address %d: got %s/%s, want %s/%s", i, addr.Network(),
				addr, want[i].net, want[i].addr)
		}
	}

	if _, err := parseListeners([]string{"example.com:9619"}); err == nil {
		t.Error("did not receive expected error for hostname listener")
	}
	if _, err := parseListeners([]string{"127.0.0.1"}); err == nil {
		t.Error("did not receive expected error for missing port")
	}
}

// TestDiagAddr ensures bare ports are bound to localhost and that only
// unprivileged ports are accepted.
func TestDiagAddr(t *testing.T) {
	if got := portToLocalHostAddr("9690"); got != "127.0.0.1:9690" {
		t.Errorf("mismatched address %q", got)
	}
	if got := portToLocalHostAddr("[::1]:9690"); got != "[::1]:9690" {
		t.Errorf("mismatched address %q", got)
	}

	tests := []struct {
		addr  string
		valid bool
	}{
		{"127.0.0.1:9690", true},
		{"127.0.0.1:1024", true},
		{"127.0.0.1:65535", true},
		{"127.0.0.1:80", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1", false},
	}
	for _, test := range tests {
		err := validateDiagAddr(test.addr)
		if test.valid != (err == nil) {
			t.Errorf("%q: unexpected result %v", test.addr, err)
		}
	}
}

// TestDiagHandler ensures the metrics endpoint is always served and the
// profiling endpoints only when requested.
func TestDiagHandler(t *testing.T) {
	tests := []struct {
		profiling bool
		path      string
		status    int
	}{
		{false, "/metrics", http.StatusOK},
		{false, "/debug/pprof/", http.StatusNotFound},
		{true, "/metrics", http.StatusOK},
		{true, "/debug/pprof/", http.StatusOK},
	}

	for _, test := range tests {
		handler := newDiagHandler(test.profiling)
		req := httptest.NewRequest(http.MethodGet, test.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != test.status {
			t.Errorf("%s (profiling %v): mismatched status - got %d, want %d",
				test.path, test.profiling, rec.Code, test.status)
		}
	}
}
