// Copyright (c) 2024-2025 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
)

// maxDiagConnections is the maximum number of simultaneous connections the
// diagnostics server accepts.
const maxDiagConnections = 16

// portToLocalHostAddr prepends a default host of 127.0.0.1 when the provided
// address is solely a port number.
func portToLocalHostAddr(addr string) string {
	if _, err := strconv.Atoi(addr); err == nil {
		addr = net.JoinHostPort("127.0.0.1", addr)
	}
	return addr
}

// validateDiagAddr ensures the provided address is of the form "host:port" and
// that the port is between 1024 and 65535.
func validateDiagAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	if port, _ := strconv.Atoi(portStr); port < 1024 || port > 65535 {
		str := "address %q: port must be between 1024 and 65535"
		return fmt.Errorf(str, addr)
	}

	return nil
}

// diagServer serves the prometheus metrics endpoint and, optionally, the pprof
// profiling endpoints over HTTP.
type diagServer struct {
	wg        sync.WaitGroup
	server    *http.Server
	listeners []net.Listener
}

// newDiagHandler returns the handler for the diagnostics endpoints.
func newDiagHandler(withProfiling bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if withProfiling {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// newDiagServer binds listeners for the provided address.  The server does not
// serve requests until Run is called.
func newDiagServer(listenAddr string, withProfiling bool) (*diagServer, error) {
	netAddrs, err := parseListeners([]string{listenAddr})
	if err != nil {
		return nil, err
	}

	s := &diagServer{
		server: &http.Server{
			Handler:           newDiagHandler(withProfiling),
			ReadHeaderTimeout: time.Second * 3,
		},
	}
	for _, addr := range netAddrs {
		listener, err := net.Listen(addr.Network(), addr.String())
		if err != nil {
			for _, l := range s.listeners {
				l.Close()
			}
			return nil, fmt.Errorf("unable to listen on %s: %w", listenAddr,
				err)
		}
		s.listeners = append(s.listeners, netutil.LimitListener(listener,
			maxDiagConnections))
	}
	return s, nil
}

// Run serves the diagnostics endpoints until the provided context is
// cancelled.
func (s *diagServer) Run(ctx context.Context) {
	for _, listener := range s.listeners {
		snmdLog.Infof("Metrics server listening on %s", listener.Addr())
		s.wg.Add(1)
		go func(listener net.Listener) {
			defer s.wg.Done()

			err := s.server.Serve(listener)
			if !errors.Is(err, http.ErrServerClosed) {
				snmdLog.Errorf("Metrics server listening on %s exited with "+
					"unexpected error: %v", listener.Addr(), err)
			}
		}(listener)
	}

	<-ctx.Done()
	if err := s.server.Close(); err != nil {
		snmdLog.Errorf("Metrics server stopped with unexpected error: %v",
			err)
	}
	s.wg.Wait()
	snmdLog.Info("Metrics server stopped")
}
