// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/decred/dcrd/rpcclient/v8"
)

// newClient returns an RPC client for the configured server.  Websocket
// clients receive notifications through the provided handlers while all
// other clients use HTTP POST.
func newClient(cfg *config, ntfnHandlers *rpcclient.NotificationHandlers) (*rpcclient.Client, error) {
	var certs []byte
	if !cfg.NoTLS {
		var err error
		certs, err = os.ReadFile(cfg.RPCCert)
		if err != nil {
			return nil, err
		}
	}

	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.RPCServer,
		Endpoint:     "ws",
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPassword,
		DisableTLS:   cfg.NoTLS,
		Certificates: certs,
		HTTPPostMode: ntfnHandlers == nil,
	}
	return rpcclient.New(connCfg, ntfnHandlers)
}

// runCommand issues the named command and prints its result.
func runCommand(ctx context.Context, cfg *config, method string, args []string) error {
	cmd, ok := commands[method]
	if !ok {
		return fmt.Errorf("unrecognized command %q -- use -l to list "+
			"the supported commands", method)
	}
	args, err := readStdinArgs(args, os.Stdin)
	if err != nil {
		return err
	}
	if err := cmd.validateArgs(args); err != nil {
		return err
	}

	client, err := newClient(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		client.Shutdown()
		client.WaitForShutdown()
	}()

	result, err := cmd.handler(ctx, client, args)
	if err != nil {
		return err
	}
	output, err := formatResult(result)
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Println(output)
	}
	return nil
}

// watch prints the block and balance notifications of the server until the
// provided context is cancelled.
func watch(ctx context.Context, cfg *config) error {
	ntfnHandlers := &rpcclient.NotificationHandlers{
		OnUnknownNotification: func(method string, params []json.RawMessage) {
			var parts []string
			for _, param := range params {
				parts = append(parts, string(param))
			}
			fmt.Printf("%s: %s\n", method, strings.Join(parts, " "))
		},
	}
	client, err := newClient(cfg, ntfnHandlers)
	if err != nil {
		return err
	}
	defer func() {
		client.Shutdown()
		client.WaitForShutdown()
	}()

	if err := client.NotifyBlocks(ctx); err != nil {
		return fmt.Errorf("unable to register for block notifications: %w",
			err)
	}
	if _, err := client.RawRequest(ctx, "notifybalance", nil); err != nil {
		return fmt.Errorf("unable to register for balance notifications: %w",
			err)
	}
	fmt.Fprintln(os.Stderr, "Watching for notifications (Ctrl+C to stop)")
	<-ctx.Done()
	return nil
}

func sonomactlMain() error {
	// Configuration errors have already been reported.
	cfg, args, err := loadConfig()
	if err != nil {
		os.Exit(1)
	}
	if len(args) < 1 {
		return errors.New("no command specified -- use -l to list the " +
			"supported commands")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Notifications are watched until interrupted.
	method := args[0]
	if method == "watch" {
		return watch(ctx, cfg)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	return runCommand(ctx, cfg, method, args[1:])
}

func main() {
	if err := sonomactlMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
