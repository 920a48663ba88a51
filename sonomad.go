// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/version"
)

// sonomadMain is the real main function for sonomad.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func sonomadMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	cfg, _, err := loadConfig(appName)
	if err != nil {
		usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
		fmt.Fprintln(os.Stderr, err)
		var e errSuppressUsage
		if !errors.As(err, &e) {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Get a context that will be canceled when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// the stop RPC.
	ctx := shutdownListener()
	defer snmdLog.Info("Shutdown complete")

	// Show version and home dir at startup.
	snmdLog.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	snmdLog.Infof("Home dir: %s", cfg.HomeDir)
	snmdLog.Infof("Network: %s", cfg.params.Name)
	if cfg.NoFileLogging {
		snmdLog.Info("File logging disabled")
	}

	// Return now if an interrupt signal was triggered.
	if shutdownRequested(ctx) {
		return nil
	}

	// Load the chain database.
	db, err := blockchain.LoadChainDB(cfg.params, cfg.DataDir)
	if err != nil {
		snmdLog.Errorf("%v", err)
		return err
	}
	defer func() {
		snmdLog.Info("Closing chain database...")
		if err := db.Close(); err != nil {
			snmdLog.Errorf("Failed to close chain database: %v", err)
		}
	}()

	// Return now if an interrupt signal was triggered.
	if shutdownRequested(ctx) {
		return nil
	}

	// Create the server and run it until shutdown.
	svr, err := newServer(cfg, db)
	if err != nil {
		snmdLog.Errorf("Unable to start server: %v", err)
		return err
	}
	return svr.Run(ctx)
}

func main() {
	// Work around defer not working after os.Exit()
	if err := sonomadMain(); err != nil {
		os.Exit(1)
	}
}
