// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/version"
	"github.com/grigorovich-alex/sonomacoin/sampleconfig"
	flags "github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

const (
	defaultConfigFilename = "sonomactl.conf"
	defaultRPCServer      = "localhost"
	defaultTimeout        = 0
)

var (
	sonomadHomeDir    = dcrutil.AppDataDir("sonomad", false)
	sonomactlHomeDir  = dcrutil.AppDataDir("sonomactl", false)
	defaultConfigFile = filepath.Join(sonomactlHomeDir, defaultConfigFilename)
	defaultRPCCert    = filepath.Join(sonomadHomeDir, "rpc.cert")
)

// config defines the configuration options for sonomactl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion  bool          `short:"V" long:"version" description:"Display version information and exit"`
	ListCommands bool          `short:"l" long:"listcommands" description:"List all of the supported commands and exit"`
	ConfigFile   string        `short:"C" long:"configfile" description:"Path to configuration file"`
	RPCUser      string        `short:"u" long:"rpcuser" description:"RPC username"`
	RPCPassword  string        `short:"P" long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCServer    string        `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	RPCCert      string        `short:"c" long:"rpccert" description:"RPC server certificate chain for validation"`
	NoTLS        bool          `long:"notls" description:"Disable TLS"`
	TestNet      bool          `long:"testnet" description:"Connect to testnet"`
	SimNet       bool          `long:"simnet" description:"Connect to the simulation test network"`
	RegNet       bool          `long:"regnet" description:"Connect to the regression test network"`
	Timeout      time.Duration `long:"timeout" description:"Abandon the request after this long -- 0 waits indefinitely"`
}

// normalizeAddress returns addr with the passed default port appended if there
// is not already a port specified.
func normalizeAddress(addr string, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// cleanAndExpandPath expands environment variables and a leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(sonomactlHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// networkParams returns the parameters of the network selected by the
// configuration.
func (cfg *config) networkParams() (*blockchain.Params, error) {
	numNets := 0
	params := &blockchain.MainNetParams
	if cfg.TestNet {
		numNets++
		params = &blockchain.TestNetParams
	}
	if cfg.SimNet {
		numNets++
		params = &blockchain.SimNetParams
	}
	if cfg.RegNet {
		numNets++
		params = &blockchain.RegNetParams
	}
	if numNets > 1 {
		return nil, errors.New("the testnet, regnet, and simnet params " +
			"can't be used together -- choose one of the three")
	}
	return params, nil
}

// promptPassword reads the RPC password from the terminal without echoing it.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, "RPC password: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprint(os.Stderr, "\n")
	if err != nil {
		return "", fmt.Errorf("unable to read password: %w", err)
	}
	return string(pass), nil
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in sonomactl functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile: defaultConfigFile,
		RPCServer:  defaultRPCServer,
		RPCCert:    defaultRPCCert,
		Timeout:    defaultTimeout,
	}

	// Pre-parse the command line options to see if an alternative config
	// file, the version flag, or the list commands flag was specified.  Any
	// errors aside from the help message error can be ignored here since
	// they will be caught by the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "The special parameter `-` "+
				"indicates that a parameter should be read "+
				"from the\nnext unread line from standard input.")
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS,
			runtime.GOARCH)
		os.Exit(0)
	}

	// Show the available commands and exit if the associated flag was
	// specified.
	if preCfg.ListCommands {
		listCommands()
		os.Exit(0)
	}

	// Create the default config file from the sample when it does not exist
	// and the user did not specify an override.
	if preCfg.ConfigFile == defaultConfigFile && !fileExists(defaultConfigFile) {
		err := os.MkdirAll(sonomactlHomeDir, 0700)
		if err == nil {
			err = os.WriteFile(defaultConfigFile,
				[]byte(sampleconfig.Sonomactl()), 0600)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config "+
				"file: %v\n", err)
		}
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var e *os.PathError
		if !errors.As(err, &e) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n",
				err)
			fmt.Fprintln(os.Stderr, "Use sonomactl -h to show usage")
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, "Use sonomactl -h to show usage")
		}
		return nil, nil, err
	}

	params, err := cfg.networkParams()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return nil, nil, err
	}

	// Handle environment variable expansion in the RPC certificate path.
	cfg.RPCCert = cleanAndExpandPath(cfg.RPCCert)

	// Add default port to RPC server based on the selected network if
	// needed.
	cfg.RPCServer = normalizeAddress(cfg.RPCServer, params.DefaultRPCPort)

	// Prompt for the password when a user was provided without one.
	if cfg.RPCUser != "" && cfg.RPCPassword == "" {
		cfg.RPCPassword, err = promptPassword()
		if err != nil {
			return nil, nil, err
		}
	}

	return &cfg, remainingArgs, nil
}
