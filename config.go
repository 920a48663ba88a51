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
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/slog"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/version"
	"github.com/grigorovich-alex/sonomacoin/sampleconfig"
	flags "github.com/jessevdk/go-flags"
	"golang.org/x/net/idna"
)

const (
	defaultConfigFilename       = "sonomad.conf"
	defaultDataDirname          = "data"
	defaultLogLevel             = "info"
	defaultLogDirname           = "logs"
	defaultLogFilename          = "sonomad.log"
	defaultLogSize              = "10M"
	defaultMaxLogZips           = 8
	defaultMaxRPCClients        = 10
	defaultMaxRPCWebsockets     = 25
	defaultMaxRPCConcurrentReqs = 20
	defaultBlockCacheSize       = 128
	defaultSigCacheSize         = 10000
	defaultMaxMempoolSize       = 5000
	defaultProgressInterval     = 100000
	defaultMetricsPort          = "9690"
)

var (
	defaultHomeDir     = dcrutil.AppDataDir("sonomad", false)
	defaultConfigFile  = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir     = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultRPCKeyFile  = filepath.Join(defaultHomeDir, "rpc.key")
	defaultRPCCertFile = filepath.Join(defaultHomeDir, "rpc.cert")
	defaultLogDir      = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for sonomad.
//
// See loadConfig for details on the configuration load process.
type config struct {
	// General application behavior.
	ShowVersion   bool   `short:"V" long:"version" description:"Display version information and exit"`
	HomeDir       string `short:"A" long:"appdata" description:"Path to application home directory" env:"SONOMAD_APPDATA"`
	ConfigFile    string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir       string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	NoFileLogging bool   `long:"nofilelogging" description:"Disable file logging"`
	LogSize       string `long:"logsize" description:"Maximum size of log file before it is rotated"`
	MaxLogZips    int    `long:"maxlogzips" description:"Maximum number of rotated log files to keep"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	// Network settings.
	TestNet bool `long:"testnet" description:"Use the test network"`
	SimNet  bool `long:"simnet" description:"Use the simulation test network"`
	RegNet  bool `long:"regnet" description:"Use the regression test network"`

	// RPC server options and policy.
	DisableRPC           bool     `long:"norpc" description:"Disable built-in RPC server"`
	DisableTLS           bool     `long:"notls" description:"Disable TLS for the RPC server"`
	RPCListeners         []string `long:"rpclisten" description:"Add an interface/port to listen for RPC connections (default port: 9619, testnet: 19619, simnet: 19620, regnet: 19621)"`
	RPCUser              string   `short:"u" long:"rpcuser" description:"Username for RPC connections"`
	RPCPass              string   `short:"P" long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	RPCLimitUser         string   `long:"rpclimituser" description:"Username for limited RPC connections"`
	RPCLimitPass         string   `long:"rpclimitpass" default-mask:"-" description:"Password for limited RPC connections"`
	RPCCert              string   `long:"rpccert" description:"File containing the certificate file"`
	RPCKey               string   `long:"rpckey" description:"File containing the certificate key"`
	RPCMaxClients        int      `long:"rpcmaxclients" description:"Max number of RPC clients for standard connections"`
	RPCMaxWebsockets     int      `long:"rpcmaxwebsockets" description:"Max number of RPC websocket connections"`
	RPCMaxConcurrentReqs int      `long:"rpcmaxconcurrentreqs" description:"Max number of concurrent RPC requests that may be processed concurrently per websocket client"`
	AltDNSNames          []string `long:"altdnsnames" description:"Specify additional DNS names to use when generating the RPC server certificate" env:"SONOMAD_ALT_DNSNAMES" env-delim:","`

	// Diagnostics.
	MetricsListen string `long:"metricslisten" description:"Serve prometheus metrics on the provided address -- NOTE port must be between 1024 and 65535"`
	Profile       bool   `long:"profile" description:"Also serve the pprof profiling endpoints on the metrics server"`

	// Chain storage and memory pool.
	BlockCacheSize uint32 `long:"blockcachesize" description:"The maximum number of recent blocks to keep in memory"`
	SigCacheSize   uint32 `long:"sigcachesize" description:"The maximum number of entries in the signature verification cache"`
	MaxMempoolSize int    `long:"maxmempoolsize" description:"The maximum number of unconfirmed transactions to keep in the memory pool"`

	// Mining options and policy.
	Generate         bool          `long:"generate" description:"Generate (mine) coins using the CPU"`
	MiningAddrs      []string      `long:"miningaddr" description:"Add the specified payment address to the list of addresses to use for generated blocks, at least one address is required if the generate option is set"`
	MiningDelay      time.Duration `long:"miningdelay" description:"Wait this long before searching for each block -- Intended for demonstrations on networks with trivial difficulty"`
	ProgressInterval uint64        `long:"progressinterval" description:"Number of hashes between hash search progress reports"`

	// params is the network parameters selected by the network flags.
	params *blockchain.Params

	// maxLogFileSizeKB is the parsed LogSize.
	maxLogFileSizeKB int64
}

// errSuppressUsage signifies that an error that happened during the initial
// configuration phase should suppress the usage output since it was not caused
// by the user.
type errSuppressUsage string

// Error implements the error interface.
func (e errSuppressUsage) Error() string {
	return string(e)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Nothing to do when no path is given.
	if path == "" {
		return path
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser to
	// otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := slog.LevelFromString(logLevel)
	return ok
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsystems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// parseLogSize parses a log size such as 10M or 512K into kilobytes.  A bare
// number is a number of megabytes.
func parseLogSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	multiplier := int64(1024)
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	}
	size, err := strconv.ParseInt(s, 10, 64)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("invalid log size %q", s)
	}
	return size * multiplier, nil
}

// normalizeAddress returns addr with the passed default port appended if there
// is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// normalizeAddresses returns a new slice with all the passed peer addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, addr := range addrs {
		addr = normalizeAddress(addr, defaultPort)
		if _, ok := seen[addr]; !ok {
			result = append(result, addr)
			seen[addr] = struct{}{}
		}
	}
	return result
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

// createDefaultConfigFile creates a config file at the provided path from the
// sample config.
func createDefaultConfigFile(destPath string) error {
	// Create the destination directory if it does not exist.
	err := os.MkdirAll(filepath.Dir(destPath), 0700)
	if err != nil {
		return err
	}

	return os.WriteFile(destPath, []byte(sampleconfig.Sonomad()), 0600)
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	return flags.NewParser(cfg, options)
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
// The above results in sonomad functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig(appName string) (*config, []string, error) {
	// Default config.
	cfg := config{
		HomeDir:              defaultHomeDir,
		ConfigFile:           defaultConfigFile,
		DebugLevel:           defaultLogLevel,
		DataDir:              defaultDataDir,
		LogDir:               defaultLogDir,
		LogSize:              defaultLogSize,
		MaxLogZips:           defaultMaxLogZips,
		RPCKey:               defaultRPCKeyFile,
		RPCCert:              defaultRPCCertFile,
		RPCMaxClients:        defaultMaxRPCClients,
		RPCMaxWebsockets:     defaultMaxRPCWebsockets,
		RPCMaxConcurrentReqs: defaultMaxRPCConcurrentReqs,
		BlockCacheSize:       defaultBlockCacheSize,
		SigCacheSize:         defaultSigCacheSize,
		MaxMempoolSize:       defaultMaxMempoolSize,
		ProgressInterval:     defaultProgressInterval,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS,
			runtime.GOARCH)
		os.Exit(0)
	}

	// Update the home directory for sonomad if specified.  Since the home
	// directory is updated, other variables need to be updated to reflect
	// the new changes.
	if preCfg.HomeDir != "" {
		cfg.HomeDir, _ = filepath.Abs(cleanAndExpandPath(preCfg.HomeDir))

		if preCfg.ConfigFile == defaultConfigFile {
			defaultConfigFile = filepath.Join(cfg.HomeDir,
				defaultConfigFilename)
			preCfg.ConfigFile = defaultConfigFile
			cfg.ConfigFile = defaultConfigFile
		} else {
			cfg.ConfigFile = preCfg.ConfigFile
		}
		if preCfg.DataDir == defaultDataDir {
			cfg.DataDir = filepath.Join(cfg.HomeDir, defaultDataDirname)
		} else {
			cfg.DataDir = preCfg.DataDir
		}
		if preCfg.RPCKey == defaultRPCKeyFile {
			cfg.RPCKey = filepath.Join(cfg.HomeDir, "rpc.key")
		} else {
			cfg.RPCKey = preCfg.RPCKey
		}
		if preCfg.RPCCert == defaultRPCCertFile {
			cfg.RPCCert = filepath.Join(cfg.HomeDir, "rpc.cert")
		} else {
			cfg.RPCCert = preCfg.RPCCert
		}
		if preCfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
		} else {
			cfg.LogDir = preCfg.LogDir
		}
	}

	// Create a default config file when one does not exist and the user did
	// not specify an override.
	if preCfg.ConfigFile == defaultConfigFile && !fileExists(preCfg.ConfigFile) {
		err := createDefaultConfigFile(preCfg.ConfigFile)
		if err != nil {
			str := "failed to create default config file: %v"
			return nil, nil, errSuppressUsage(fmt.Sprintf(str, err))
		}
	}

	// Load additional config from file.
	parser := newConfigParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var e *os.PathError
		if !errors.As(err, &e) {
			err = fmt.Errorf("error parsing config file: %w", err)
			return nil, nil, err
		}
		str := "%s: config file %q does not exist"
		return nil, nil, fmt.Errorf(str, "loadConfig", preCfg.ConfigFile)
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	err = os.MkdirAll(cfg.HomeDir, 0700)
	if err != nil {
		// Show a nicer error message if it's because a symlink is linked
		// to a directory that does not exist (probably because it's not
		// mounted).
		var e *os.PathError
		if errors.As(err, &e) && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				str := "is symlink %s -> %s mounted?"
				err = fmt.Errorf(str, e.Path, link)
			}
		}

		str := "%s: failed to create home directory: %v"
		return nil, nil, errSuppressUsage(fmt.Sprintf(str, funcName, err))
	}

	// Multiple networks can't be selected simultaneously.  Count number of
	// network flags passed and assign active network params.
	numNets := 0
	cfg.params = &blockchain.MainNetParams
	if cfg.TestNet {
		numNets++
		cfg.params = &blockchain.TestNetParams
	}
	if cfg.SimNet {
		numNets++
		cfg.params = &blockchain.SimNetParams
	}
	if cfg.RegNet {
		numNets++
		cfg.params = &blockchain.RegNetParams
	}
	if numNets > 1 {
		str := "%s: the testnet, regnet, and simnet params can't be " +
			"used together -- choose one of the three"
		return nil, nil, fmt.Errorf(str, funcName)
	}

	// Append the network type to the data and log directories so they are
	// "namespaced" per network.
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir),
		cfg.params.Name)
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir),
		cfg.params.Name)
	cfg.RPCKey = cleanAndExpandPath(cfg.RPCKey)
	cfg.RPCCert = cleanAndExpandPath(cfg.RPCCert)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	cfg.maxLogFileSizeKB, err = parseLogSize(cfg.LogSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", funcName, err)
	}
	if !cfg.NoFileLogging {
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
		err := initLogRotator(logFile, cfg.maxLogFileSizeKB, cfg.MaxLogZips)
		if err != nil {
			return nil, nil, errSuppressUsage(err.Error())
		}
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", funcName, err)
	}

	// The RPC server is disabled when neither credential pair is provided.
	if !cfg.DisableRPC && cfg.RPCUser == "" && cfg.RPCPass == "" &&
		cfg.RPCLimitUser == "" && cfg.RPCLimitPass == "" {

		snmdLog.Info("RPC service is disabled since no credentials were " +
			"provided")
		cfg.DisableRPC = true
	}

	if cfg.RPCUser != "" && cfg.RPCUser == cfg.RPCLimitUser {
		str := "%s: --rpcuser and --rpclimituser must not specify the " +
			"same username"
		return nil, nil, fmt.Errorf(str, funcName)
	}

	// Default RPC to listen on localhost only.
	if !cfg.DisableRPC && len(cfg.RPCListeners) == 0 {
		addrs, err := net.LookupHost("localhost")
		if err != nil {
			return nil, nil, err
		}
		cfg.RPCListeners = make([]string, 0, len(addrs))
		for _, addr := range addrs {
			addr = net.JoinHostPort(addr, cfg.params.DefaultRPCPort)
			cfg.RPCListeners = append(cfg.RPCListeners, addr)
		}
	}

	if cfg.RPCMaxConcurrentReqs < 0 {
		str := "%s: the rpcmaxconcurrentreqs option may not be less than 0 " +
			"-- parsed [%d]"
		return nil, nil, fmt.Errorf(str, funcName, cfg.RPCMaxConcurrentReqs)
	}

	// Add default port to all rpc listener addresses if needed and remove
	// duplicate addresses.
	cfg.RPCListeners = normalizeAddresses(cfg.RPCListeners,
		cfg.params.DefaultRPCPort)

	// Normalize the additional certificate DNS names to their ASCII form.
	for i, name := range cfg.AltDNSNames {
		name = strings.Trim(name, `"`)
		asciiName, err := idna.Lookup.ToASCII(name)
		if err != nil {
			str := "%s: invalid alternate DNS name %q: %v"
			return nil, nil, fmt.Errorf(str, funcName, name, err)
		}
		cfg.AltDNSNames[i] = asciiName
	}

	// Validate the metrics listener.
	if cfg.MetricsListen != "" {
		cfg.MetricsListen = portToLocalHostAddr(cfg.MetricsListen)
		cfg.MetricsListen = normalizeAddress(cfg.MetricsListen,
			defaultMetricsPort)
		if err := validateDiagAddr(cfg.MetricsListen); err != nil {
			return nil, nil, fmt.Errorf("%s: --metricslisten: %w",
				funcName, err)
		}
	}
	if cfg.Profile && cfg.MetricsListen == "" {
		str := "%s: the profile option requires --metricslisten"
		return nil, nil, fmt.Errorf(str, funcName)
	}

	// Check mining addresses are valid and saved parsed versions.
	for _, addr := range cfg.MiningAddrs {
		if _, err := blockchain.DecodeAddress(addr, cfg.params); err != nil {
			str := "%s: mining address '%s' failed to decode: %v"
			return nil, nil, fmt.Errorf(str, funcName, addr, err)
		}
	}

	// Ensure there is at least one mining address when the generate flag is
	// set.
	if cfg.Generate && len(cfg.MiningAddrs) == 0 {
		str := "%s: the generate flag is set, but there are no mining " +
			"addresses specified "
		return nil, nil, fmt.Errorf(str, funcName)
	}

	if cfg.ProgressInterval == 0 {
		str := "%s: the progressinterval option must be greater than 0"
		return nil, nil, fmt.Errorf(str, funcName)
	}
	if cfg.MiningDelay < 0 {
		str := "%s: the miningdelay option may not be negative -- parsed [%v]"
		return nil, nil, fmt.Errorf(str, funcName, cfg.MiningDelay)
	}

	return &cfg, remainingArgs, nil
}
