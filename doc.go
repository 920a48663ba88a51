// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
sonomad is a single-node Sonoma chain daemon with a built-in CPU miner.

The daemon keeps the chain in a leveldb database, accepts transactions and
blocks over JSON-RPC, and mines new blocks on the CPU when generation is
enabled.  Each mining attempt races a hash search against blocks appended by
anyone else and is abandoned as soon as the chain moves past the candidate.

The long form of all options (except -C) can also be specified in a
configuration file that is created from a commented sample the first time
sonomad starts.  By default, the configuration file is located at
~/.sonomad/sonomad.conf on POSIX-style operating systems and
%LOCALAPPDATA%\sonomad\sonomad.conf on Windows.

Usage:

	sonomad [OPTIONS]

Application Options:

	-V, --version                Display version information and exit
	-A, --appdata=               Path to application home directory
	-C, --configfile=            Path to configuration file
	-b, --datadir=               Directory to store data
	    --logdir=                Directory to log output
	    --nofilelogging          Disable file logging
	    --logsize=               Maximum size of log file before it is rotated
	                             (default: 10M)
	    --maxlogzips=            Maximum number of rotated log files to keep
	                             (default: 8)
	-d, --debuglevel=            Logging level for all subsystems {trace, debug,
	                             info, warn, error, critical} -- You may also
	                             specify
	                             <subsystem>=<level>,<subsystem2>=<level>,... to
	                             set the log level for individual subsystems --
	                             Use show to list available subsystems (info)
	    --testnet                Use the test network
	    --simnet                 Use the simulation test network
	    --regnet                 Use the regression test network
	    --norpc                  Disable built-in RPC server -- NOTE: The RPC
	                             server is disabled if no rpcuser/rpcpass or
	                             rpclimituser/rpclimitpass is specified
	    --notls                  Disable TLS for the RPC server
	    --rpclisten=             Add an interface/port to listen for RPC
	                             connections (default port: 9619, testnet:
	                             19619, simnet: 19620, regnet: 19621)
	-u, --rpcuser=               Username for RPC connections
	-P, --rpcpass=               Password for RPC connections
	    --rpclimituser=          Username for limited RPC connections
	    --rpclimitpass=          Password for limited RPC connections
	    --rpccert=               File containing the certificate file
	    --rpckey=                File containing the certificate key
	    --rpcmaxclients=         Max number of RPC clients for standard
	                             connections (default: 10)
	    --rpcmaxwebsockets=      Max number of RPC websocket connections
	                             (default: 25)
	    --rpcmaxconcurrentreqs=  Max number of concurrent RPC requests that may
	                             be processed concurrently per websocket client
	                             (default: 20)
	    --altdnsnames=           Specify additional DNS names to use when
	                             generating the RPC server certificate
	    --metricslisten=         Serve prometheus metrics on the provided
	                             address
	    --profile                Also serve the pprof profiling endpoints on the
	                             metrics server
	    --blockcachesize=        The maximum number of recent blocks to keep in
	                             memory (default: 128)
	    --sigcachesize=          The maximum number of entries in the signature
	                             verification cache (default: 10000)
	    --maxmempoolsize=        The maximum number of unconfirmed transactions
	                             to keep in the memory pool (default: 5000)
	    --generate               Generate (mine) coins using the CPU
	    --miningaddr=            Add the specified payment address to the list
	                             of addresses to use for generated blocks -- At
	                             least one address is required if the generate
	                             option is set
	    --miningdelay=           Wait this long before searching for each block
	    --progressinterval=      Number of hashes between hash search progress
	                             reports (default: 100000)

Help Options:

	-h, --help           Show this help message
*/
package main
