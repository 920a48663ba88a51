// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/elliptic"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/decred/dcrd/certgen"
	"github.com/decred/dcrd/crypto/rand"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/internal/mining/cpuminer"
	"github.com/grigorovich-alex/sonomacoin/internal/progresslog"
	"github.com/grigorovich-alex/sonomacoin/internal/rpcserver"
	"github.com/syndtr/goleveldb/leveldb"
	"golang.org/x/sync/errgroup"
)

// simpleAddr implements the net.Addr interface with two struct fields
type simpleAddr struct {
	net, addr string
}

// String returns the address.
//
// This is part of the net.Addr interface.
func (a simpleAddr) String() string {
	return a.addr
}

// Network returns the network.
//
// This is part of the net.Addr interface.
func (a simpleAddr) Network() string {
	return a.net
}

// Ensure simpleAddr implements the net.Addr interface.
var _ net.Addr = simpleAddr{}

// parseListeners determines whether each listen address is IPv4 and IPv6 and
// returns a slice of appropriate net.Addrs to listen on with TCP. It also
// properly detects addresses which apply to "all interfaces" and adds the
// address as both IPv4 and IPv6.
func parseListeners(addrs []string) ([]net.Addr, error) {
	netAddrs := make([]net.Addr, 0, len(addrs)*2)
	for _, addr := range addrs {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			// Shouldn't happen due to already being normalized.
			return nil, err
		}

		// Empty host or host of * on plan9 is both IPv4 and IPv6.
		if host == "" || (host == "*" && runtime.GOOS == "plan9") {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp4", addr: addr})
			netAddrs = append(netAddrs, simpleAddr{net: "tcp6", addr: addr})
			continue
		}

		// Strip IPv6 zone id if present since net.ParseIP does not
		// handle it.
		zoneIndex := strings.LastIndex(host, "%")
		if zoneIndex > 0 {
			host = host[:zoneIndex]
		}

		// Parse the IP.
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, fmt.Errorf("'%s' is not a valid IP address", host)
		}

		// To4 returns nil when the IP is not an IPv4 address, so use
		// this determine the address type.
		if ip.To4() == nil {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp6", addr: addr})
		} else {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp4", addr: addr})
		}
	}
	return netAddrs, nil
}

// genCertPair generates a key/cert pair to the paths provided.
func genCertPair(certFile, keyFile string, altDNSNames []string) error {
	rpcsLog.Infof("Generating TLS certificates...")

	org := "sonomad autogenerated cert"
	validUntil := time.Now().Add(10 * 365 * 24 * time.Hour)
	cert, key, err := certgen.NewTLSCertPair(elliptic.P256(), org,
		validUntil, altDNSNames)
	if err != nil {
		return err
	}

	// Write cert and key files.
	if err = os.WriteFile(certFile, cert, 0644); err != nil {
		return err
	}
	if err = os.WriteFile(keyFile, key, 0600); err != nil {
		os.Remove(certFile)
		return err
	}

	rpcsLog.Infof("Done generating TLS certificates")
	return nil
}

// setupRPCListeners returns a slice of listeners that are configured for use
// with the RPC server depending on the configuration settings for listen
// addresses and TLS.
func setupRPCListeners(cfg *config) ([]net.Listener, error) {
	// Setup TLS if not disabled.
	listenFunc := net.Listen
	if !cfg.DisableTLS {
		// Generate the TLS cert and key file if both don't already exist.
		keyFileExists := fileExists(cfg.RPCKey)
		certFileExists := fileExists(cfg.RPCCert)
		if len(cfg.AltDNSNames) != 0 && (keyFileExists || certFileExists) {
			rpcsLog.Warn("Additional DNS names specified when TLS " +
				"certificates already exist will NOT be included:")
			rpcsLog.Warnf("- In order to create TLS certs that include the "+
				"additional DNS names, delete %q and %q and restart the server",
				cfg.RPCKey, cfg.RPCCert)
		}
		if !keyFileExists && !certFileExists {
			err := genCertPair(cfg.RPCCert, cfg.RPCKey, cfg.AltDNSNames)
			if err != nil {
				return nil, err
			}
		}
		keyPair, err := tls.LoadX509KeyPair(cfg.RPCCert, cfg.RPCKey)
		if err != nil {
			return nil, err
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{keyPair},
			MinVersion:   tls.VersionTLS12,
		}

		// Change the standard net.Listen function to the tls one.
		listenFunc = func(net string, laddr string) (net.Listener, error) {
			return tls.Listen(net, laddr, tlsConfig)
		}
	}

	netAddrs, err := parseListeners(cfg.RPCListeners)
	if err != nil {
		return nil, err
	}

	listeners := make([]net.Listener, 0, len(netAddrs))
	for _, addr := range netAddrs {
		listener, err := listenFunc(addr.Network(), addr.String())
		if err != nil {
			rpcsLog.Warnf("Can't listen on %s: %v", addr, err)
			continue
		}
		listeners = append(listeners, listener)
	}

	return listeners, nil
}

// miningChain extends the chain with the choice of reward address the CPU
// miner requires.
type miningChain struct {
	*blockchain.Chain
	miningAddrs []string
}

// RewardAddress returns a randomly selected configured mining address or an
// empty string when none are configured.
//
// This is part of the cpuminer.Chain interface.
func (c *miningChain) RewardAddress() string {
	if len(c.miningAddrs) == 0 {
		return ""
	}
	return c.miningAddrs[rand.IntN(len(c.miningAddrs))]
}

// Ensure miningChain implements the cpuminer.Chain interface.
var _ cpuminer.Chain = (*miningChain)(nil)

// server houses the subsystems of sonomad.
type server struct {
	cfg       *config
	db        *leveldb.DB
	bus       *eventbus.Bus
	chain     *blockchain.Chain
	cpuMiner  *cpuminer.CPUMiner
	rpcServer *rpcserver.Server
	diag      *diagServer
}

// newServer returns a new sonomad server for the network specified by the
// configuration.  Use Run to start it.
func newServer(cfg *config, db *leveldb.DB) (*server, error) {
	bus := eventbus.New()
	chain, err := blockchain.New(&blockchain.Config{
		DB:             db,
		Params:         cfg.params,
		TimeSource:     time.Now,
		BlockCacheSize: cfg.BlockCacheSize,
		SigCacheSize:   cfg.SigCacheSize,
		MaxMempoolSize: cfg.MaxMempoolSize,
		Notify: func(block *blockchain.Block) {
			bus.Publish(eventbus.TopicBlockAdded, block)
		},
	})
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:   cfg,
		db:    db,
		bus:   bus,
		chain: chain,
	}
	s.cpuMiner = cpuminer.New(&cpuminer.Config{
		ChainParams: cfg.params,
		Chain: &miningChain{
			Chain:       chain,
			miningAddrs: cfg.MiningAddrs,
		},
		Bus:              bus,
		TimeSource:       time.Now,
		ProgressInterval: cfg.ProgressInterval,
		DispatchDelay:    cfg.MiningDelay,
		ProgressLogger:   progresslog.New("Searched", progLog),
	})

	if !cfg.DisableRPC {
		rpcListeners, err := setupRPCListeners(cfg)
		if err != nil {
			return nil, err
		}
		if len(rpcListeners) == 0 {
			return nil, fmt.Errorf("no valid listen address")
		}

		s.rpcServer, err = rpcserver.New(&rpcserver.Config{
			Listeners:            rpcListeners,
			ChainParams:          cfg.params,
			Chain:                chain,
			CPUMiner:             s.cpuMiner,
			Bus:                  bus,
			MiningAddrs:          cfg.MiningAddrs,
			RPCUser:              cfg.RPCUser,
			RPCPass:              cfg.RPCPass,
			RPCLimitUser:         cfg.RPCLimitUser,
			RPCLimitPass:         cfg.RPCLimitPass,
			RPCMaxClients:        cfg.RPCMaxClients,
			RPCMaxConcurrentReqs: cfg.RPCMaxConcurrentReqs,
			RPCMaxWebsockets:     cfg.RPCMaxWebsockets,
		})
		if err != nil {
			for _, listener := range rpcListeners {
				listener.Close()
			}
			return nil, err
		}
	}

	if cfg.MetricsListen != "" {
		s.diag, err = newDiagServer(cfg.MetricsListen, cfg.Profile)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Run starts the subsystems and blocks until the provided context is
// cancelled and all of them have stopped.
func (s *server) Run(ctx context.Context) error {
	snmdLog.Trace("Starting server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.cpuMiner.Run(ctx)
		return nil
	})

	if s.rpcServer != nil {
		g.Go(func() error {
			s.rpcServer.Run(ctx)
			return nil
		})

		// Relay stop requests made over RPC to the shutdown listener.
		g.Go(func() error {
			select {
			case <-s.rpcServer.RequestedProcessShutdown():
				select {
				case shutdownRequestChannel <- struct{}{}:
				case <-ctx.Done():
				}
			case <-ctx.Done():
			}
			return nil
		})
	}

	if s.diag != nil {
		g.Go(func() error {
			s.diag.Run(ctx)
			return nil
		})
	}

	// The CPU miner starts idle.  Start mining when requested.
	if s.cfg.Generate {
		if err := s.cpuMiner.SetGenerate(true); err != nil {
			snmdLog.Errorf("Unable to start mining: %v", err)
		}
	}

	err := g.Wait()
	snmdLog.Trace("Server stopped")
	return err
}
