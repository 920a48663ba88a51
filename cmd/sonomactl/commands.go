// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/decred/dcrd/rpcclient/v8"
)

// commandHandler executes a command with the provided arguments and returns the
// result to display.
type commandHandler func(ctx context.Context, c *rpcclient.Client, args []string) (interface{}, error)

// command describes a command sonomactl can issue.
type command struct {
	usage   string
	minArgs int
	maxArgs int
	handler commandHandler
}

// commands maps each supported method to its description.
var commands = map[string]*command{
	"generate": {
		usage:   "generate numblocks",
		minArgs: 1,
		maxArgs: 1,
		handler: handleGenerate,
	},
	"getbalance": {
		usage:   "getbalance address",
		minArgs: 1,
		maxArgs: 1,
		handler: rawHandler("getbalance"),
	},
	"getbestblock": {
		usage:   "getbestblock",
		handler: handleGetBestBlock,
	},
	"getblockcount": {
		usage: "getblockcount",
		handler: func(ctx context.Context, c *rpcclient.Client, _ []string) (interface{}, error) {
			return c.GetBlockCount(ctx)
		},
	},
	"getgenerate": {
		usage: "getgenerate",
		handler: func(ctx context.Context, c *rpcclient.Client, _ []string) (interface{}, error) {
			return c.GetGenerate(ctx)
		},
	},
	"gethashespersec": {
		usage: "gethashespersec",
		handler: func(ctx context.Context, c *rpcclient.Client, _ []string) (interface{}, error) {
			return c.GetHashesPerSec(ctx)
		},
	},
	"getminerstatus": {
		usage:   "getminerstatus",
		handler: rawHandler("getminerstatus"),
	},
	"sendrawtransaction": {
		usage:   "sendrawtransaction hextx",
		minArgs: 1,
		maxArgs: 1,
		handler: rawHandler("sendrawtransaction"),
	},
	"setgenerate": {
		usage:   "setgenerate generate",
		minArgs: 1,
		maxArgs: 1,
		handler: handleSetGenerate,
	},
	"stop": {
		usage:   "stop",
		handler: rawHandler("stop"),
	},
	"submitblock": {
		usage:   "submitblock hexblock",
		minArgs: 1,
		maxArgs: 1,
		handler: rawHandler("submitblock"),
	},
}

// listCommands prints the usage of every supported command.
func listCommands() {
	methods := make([]string, 0, len(commands)+1)
	for method := range commands {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	fmt.Println("Commands:")
	for _, method := range methods {
		fmt.Printf("  %s\n", commands[method].usage)
	}
	fmt.Println("  watch")
	fmt.Println("\nThe watch command streams block and balance notifications " +
		"until interrupted.")
}

// handleGenerate mines the requested number of blocks.
func handleGenerate(ctx context.Context, c *rpcclient.Client, args []string) (interface{}, error) {
	numBlocks, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid number of blocks %q: %w", args[0], err)
	}
	hashes, err := c.Generate(ctx, uint32(numBlocks))
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		result = append(result, hash.String())
	}
	return result, nil
}

// handleGetBestBlock returns the hash and height of the chain tip.
func handleGetBestBlock(ctx context.Context, c *rpcclient.Client, _ []string) (interface{}, error) {
	hash, height, err := c.GetBestBlock(ctx)
	if err != nil {
		return nil, err
	}
	return &chainjson.GetBestBlockResult{
		Hash:   hash.String(),
		Height: height,
	}, nil
}

// handleSetGenerate enables or disables continuous mining.
func handleSetGenerate(ctx context.Context, c *rpcclient.Client, args []string) (interface{}, error) {
	generate, err := strconv.ParseBool(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid generate flag %q: %w", args[0], err)
	}
	return nil, c.SetGenerate(ctx, generate, -1)
}

// rawParams marshals the string arguments into JSON-RPC parameters.
func rawParams(args []string) ([]json.RawMessage, error) {
	params := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		param, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	return params, nil
}

// rawHandler returns a handler that issues the method with the string
// arguments as its parameters.
func rawHandler(method string) commandHandler {
	return func(ctx context.Context, c *rpcclient.Client, args []string) (interface{}, error) {
		params, err := rawParams(args)
		if err != nil {
			return nil, err
		}
		return c.RawRequest(ctx, method, params)
	}
}

// readStdinArgs replaces every argument that is the special parameter "-"
// with the next line read from r.
func readStdinArgs(args []string, r io.Reader) ([]string, error) {
	var scanner *bufio.Scanner
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != "-" {
			result = append(result, arg)
			continue
		}
		if scanner == nil {
			scanner = bufio.NewScanner(r)
			scanner.Buffer(nil, 16*1024*1024)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("no line available on stdin for " +
				"parameter -")
		}
		result = append(result, scanner.Text())
	}
	return result, nil
}

// formatResult returns the display form of a command result.  Strings are
// shown as is while everything else is shown as indented JSON.
func formatResult(result interface{}) (string, error) {
	var marshalled []byte
	switch r := result.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case json.RawMessage:
		if len(r) == 0 || bytes.Equal(r, []byte("null")) {
			return "", nil
		}
		var str string
		if err := json.Unmarshal(r, &str); err == nil {
			return str, nil
		}
		marshalled = r
	default:
		var err error
		marshalled, err = json.Marshal(r)
		if err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, marshalled, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// validateArgs ensures the number of arguments is acceptable for the command.
func (cmd *command) validateArgs(args []string) error {
	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return nil
}
