// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/dcrjson/v4"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/gorilla/websocket"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/internal/mining"
	"github.com/grigorovich-alex/sonomacoin/rpc/jsonrpc/types"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	// rpcReadLimitAuthenticated is the maximum number of bytes allowed for a
	// JSON-RPC message read from a client.
	rpcReadLimitAuthenticated = 1 << 23 // 8 MiB
)

var (
	// JSON 2.0 batched request prefix
	batchedRequestPrefix = []byte("[")

	// timeZeroVal is simply the zero value for a time.Time and is used to
	// avoid creating multiple instances.
	timeZeroVal time.Time
)

// commandHandler describes a callback function used to handle a specific
// command.
type commandHandler func(context.Context, *Server, interface{}) (interface{}, error)

// rpcHandlers maps RPC command strings to appropriate handler functions.
// This is set by init because help references rpcHandlers and thus causes
// a dependency loop.
var rpcHandlers map[types.Method]commandHandler
var rpcHandlersBeforeInit = map[types.Method]commandHandler{
	"generate":           handleGenerate,
	"getbalance":         handleGetBalance,
	"getbestblock":       handleGetBestBlock,
	"getblockcount":      handleGetBlockCount,
	"getgenerate":        handleGetGenerate,
	"gethashespersec":    handleGetHashesPerSec,
	"getminerstatus":     handleGetMinerStatus,
	"sendrawtransaction": handleSendRawTransaction,
	"setgenerate":        handleSetGenerate,
	"stop":               handleStop,
	"submitblock":        handleSubmitBlock,
}

// Commands that are available to a limited user
var rpcLimited = map[string]struct{}{
	// Websockets commands
	"notifyblocks":      {},
	"session":           {},
	"stopnotifyblocks":  {},
	"notifybalance":     {},
	"stopnotifybalance": {},

	// HTTP/S-only commands
	"getbalance":         {},
	"getbestblock":       {},
	"getblockcount":      {},
	"getgenerate":        {},
	"gethashespersec":    {},
	"getminerstatus":     {},
	"sendrawtransaction": {},
	"submitblock":        {},
}

// rpcInternalError is a convenience function to convert an internal error to
// an RPC error with the appropriate code set.  It also logs the error to the
// RPC server subsystem since internal errors really should not occur.  The
// context parameter is only used in the log message and may be empty if it's
// not needed.
func rpcInternalError(errStr, context string) *dcrjson.RPCError {
	logStr := errStr
	if context != "" {
		logStr = context + ": " + errStr
	}
	log.Error(logStr)
	return dcrjson.NewRPCError(dcrjson.ErrRPCInternal.Code, errStr)
}

// rpcInvalidError is a convenience function to convert an invalid parameter
// error to an RPC error with the appropriate code set.
func rpcInvalidError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCInvalidParameter,
		fmt.Sprintf(fmtStr, args...))
}

// rpcDeserializationError is a convenience function to convert a
// deserialization error to an RPC error with the appropriate code set.
func rpcDeserializationError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCDeserialization,
		fmt.Sprintf(fmtStr, args...))
}

// rpcRuleError is a convenience function to convert a rule error to an RPC
// error with the appropriate code set.
func rpcRuleError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCMisc,
		fmt.Sprintf(fmtStr, args...))
}

// rpcDuplicateTxError is a convenience function to convert a rejected
// duplicate tx error to an RPC error with the appropriate code set.
func rpcDuplicateTxError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCDuplicateTx,
		fmt.Sprintf(fmtStr, args...))
}

// rpcAddressKeyError is a convenience function to convert an address error to
// an RPC error with the appropriate code set.
func rpcAddressKeyError(fmtStr string, args ...interface{}) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCInvalidAddressOrKey,
		fmt.Sprintf(fmtStr, args...))
}

// rpcDecodeHexError is a convenience function for returning a nicely formatted
// RPC error which indicates the provided hex string failed to decode.
func rpcDecodeHexError(gotHex string) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCDecodeHexString,
		fmt.Sprintf("Argument must be hexadecimal string (not %q)",
			gotHex))
}

// rpcMiscError is a convenience function for returning a nicely formatted RPC
// error which indicates there is an unquantifiable error.  Use this sparingly;
// misc return codes are a cop out.
func rpcMiscError(message string) *dcrjson.RPCError {
	return dcrjson.NewRPCError(dcrjson.ErrRPCMisc, message)
}

// decodeHexStr decodes the hex encoding of a string, possibly prepending a
// leading '0' character if there is an odd number of bytes in the hex string.
// This is to prevent an error for an invalid hex string when using an odd
// number of bytes when calling hex.Decode.
func decodeHexStr(hexStr string) ([]byte, error) {
	if len(hexStr)%2 != 0 {
		hexStr = "0" + hexStr
	}
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, rpcDecodeHexError(hexStr)
	}
	return decoded, nil
}

// handleGenerate handles generate commands.
func handleGenerate(ctx context.Context, s *Server, cmd interface{}) (interface{}, error) {
	// Respond with an error if there are no addresses to pay the
	// created blocks to.
	if len(s.cfg.MiningAddrs) == 0 {
		return nil, rpcInternalError("No payment addresses specified "+
			"via --miningaddr", "Configuration")
	}

	// Respond with an error if there's virtually 0 chance of CPU-mining a
	// block.
	params := s.cfg.ChainParams
	if !params.NoDifficultyAdjustment {
		return nil, &dcrjson.RPCError{
			Code: dcrjson.ErrRPCDifficulty,
			Message: fmt.Sprintf("No support for `generate` on the current "+
				"network, %s, as it's unlikely to be possible to mine a block "+
				"with the CPU.", params.Name),
		}
	}

	c := cmd.(*chainjson.GenerateCmd)

	// Respond with an error when no blocks are requested.
	if c.NumBlocks == 0 {
		return nil, rpcInternalError("Invalid number of blocks",
			"Configuration")
	}

	// Mine the correct number of blocks, assigning the hex representation of
	// the hash of each one to its place in the reply.
	blockHashes, err := s.cfg.CPUMiner.GenerateNBlocks(ctx, c.NumBlocks)
	if err != nil {
		if errors.Is(err, mining.ErrAlreadyMining) {
			return nil, rpcMiscError(err.Error())
		}
		return nil, rpcInternalError(err.Error(), "Could not generate blocks")
	}
	reply := make([]string, 0, len(blockHashes))
	for _, hash := range blockHashes {
		reply = append(reply, hash.String())
	}
	return reply, nil
}

// handleGetBalance implements the getbalance command.
func handleGetBalance(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*types.GetBalanceCmd)
	if _, err := blockchain.DecodeAddress(c.Address, s.cfg.ChainParams); err != nil {
		return nil, rpcAddressKeyError("Invalid address: %v", err)
	}

	balance := s.cfg.Chain.BalanceOf(c.Address)
	return &types.GetBalanceResult{
		Address: c.Address,
		Balance: balance.ToCoin(),
		Atoms:   int64(balance),
	}, nil
}

// handleGetBestBlock implements the getbestblock command.
func handleGetBestBlock(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	best := s.cfg.Chain.LastBlock()
	result := &chainjson.GetBestBlockResult{
		Hash:   best.Hash.String(),
		Height: best.Index,
	}
	return result, nil
}

// handleGetBlockCount implements the getblockcount command.
func handleGetBlockCount(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	return s.cfg.Chain.LastBlock().Index, nil
}

// handleGetGenerate implements the getgenerate command.
func handleGetGenerate(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	return s.cfg.CPUMiner.Generating(), nil
}

// handleGetHashesPerSec implements the gethashespersec command.
func handleGetHashesPerSec(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	return int64(s.cfg.CPUMiner.HashesPerSecond()), nil
}

// handleGetMinerStatus implements the getminerstatus command.
func handleGetMinerStatus(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	miner := s.cfg.CPUMiner
	chain := s.cfg.Chain
	result := &types.GetMinerStatusResult{
		Generating:   miner.Generating(),
		Mining:       miner.IsMining(),
		HashesPerSec: int64(miner.HashesPerSecond()),
		Height:       chain.LastBlock().Index,
		Bits:         strconv.FormatUint(uint64(chain.CurrentDifficulty()), 16),
		MempoolSize:  chain.MempoolSize(),
	}
	if err := miner.Err(); err != nil {
		result.HaltError = err.Error()
	}
	return result, nil
}

// handleSendRawTransaction implements the sendrawtransaction command.
func handleSendRawTransaction(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*chainjson.SendRawTransactionCmd)
	serializedTx, err := decodeHexStr(c.HexTx)
	if err != nil {
		return nil, err
	}
	var tx blockchain.Transaction
	err = tx.Deserialize(bytes.NewReader(serializedTx))
	if err != nil {
		return nil, rpcDeserializationError("Could not decode Tx: %v",
			err)
	}

	txHash, err := s.cfg.Chain.AddTransaction(&tx)
	if err != nil {
		// When the error is a rule error, it means the transaction was
		// simply rejected as opposed to something actually going
		// wrong, so log it as such.  Otherwise, something really did
		// go wrong, so log it as an actual error.
		if blockchain.IsRuleError(err) {
			err = fmt.Errorf("rejected transaction %v: %w", tx.TxHash(),
				err)
			log.Debugf("%v", err)

			// Use the duplicate tx error code when the transaction is
			// known to already be submitted to the mempool or confirmed.
			switch {
			case errors.Is(err, blockchain.ErrDuplicateTx):
				fallthrough
			case errors.Is(err, blockchain.ErrTxAlreadyConfirmed):
				return nil, rpcDuplicateTxError("%v", err)
			}

			// return a generic rule error
			return nil, rpcRuleError("%v", err)
		}

		err = fmt.Errorf("failed to process transaction %v: %w",
			tx.TxHash(), err)
		return nil, rpcInternalError(err.Error(), "")
	}

	return txHash.String(), nil
}

// handleSetGenerate implements the setgenerate command.
func handleSetGenerate(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*chainjson.SetGenerateCmd)

	// Disable generation regardless of the provided generate flag if the
	// maximum number of threads is 0.  There is only ever a single search
	// worker, so any other limit simply enables it.
	generate := c.Generate
	if c.GenProcLimit != nil && *c.GenProcLimit == 0 {
		generate = false
	}

	// Respond with an error if there are no addresses to pay the created
	// blocks to.
	if generate && len(s.cfg.MiningAddrs) == 0 {
		return nil, rpcInternalError("No payment addresses "+
			"specified via --miningaddr", "Configuration")
	}

	if err := s.cfg.CPUMiner.SetGenerate(generate); err != nil {
		if errors.Is(err, mining.ErrAlreadyMining) {
			return nil, rpcMiscError(err.Error())
		}
		return nil, rpcInternalError(err.Error(), "Could not set generate")
	}
	return nil, nil
}

// handleStop implements the stop command.
func handleStop(_ context.Context, s *Server, _ interface{}) (interface{}, error) {
	select {
	case s.requestProcessShutdown <- struct{}{}:
	default:
	}
	return "sonomad stopping.", nil
}

// handleSubmitBlock implements the submitblock command.
func handleSubmitBlock(_ context.Context, s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*chainjson.SubmitBlockCmd)

	// Deserialize the submitted block.
	serializedBlock, err := decodeHexStr(c.HexBlock)
	if err != nil {
		return nil, err
	}
	block, err := blockchain.NewBlockFromBytes(serializedBlock)
	if err != nil {
		return nil, rpcDeserializationError("Block decode: %v", err)
	}

	err = s.cfg.Chain.AppendBlock(block)
	if err != nil {
		if blockchain.IsRuleError(err) {
			return fmt.Sprintf("rejected: %v", err), nil
		}
		return nil, rpcInternalError(err.Error(), "Could not append block")
	}

	log.Infof("Accepted block %s via submitblock", block.Hash)
	return nil, nil
}

// Server provides a concurrent safe RPC server to a chain server.
type Server struct {
	numClients atomic.Int32

	cfg                    Config
	hmac                   hash.Hash
	hmacMu                 sync.Mutex
	authsha                [sha256.Size]byte
	limitauthsha           [sha256.Size]byte
	ntfnMgr                *wsNotificationManager
	wg                     sync.WaitGroup
	requestProcessShutdown chan struct{}
}

// shutdown terminates the processes of the rpc server.
func (s *Server) shutdown() error {
	log.Warnf("RPC server shutting down")
	for _, listener := range s.cfg.Listeners {
		err := listener.Close()
		if err != nil {
			log.Errorf("Problem shutting down rpc: %v", err)
			return err
		}
	}
	s.wg.Wait()
	log.Infof("RPC server shutdown complete")
	return nil
}

// RequestedProcessShutdown returns a channel that is sent to when an
// authorized RPC client requests the process to shutdown.  If the request can
// not be read immediately, it is dropped.
func (s *Server) RequestedProcessShutdown() <-chan struct{} {
	return s.requestProcessShutdown
}

// limitConnections responds with a 503 service unavailable and returns true if
// adding another client would exceed the maximum allow RPC clients.
//
// This function is safe for concurrent access.
func (s *Server) limitConnections(w http.ResponseWriter, remoteAddr string) bool {
	if int(s.numClients.Load()+1) > s.cfg.RPCMaxClients {
		log.Infof("Max RPC clients exceeded [%d] - "+
			"disconnecting client %s", s.cfg.RPCMaxClients,
			remoteAddr)
		http.Error(w, "503 Too busy.  Try again later.",
			http.StatusServiceUnavailable)
		return true
	}
	return false
}

// authMAC calculates the MAC (currently HMAC-SHA256) of an Authorization
// header, keyed with a random key created during server creation.  The MAC is
// appended to dst, and the appended slice is returned.
func (s *Server) authMAC(dst, auth []byte) []byte {
	s.hmacMu.Lock()
	s.hmac.Reset()
	s.hmac.Write(auth)
	dst = s.hmac.Sum(dst)
	s.hmacMu.Unlock()
	return dst
}

// checkAuthMAC checks the HTTP Basic authentication string by comparing
// it with the already generated hash.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false).
func (s *Server) checkAuthMAC(auth, remoteAddr string) (bool, bool) {
	mac := make([]byte, 0, sha256.Size)
	mac = s.authMAC(mac, []byte(auth))

	cmp := subtle.ConstantTimeCompare(mac, s.authsha[:])
	limitcmp := subtle.ConstantTimeCompare(mac, s.limitauthsha[:])
	if cmp|limitcmp == 0 {
		// Request's auth doesn't match either user
		log.Warnf("RPC authentication failure from %s", remoteAddr)
		return false, false
	}
	return true, cmp == 1
}

// checkAuthUserPass checks the correctness of username and password by
// generating the corresponding HTTP Basic authentication string then
// compare the string with the already generated hash.
func (s *Server) checkAuthUserPass(user, pass, remoteAddr string) (bool, bool) {
	login := user + ":" + pass
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
	return s.checkAuthMAC(auth, remoteAddr)
}

// checkAuth checks the HTTP Basic authentication supplied by an RPC client in
// the HTTP request r.  If the supplied authentication does not match the
// username and password expected, a non-nil error is returned.
//
// This check is time-constant.
//
// The first bool return value signifies auth success (true if successful) and
// the second bool return value specifies whether the user can change the state
// of the server (true) or whether the user is limited (false). The second is
// always false if the first is.
func (s *Server) checkAuth(r *http.Request, require bool) (bool, bool, error) {
	// If admin-level RPC user and pass options are not set, this always
	// succeeds.
	if s.authsha == ([32]byte{}) {
		return true, true, nil
	}

	authhdr := r.Header["Authorization"]
	if len(authhdr) == 0 {
		if require {
			log.Warnf("RPC authentication failure from %s",
				r.RemoteAddr)
			return false, false, errors.New("auth failure")
		}

		return false, false, nil
	}

	authed, isAdmin := s.checkAuthMAC(authhdr[0], r.RemoteAddr)
	if !authed {
		return false, false, errors.New("auth failure")
	}
	return authed, isAdmin, nil
}

// parsedRPCCmd represents a JSON-RPC request object that has been parsed into
// a known concrete command along with any error that might have happened while
// parsing it.
type parsedRPCCmd struct {
	jsonrpc string
	id      interface{}
	method  types.Method
	params  interface{}
	err     *dcrjson.RPCError
}

// standardCmdResult checks that a parsed command is a standard JSON-RPC command
// and runs the appropriate handler to reply to the command.  Any commands which
// are not recognized or not implemented will return an error suitable for use
// in replies.
func (s *Server) standardCmdResult(ctx context.Context, cmd *parsedRPCCmd) (interface{}, error) {
	handler, ok := rpcHandlers[cmd.method]
	if !ok {
		return nil, dcrjson.ErrRPCMethodNotFound
	}

	return handler(ctx, s, cmd.params)
}

// parseCmd parses a JSON-RPC request object into known concrete command.  The
// err field of the returned parsedRPCCmd struct will contain an RPC error that
// is suitable for use in replies if the command is invalid in some way such as
// an unregistered command or invalid parameters.
func parseCmd(request *dcrjson.Request) *parsedRPCCmd {
	method := types.Method(request.Method)
	parsedCmd := parsedRPCCmd{
		jsonrpc: request.Jsonrpc,
		id:      request.ID,
		method:  method,
	}

	params, err := dcrjson.ParseParams(method, request.Params)
	if err != nil {
		if errors.Is(err, dcrjson.ErrUnregisteredMethod) {
			parsedCmd.err = dcrjson.ErrRPCMethodNotFound
			return &parsedCmd
		}

		// Otherwise, some type of invalid parameters is the cause, so
		// produce the equivalent RPC error.
		parsedCmd.err = rpcInvalidError("Failed to parse request: %v", err)
		return &parsedCmd
	}

	parsedCmd.params = params
	return &parsedCmd
}

// createMarshalledReply returns a new marshalled JSON-RPC response given the
// passed parameters.  It will automatically convert errors that are not of the
// type *dcrjson.RPCError to the appropriate type as needed.
func createMarshalledReply(rpcVersion string, id interface{}, result interface{}, replyErr error) ([]byte, error) {
	var jsonErr *dcrjson.RPCError
	if replyErr != nil && !errors.As(replyErr, &jsonErr) {
		jsonErr = rpcInternalError(replyErr.Error(), "")
	}

	return dcrjson.MarshalResponse(rpcVersion, id, result, jsonErr)
}

// processRequest determines the incoming request type (single or batched),
// parses it and returns a marshalled response.
func (s *Server) processRequest(ctx context.Context, request *dcrjson.Request, isAdmin bool) []byte {
	var result interface{}
	var jsonErr error

	if !isAdmin {
		if _, ok := rpcLimited[request.Method]; !ok {
			jsonErr = &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCInvalidParams.Code,
				Message: "limited user not authorized for this method",
			}
		}
	}

	if jsonErr == nil {
		if request.Method == "" {
			jsonErr = &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCInvalidRequest.Code,
				Message: "Invalid request: malformed",
			}
			msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
			if err != nil {
				log.Errorf("Failed to marshal reply: %v", err)
				return nil
			}
			return msg
		}

		// Valid requests with no ID (notifications) must not have a response
		// per the JSON-RPC spec.
		if request.ID == nil {
			return nil
		}

		// Attempt to parse the JSON-RPC request into a known
		// concrete command.
		parsedCmd := parseCmd(request)
		if parsedCmd.err != nil {
			jsonErr = parsedCmd.err
		} else {
			result, jsonErr = s.standardCmdResult(ctx, parsedCmd)
		}
	}

	// Marshal the response.
	msg, err := createMarshalledReply(request.Jsonrpc, request.ID, result, jsonErr)
	if err != nil {
		log.Errorf("Failed to marshal reply: %v", err)
		return nil
	}
	return msg
}

// parseErrorReply returns a marshalled reply for a request body that could not
// be parsed at all.
func parseErrorReply(rpcVersion string, code dcrjson.RPCErrorCode, msg string) json.RawMessage {
	jsonErr := &dcrjson.RPCError{
		Code:    code,
		Message: msg,
	}
	resp, err := dcrjson.MarshalResponse(rpcVersion, nil, nil, jsonErr)
	if err != nil {
		log.Errorf("Failed to create reply: %v", err)
		return nil
	}
	return resp
}

// processBatch parses and services every request of a batched request and
// returns the marshalled replies.
func (s *Server) processBatch(ctx context.Context, body []byte, isAdmin bool) []json.RawMessage {
	var batchedRequests []json.RawMessage
	err := json.Unmarshal(body, &batchedRequests)
	if err != nil {
		resp := parseErrorReply("2.0", dcrjson.ErrRPCParse.Code,
			fmt.Sprintf("Failed to parse request: %v", err))
		if resp == nil {
			return nil
		}
		return []json.RawMessage{resp}
	}

	// Respond with an empty batch error if the batch size is zero.
	if len(batchedRequests) == 0 {
		resp := parseErrorReply("2.0", dcrjson.ErrRPCInvalidRequest.Code,
			"Invalid request: empty batch")
		if resp == nil {
			return nil
		}
		return []json.RawMessage{resp}
	}

	// Process each batch entry individually.
	results := make([]json.RawMessage, 0, len(batchedRequests))
	for _, entry := range batchedRequests {
		var req dcrjson.Request
		var resp json.RawMessage
		if err := json.Unmarshal(entry, &req); err != nil {
			resp = parseErrorReply("", dcrjson.ErrRPCInvalidRequest.Code,
				fmt.Sprintf("Invalid request: %v", err))
		} else {
			resp = s.processRequest(ctx, &req, isAdmin)
		}
		if resp != nil {
			results = append(results, resp)
		}
	}
	return results
}

// jsonRPCRead handles reading and responding to RPC messages.
func (s *Server) jsonRPCRead(ctx context.Context, w http.ResponseWriter, r *http.Request, isAdmin bool) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	// Read and close the JSON-RPC request body from the caller.
	bodyReader := io.LimitReader(r.Body, rpcReadLimitAuthenticated)
	body, err := io.ReadAll(bodyReader)
	r.Body.Close()
	if err != nil {
		errMsg := fmt.Sprintf("error reading JSON message: %v", err)
		errCode := http.StatusBadRequest
		http.Error(w, strconv.Itoa(errCode)+" "+errMsg,
			errCode)
		return
	}

	var msg []byte
	if bytes.HasPrefix(bytes.TrimSpace(body), batchedRequestPrefix) {
		// Form the batched response json.
		results := s.processBatch(ctx, body, isAdmin)
		if len(results) > 0 {
			var buffer bytes.Buffer
			buffer.WriteByte('[')
			for idx, reply := range results {
				if idx > 0 {
					buffer.WriteByte(',')
				}
				buffer.Write(reply)
			}
			buffer.WriteByte(']')
			msg = buffer.Bytes()
		}
	} else {
		var req dcrjson.Request
		if err := json.Unmarshal(body, &req); err != nil {
			msg = parseErrorReply("1.0", dcrjson.ErrRPCParse.Code,
				fmt.Sprintf("Failed to parse request: %v", err))
		} else {
			msg = s.processRequest(ctx, &req, isAdmin)
		}
	}

	// Write the response.
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(msg); err != nil {
		log.Errorf("Failed to write marshalled reply: %v", err)
		return
	}

	// Terminate with newline to maintain compatibility with Bitcoin Core.
	if _, err := io.WriteString(w, "\n"); err != nil {
		log.Errorf("Failed to append terminating newline to reply: %v", err)
	}
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="sonomad RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

// logForwarder provides logic to forward log messages writing to an io.Writer
// to the rpcserver logger.
type logForwarder struct{}

// Write implements the io.Writer interface and forwards the message to the
// active rpcserver logger.
func (logForwarder) Write(p []byte) (int, error) {
	log.Error(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}

// equalASCIIFold returns true if s is equal to t with ASCII case folding as
// defined in RFC 4790.
func equalASCIIFold(s, t string) bool {
	for s != "" && t != "" {
		sr, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		tr, size := utf8.DecodeRuneInString(t)
		t = t[size:]
		if sr == tr {
			continue
		}
		if 'A' <= sr && sr <= 'Z' {
			sr = sr + 'a' - 'A'
		}
		if 'A' <= tr && tr <= 'Z' {
			tr = tr + 'a' - 'A'
		}
		if sr != tr {
			return false
		}
	}
	return s == t
}

// checkWebsocketOrigin allows requests without an origin, local resources, and
// requests whose origin host matches the requested host.
func checkWebsocketOrigin(r *http.Request) bool {
	origin := r.Header["Origin"]
	if len(origin) == 0 {
		return true
	}

	// Reject requests with origin headers that are not valid URLs.
	originURL, err := url.Parse(origin[0])
	if err != nil {
		return false
	}

	// Allow local resources on browsers that set the origin header for them.
	if originURL.Scheme == "file" || originURL.Path == "null" {
		return true
	}

	// Strip the port from both the origin and request hosts.
	originHost := originURL.Host
	requestHost := r.Host
	if host, _, err := net.SplitHostPort(originHost); err == nil {
		originHost = host
	}
	if host, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = host
	}

	return equalASCIIFold(originHost, requestHost)
}

// route sets up the endpoints of the rpc server.
func (s *Server) route(ctx context.Context) *http.Server {
	rpcServeMux := http.NewServeMux()
	httpServer := &http.Server{
		Handler: rpcServeMux,

		// Use the provided context as the parent context for all requests to
		// ensure handlers are able to react to both client disconnects as well
		// as shutdown via the provided context.
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},

		// Timeout connections which don't complete the initial
		// handshake within the allowed timeframe.
		ReadHeaderTimeout: time.Second * rpcAuthTimeoutSeconds,

		// Reroute http server error logging through the rpcserver
		// logger.
		ErrorLog: stdlog.New(logForwarder{}, "", 0),
	}
	rpcServeMux.HandleFunc("/", s.handleHTTP)
	rpcServeMux.HandleFunc("/ws", s.handleWebsocket)
	return httpServer
}

// handleHTTP serves JSON-RPC requests made over HTTP POST.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Connection", "close")
	w.Header().Set("Content-Type", "application/json")
	r.Close = true

	// Limit the number of connections to max allowed.
	if s.limitConnections(w, r.RemoteAddr) {
		return
	}

	// Keep track of the number of connected clients.
	s.numClients.Add(1)
	defer s.numClients.Add(-1)
	_, isAdmin, err := s.checkAuth(r, true)
	if err != nil {
		jsonAuthFail(w)
		return
	}

	// Read and respond to the request.
	s.jsonRPCRead(r.Context(), w, r, isAdmin)
}

// handleWebsocket upgrades the connection and serves the websocket client
// until it disconnects.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	authenticated, isAdmin, err := s.checkAuth(r, false)
	if err != nil {
		jsonAuthFail(w)
		return
	}

	// Attempt to upgrade the connection to a websocket connection using the
	// default size for read/write buffers and impose a read limit that
	// depends on whether or not the connection is authenticated yet.
	upgrader := websocket.Upgrader{CheckOrigin: checkWebsocketOrigin}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		var herr websocket.HandshakeError
		if !errors.As(err, &herr) {
			log.Errorf("Unexpected websocket error: %v", err)
		}
		return
	}
	ws.SetPingHandler(func(payload string) error {
		log.Tracef("ping received: len %d", len(payload))
		var netErr net.Error
		err := ws.WriteControl(websocket.PongMessage, []byte(payload),
			time.Now().Add(websocketPongTimeout))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) &&
			!(errors.As(err, &netErr) && netErr.Timeout()) {

			log.Errorf("Failed to send pong: %v", err)
			return err
		}
		return nil
	})
	if !authenticated {
		ws.SetReadLimit(websocketReadLimitUnauthenticated)
	} else {
		ws.SetReadLimit(websocketReadLimitAuthenticated)
	}
	s.WebsocketHandler(r.Context(), ws, r.RemoteAddr, authenticated, isAdmin)
}

// Run starts the rpc server and its listeners. It blocks until the
// provided context is cancelled.
func (s *Server) Run(ctx context.Context) {
	log.Trace("Starting RPC server")
	server := s.route(ctx)
	for _, listener := range s.cfg.Listeners {
		s.wg.Add(1)
		go func(listener net.Listener) {
			log.Infof("RPC server listening on %s", listener.Addr())
			server.Serve(listener)
			log.Tracef("RPC listener done for %s", listener.Addr())
			s.wg.Done()
		}(listener)
	}

	s.ntfnMgr.Run(ctx)
	err := s.shutdown()
	if err != nil {
		log.Error(err)
		return
	}
}

// Config is a descriptor containing the RPC server configuration.
type Config struct {
	// Listeners defines a slice of listeners for which the RPC server will
	// take ownership of and accept connections.  Since the RPC server takes
	// ownership of these listeners, they will be closed when the RPC server
	// is stopped.
	Listeners []net.Listener

	// ChainParams identifies the network the server is serving.
	ChainParams *blockchain.Params

	// Chain provides access to the chain state and accepts submitted blocks
	// and transactions.
	Chain Chain

	// CPUMiner is the miner controlled by the mining commands.
	CPUMiner CPUMiner

	// Bus is the event bus the websocket notifications are relayed from.
	Bus *eventbus.Bus

	// MiningAddrs is the list of payment addresses for generated blocks.
	MiningAddrs []string

	// These fields define the username and password for RPC connections and
	// limited RPC connections.
	RPCUser      string
	RPCPass      string
	RPCLimitUser string
	RPCLimitPass string

	// RPCMaxClients defines the max number of RPC clients for standard
	// connections.
	RPCMaxClients int

	// RPCMaxConcurrentReqs defines the max number of RPC requests that may be
	// processed concurrently by a websocket client.
	RPCMaxConcurrentReqs int

	// RPCMaxWebsockets defines the max number of RPC websocket connections.
	RPCMaxWebsockets int
}

// New returns a new instance of the Server struct.
func New(config *Config) (*Server, error) {
	rpc := Server{
		cfg:                    *config,
		requestProcessShutdown: make(chan struct{}),
	}
	key := make([]byte, 32)
	rand.Read(key)
	rpc.hmac = hmac.New(sha256.New, key)
	if config.RPCUser != "" && config.RPCPass != "" {
		login := config.RPCUser + ":" + config.RPCPass
		auth := "Basic " +
			base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authMAC(rpc.authsha[:0], []byte(auth))
	}
	if config.RPCLimitUser != "" && config.RPCLimitPass != "" {
		login := config.RPCLimitUser + ":" + config.RPCLimitPass
		auth := "Basic " +
			base64.StdEncoding.EncodeToString([]byte(login))
		rpc.authMAC(rpc.limitauthsha[:0], []byte(auth))
	}
	if rpc.cfg.RPCMaxConcurrentReqs <= 0 {
		rpc.cfg.RPCMaxConcurrentReqs = 1
	}
	rpc.ntfnMgr = newWsNotificationManager(&rpc)

	return &rpc, nil
}

func init() {
	rpcHandlers = rpcHandlersBeforeInit
}
