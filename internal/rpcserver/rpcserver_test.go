// Copyright (c) 2020 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/decred/dcrd/dcrutil/v4"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/internal/mining"
	"github.com/grigorovich-alex/sonomacoin/rpc/jsonrpc/types"
)

const (
	testAdminUser = "admin"
	testAdminPass = "adminpass"
	testLimitUser = "limited"
	testLimitPass = "limitpass"

	// waitTimeout is the maximum time tests wait for asynchronous events.
	waitTimeout = 5 * time.Second
)

var (
	testParams     = &blockchain.RegNetParams
	testRewardAddr = blockchain.AddressFromPubKey([]byte{0x02, 0x01}, testParams)
)

// mockChain provides a chain that records submitted blocks and transactions
// for use in the RPC server tests.
type mockChain struct {
	mtx       sync.Mutex
	tip       *blockchain.Block
	bits      uint32
	balances  map[string]dcrutil.Amount
	appendErr error
	addTxErr  error
	appended  []*blockchain.Block
	added     []*blockchain.Transaction
}

func newMockChain() *mockChain {
	return &mockChain{
		tip:      testParams.GenesisBlock(),
		bits:     testParams.PowLimitBits,
		balances: make(map[string]dcrutil.Amount),
	}
}

func (c *mockChain) LastBlock() *blockchain.Block {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.tip
}

func (c *mockChain) CurrentDifficulty() uint32 {
	return c.bits
}

func (c *mockChain) BalanceOf(addr string) dcrutil.Amount {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.balances[addr]
}

func (c *mockChain) AppendBlock(block *blockchain.Block) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.appendErr != nil {
		return c.appendErr
	}
	c.appended = append(c.appended, block)
	c.tip = block
	return nil
}

func (c *mockChain) AddTransaction(tx *blockchain.Transaction) (*chainhash.Hash, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.addTxErr != nil {
		return nil, c.addTxErr
	}
	c.added = append(c.added, tx)
	hash := tx.TxHash()
	return &hash, nil
}

func (c *mockChain) MempoolSize() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.added)
}

// mockMiner provides a miner whose state is set directly by the tests.
type mockMiner struct {
	mtx          sync.Mutex
	generating   bool
	mining       bool
	haltErr      error
	hashesPerSec float64
	setErr       error
	generated    []*chainhash.Hash
	generateErr  error
}

func (m *mockMiner) SetGenerate(enable bool) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.generating = enable
	return nil
}

func (m *mockMiner) Generating() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.generating
}

func (m *mockMiner) IsMining() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.mining
}

func (m *mockMiner) Err() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.haltErr
}

func (m *mockMiner) HashesPerSecond() float64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.hashesPerSec
}

func (m *mockMiner) GenerateNBlocks(_ context.Context, n uint32) ([]*chainhash.Hash, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	hashes := make([]*chainhash.Hash, 0, n)
	for i := uint32(0); i < n; i++ {
		hash := chainhash.HashH([]byte{byte(i)})
		hashes = append(hashes, &hash)
	}
	m.generated = hashes
	return hashes, nil
}

// testHarness houses a running RPC server along with its collaborators.
type testHarness struct {
	server *Server
	chain  *mockChain
	miner  *mockMiner
	bus    *eventbus.Bus
	addr   string
	cancel context.CancelFunc
	done   chan struct{}
}

// newTestHarness starts an RPC server on a loopback listener.  The server is
// stopped when the test completes.
func newTestHarness(t *testing.T, miningAddrs ...string) *testHarness {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to create listener: %v", err)
	}

	h := &testHarness{
		chain: newMockChain(),
		miner: &mockMiner{},
		bus:   eventbus.New(),
		addr:  listener.Addr().String(),
		done:  make(chan struct{}),
	}
	h.server, err = New(&Config{
		Listeners:            []net.Listener{listener},
		ChainParams:          testParams,
		Chain:                h.chain,
		CPUMiner:             h.miner,
		Bus:                  h.bus,
		MiningAddrs:          miningAddrs,
		RPCUser:              testAdminUser,
		RPCPass:              testAdminPass,
		RPCLimitUser:         testLimitUser,
		RPCLimitPass:         testLimitPass,
		RPCMaxClients:        10,
		RPCMaxConcurrentReqs: 4,
		RPCMaxWebsockets:     4,
	})
	if err != nil {
		t.Fatalf("unable to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.server.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(waitTimeout):
			t.Error("timeout waiting for RPC server shutdown")
		}
	})

	// The notification manager subscribes to the bus when it starts.
	waitFor(t, "bus subscriptions", func() bool {
		return h.bus.NumSubscribers(eventbus.TopicBlockAdded) == 1
	})
	return h
}

// rpcRequest is a JSON-RPC request as sent by the tests.
type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse is a JSON-RPC response as received by the tests.
type rpcResponse struct {
	Result json.RawMessage   `json:"result"`
	Error  *dcrjson.RPCError `json:"error"`
	ID     interface{}       `json:"id"`
}

// post sends the raw body to the server with the provided credentials and
// returns the HTTP response code and body.
func (h *testHarness) post(t *testing.T, user, pass string, body []byte) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, "http://"+h.addr,
		bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unable to create request: %v", err)
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unable to post request: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("unable to read response: %v", err)
	}
	return resp.StatusCode, buf.Bytes()
}

// call issues a single JSON-RPC request and decodes the response.
func (h *testHarness) call(t *testing.T, user, pass, method string, params ...interface{}) *rpcResponse {
	t.Helper()

	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(&rpcRequest{
		Jsonrpc: "1.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		t.Fatalf("unable to marshal request: %v", err)
	}
	code, respBody := h.post(t, user, pass, body)
	if code != http.StatusOK {
		t.Fatalf("%s: unexpected status code %d (%s)", method, code,
			respBody)
	}
	var resp rpcResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		t.Fatalf("%s: unable to unmarshal response %q: %v", method,
			respBody, err)
	}
	return &resp
}

// waitFor polls the condition until it holds or the wait times out.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", desc)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// testBlock returns a block at index 1 paying the reward address.
func testBlock() *blockchain.Block {
	genesis := testParams.GenesisBlock()
	ts := genesis.Timestamp.Add(time.Minute)
	block := &blockchain.Block{
		Index:         1,
		PrevHash:      genesis.Hash,
		Timestamp:     ts,
		Bits:          testParams.PowLimitBits,
		RewardAddress: testRewardAddr,
		Transactions: []*blockchain.Transaction{
			blockchain.NewRewardTx(1, testRewardAddr, 50*1e8, ts.Unix()),
		},
	}
	block.MerkleRoot = block.CalcMerkleRoot()
	block.Hash = block.PowHash()
	return block
}

// testTx returns a signed transaction paying the reward address.
func testTx() *blockchain.Transaction {
	privKey := secp256k1.PrivKeyFromBytes(bytes.Repeat([]byte{0x01}, 32))
	tx := &blockchain.Transaction{
		To:        testRewardAddr,
		Amount:    1e8,
		Fee:       1e4,
		Timestamp: 1704067260,
		Sequence:  1,
	}
	tx.Sign(privKey)
	return tx
}

// TestHandlers ensures the RPC handlers produce the expected results from the
// chain and miner state.
func TestHandlers(t *testing.T) {
	h := newTestHarness(t, testRewardAddr)
	h.chain.mtx.Lock()
	h.chain.balances[testRewardAddr] = 125 * 1e8
	h.chain.mtx.Unlock()
	h.miner.mtx.Lock()
	h.miner.generating = true
	h.miner.mining = true
	h.miner.hashesPerSec = 1234.7
	h.miner.mtx.Unlock()

	genesis := testParams.GenesisBlock()
	tests := []struct {
		name   string
		method string
		params []interface{}
		result interface{}
	}{{
		name:   "getbestblock",
		method: "getbestblock",
		result: &chainjson.GetBestBlockResult{
			Hash:   genesis.Hash.String(),
			Height: 0,
		},
	}, {
		name:   "getblockcount",
		method: "getblockcount",
		result: int64(0),
	}, {
		name:   "getgenerate",
		method: "getgenerate",
		result: true,
	}, {
		name:   "gethashespersec",
		method: "gethashespersec",
		result: int64(1234),
	}, {
		name:   "getbalance",
		method: "getbalance",
		params: []interface{}{testRewardAddr},
		result: &types.GetBalanceResult{
			Address: testRewardAddr,
			Balance: 125,
			Atoms:   125 * 1e8,
		},
	}, {
		name:   "getminerstatus",
		method: "getminerstatus",
		result: &types.GetMinerStatusResult{
			Generating:   true,
			Mining:       true,
			HashesPerSec: 1234,
			Height:       0,
			Bits:         "207fffff",
		},
	}, {
		name:   "generate",
		method: "generate",
		params: []interface{}{2},
		result: []string{
			chainhash.HashH([]byte{0}).String(),
			chainhash.HashH([]byte{1}).String(),
		},
	}, {
		name:   "stop",
		method: "stop",
		result: "sonomad stopping.",
	}}

	for _, test := range tests {
		resp := h.call(t, testAdminUser, testAdminPass, test.method,
			test.params...)
		if resp.Error != nil {
			t.Errorf("%s: unexpected error: %v", test.name, resp.Error)
			continue
		}

		// Unmarshal into a value of the same type as the expected result.
		want := test.result
		gotPtr := reflect.New(reflect.TypeOf(want))
		if err := json.Unmarshal(resp.Result, gotPtr.Interface()); err != nil {
			t.Errorf("%s: unable to unmarshal result %s: %v", test.name,
				resp.Result, err)
			continue
		}
		got := gotPtr.Elem().Interface()
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: mismatched result - got %s, want %s", test.name,
				spew.Sdump(got), spew.Sdump(want))
		}
	}

	// The stop request is only delivered while the shutdown channel is being
	// read, so keep issuing it until the reader observes it.
	requested := make(chan struct{})
	go func() {
		<-h.server.RequestedProcessShutdown()
		close(requested)
	}()
	deadline := time.After(waitTimeout)
	for {
		h.call(t, testAdminUser, testAdminPass, "stop")
		select {
		case <-requested:
			return
		case <-deadline:
			t.Fatal("timeout waiting for shutdown request")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestSetGenerate ensures the setgenerate command toggles the miner and
// reports the configuration and exclusivity errors.
func TestSetGenerate(t *testing.T) {
	h := newTestHarness(t, testRewardAddr)

	resp := h.call(t, testAdminUser, testAdminPass, "setgenerate", true)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if !h.miner.Generating() {
		t.Fatal("miner not generating after setgenerate true")
	}

	// A processor limit of zero disables generation.
	resp = h.call(t, testAdminUser, testAdminPass, "setgenerate", true, 0)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if h.miner.Generating() {
		t.Fatal("miner generating after setgenerate with zero limit")
	}

	h.miner.mtx.Lock()
	h.miner.setErr = mining.MakeError(mining.ErrAlreadyMining,
		"discrete generation in progress")
	h.miner.mtx.Unlock()
	resp = h.call(t, testAdminUser, testAdminPass, "setgenerate", true)
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCMisc {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	// Mining without reward addresses is a configuration error.
	h2 := newTestHarness(t)
	resp = h2.call(t, testAdminUser, testAdminPass, "setgenerate", true)
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCInternal.Code {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	resp = h2.call(t, testAdminUser, testAdminPass, "generate", 1)
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCInternal.Code {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

// TestSubmissions ensures blocks and transactions submitted over RPC reach the
// chain and rejections are mapped to the expected RPC errors.
func TestSubmissions(t *testing.T) {
	h := newTestHarness(t, testRewardAddr)

	block := testBlock()
	serializedBlock, err := block.Bytes()
	if err != nil {
		t.Fatalf("unable to serialize block: %v", err)
	}
	tx := testTx()
	serializedTx, err := tx.Bytes()
	if err != nil {
		t.Fatalf("unable to serialize tx: %v", err)
	}
	blockHex := hex.EncodeToString(serializedBlock)
	txHex := hex.EncodeToString(serializedTx)

	// Accepted block.
	resp := h.call(t, testAdminUser, testAdminPass, "submitblock", blockHex)
	if resp.Error != nil || string(resp.Result) != "null" {
		t.Fatalf("unexpected submitblock response: %s %v", resp.Result,
			resp.Error)
	}
	h.chain.mtx.Lock()
	appended := h.chain.appended
	h.chain.mtx.Unlock()
	if len(appended) != 1 || appended[0].Index != 1 {
		t.Fatalf("block not appended: %s", spew.Sdump(appended))
	}

	// Rejected block is reported in the result.
	h.chain.mtx.Lock()
	h.chain.appendErr = blockchain.RuleError{
		Err:         blockchain.ErrBadPrevHash,
		Description: "bad prev hash",
	}
	h.chain.mtx.Unlock()
	resp = h.call(t, testAdminUser, testAdminPass, "submitblock", blockHex)
	if resp.Error != nil || string(resp.Result) != `"rejected: bad prev hash"` {
		t.Fatalf("unexpected submitblock response: %s %v", resp.Result,
			resp.Error)
	}

	// Storage failures are internal errors.
	h.chain.mtx.Lock()
	h.chain.appendErr = errors.New("disk on fire")
	h.chain.mtx.Unlock()
	resp = h.call(t, testAdminUser, testAdminPass, "submitblock", blockHex)
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCInternal.Code {
		t.Fatalf("unexpected submitblock error: %v", resp.Error)
	}

	// Malformed submissions.
	resp = h.call(t, testAdminUser, testAdminPass, "submitblock", "zz")
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCDecodeHexString {
		t.Fatalf("unexpected submitblock error: %v", resp.Error)
	}
	resp = h.call(t, testAdminUser, testAdminPass, "submitblock", "0102")
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCDeserialization {
		t.Fatalf("unexpected submitblock error: %v", resp.Error)
	}

	// Accepted transaction.
	resp = h.call(t, testAdminUser, testAdminPass, "sendrawtransaction", txHex)
	if resp.Error != nil {
		t.Fatalf("unexpected sendrawtransaction error: %v", resp.Error)
	}
	wantHash := tx.TxHash()
	if string(resp.Result) != `"`+wantHash.String()+`"` {
		t.Fatalf("unexpected sendrawtransaction result: %s", resp.Result)
	}

	txErrTests := []struct {
		name string
		err  error
		code dcrjson.RPCErrorCode
	}{{
		name: "duplicate",
		err: blockchain.TxRuleError{
			Err:         blockchain.ErrDuplicateTx,
			Description: "already have transaction",
		},
		code: dcrjson.ErrRPCDuplicateTx,
	}, {
		name: "already confirmed",
		err: blockchain.TxRuleError{
			Err:         blockchain.ErrTxAlreadyConfirmed,
			Description: "already confirmed",
		},
		code: dcrjson.ErrRPCDuplicateTx,
	}, {
		name: "insufficient funds",
		err: blockchain.TxRuleError{
			Err:         blockchain.ErrInsufficientFunds,
			Description: "insufficient funds",
		},
		code: dcrjson.ErrRPCMisc,
	}, {
		name: "storage failure",
		err:  errors.New("disk on fire"),
		code: dcrjson.ErrRPCInternal.Code,
	}}
	for _, test := range txErrTests {
		h.chain.mtx.Lock()
		h.chain.addTxErr = test.err
		h.chain.mtx.Unlock()
		resp := h.call(t, testAdminUser, testAdminPass, "sendrawtransaction",
			txHex)
		if resp.Error == nil || resp.Error.Code != test.code {
			t.Errorf("%s: unexpected error: %v", test.name, resp.Error)
		}
	}

	// Invalid address.
	resp = h.call(t, testAdminUser, testAdminPass, "getbalance", "notanaddress")
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCInvalidAddressOrKey {
		t.Fatalf("unexpected getbalance error: %v", resp.Error)
	}
}

// TestAuthentication ensures requests are only served for valid credentials
// and limited users are restricted to the limited command set.
func TestAuthentication(t *testing.T) {
	h := newTestHarness(t, testRewardAddr)

	body := []byte(`{"jsonrpc":"1.0","id":1,"method":"getblockcount","params":[]}`)
	if code, _ := h.post(t, "", "", body); code != http.StatusUnauthorized {
		t.Fatalf("unexpected status without credentials: %d", code)
	}
	if code, _ := h.post(t, testAdminUser, "wrong", body); code != http.StatusUnauthorized {
		t.Fatalf("unexpected status with bad credentials: %d", code)
	}

	resp := h.call(t, testLimitUser, testLimitPass, "getblockcount")
	if resp.Error != nil {
		t.Fatalf("unexpected limited getblockcount error: %v", resp.Error)
	}
	resp = h.call(t, testLimitUser, testLimitPass, "setgenerate", true)
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCInvalidParams.Code {
		t.Fatalf("unexpected limited setgenerate error: %v", resp.Error)
	}
	if h.miner.Generating() {
		t.Fatal("limited user enabled generation")
	}
}

// TestMalformedRequests ensures unknown methods, invalid parameters, and
// batched requests are handled.
func TestMalformedRequests(t *testing.T) {
	h := newTestHarness(t, testRewardAddr)

	resp := h.call(t, testAdminUser, testAdminPass, "nosuchmethod")
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCMethodNotFound.Code {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	resp = h.call(t, testAdminUser, testAdminPass, "generate", "notanumber")
	if resp.Error == nil || resp.Error.Code != dcrjson.ErrRPCInvalidParameter {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	code, body := h.post(t, testAdminUser, testAdminPass, []byte("{"))
	if code != http.StatusOK {
		t.Fatalf("unexpected status: %d", code)
	}
	var parseResp rpcResponse
	if err := json.Unmarshal(body, &parseResp); err != nil {
		t.Fatalf("unable to unmarshal %q: %v", body, err)
	}
	if parseResp.Error == nil || parseResp.Error.Code != dcrjson.ErrRPCParse.Code {
		t.Fatalf("unexpected error: %v", parseResp.Error)
	}

	batch := []byte(`[` +
		`{"jsonrpc":"2.0","id":1,"method":"getblockcount","params":[]},` +
		`{"jsonrpc":"2.0","method":"getblockcount","params":[]},` +
		`{"jsonrpc":"2.0","id":2,"method":"getgenerate","params":[]}]`)
	code, body = h.post(t, testAdminUser, testAdminPass, batch)
	if code != http.StatusOK {
		t.Fatalf("unexpected status: %d", code)
	}
	var batchResp []rpcResponse
	if err := json.Unmarshal(body, &batchResp); err != nil {
		t.Fatalf("unable to unmarshal %q: %v", body, err)
	}
	// The request without an id is a notification and gets no reply.
	if len(batchResp) != 2 {
		t.Fatalf("unexpected number of batch replies: %d", len(batchResp))
	}
	if string(batchResp[0].Result) != "0" || string(batchResp[1].Result) != "false" {
		t.Fatalf("unexpected batch replies: %s", spew.Sdump(batchResp))
	}
}
