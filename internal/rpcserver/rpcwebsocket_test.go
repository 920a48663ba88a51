// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/dcrjson/v4"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/gorilla/websocket"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/rpc/jsonrpc/types"
)

// dialWebsocket connects to the websocket endpoint of the harness using the
// provided credentials in the HTTP basic access authentication header.
func dialWebsocket(t *testing.T, h *testHarness, user, pass string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	header := make(http.Header)
	if user != "" {
		login := user + ":" + pass
		auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
		header.Set("Authorization", auth)
	}
	dialer := websocket.Dialer{HandshakeTimeout: waitTimeout}
	conn, resp, err := dialer.Dial("ws://"+h.addr+"/ws", header)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// wsCall writes a request on the websocket and reads the matching reply.
func wsCall(t *testing.T, conn *websocket.Conn, id int, method string, params ...interface{}) *rpcResponse {
	t.Helper()

	if params == nil {
		params = []interface{}{}
	}
	err := conn.WriteJSON(&rpcRequest{
		Jsonrpc: "1.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		t.Fatalf("%s: unable to write request: %v", method, err)
	}

	var resp rpcResponse
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("%s: unable to read reply: %v", method, err)
	}
	if gotID, ok := resp.ID.(float64); !ok || int(gotID) != id {
		t.Fatalf("%s: unexpected reply id %v", method, resp.ID)
	}
	return &resp
}

// readNotification reads the next message from the websocket and parses it
// as a notification.
func readNotification(t *testing.T, conn *websocket.Conn) interface{} {
	t.Helper()

	var req dcrjson.Request
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	if err := conn.ReadJSON(&req); err != nil {
		t.Fatalf("unable to read notification: %v", err)
	}
	if req.ID != nil {
		t.Fatalf("notification %q has id %v", req.Method, req.ID)
	}
	ntfn, err := dcrjson.ParseParams(types.Method(req.Method), req.Params)
	if err != nil {
		t.Fatalf("unable to parse notification %q: %v", req.Method, err)
	}
	return ntfn
}

// TestWebsocketNotifications ensures registered websocket clients receive the
// chain, mining, and balance events published on the bus.
func TestWebsocketNotifications(t *testing.T) {
	h := newTestHarness(t, testRewardAddr)

	conn, _, err := dialWebsocket(t, h, testAdminUser, testAdminPass)
	if err != nil {
		t.Fatalf("unable to dial websocket: %v", err)
	}

	// Standard commands are served over the websocket too.
	resp := wsCall(t, conn, 1, "getblockcount")
	if resp.Error != nil || string(resp.Result) != "0" {
		t.Fatalf("unexpected getblockcount reply: %s %v", resp.Result,
			resp.Error)
	}

	resp = wsCall(t, conn, 2, "session")
	var session chainjson.SessionResult
	if err := json.Unmarshal(resp.Result, &session); err != nil {
		t.Fatalf("unable to unmarshal session %s: %v", resp.Result, err)
	}

	// The registrations are processed by the notification handler before
	// their replies are sent, so every later event is delivered.
	for i, method := range []string{"notifyblocks", "notifybalance"} {
		resp := wsCall(t, conn, 3+i, method)
		if resp.Error != nil {
			t.Fatalf("%s: unexpected error: %v", method, resp.Error)
		}
	}

	block := testBlock()
	serializedBlock, err := block.Bytes()
	if err != nil {
		t.Fatalf("unable to serialize block: %v", err)
	}
	h.bus.Publish(eventbus.TopicBlockAdded, block)
	want := interface{}(types.NewBlockAddedNtfn(block.Hash.String(), 1,
		hex.EncodeToString(serializedBlock)))
	if got := readNotification(t, conn); !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched notification - got %s, want %s",
			spew.Sdump(got), spew.Sdump(want))
	}

	h.bus.Publish(eventbus.TopicBlockAddedByMe, block)
	want = types.NewBlockAddedByMeNtfn(block.Hash.String(), 1,
		testRewardAddr, block.Nonce)
	if got := readNotification(t, conn); !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched notification - got %s, want %s",
			spew.Sdump(got), spew.Sdump(want))
	}

	h.bus.Publish(eventbus.TopicBalanceUpdated, eventbus.BalanceUpdate{
		Address: testRewardAddr,
		Balance: 250 * 1e8,
	})
	want = types.NewBalanceUpdatedNtfn(testRewardAddr, 250)
	if got := readNotification(t, conn); !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatched notification - got %s, want %s",
			spew.Sdump(got), spew.Sdump(want))
	}

	// After unregistering only the reply to the final request arrives.
	resp = wsCall(t, conn, 10, "stopnotifyblocks")
	if resp.Error != nil {
		t.Fatalf("unexpected stopnotifyblocks error: %v", resp.Error)
	}
	h.bus.Publish(eventbus.TopicBlockAdded, block)
	resp = wsCall(t, conn, 11, "getgenerate")
	if resp.Error != nil || string(resp.Result) != "false" {
		t.Fatalf("unexpected getgenerate reply: %s %v", resp.Result,
			resp.Error)
	}
}

// TestWebsocketAuthentication ensures websocket clients either authenticate
// with the HTTP header or with an initial authenticate request.
func TestWebsocketAuthentication(t *testing.T) {
	h := newTestHarness(t, testRewardAddr)

	_, resp, err := dialWebsocket(t, h, testAdminUser, "wrong")
	if err == nil {
		t.Fatal("dial with bad credentials succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected response to bad credentials: %v", resp)
	}

	conn, _, err := dialWebsocket(t, h, "", "")
	if err != nil {
		t.Fatalf("unable to dial websocket: %v", err)
	}
	resp2 := wsCall(t, conn, 1, "authenticate", testLimitUser, testLimitPass)
	if resp2.Error != nil {
		t.Fatalf("unexpected authenticate error: %v", resp2.Error)
	}

	// The limited user may query but not control the miner.
	resp2 = wsCall(t, conn, 2, "getblockcount")
	if resp2.Error != nil {
		t.Fatalf("unexpected getblockcount error: %v", resp2.Error)
	}
	resp2 = wsCall(t, conn, 3, "setgenerate", true)
	if resp2.Error == nil || resp2.Error.Code != dcrjson.ErrRPCInvalidParams.Code {
		t.Fatalf("unexpected setgenerate error: %v", resp2.Error)
	}
	if h.miner.Generating() {
		t.Fatal("limited user enabled generation")
	}
}
