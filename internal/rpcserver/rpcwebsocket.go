// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/dcrjson/v4"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
	"github.com/gorilla/websocket"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/rpc/jsonrpc/types"
)

const (
	// websocketSendBufferSize is the number of elements the send channel
	// can queue before blocking.  Note that this only applies to requests
	// handled directly in the websocket client input handler since
	// notifications have their own queuing mechanism independent of the
	// send channel buffer.
	websocketSendBufferSize = 50

	// websocketReadLimitUnauthenticated is the maximum number of bytes allowed
	// for an unauthenticated JSON-RPC message read from a websocket client.
	websocketReadLimitUnauthenticated = 1 << 12 // 4 KiB

	// websocketReadLimitAuthenticated is the maximum number of bytes allowed
	// for an authenticated JSON-RPC message read from a websocket client.
	websocketReadLimitAuthenticated = 1 << 24 // 16 MiB

	// websocketPongTimeout is the maximum amount of time attempts to respond to
	// websocket ping messages with a pong will wait before giving up.
	websocketPongTimeout = time.Second * 5

	// busNotificationBuffer is the number of bus events of each topic that
	// may be pending before the bus starts dropping them.
	busNotificationBuffer = 100
)

type semaphore chan struct{}

func makeSemaphore(n int) semaphore {
	return make(chan struct{}, n)
}

func (s semaphore) acquire() { s <- struct{}{} }
func (s semaphore) release() { <-s }

// wsCommandHandler describes a callback function used to handle a specific
// command.
type wsCommandHandler func(context.Context, *wsClient, interface{}) (interface{}, error)

// wsHandlers maps RPC command strings to appropriate websocket handler
// functions.  This is set by init because help references wsHandlers and thus
// causes a dependency loop.
var wsHandlers map[types.Method]wsCommandHandler
var wsHandlersBeforeInit = map[types.Method]wsCommandHandler{
	"notifyblocks":      handleNotifyBlocks,
	"notifybalance":     handleNotifyBalance,
	"session":           handleSession,
	"stopnotifyblocks":  handleStopNotifyBlocks,
	"stopnotifybalance": handleStopNotifyBalance,
}

// WebsocketHandler handles a new websocket client by creating a new wsClient,
// starting it, and blocking until the connection closes.  Since it blocks, it
// must be run in a separate goroutine.  It should be invoked from the websocket
// server handler which runs each new connection in a new goroutine thereby
// satisfying the requirement.
func (s *Server) WebsocketHandler(ctx context.Context, conn *websocket.Conn, remoteAddr string, authenticated bool, isAdmin bool) {
	// Clear the read deadline that was set before the websocket hijacked
	// the connection.
	conn.SetReadDeadline(timeZeroVal)

	// Limit max number of websocket clients.
	log.Infof("New websocket client %s", remoteAddr)
	if s.ntfnMgr.NumClients()+1 > s.cfg.RPCMaxWebsockets {
		log.Infof("Max websocket clients exceeded [%d] - "+
			"disconnecting client %s", s.cfg.RPCMaxWebsockets,
			remoteAddr)
		conn.Close()
		return
	}

	// Create a new websocket client to handle the new websocket connection
	// and wait for it to shutdown.  Once it has shutdown (and hence
	// disconnected), remove it and any notifications it registered for.
	client := newWebsocketClient(s, conn, remoteAddr, authenticated, isAdmin)
	s.ntfnMgr.AddClient(client)
	client.Run(ctx)
	s.ntfnMgr.RemoveClient(client)
	log.Infof("Disconnected websocket client %s", remoteAddr)
}

// wsNotificationManager is a connection and notification manager used for
// websockets.  It relays the events published on the bus to the websocket
// clients that registered for them and keeps track of all connected websocket
// clients.
type wsNotificationManager struct {
	// server is the RPC server the notification manager is associated with.
	server *Server

	// controlMsgs feeds notificationHandler with client (un)registration
	// requests.
	controlMsgs chan interface{}

	// Access channel for current number of connected clients.
	numClients chan int

	// The following fields are used for lifecycle management of the
	// notification manager.
	wg   sync.WaitGroup
	quit chan struct{}
}

// Notification control requests
type notificationRegisterClient wsClient
type notificationUnregisterClient wsClient
type notificationRegisterBlocks wsClient
type notificationUnregisterBlocks wsClient
type notificationRegisterBalance wsClient
type notificationUnregisterBalance wsClient

// notificationHandler reads bus events and control messages and processes one
// at a time.
func (m *wsNotificationManager) notificationHandler(ctx context.Context, blockSub, minedSub, balanceSub *eventbus.Subscription) {
	// clients is a map of all currently connected websocket clients.
	clients := make(map[chan struct{}]*wsClient)

	// Maps used to hold lists of websocket clients to be notified on
	// certain events.  The quit channel is used as the unique id for a
	// client since it is quite a bit more efficient than using the entire
	// struct.
	blockNotifications := make(map[chan struct{}]*wsClient)
	balanceNotifications := make(map[chan struct{}]*wsClient)

out:
	for {
		select {
		case <-ctx.Done():
			// RPC server shutdown.
			break out

		case n := <-blockSub.C():
			if block, ok := n.(*blockchain.Block); ok {
				m.notifyBlockAdded(blockNotifications, block)
			}

		case n := <-minedSub.C():
			if block, ok := n.(*blockchain.Block); ok {
				m.notifyBlockAddedByMe(blockNotifications, block)
			}

		case n := <-balanceSub.C():
			if update, ok := n.(eventbus.BalanceUpdate); ok {
				m.notifyBalanceUpdated(balanceNotifications, &update)
			}

		case n := <-m.controlMsgs:
			switch n := n.(type) {
			case *notificationRegisterBlocks:
				wsc := (*wsClient)(n)
				blockNotifications[wsc.quit] = wsc

			case *notificationUnregisterBlocks:
				wsc := (*wsClient)(n)
				delete(blockNotifications, wsc.quit)

			case *notificationRegisterBalance:
				wsc := (*wsClient)(n)
				balanceNotifications[wsc.quit] = wsc

			case *notificationUnregisterBalance:
				wsc := (*wsClient)(n)
				delete(balanceNotifications, wsc.quit)

			case *notificationRegisterClient:
				wsc := (*wsClient)(n)
				clients[wsc.quit] = wsc

			case *notificationUnregisterClient:
				wsc := (*wsClient)(n)
				// Remove any requests made by the client as well as
				// the client itself.
				delete(blockNotifications, wsc.quit)
				delete(balanceNotifications, wsc.quit)
				delete(clients, wsc.quit)

			default:
				log.Warnf("Unhandled notification type: %T", n)
			}

		case m.numClients <- len(clients):
		}
	}

	for _, c := range clients {
		c.Disconnect()
	}
	m.wg.Done()
}

// queueToClients marshals the notification and queues it to every client in
// the passed map.
func queueToClients(clients map[chan struct{}]*wsClient, ntfn interface{}) {
	if len(clients) == 0 {
		return
	}
	marshalledJSON, err := dcrjson.MarshalCmd("1.0", nil, ntfn)
	if err != nil {
		log.Errorf("Failed to marshal %T notification: %v", ntfn, err)
		return
	}
	for _, client := range clients {
		client.QueueNotification(marshalledJSON)
	}
}

// notifyBlockAdded notifies websocket clients that have registered for block
// updates when a block is appended to the chain.
func (m *wsNotificationManager) notifyBlockAdded(clients map[chan struct{}]*wsClient, block *blockchain.Block) {
	// Skip notification creation if no clients have requested block
	// notifications.
	if len(clients) == 0 {
		return
	}

	serialized, err := block.Bytes()
	if err != nil {
		log.Errorf("Failed to serialize block %s: %v", block.Hash, err)
		return
	}
	ntfn := types.NewBlockAddedNtfn(block.Hash.String(), block.Index,
		hex.EncodeToString(serialized))
	queueToClients(clients, ntfn)
}

// notifyBlockAddedByMe notifies websocket clients that have registered for
// block updates when a block solved by the local miner is appended.
func (m *wsNotificationManager) notifyBlockAddedByMe(clients map[chan struct{}]*wsClient, block *blockchain.Block) {
	ntfn := types.NewBlockAddedByMeNtfn(block.Hash.String(), block.Index,
		block.RewardAddress, block.Nonce)
	queueToClients(clients, ntfn)
}

// notifyBalanceUpdated notifies websocket clients that have registered for
// balance updates when a locally mined block credits a mining address.
func (m *wsNotificationManager) notifyBalanceUpdated(clients map[chan struct{}]*wsClient, update *eventbus.BalanceUpdate) {
	ntfn := types.NewBalanceUpdatedNtfn(update.Address, update.Balance.ToCoin())
	queueToClients(clients, ntfn)
}

// queueControl hands the control message to the notification handler unless
// the manager has shut down.
func (m *wsNotificationManager) queueControl(msg interface{}) {
	select {
	case m.controlMsgs <- msg:
	case <-m.quit:
	}
}

// NumClients returns the number of clients actively being served.
func (m *wsNotificationManager) NumClients() int {
	var n int
	select {
	case n = <-m.numClients:
	case <-m.quit: // Use default n (0) if server has shut down.
	}
	return n
}

// RegisterBlockUpdates requests block update notifications to the passed
// websocket client.
func (m *wsNotificationManager) RegisterBlockUpdates(wsc *wsClient) {
	m.queueControl((*notificationRegisterBlocks)(wsc))
}

// UnregisterBlockUpdates removes block update notifications for the passed
// websocket client.
func (m *wsNotificationManager) UnregisterBlockUpdates(wsc *wsClient) {
	m.queueControl((*notificationUnregisterBlocks)(wsc))
}

// RegisterBalanceUpdates requests balance update notifications to the passed
// websocket client.
func (m *wsNotificationManager) RegisterBalanceUpdates(wsc *wsClient) {
	m.queueControl((*notificationRegisterBalance)(wsc))
}

// UnregisterBalanceUpdates removes balance update notifications for the
// passed websocket client.
func (m *wsNotificationManager) UnregisterBalanceUpdates(wsc *wsClient) {
	m.queueControl((*notificationUnregisterBalance)(wsc))
}

// AddClient adds the passed websocket client to the notification manager.
func (m *wsNotificationManager) AddClient(wsc *wsClient) {
	m.queueControl((*notificationRegisterClient)(wsc))
}

// RemoveClient removes the passed websocket client and all notifications
// registered for it.
func (m *wsNotificationManager) RemoveClient(wsc *wsClient) {
	m.queueControl((*notificationUnregisterClient)(wsc))
}

// Run subscribes to the bus topics relayed to websocket clients and processes
// events and client registrations.  It blocks until the provided context is
// cancelled.
func (m *wsNotificationManager) Run(ctx context.Context) {
	bus := m.server.cfg.Bus
	blockSub := bus.Subscribe(eventbus.TopicBlockAdded, busNotificationBuffer)
	minedSub := bus.Subscribe(eventbus.TopicBlockAddedByMe, busNotificationBuffer)
	balanceSub := bus.Subscribe(eventbus.TopicBalanceUpdated, busNotificationBuffer)
	defer blockSub.Stop()
	defer minedSub.Stop()
	defer balanceSub.Stop()

	m.wg.Add(2)
	go m.notificationHandler(ctx, blockSub, minedSub, balanceSub)
	go func(ctx context.Context) {
		<-ctx.Done()
		close(m.quit)
		m.wg.Done()
	}(ctx)
	m.wg.Wait()
}

// newWsNotificationManager returns a new notification manager ready for use.
// See wsNotificationManager for more details.
func newWsNotificationManager(server *Server) *wsNotificationManager {
	return &wsNotificationManager{
		server:      server,
		controlMsgs: make(chan interface{}),
		numClients:  make(chan int),
		quit:        make(chan struct{}),
	}
}

// wsResponse houses a message to send to a connected websocket client as
// well as a channel to reply on when the message is sent.
type wsResponse struct {
	msg      []byte
	doneChan chan bool
}

// wsClient provides an abstraction for handling a websocket client.  Inbound
// messages are read via the inHandler goroutine and generally dispatched to
// their own handler.  Responses to client requests use SendMessage which
// employs a buffered channel thereby limiting the number of outstanding
// requests that can be made.  Notifications are sent via QueueNotification
// which implements a queue via notificationQueueHandler to ensure sending
// notifications from other subsystems can't block.  Ultimately, all messages
// are sent via the outHandler.
type wsClient struct {
	disconnected atomic.Bool

	sync.Mutex

	// server is the RPC server that is servicing the client.
	rpcServer *Server

	// conn is the underlying websocket connection.
	conn *websocket.Conn

	// addr is the remote address of the client.
	addr string

	// authenticated specifies whether a client has been authenticated
	// and therefore is allowed to communicated over the websocket.
	authenticated bool

	// isAdmin specifies whether a client may change the state of the server;
	// false means its access is only to the limited set of RPC calls.
	isAdmin bool

	// sessionID is a random ID generated for each client when connected.
	// A change to the session ID indicates that the client reconnected.
	sessionID uint64

	// Networking infrastructure.
	serviceRequestSem semaphore
	ntfnChan          chan []byte
	sendChan          chan wsResponse
	quit              chan struct{}
	wg                sync.WaitGroup
}

// shouldLogReadError returns whether or not the passed error, which is expected
// to have come from reading from the websocket client in the inHandler, should
// be logged.
func (c *wsClient) shouldLogReadError(err error) bool {
	// No logging when the client is being forcibly disconnected from the server
	// side.
	if c.disconnected.Load() {
		return false
	}

	// No logging when the remote client has disconnected.
	if errors.Is(err, io.EOF) || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {

		return false
	}

	return true
}

// sendError marshals an error reply for the request id and sends it.
func (c *wsClient) sendError(rpcVersion string, id interface{}, jsonErr *dcrjson.RPCError) {
	reply, err := createMarshalledReply(rpcVersion, id, nil, jsonErr)
	if err != nil {
		log.Errorf("Failed to marshal reply: %v", err)
		return
	}
	c.SendMessage(reply, nil)
}

// inHandler handles all incoming messages for the websocket connection.  It
// must be run as a goroutine.
func (c *wsClient) inHandler(ctx context.Context) {
out:
	for !c.disconnected.Load() {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			// Log the error if it's not due to disconnecting.
			if c.shouldLogReadError(err) {
				log.Errorf("Websocket receive error from %s: %v", c.addr, err)
			}
			break out
		}

		var req dcrjson.Request
		err = json.Unmarshal(msg, &req)
		if err != nil {
			// only process requests from authenticated clients
			if !c.authenticated {
				break out
			}

			c.sendError("1.0", nil, &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCParse.Code,
				Message: "Failed to parse request: " + err.Error(),
			})
			continue
		}

		if req.Method == "" {
			c.sendError(req.Jsonrpc, req.ID, &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCInvalidRequest.Code,
				Message: "Invalid request: malformed",
			})
			continue
		}

		// Valid requests with no ID (notifications) must not have a response
		// per the JSON-RPC spec.
		if req.ID == nil {
			if !c.authenticated {
				break out
			}
			continue
		}

		cmd := parseCmd(&req)
		if cmd.err != nil {
			// Only process requests from authenticated clients
			if !c.authenticated {
				break out
			}

			c.sendError(cmd.jsonrpc, cmd.id, cmd.err)
			continue
		}

		log.Debugf("Received command <%s> from %s", cmd.method, c.addr)

		// Check auth.  The client is immediately disconnected if the
		// first request of an unauthenticated websocket client is not
		// the authenticate request, an authenticate request is received
		// when the client is already authenticated, or incorrect
		// authentication credentials are provided in the request.
		switch authCmd, ok := cmd.params.(*chainjson.AuthenticateCmd); {
		case c.authenticated && ok:
			log.Warnf("Websocket client %s is already authenticated",
				c.addr)
			break out
		case !c.authenticated && !ok:
			log.Warnf("Unauthenticated websocket message " +
				"received")
			break out
		case !c.authenticated:
			// Check credentials.
			c.authenticated, c.isAdmin = c.rpcServer.checkAuthUserPass(
				authCmd.Username, authCmd.Passphrase, c.addr)
			if !c.authenticated {
				break out
			}

			// Increase the read limits for authenticated connections.
			c.conn.SetReadLimit(websocketReadLimitAuthenticated)

			// Marshal and send response.
			reply, err := createMarshalledReply(cmd.jsonrpc, cmd.id, nil, nil)
			if err != nil {
				log.Errorf("Failed to marshal authenticate reply: "+
					"%v", err.Error())
				continue
			}
			c.SendMessage(reply, nil)
			continue
		}

		// Check if the client is using limited RPC credentials and
		// error when not authorized to call the supplied RPC.
		if !c.isAdmin {
			if _, ok := rpcLimited[req.Method]; !ok {
				c.sendError("", req.ID, &dcrjson.RPCError{
					Code:    dcrjson.ErrRPCInvalidParams.Code,
					Message: "limited user not authorized for this method",
				})
				continue
			}
		}

		// Asynchronously handle the request.  A semaphore is used to
		// limit the number of concurrent requests currently being
		// serviced.  If the semaphore can not be acquired, simply wait
		// until a request finished before reading the next RPC request
		// from the websocket client.
		c.serviceRequestSem.acquire()
		go func() {
			c.serviceRequest(ctx, cmd)
			c.serviceRequestSem.release()
		}()
	}

	// Ensure the connection is closed.
	c.Disconnect()
	c.wg.Done()
	log.Tracef("Websocket client input handler done for %s", c.addr)
}

// serviceRequest services a parsed RPC request by looking up and executing the
// appropriate RPC handler.  The response is marshalled and sent to the websocket
// client.
func (c *wsClient) serviceRequest(ctx context.Context, r *parsedRPCCmd) {
	var (
		result interface{}
		err    error
	)

	// Lookup the websocket extension for the command and if it doesn't
	// exist fallback to handling the command as a standard command.
	wsHandler, ok := wsHandlers[r.method]
	if ok {
		result, err = wsHandler(ctx, c, r.params)
	} else {
		result, err = c.rpcServer.standardCmdResult(ctx, r)
	}
	reply, err := createMarshalledReply(r.jsonrpc, r.id, result, err)
	if err != nil {
		log.Errorf("Failed to marshal reply for <%s> "+
			"command: %v", r.method, err)
		return
	}

	c.SendMessage(reply, nil)
}

// notificationQueueHandler handles the queuing of outgoing notifications for
// the websocket client.  This runs as a muxer for various sources of input to
// ensure that queuing up notifications to be sent will not block.  Otherwise,
// slow clients could bog down the other systems which are queuing the data.
// The data is passed on to outHandler to actually be written.  It must be run
// as a goroutine.
func (c *wsClient) notificationQueueHandler() {
	ntfnSentChan := make(chan bool, 1) // nonblocking sync

	// pendingNtfns is used as a queue for notifications that are ready to
	// be sent once there are no outstanding notifications currently being
	// sent.
	var pendingNtfns [][]byte
	waiting := false
out:
	for {
		select {
		// This channel is notified when a message is being queued to
		// be sent across the network socket.  It will either send the
		// message immediately if a send is not already in progress, or
		// queue the message to be sent once the other pending messages
		// are sent.
		case msg := <-c.ntfnChan:
			if !waiting {
				c.SendMessage(msg, ntfnSentChan)
			} else {
				pendingNtfns = append(pendingNtfns, msg)
			}
			waiting = true

		// This channel is notified when a notification has been sent
		// across the network socket.
		case <-ntfnSentChan:
			// No longer waiting if there are no more messages in
			// the pending messages queue.
			if len(pendingNtfns) == 0 {
				waiting = false
				continue
			}
			// Notify the outHandler about the next item to
			// asynchronously send.
			msg := pendingNtfns[0]
			pendingNtfns[0] = nil
			pendingNtfns = pendingNtfns[1:]
			c.SendMessage(msg, ntfnSentChan)

		case <-c.quit:
			break out
		}
	}

	c.wg.Done()
	log.Tracef("Websocket client notification queue handler done "+
		"for %s", c.addr)
}

// outHandler handles all outgoing messages for the websocket connection.  It
// uses a buffered channel to serialize output messages while allowing the
// sender to continue running asynchronously.  It must be run as a goroutine.
func (c *wsClient) outHandler() {
out:
	for {
		// Send any messages ready for send until the quit channel is
		// closed.
		select {
		case r := <-c.sendChan:
			err := c.conn.WriteMessage(websocket.TextMessage, r.msg)
			if err != nil {
				c.Disconnect()
				break out
			}
			if r.doneChan != nil {
				r.doneChan <- true
			}

		case <-c.quit:
			break out
		}
	}

	c.wg.Done()
	log.Tracef("Websocket client output handler done for %s", c.addr)
}

// SendMessage sends the passed json to the websocket client.  It is backed
// by a buffered channel, so it will not block until the send channel is full.
// Note however that QueueNotification must be used for sending async
// notifications instead of the this function.
func (c *wsClient) SendMessage(marshalledJSON []byte, doneChan chan bool) {
	// Don't send the message if disconnected.
	if c.Disconnected() {
		if doneChan != nil {
			doneChan <- false
		}
		return
	}

	// Use select statement to unblock enqueuing the message once the client has
	// begun shutting down.
	select {
	case c.sendChan <- wsResponse{msg: marshalledJSON, doneChan: doneChan}:
	case <-c.quit:
		if doneChan != nil {
			doneChan <- false
		}
	}
}

// ErrClientQuit describes the error where a client send is not processed due
// to the client having already been disconnected or dropped.
var ErrClientQuit = errors.New("client quit")

// QueueNotification queues the passed notification to be sent to the websocket
// client.  This function, as the name implies, is only intended for
// notifications since it has additional logic to prevent other subsystems from
// blocking even when the send channel is full.
//
// If the client is in the process of shutting down, this function returns
// ErrClientQuit.
func (c *wsClient) QueueNotification(marshalledJSON []byte) error {
	// Don't queue the message if disconnected.
	if c.Disconnected() {
		return ErrClientQuit
	}

	select {
	case c.ntfnChan <- marshalledJSON:
	case <-c.quit:
		return ErrClientQuit
	}

	return nil
}

// Disconnected returns whether or not the websocket client is disconnected.
func (c *wsClient) Disconnected() bool {
	return c.disconnected.Load()
}

// Disconnect disconnects the websocket client.
func (c *wsClient) Disconnect() {
	// Nothing to do if already disconnected.
	if !c.disconnected.CompareAndSwap(false, true) {
		return
	}

	log.Tracef("Disconnecting websocket client %s", c.addr)
	close(c.quit)
	c.conn.Close()
}

// Run starts the websocket client and all other goroutines necessary for it to
// function properly and blocks until the provided context is cancelled.
func (c *wsClient) Run(ctx context.Context) {
	log.Tracef("Starting websocket client %s", c.addr)

	// Start processing input and output.
	c.wg.Add(3)
	go c.inHandler(ctx)
	go c.notificationQueueHandler()
	go c.outHandler()

	// Forcibly disconnect the websocket client when the context is cancelled
	// which also closes the quit channel and thus ensures all of the above
	// goroutines are shutdown.
	c.wg.Add(1)
	go func(ctx context.Context) {
		select {
		case <-ctx.Done():
			c.Disconnect()
		case <-c.quit:
		}
		c.wg.Done()
	}(ctx)

	c.wg.Wait()
}

// newWebsocketClient returns a new websocket client given the notification
// manager, websocket connection, remote address, and whether or not the client
// has already been authenticated (via HTTP Basic access authentication).  The
// returned client is ready to start.
func newWebsocketClient(server *Server, conn *websocket.Conn,
	remoteAddr string, authenticated bool, isAdmin bool) *wsClient {

	return &wsClient{
		conn:              conn,
		addr:              remoteAddr,
		authenticated:     authenticated,
		isAdmin:           isAdmin,
		sessionID:         rand.Uint64(),
		rpcServer:         server,
		serviceRequestSem: makeSemaphore(server.cfg.RPCMaxConcurrentReqs),
		ntfnChan:          make(chan []byte, 1), // nonblocking sync
		sendChan:          make(chan wsResponse, websocketSendBufferSize),
		quit:              make(chan struct{}),
	}
}

// handleNotifyBlocks implements the notifyblocks command extension for
// websocket connections.
func handleNotifyBlocks(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	wsc.rpcServer.ntfnMgr.RegisterBlockUpdates(wsc)
	return nil, nil
}

// handleStopNotifyBlocks implements the stopnotifyblocks command extension for
// websocket connections.
func handleStopNotifyBlocks(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	wsc.rpcServer.ntfnMgr.UnregisterBlockUpdates(wsc)
	return nil, nil
}

// handleNotifyBalance implements the notifybalance command extension for
// websocket connections.
func handleNotifyBalance(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	wsc.rpcServer.ntfnMgr.RegisterBalanceUpdates(wsc)
	return nil, nil
}

// handleStopNotifyBalance implements the stopnotifybalance command extension
// for websocket connections.
func handleStopNotifyBalance(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	wsc.rpcServer.ntfnMgr.UnregisterBalanceUpdates(wsc)
	return nil, nil
}

// handleSession implements the session command extension for websocket
// connections.
func handleSession(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	return &chainjson.SessionResult{SessionID: wsc.sessionID}, nil
}

func init() {
	wsHandlers = wsHandlersBeforeInit
}
