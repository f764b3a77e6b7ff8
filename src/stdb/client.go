/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stdb is a minimal client for the database's JSON subscription protocol. It
// keeps the subscribed tables in a local Cache and reports protocol events to a Handler.
package stdb

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/errs"
	"github.com/BitCraftToolBox/automata/src/rowset"
	"github.com/BitCraftToolBox/automata/src/sats"
)

const (
	DEFAULT_HANDSHAKE_TIMEOUT = 30 * time.Second
	closeGracePeriod          = 5 * time.Second
)

// Handler receives protocol events. Calls are made from the client's read loop, one
// at a time.
type Handler interface {
	// OnConnect is called once the server has sent the connection's identity.
	OnConnect(identity string)
	// OnConnectError is called when the connection closes before OnConnect.
	OnConnectError(err error)
	// OnApplied is called once the initial rows of the subscription are cached.
	OnApplied()
	OnSubscriptionError(err error)
	// OnDisconnect is called when the connection closes after OnConnect. err is nil
	// when the close was requested through Disconnect.
	OnDisconnect(err error)
}

type Config struct {
	Host             string
	Module           string
	Token            string
	Insecure         bool
	HandshakeTimeout time.Duration
}

// SubscribeURL builds the websocket endpoint for a module.
func SubscribeURL(host string, module string, insecure bool, connectionID uuid.UUID) string {
	scheme := "wss"
	if insecure {
		scheme = "ws"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   fmt.Sprintf("/v1/database/%s/subscribe", module),
		RawQuery: url.Values{
			"compression":   []string{"None"},
			"connection_id": []string{hex.EncodeToString(connectionID[:])},
		}.Encode(),
	}
	return u.String()
}

type Client struct {
	config       Config
	connectionID uuid.UUID
	cache        *Cache

	conn      *websocket.Conn
	writeMu   sync.Mutex
	wg        conc.WaitGroup
	closing   atomic.Bool
	connected atomic.Bool
	applied   atomic.Bool
	done      chan struct{}
}

var _ rowset.Source = (*Client)(nil)

func NewClient(config Config, typespace *sats.Typespace, bindings []TableBinding) *Client {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DEFAULT_HANDSHAKE_TIMEOUT
	}
	return &Client{
		config:       config,
		connectionID: uuid.New(),
		cache:        NewCache(typespace, bindings),
		done:         make(chan struct{}),
	}
}

// Connect opens the websocket and starts the read loop. A failed handshake is
// returned as *errs.ConnectError and no Handler method is called for it.
func (c *Client) Connect(ctx context.Context, handler Handler) error {
	endpoint := SubscribeURL(c.config.Host, c.config.Module, c.config.Insecure, c.connectionID)
	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.HandshakeTimeout,
		Subprotocols:     []string{SUBPROTOCOL},
	}

	log.Infof("connecting to %s (connection id %s, authenticated: %v)", endpoint, c.connectionID, c.config.Token != "")
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return errs.NewConnectError(describeHandshakeFailure(err, resp))
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if conn.Subprotocol() != SUBPROTOCOL {
		conn.Close()
		return errs.NewConnectError(fmt.Errorf("server did not accept subprotocol %s", SUBPROTOCOL))
	}
	c.conn = conn
	c.wg.Go(func() {
		defer close(c.done)
		c.readLoop(handler)
	})
	return nil
}

// Subscribe registers all queries in one request.
func (c *Client) Subscribe(queries []string) error {
	msg := subscribeMessage{Subscribe: subscribeBody{QueryStrings: queries, RequestID: SUBSCRIBE_REQUEST_ID}}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode subscribe message: %w", err)
	}
	log.Infof("subscribing to %d queries", len(queries))
	log.Debugf("subscription queries: %v", queries)
	return c.write(websocket.TextMessage, data)
}

// RowsFor serves the cached rows of a subscribed table.
func (c *Client) RowsFor(key string) (rowset.RowSet, error) {
	return c.cache.RowsFor(key)
}

// Disconnect closes the connection normally and waits for the read loop to exit.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	if !c.closing.CompareAndSwap(false, true) {
		<-c.done
		return nil
	}
	log.Info("closing connection")
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.write(websocket.CloseMessage, closeMsg)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Warnf("sending close frame: %v", err)
	}
	select {
	case <-c.done:
	case <-time.After(closeGracePeriod):
		log.Warnf("server did not acknowledge close within %s", closeGracePeriod)
	}
	closeErr := c.conn.Close()
	if recovered := c.wg.WaitAndRecover(); recovered != nil {
		return fmt.Errorf("read loop panicked: %v", recovered.Value)
	}
	if closeErr != nil && !isClosedConnError(closeErr) {
		return closeErr
	}
	return nil
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) readLoop(handler Handler) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.finish(handler, err)
			return
		}
		if err := c.dispatch(handler, data); err != nil {
			log.Errorf("protocol error: %v", err)
			c.closing.Store(true)
			c.conn.Close()
			c.finish(handler, err)
			return
		}
	}
}

func (c *Client) finish(handler Handler, err error) {
	if c.closing.Load() && (errs.IsClean(err) || isClosedConnError(err)) {
		err = nil
	}
	if err != nil {
		log.Infof("connection closed: %v", err)
	}
	if !c.connected.Load() {
		if err == nil {
			err = &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		handler.OnConnectError(err)
		return
	}
	handler.OnDisconnect(err)
}

func (c *Client) dispatch(handler Handler, data []byte) error {
	tag, body, err := splitServerMessage(data)
	if err != nil {
		return err
	}
	switch tag {
	case IDENTITY_TOKEN:
		var msg identityToken
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", tag, err)
		}
		if c.connected.Swap(true) {
			log.Warnf("ignoring repeated %s", tag)
			return nil
		}
		handler.OnConnect(identityString(msg.Identity))
	case INITIAL_SUBSCRIPTION:
		var msg initialSubscription
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", tag, err)
		}
		if err := c.cache.applyDatabaseUpdate(msg.DatabaseUpdate); err != nil {
			return fmt.Errorf("apply %s: %w", tag, err)
		}
		if c.applied.Swap(true) {
			log.Warnf("ignoring repeated %s", tag)
			return nil
		}
		log.Infof("initial subscription applied for %d tables", len(msg.DatabaseUpdate.Tables))
		handler.OnApplied()
	case SUBSCRIPTION_ERROR:
		var msg subscriptionError
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", tag, err)
		}
		table := ""
		if msg.TableID != nil {
			table = fmt.Sprintf("table_id=%d", *msg.TableID)
		}
		handler.OnSubscriptionError(errs.NewSubscriptionError(table, msg.Error))
	case TRANSACTION_UPDATE, TRANSACTION_UPDATE_LIGHT, ONE_OFF_QUERY_RESPONSE:
		log.Tracef("ignoring %s", tag)
	default:
		log.Warnf("ignoring unknown server message %q", tag)
	}
	return nil
}

func describeHandshakeFailure(err error, resp *http.Response) error {
	if resp == nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%w (status %s)", err, resp.Status)
	}
	return fmt.Errorf("%w (status %s: %s)", err, resp.Status, msg)
}

// isClosedConnError reports the read errors left after our own close: the socket
// was closed, or the server's close frame could not be echoed because ours was
// already sent.
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}
