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

package session

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/BitCraftToolBox/automata/src/errs"
	"github.com/BitCraftToolBox/automata/src/rowset"
	"github.com/BitCraftToolBox/automata/src/stdb"
)

type State int

const (
	Idle State = iota
	Connecting
	Subscribing
	Synced
	Exporting
	Disconnecting
	Terminated
)

var stateNames = []string{"idle", "connecting", "subscribing", "synced", "exporting", "disconnecting", "terminated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type EventKind int

const (
	// the subscribed rows are in the cache and can be exported
	EventSynced EventKind = iota
	// the session is over; Err is nil for a requested or clean close
	EventTerminated
)

type Event struct {
	Kind EventKind
	Err  error
}

// Transport is the connection the session drives. *stdb.Client implements it.
type Transport interface {
	Connect(ctx context.Context, handler stdb.Handler) error
	Subscribe(queries []string) error
	Disconnect() error
	rowset.Source
}

// Session runs one subscription: connect, subscribe to every query at once, report
// when the initial rows are synced and close on request. Events are delivered on a
// channel that is closed after EventTerminated.
type Session struct {
	mu        sync.Mutex
	state     State
	transport Transport
	queries   []string
	events    chan Event
	closeOnce sync.Once
}

var _ stdb.Handler = (*Session)(nil)

// Open connects the transport. A failed handshake does not fail Open; it is reported
// as EventTerminated carrying the *errs.ConnectError.
func Open(ctx context.Context, transport Transport, queries []string) *Session {
	s := &Session{
		state:     Connecting,
		transport: transport,
		queries:   queries,
		events:    make(chan Event, 4),
	}
	log.Infof("opening session for %d queries", len(queries))
	if err := transport.Connect(ctx, s); err != nil {
		s.mu.Lock()
		s.terminate(err)
		s.mu.Unlock()
	}
	return s
}

func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Source exposes the synced rows.
func (s *Session) Source() rowset.Source {
	return s.transport
}

// BeginExport marks the start of the export. The rows must have been synced.
func (s *Session) BeginExport() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Synced {
		return fmt.Errorf("cannot export while %s", s.state)
	}
	s.setState(Exporting)
	return nil
}

// Disconnect closes the connection and returns once the session has terminated. It is
// safe to call in any state, including after the session terminated on an error.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != Terminated {
		s.setState(Disconnecting)
	}
	s.mu.Unlock()

	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Disconnect()
	})

	// transports that close without reporting OnDisconnect
	s.mu.Lock()
	s.terminate(nil)
	s.mu.Unlock()
	return err
}

func (s *Session) OnConnect(identity string) {
	s.mu.Lock()
	if s.state != Connecting {
		s.mu.Unlock()
		return
	}
	log.Infof("connected as %s", identity)
	s.setState(Subscribing)
	s.mu.Unlock()

	if err := s.transport.Subscribe(s.queries); err != nil {
		s.mu.Lock()
		s.terminate(fmt.Errorf("send subscription: %w", err))
		s.mu.Unlock()
	}
}

func (s *Session) OnConnectError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminate(errs.NewConnectError(err))
}

func (s *Session) OnApplied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Subscribing {
		log.Warnf("subscription applied while %s", s.state)
		return
	}
	s.setState(Synced)
	s.events <- Event{Kind: EventSynced}
}

func (s *Session) OnSubscriptionError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminate(err)
}

func (s *Session) OnDisconnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == Disconnecting:
		s.terminate(nil)
	case errs.IsClean(err):
		log.Infof("server closed the connection while %s", s.state)
		s.terminate(nil)
	default:
		s.terminate(errs.NewUnexpectedDisconnectError(s.state.String(), err))
	}
}

// terminate moves to Terminated once and publishes the final event. Callers hold s.mu.
func (s *Session) terminate(err error) {
	if s.state == Terminated {
		return
	}
	if err != nil {
		log.Errorf("session terminated while %s: %v", s.state, err)
	}
	s.setState(Terminated)
	s.events <- Event{Kind: EventTerminated, Err: err}
	close(s.events)
}

func (s *Session) setState(next State) {
	log.Debugf("session state %s -> %s", s.state, next)
	s.state = next
}
