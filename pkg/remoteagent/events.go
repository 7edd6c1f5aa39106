// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remoteagent

import (
	"sync"
	"time"
)

// State is the connection state of a Connector.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFallback     State = "fallback"
)

// EventType names a connector event.
type EventType string

const (
	EventStateChanged       EventType = "state_changed"
	EventReconnectScheduled EventType = "reconnect_scheduled"
	EventTokenUpdate        EventType = "token_update"
	EventFallback           EventType = "fallback"
)

// Event is delivered to listeners. Only the fields relevant to Type are set.
type Event struct {
	Type     EventType
	State    State
	Previous State

	// Attempt and Delay describe a scheduled reconnect.
	Attempt int
	Delay   time.Duration

	Operation string
	Tokens    int64
	Reason    string
}

// Listener receives connector events. Listeners run on the goroutine that
// raised the event and must not block.
type Listener func(Event)

// ListenerID identifies a registered listener for Off.
type ListenerID uint64

type listenerEntry struct {
	id  ListenerID
	typ EventType
	fn  Listener
}

type emitter struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners []listenerEntry
}

func (e *emitter) on(typ EventType, fn Listener) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.listeners = append(e.listeners, listenerEntry{id: e.nextID, typ: typ, fn: fn})
	return e.nextID
}

func (e *emitter) off(id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	var fns []Listener
	for _, l := range e.listeners {
		if l.typ == ev.Type {
			fns = append(fns, l.fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
