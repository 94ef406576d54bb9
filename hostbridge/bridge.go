// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hostbridge connects a map host to a grid engine over WebSocket.
//
// The host sends JSON commands (load a context, pick, edit the topology)
// and receives a result event per command. Repaint requests and feature
// pick failures are pushed to every connected host as they happen.
package hostbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"

	"github.com/gogpu/gridedit"
	"github.com/gogpu/gridedit/grid"
)

const writeTimeout = 10 * time.Second

// ErrUnknownCommand is reported for commands of an unknown type.
var ErrUnknownCommand = errors.New("hostbridge: unknown command")

var (
	// errNoEngine is reported for commands received before Attach.
	errNoEngine = errors.New("hostbridge: no engine attached")

	errMissingView = errors.New("hostbridge: missing view")
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger for connection diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithCheckOrigin sets the origin policy of the WebSocket upgrade. By
// default only same-origin requests are accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(b *Bridge) {
		b.upgrader.CheckOrigin = fn
	}
}

// Bridge serves the map host protocol. It implements http.Handler,
// gridedit.Host and gridedit.Notifier. Engine calls are serialised, so any
// number of hosts may be connected.
type Bridge struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	engine *gridedit.Engine

	connsMu sync.Mutex
	conns   map[*conn]struct{}
}

// conn is one host connection. Writes are serialised by mu.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

var (
	_ gridedit.Host     = (*Bridge)(nil)
	_ gridedit.Notifier = (*Bridge)(nil)
)

// New creates a bridge with no engine. Build the engine with the bridge
// as its host and notifier, then Attach it.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger: slog.New(slog.DiscardHandler),
		conns:  make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach sets the engine commands are applied to.
func (b *Bridge) Attach(e *gridedit.Engine) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engine = e
}

// TriggerRepaint implements gridedit.Host.
func (b *Bridge) TriggerRepaint() {
	b.broadcast(Event{Type: EventRepaint})
}

// Notify implements gridedit.Notifier.
func (b *Bridge) Notify(err error) {
	b.broadcast(Event{Type: EventNotify, Error: err.Error()})
}

// ServeHTTP upgrades the request and serves commands until the host
// disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("hostbridge: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &conn{ws: ws}
	b.connsMu.Lock()
	b.conns[c] = struct{}{}
	b.connsMu.Unlock()
	b.logger.Info("hostbridge: host connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		b.connsMu.Lock()
		delete(b.conns, c)
		b.connsMu.Unlock()
		ws.Close()
		b.logger.Info("hostbridge: host disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("hostbridge: read", "remote", r.RemoteAddr, "err", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			b.send(c, Event{Type: EventResult, Error: fmt.Sprintf("hostbridge: decode command: %v", err)})
			continue
		}
		if cmd.Type == CmdPickFeature {
			b.pickFeature(ctx, c, cmd)
			continue
		}
		b.send(c, b.Execute(cmd))
	}
}

// Execute applies one command to the engine and returns its result.
// Feature picks are asynchronous and not handled here.
func (b *Bridge) Execute(cmd Command) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := Event{ID: cmd.ID, Type: EventResult}
	if err := b.execute(cmd, &res); err != nil {
		res.Error = err.Error()
	}
	return res
}

func (b *Bridge) execute(cmd Command, res *Event) error {
	e := b.engine
	if e == nil {
		return errNoEngine
	}

	var err error
	switch cmd.Type {
	case CmdLoad:
		if cmd.Context == nil {
			return fmt.Errorf("%w: missing context", gridedit.ErrInvalidContext)
		}
		err = e.Load(*cmd.Context, cmd.Snapshot)
		res.Status = status(e)
	case CmdPickBrush:
		if cmd.View == nil {
			return errMissingView
		}
		var (
			id  uint32
			hit bool
		)
		id, hit, err = e.PickBrush(cmd.View.picking(), cmd.Start.picking(), cmd.Add)
		res.Hit = &hit
		if hit {
			res.IDs = []uint32{id}
		}
	case CmdPickBox:
		if cmd.View == nil {
			return errMissingView
		}
		res.IDs, err = e.PickBox(cmd.View.picking(), cmd.Start.picking(), cmd.End.picking(), cmd.Add)
	case CmdSelect:
		err = e.Select(cmd.IDs, cmd.Add)
	case CmdSelectAll:
		err = e.SelectAll()
	case CmdClearSelection:
		err = e.ClearSelection()
	case CmdSubdivide:
		res.IDs, err = e.Subdivide()
	case CmdMerge:
		res.IDs, err = e.Merge()
	case CmdDelete:
		res.IDs, err = e.Delete()
	case CmdRecover:
		res.IDs, err = e.Recover()
	case CmdCheckGrid:
		if cmd.View == nil {
			return errMissingView
		}
		res.Grid, err = e.CheckGrid(cmd.View.picking(), cmd.Start.picking())
	case CmdStatus:
		res.Status = status(e)
	case CmdSave:
		var snap grid.Snapshot
		snap, err = e.Save()
		if err == nil {
			res.Snapshot = &snap
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return err
}

// pickFeature starts a feature task and answers once it completes.
func (b *Bridge) pickFeature(ctx context.Context, c *conn, cmd Command) {
	b.mu.Lock()
	e := b.engine
	if e == nil {
		b.mu.Unlock()
		b.send(c, Event{ID: cmd.ID, Type: EventResult, Error: errNoEngine.Error()})
		return
	}
	task, err := e.PickFeature(ctx, cmd.Path)
	b.mu.Unlock()
	if err != nil {
		b.send(c, Event{ID: cmd.ID, Type: EventResult, Error: err.Error()})
		return
	}

	go func() {
		<-task.Done()
		b.mu.Lock()
		ids, err := e.ApplyFeature(task, cmd.Add)
		b.mu.Unlock()

		res := Event{ID: cmd.ID, Type: EventResult, IDs: ids}
		if err != nil {
			res.Error = err.Error()
		}
		b.send(c, res)
	}()
}

func status(e *gridedit.Engine) *Status {
	s := &Status{
		Loaded:        e.Loaded(),
		State:         e.State().String(),
		LiveGridCount: e.LiveGridCount(),
		MaxGridNum:    e.MaxGridNum(),
		HitGeneration: e.HitGeneration(),
	}
	if s.Loaded {
		s.ContextID = e.ContextID().String()
	}
	return s
}

func (b *Bridge) broadcast(ev Event) {
	b.connsMu.Lock()
	conns := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.connsMu.Unlock()

	for _, c := range conns {
		b.send(c, ev)
	}
}

func (b *Bridge) send(c *conn, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("hostbridge: encode event", "type", ev.Type, "err", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		b.logger.Debug("hostbridge: write", "type", ev.Type, "err", err)
	}
}
