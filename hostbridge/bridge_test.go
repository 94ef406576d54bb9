// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hostbridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gridedit"
	"github.com/gogpu/gridedit/grid"
)

func testContext() *grid.Context {
	return &grid.Context{
		SourceCRS:   "EPSG:4326",
		TargetCRS:   "EPSG:4326",
		BoundingBox: grid.BoundingBox{MinX: 114.0, MinY: 22.2, MaxX: 114.4, MaxY: 22.6},
		Rules:       [][2]uint32{{2, 2}},
		MaxGridNum:  64,
	}
}

type staticSource struct {
	keys []grid.CellKey
	err  error
}

func (s staticSource) PickFeature(context.Context, string) ([]grid.CellKey, error) {
	return s.keys, s.err
}

// testClient is a host connected to a bridge over a real WebSocket.
type testClient struct {
	t        *testing.T
	ws       *websocket.Conn
	nextID   uint64
	repaints int
	notices  []string
}

func newTestEnv(t *testing.T, opts ...gridedit.Option) (*testClient, *Bridge) {
	t.Helper()
	b := New()
	e, err := gridedit.NewEngine(append(opts, gridedit.WithHost(b), gridedit.WithNotifier(b))...)
	require.NoError(t, err)
	b.Attach(e)

	srv := httptest.NewServer(b)
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ws.Close()
		srv.Close()
		e.Close()
	})
	return &testClient{t: t, ws: ws}, b
}

// do sends cmd and waits for its result, counting the events pushed in
// between.
func (c *testClient) do(cmd Command) Event {
	c.t.Helper()
	c.nextID++
	cmd.ID = c.nextID
	data, err := json.Marshal(cmd)
	require.NoError(c.t, err)
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, data))

	for {
		require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, msg, err := c.ws.ReadMessage()
		require.NoError(c.t, err)
		var ev Event
		require.NoError(c.t, json.Unmarshal(msg, &ev))
		switch ev.Type {
		case EventRepaint:
			c.repaints++
		case EventNotify:
			c.notices = append(c.notices, ev.Error)
		case EventResult:
			if ev.ID == cmd.ID {
				return ev
			}
		}
	}
}

func TestBridgeTopology(t *testing.T) {
	c, _ := newTestEnv(t)

	res := c.do(Command{Type: CmdLoad, Context: testContext()})
	require.Empty(t, res.Error)
	require.NotNil(t, res.Status)
	require.True(t, res.Status.Loaded)
	require.Equal(t, 4, res.Status.LiveGridCount)
	require.Equal(t, 64, res.Status.MaxGridNum)

	res = c.do(Command{Type: CmdSelect, IDs: []uint32{0}, Add: true})
	require.Empty(t, res.Error)

	res = c.do(Command{Type: CmdSubdivide})
	require.Empty(t, res.Error)
	require.Equal(t, []uint32{3, 4, 5, 6}, res.IDs)

	res = c.do(Command{Type: CmdStatus})
	require.Equal(t, 7, res.Status.LiveGridCount)
	require.Equal(t, "selecting", res.Status.State)

	res = c.do(Command{Type: CmdMerge})
	require.Empty(t, res.Error)
	require.Equal(t, []uint32{3}, res.IDs)

	res = c.do(Command{Type: CmdSave})
	require.Empty(t, res.Error)
	require.NotNil(t, res.Snapshot)
	require.Equal(t, 4, res.Snapshot.Len())

	require.Positive(t, c.repaints, "edits push repaint events")
}

func TestBridgeErrors(t *testing.T) {
	c, _ := newTestEnv(t)

	res := c.do(Command{Type: CmdSubdivide})
	require.Contains(t, res.Error, gridedit.ErrEngineNotInitialized.Error())

	res = c.do(Command{Type: "teleport"})
	require.Contains(t, res.Error, "unknown command")

	res = c.do(Command{Type: CmdLoad})
	require.Contains(t, res.Error, "missing context")

	c.do(Command{Type: CmdLoad, Context: testContext()})
	res = c.do(Command{Type: CmdPickBox})
	require.Equal(t, errMissingView.Error(), res.Error)
}

func TestBridgePickFeature(t *testing.T) {
	c, _ := newTestEnv(t, gridedit.WithFeatureSource(staticSource{
		keys: []grid.CellKey{{Level: 0, GlobalID: 2}},
	}))
	c.do(Command{Type: CmdLoad, Context: testContext()})

	res := c.do(Command{Type: CmdPickFeature, Path: "f", Add: true})
	require.Empty(t, res.Error)
	require.Equal(t, []uint32{2}, res.IDs)
}

func TestBridgePickFeatureFailureNotifies(t *testing.T) {
	c, _ := newTestEnv(t, gridedit.WithFeatureSource(staticSource{err: errors.New("no such file")}))
	c.do(Command{Type: CmdLoad, Context: testContext()})

	res := c.do(Command{Type: CmdPickFeature, Path: "f", Add: true})
	require.Empty(t, res.Error)
	require.Empty(t, res.IDs)
	require.Len(t, c.notices, 1)
	require.Contains(t, c.notices[0], "no such file")
}

func TestExecuteWithoutEngine(t *testing.T) {
	b := New()
	res := b.Execute(Command{ID: 7, Type: CmdStatus})
	require.Equal(t, uint64(7), res.ID)
	require.Equal(t, errNoEngine.Error(), res.Error)
}
