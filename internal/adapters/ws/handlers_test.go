package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchdesk/presence/internal/app"
	"github.com/sketchdesk/presence/internal/core"
	"github.com/sketchdesk/presence/internal/domain"
	"github.com/sketchdesk/presence/internal/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) replies(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := protocol.Decode(f)
		require.NoError(t, err)
		out = append(out, env.Type)
	}
	return out
}

func (c *fakeConn) lastError(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.frames)
	var e protocol.Error
	require.NoError(t, json.Unmarshal(c.frames[len(c.frames)-1], &e))
	require.Equal(t, protocol.TypeError, e.Type)
	return e.Error
}

type fakeOracle struct {
	rooms map[domain.RoomID]bool
}

func (o *fakeOracle) Exists(_ context.Context, id domain.RoomID) (bool, error) {
	return o.rooms[id], nil
}

type fakeChat struct {
	appends int
	fail    error
}

func (c *fakeChat) Append(context.Context, domain.RoomID, domain.UserID, string) error {
	if c.fail != nil {
		return c.fail
	}
	c.appends++
	return nil
}

func newTestController(t *testing.T, roomIDs ...domain.RoomID) (*Controller, *fakeChat) {
	t.Helper()
	oracle := &fakeOracle{rooms: make(map[domain.RoomID]bool)}
	for _, id := range roomIDs {
		oracle.rooms[id] = true
	}
	chat := &fakeChat{}
	svc := app.NewService(oracle, chat, 100, 5)
	return &Controller{Svc: svc}, chat
}

// register wires a connection straight into the service, skipping the
// transport upgrade.
func register(t *testing.T, ctl *Controller, user domain.UserID) *fakeConn {
	t.Helper()
	c := &fakeConn{}
	require.NoError(t, ctl.Svc.Register(user, c))
	return c
}

func TestHandleFrameHealth(t *testing.T) {
	ctl, _ := newTestController(t)
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"health"}`))

	assert.Equal(t, []string{protocol.TypeHealthGood}, c.replies(t))
}

func TestHandleFrameUnknownType(t *testing.T) {
	ctl, _ := newTestController(t)
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"teleport"}`))

	assert.Equal(t, "unknown message type", c.lastError(t))
}

func TestHandleFrameMalformed(t *testing.T) {
	ctl, _ := newTestController(t)
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{{{`))

	// The connection answers and stays usable.
	assert.Equal(t, "invalid message", c.lastError(t))
	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"health"}`))
	assert.Contains(t, c.replies(t), protocol.TypeHealthGood)
}

func TestHandleJoinSuccess(t *testing.T) {
	ctl, _ := newTestController(t, "r1")
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"join-room","roomId":"r1"}`))

	require.Equal(t, []string{protocol.TypeRoomJoined}, c.replies(t))
	var joined protocol.RoomJoined
	require.NoError(t, json.Unmarshal(c.frames[0], &joined))
	assert.Equal(t, domain.RoomID("r1"), joined.RoomID)
	assert.Equal(t, 1, joined.UserCount)
}

func TestHandleJoinRoomNotFound(t *testing.T) {
	ctl, _ := newTestController(t)
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"join-room","roomId":"ghost"}`))

	assert.Equal(t, "room not found", c.lastError(t))
	// The connection stays idle: a later join can still succeed.
	_, err := ctl.Svc.Leave("u1")
	assert.ErrorIs(t, err, app.ErrNotInRoom)
}

func TestHandleJoinRoomFull(t *testing.T) {
	ctl, _ := newTestController(t, "r1")
	for _, uid := range []domain.UserID{"a", "b", "c", "d", "e"} {
		c := register(t, ctl, uid)
		ctl.handleFrame(context.Background(), uid, c, []byte(`{"type":"join-room","roomId":"r1"}`))
	}
	c := register(t, ctl, "u6")

	ctl.handleFrame(context.Background(), "u6", c, []byte(`{"type":"join-room","roomId":"r1"}`))

	assert.Equal(t, "room is full", c.lastError(t))
}

func TestHandleJoinMissingRoomID(t *testing.T) {
	ctl, _ := newTestController(t, "r1")
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"join-room"}`))

	assert.Equal(t, "invalid message", c.lastError(t))
}

func TestHandleLeave(t *testing.T) {
	ctl, _ := newTestController(t, "r1")
	c := register(t, ctl, "u1")
	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"join-room","roomId":"r1"}`))

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"leave-room"}`))

	assert.Equal(t, []string{protocol.TypeRoomJoined, protocol.TypeRoomLeft}, c.replies(t))
}

func TestHandleLeaveWhenIdle(t *testing.T) {
	ctl, _ := newTestController(t)
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"leave-room"}`))

	assert.Equal(t, "not in a room", c.lastError(t))
}

func TestHandleChatWhenIdle(t *testing.T) {
	ctl, chat := newTestController(t, "r1")
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"chat","message":"hi"}`))

	// Exactly one error reply and no persistence call.
	assert.Equal(t, []string{protocol.TypeError}, c.replies(t))
	assert.Equal(t, "not in a room", c.lastError(t))
	assert.Zero(t, chat.appends)
}

func TestHandleChatPersistFailure(t *testing.T) {
	ctl, chat := newTestController(t, "r1")
	chat.fail = errors.New("disk full")
	c := register(t, ctl, "u1")
	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"join-room","roomId":"r1"}`))

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"chat","message":"hi"}`))

	assert.Equal(t, "failed to save message", c.lastError(t))
}

func TestHandleChatBroadcast(t *testing.T) {
	ctl, chat := newTestController(t, "r1")
	sender := register(t, ctl, "u1")
	mate := register(t, ctl, "u2")
	ctl.handleFrame(context.Background(), "u1", sender, []byte(`{"type":"join-room","roomId":"r1"}`))
	ctl.handleFrame(context.Background(), "u2", mate, []byte(`{"type":"join-room","roomId":"r1"}`))

	ctl.handleFrame(context.Background(), "u1", sender, []byte(`{"type":"chat","message":"hi"}`))

	assert.Equal(t, 1, chat.appends)
	assert.Contains(t, sender.replies(t), protocol.TypeChat)
	assert.Contains(t, mate.replies(t), protocol.TypeChat)
}

func TestHandleCursorWhenIdleIsSilent(t *testing.T) {
	ctl, _ := newTestController(t, "r1")
	c := register(t, ctl, "u1")

	ctl.handleFrame(context.Background(), "u1", c, []byte(`{"type":"cursor-move","position":{"x":1,"y":2}}`))

	// Asymmetric with chat: no error reply at all.
	assert.Empty(t, c.replies(t))
}

func TestHandleCursorBroadcast(t *testing.T) {
	ctl, _ := newTestController(t, "r1")
	sender := register(t, ctl, "u1")
	mate := register(t, ctl, "u2")
	ctl.handleFrame(context.Background(), "u1", sender, []byte(`{"type":"join-room","roomId":"r1"}`))
	ctl.handleFrame(context.Background(), "u2", mate, []byte(`{"type":"join-room","roomId":"r1"}`))

	ctl.handleFrame(context.Background(), "u1", sender, []byte(`{"type":"cursor-move","position":{"x":1,"y":2}}`))

	assert.NotContains(t, sender.replies(t), protocol.TypeCursorMove)
	assert.Contains(t, mate.replies(t), protocol.TypeCursorMove)
}
