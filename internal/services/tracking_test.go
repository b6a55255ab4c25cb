package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"laundry-delivery/internal/tracking"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/websocket"
)

type recordedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type recordingConn struct {
	id     string
	mu     sync.Mutex
	inbox  []recordedMessage
	closed bool
}

func newRecordingConn(id string) *recordingConn {
	return &recordingConn{id: id}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	var m recordedMessage
	if err := json.Unmarshal(message, &m); err != nil {
		return false
	}
	c.inbox = append(c.inbox, m)
	return true
}

func (c *recordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.inbox))
	for _, m := range c.inbox {
		out = append(out, m.Type)
	}
	return out
}

func (c *recordingConn) last() recordedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inbox[len(c.inbox)-1]
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// staticGate - доступ к отслеживанию задаётся списками.
type staticGate struct {
	mu       sync.Mutex
	trackers map[string]map[uint64]bool
	drivers  map[string]map[uint64]bool
}

func newStaticGate() *staticGate {
	return &staticGate{trackers: map[string]map[uint64]bool{}, drivers: map[string]map[uint64]bool{}}
}

func (g *staticGate) allowTrack(orderID string, users ...uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.trackers[orderID] == nil {
		g.trackers[orderID] = map[uint64]bool{}
	}
	for _, u := range users {
		g.trackers[orderID][u] = true
	}
}

func (g *staticGate) assignDriver(orderID string, driverID uint64, assigned bool) {
	g.allowTrack(orderID, driverID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.drivers[orderID] == nil {
		g.drivers[orderID] = map[uint64]bool{}
	}
	g.drivers[orderID][driverID] = assigned
}

func (g *staticGate) CanTrack(_ context.Context, orderID string, userID uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trackers[orderID][userID]
}

func (g *staticGate) CanDriverActAny(_ context.Context, orderID string, userID uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drivers[orderID][userID]
}

type trackingFixture struct {
	svc   *TrackingService
	hub   *websocket.Hub
	cache *tracking.LocationCache
	gate  *staticGate
	clock time.Time
}

func newTrackingFixture() *trackingFixture {
	f := &trackingFixture{
		hub:   websocket.NewHub(zap.NewNop()),
		cache: tracking.NewLocationCache(),
		gate:  newStaticGate(),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewTrackingService(f.hub, tracking.NewSessionRegistry(), f.cache, f.gate, zap.NewNop())
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func TestTracking_LocationFlow(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.assignDriver("LD-1", driverA, true)
	f.gate.allowTrack("LD-1", customerID, staffID)

	driver := newRecordingConn("c-driver")
	customer := newRecordingConn("c-customer")
	require.NoError(t, f.svc.Join(ctx, driver, "LD-1", driverA))
	require.NoError(t, f.svc.Join(ctx, customer, "LD-1", customerID))
	assert.Equal(t, []string{websocket.MessageJoined}, customer.types(), "до первой позиции повторять нечего")

	require.NoError(t, f.svc.ReportLocation(ctx, driver, 38.56, 68.78))
	assert.Equal(t, []string{websocket.MessageJoined, websocket.MessageLocationUpdated}, customer.types())
	assert.Equal(t, []string{websocket.MessageJoined}, driver.types(), "отправитель не получает своё эхо")

	var loc websocket.LocationPayload
	require.NoError(t, json.Unmarshal(customer.last().Payload, &loc))
	assert.Equal(t, "LD-1", loc.OrderID)
	assert.Equal(t, 38.56, loc.Lat)
	assert.Equal(t, 68.78, loc.Lng)

	late := newRecordingConn("c-staff")
	require.NoError(t, f.svc.Join(ctx, late, "LD-1", staffID))
	assert.Equal(t, []string{websocket.MessageJoined, websocket.MessageLocationUpdated}, late.types(),
		"опоздавший получает последнюю позицию")
	assert.Len(t, customer.types(), 2, "повтор уходит только новому участнику")
}

func TestTracking_ReportWithoutJoin(t *testing.T) {
	f := newTrackingFixture()
	err := f.svc.ReportLocation(context.Background(), newRecordingConn("c-1"), 1, 1)
	assert.ErrorIs(t, err, apperrors.ErrPreconditionFailed)
	_, ok := f.cache.Get("LD-1")
	assert.False(t, ok)
}

func TestTracking_ForbiddenJoinClosesOnlyThatConnection(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.allowTrack("LD-1", customerID)

	member := newRecordingConn("c-member")
	require.NoError(t, f.svc.Join(ctx, member, "LD-1", customerID))

	intruder := newRecordingConn("c-intruder")
	err := f.svc.Join(ctx, intruder, "LD-1", stranger)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.True(t, intruder.isClosed())
	assert.Equal(t, websocket.MessageError, intruder.last().Type)

	assert.False(t, member.isClosed())
	assert.Equal(t, 1, f.hub.RoomSize("LD-1"))
}

func TestTracking_RejectsInvalidCoordinates(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.assignDriver("LD-1", driverA, true)
	driver := newRecordingConn("c-driver")
	require.NoError(t, f.svc.Join(ctx, driver, "LD-1", driverA))

	assert.ErrorIs(t, f.svc.ReportLocation(ctx, driver, 91, 0), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, f.svc.ReportLocation(ctx, driver, 0, -181), apperrors.ErrInvalidInput)
	assert.False(t, driver.isClosed())
}

func TestTracking_NonDriverReportIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.assignDriver("LD-1", driverA, true)
	f.gate.allowTrack("LD-1", customerID)

	customer := newRecordingConn("c-customer")
	require.NoError(t, f.svc.Join(ctx, customer, "LD-1", customerID))
	assert.ErrorIs(t, f.svc.ReportLocation(ctx, customer, 1, 1), apperrors.ErrForbidden)
	assert.True(t, customer.isClosed())
	assert.Equal(t, 0, f.hub.RoomSize("LD-1"))

	// водителя сняли после входа в комнату
	driver := newRecordingConn("c-driver")
	require.NoError(t, f.svc.Join(ctx, driver, "LD-1", driverA))
	f.gate.assignDriver("LD-1", driverA, false)
	assert.ErrorIs(t, f.svc.ReportLocation(ctx, driver, 1, 1), apperrors.ErrForbidden)
	_, ok := f.cache.Get("LD-1")
	assert.False(t, ok)
}

func TestTracking_StaleReportIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.assignDriver("LD-1", driverA, true)
	f.gate.allowTrack("LD-1", customerID)

	driver := newRecordingConn("c-driver")
	customer := newRecordingConn("c-customer")
	require.NoError(t, f.svc.Join(ctx, driver, "LD-1", driverA))
	require.NoError(t, f.svc.Join(ctx, customer, "LD-1", customerID))

	require.NoError(t, f.svc.ReportLocation(ctx, driver, 10, 10))
	f.clock = f.clock.Add(-time.Second)
	require.NoError(t, f.svc.ReportLocation(ctx, driver, 20, 20))

	loc, ok := f.cache.Get("LD-1")
	require.True(t, ok)
	assert.Equal(t, 10.0, loc.Lat)
	assert.Len(t, customer.types(), 2, "устаревшая позиция не рассылается")
}

func TestTracking_RejoinMovesConnection(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.allowTrack("LD-1", staffID)
	f.gate.allowTrack("LD-2", staffID)

	conn := newRecordingConn("c-staff")
	require.NoError(t, f.svc.Join(ctx, conn, "LD-1", staffID))
	require.NoError(t, f.svc.Join(ctx, conn, "LD-2", staffID))
	assert.Equal(t, 0, f.hub.RoomSize("LD-1"))
	assert.Equal(t, 1, f.hub.RoomSize("LD-2"))

	f.svc.Disconnect(conn.ID())
	assert.Equal(t, 0, f.hub.RoomSize("LD-2"))
	f.svc.Disconnect(conn.ID())
}

func TestTracking_DisconnectKeepsCachedLocation(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.assignDriver("LD-1", driverA, true)

	driver := newRecordingConn("c-driver")
	require.NoError(t, f.svc.Join(ctx, driver, "LD-1", driverA))
	require.NoError(t, f.svc.ReportLocation(ctx, driver, 5, 5))
	f.svc.Disconnect(driver.ID())

	_, ok := f.cache.Get("LD-1")
	assert.True(t, ok)
}

func TestTracking_HandleMessage(t *testing.T) {
	ctx := context.Background()
	f := newTrackingFixture()
	f.gate.assignDriver("LD-1", driverA, true)
	conn := newRecordingConn("c-driver")

	errorCode := func() int {
		m := conn.last()
		require.Equal(t, websocket.MessageError, m.Type)
		var p websocket.ErrorPayload
		require.NoError(t, json.Unmarshal(m.Payload, &p))
		return p.Code
	}

	f.svc.HandleMessage(ctx, conn, driverA, []byte("не json"))
	assert.Equal(t, 400, errorCode())

	f.svc.HandleMessage(ctx, conn, driverA, []byte(`{"type":"dance","payload":{}}`))
	assert.Equal(t, 400, errorCode())

	f.svc.HandleMessage(ctx, conn, driverA, []byte(`{"type":"reportLocation","payload":{"lat":1,"lng":2}}`))
	assert.Equal(t, 412, errorCode())

	f.svc.HandleMessage(ctx, conn, driverA, []byte(`{"type":"join","payload":{"orderId":"LD-1"}}`))
	assert.Equal(t, websocket.MessageJoined, conn.last().Type)

	f.svc.HandleMessage(ctx, conn, driverA, []byte(`{"type":"reportLocation","payload":{"lat":1,"lng":2}}`))
	loc, ok := f.cache.Get("LD-1")
	require.True(t, ok)
	assert.Equal(t, driverA, loc.ReportedBy)
}
