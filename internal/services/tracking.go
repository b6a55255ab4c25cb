package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"laundry-delivery/internal/tracking"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/websocket"
)

// TrackingGate - проверки доступа для канала отслеживания.
type TrackingGate interface {
	CanTrack(ctx context.Context, orderID string, userID uint64) bool
	CanDriverActAny(ctx context.Context, orderID string, userID uint64) bool
}

type TrackingServiceInterface interface {
	Join(ctx context.Context, conn websocket.Conn, orderID string, userID uint64) error
	ReportLocation(ctx context.Context, conn websocket.Conn, lat, lng float64) error
	Disconnect(connID string)
	HandleMessage(ctx context.Context, conn websocket.Conn, userID uint64, data []byte)
}

// TrackingService связывает соединения с комнатами заказов и раздаёт позиции водителей.
// Работает только с памятью процесса, кроме проверок доступа.
type TrackingService struct {
	hub      *websocket.Hub
	sessions *tracking.SessionRegistry
	cache    *tracking.LocationCache
	gate     TrackingGate
	logger   *zap.Logger
	now      func() time.Time
}

func NewTrackingService(
	hub *websocket.Hub,
	sessions *tracking.SessionRegistry,
	cache *tracking.LocationCache,
	gate TrackingGate,
	logger *zap.Logger,
) *TrackingService {
	return &TrackingService{
		hub:      hub,
		sessions: sessions,
		cache:    cache,
		gate:     gate,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *TrackingService) sendError(conn websocket.Conn, err error) {
	code := apperrors.StatusCode(err)
	message := err.Error()
	if code >= 500 {
		message = "внутренняя ошибка"
	}
	s.hub.SendTo(conn, websocket.NewEnvelope(websocket.MessageError, websocket.ErrorPayload{Code: code, Message: message}))
}

// reject сообщает клиенту об отказе в доступе и закрывает соединение.
// Остальные участники комнаты не затрагиваются.
func (s *TrackingService) reject(conn websocket.Conn, err error) error {
	s.sendError(conn, err)
	s.Disconnect(conn.ID())
	conn.Close()
	return err
}

func (s *TrackingService) Join(ctx context.Context, conn websocket.Conn, orderID string, userID uint64) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return apperrors.NewInvalidInputError("не указан номер заказа")
	}
	if !s.gate.CanTrack(ctx, orderID, userID) {
		s.logger.Warn("отказано в подключении к комнате",
			zap.String("orderID", orderID), zap.Uint64("userID", userID), zap.String("conn", conn.ID()))
		return s.reject(conn, fmt.Errorf("отслеживание заказа %s: %w", orderID, apperrors.ErrForbidden))
	}

	prev, rebound := s.sessions.Bind(conn.ID(), tracking.Binding{OrderID: orderID, UserID: userID})
	if rebound && prev.OrderID != orderID {
		s.hub.Leave(prev.OrderID, conn.ID())
	}
	s.hub.Join(orderID, conn)

	s.hub.SendTo(conn, websocket.NewEnvelope(websocket.MessageJoined, websocket.JoinedPayload{OrderID: orderID}))
	if loc, ok := s.cache.Get(orderID); ok {
		s.hub.SendTo(conn, websocket.NewEnvelope(websocket.MessageLocationUpdated, websocket.LocationPayload{
			OrderID:    orderID,
			Lat:        loc.Lat,
			Lng:        loc.Lng,
			ReportedAt: loc.ReportedAt,
		}))
	}
	return nil
}

func (s *TrackingService) ReportLocation(ctx context.Context, conn websocket.Conn, lat, lng float64) error {
	binding, ok := s.sessions.Lookup(conn.ID())
	if !ok {
		return fmt.Errorf("сначала нужно подключиться к заказу: %w", apperrors.ErrPreconditionFailed)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return apperrors.NewInvalidInputError("некорректные координаты: %f, %f", lat, lng)
	}
	// назначение могли снять после входа в комнату
	if !s.gate.CanDriverActAny(ctx, binding.OrderID, binding.UserID) {
		s.logger.Warn("позицию прислал не назначенный водитель",
			zap.String("orderID", binding.OrderID), zap.Uint64("userID", binding.UserID))
		return s.reject(conn, fmt.Errorf("передача позиции по заказу %s: %w", binding.OrderID, apperrors.ErrForbidden))
	}

	loc := tracking.Location{Lat: lat, Lng: lng, ReportedBy: binding.UserID, ReportedAt: s.now().UTC()}
	if !s.cache.Put(binding.OrderID, loc) {
		s.logger.Debug("устаревшая позиция отброшена", zap.String("orderID", binding.OrderID))
		return nil
	}

	s.hub.Broadcast(binding.OrderID, websocket.NewEnvelope(websocket.MessageLocationUpdated, websocket.LocationPayload{
		OrderID:    binding.OrderID,
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		ReportedAt: loc.ReportedAt,
	}), conn.ID())
	return nil
}

// Disconnect снимает привязку соединения. Кеш позиций не трогается.
func (s *TrackingService) Disconnect(connID string) {
	if binding, ok := s.sessions.Unbind(connID); ok {
		s.hub.Leave(binding.OrderID, connID)
	}
}

// HandleMessage разбирает входящее сообщение клиента. Ошибки уходят клиенту сообщением error.
func (s *TrackingService) HandleMessage(ctx context.Context, conn websocket.Conn, userID uint64, data []byte) {
	var in websocket.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		s.sendError(conn, apperrors.NewInvalidInputError("некорректное сообщение"))
		return
	}

	var err error
	switch in.Type {
	case websocket.MessageJoin:
		var p websocket.JoinPayload
		if err = json.Unmarshal(in.Payload, &p); err != nil {
			err = apperrors.NewInvalidInputError("некорректный payload join")
			break
		}
		err = s.Join(ctx, conn, p.OrderID, userID)
	case websocket.MessageReportLocation:
		var p websocket.ReportLocationPayload
		if err = json.Unmarshal(in.Payload, &p); err != nil {
			err = apperrors.NewInvalidInputError("некорректный payload reportLocation")
			break
		}
		err = s.ReportLocation(ctx, conn, p.Lat, p.Lng)
	default:
		err = apperrors.NewInvalidInputError("неизвестный тип сообщения: %s", in.Type)
	}

	// при отказе в доступе клиент уже получил ошибку и соединение закрыто
	if err != nil && !errors.Is(err, apperrors.ErrForbidden) {
		s.logger.Debug("ошибка обработки сообщения", zap.String("type", in.Type), zap.Error(err))
		s.sendError(conn, err)
	}
}
