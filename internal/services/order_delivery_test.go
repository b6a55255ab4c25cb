package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"laundry-delivery/internal/entities"
	"laundry-delivery/internal/tracking"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/websocket"
)

func (s *OrderServiceSuite) scheduledDeliveryOrder(driver uint64) string {
	id := s.pickedUpOrder(driver)
	s.Require().NoError(s.svc.AssignDriver(s.ctx, id, adminID, driver, constants.PhaseDelivery))
	return id
}

func (s *OrderServiceSuite) deliveringOrder(driver uint64) string {
	id := s.scheduledDeliveryOrder(driver)
	s.Require().NoError(s.svc.StartDelivery(s.ctx, id, driver))
	return id
}

// latestAssignment - последнее назначение заказа на этап.
func (s *OrderServiceSuite) latestAssignment(orderID string, phase constants.AssignmentPhase) entities.Assignment {
	var latest *entities.Assignment
	list := s.store.assignmentsOf(orderID)
	for i := range list {
		if list[i].Phase == phase {
			latest = &list[i]
		}
	}
	s.Require().NotNil(latest, "нет назначения на %s", phase)
	return *latest
}

func (s *OrderServiceSuite) TestCancelAssignedDelivery_Validation() {
	id := s.deliveringOrder(driverA)
	before := s.store.historyCount()
	uploaded := len(s.media.uploaded)

	s.ErrorIs(s.svc.CancelAssignedDelivery(s.ctx, id, driverA, "", onePhoto), apperrors.ErrInvalidInput)
	s.ErrorIs(s.svc.CancelAssignedDelivery(s.ctx, id, driverA, "нет получателя", nil), apperrors.ErrInvalidInput)
	s.ErrorIs(s.svc.CancelAssignedDelivery(s.ctx, id, driverB, "нет получателя", onePhoto), apperrors.ErrForbidden)

	s.Equal(before, s.store.historyCount())
	s.Len(s.media.uploaded, uploaded)
	s.Equal(constants.OrderStatusDelivering, s.status(id))
	s.Equal(constants.OutcomeAssigned, s.latestAssignment(id, constants.PhaseDelivery).Outcome)
}

func (s *OrderServiceSuite) TestCancelAssignedDelivery_ThenReassign() {
	id := s.deliveringOrder(driverA)

	s.NoError(s.svc.CancelAssignedDelivery(s.ctx, id, driverA, "нет получателя", onePhoto))
	s.Equal(constants.OrderStatusDeliveryFailed, s.status(id))

	failed := s.latestAssignment(id, constants.PhaseDelivery)
	s.Equal(constants.OutcomeFailed, failed.Outcome)
	s.Equal("нет получателя", failed.Reason.String)
	s.True(failed.CompletedAt.Valid)
	s.False(failed.InProgress)

	history, err := memHistory{s.store}.FindByOrderID(s.ctx, id)
	s.Require().NoError(err)
	last := history[len(history)-1]
	s.Equal("DELIVERY_FAILED", last.Status)
	s.True(last.IsFail)
	s.Len(last.PhotoURLs, 1)

	s.ErrorIs(s.svc.ConfirmDelivered(s.ctx, id, driverA, "", onePhoto), apperrors.ErrConflict)
	s.ErrorIs(s.svc.StartDelivery(s.ctx, id, driverA), apperrors.ErrConflict)

	// доставку после неудачи назначают заново
	s.NoError(s.svc.AssignDriver(s.ctx, id, adminID, driverB, constants.PhaseDelivery))
	s.Equal(constants.OrderStatusScheduledDelivery, s.status(id))
	s.NoError(s.svc.StartDelivery(s.ctx, id, driverB))
	s.NoError(s.svc.ConfirmDelivered(s.ctx, id, driverB, "", onePhoto))
	s.Equal(constants.OrderStatusDelivered, s.status(id))
}

func (s *OrderServiceSuite) TestStartDelivery_DriverExclusivity() {
	first := s.scheduledDeliveryOrder(driverA)
	second := s.scheduledDeliveryOrder(driverA)

	s.Require().NoError(s.svc.StartDelivery(s.ctx, first, driverA))
	s.ErrorIs(s.svc.StartDelivery(s.ctx, second, driverA), apperrors.ErrConflict)
	s.Equal(constants.OrderStatusScheduledDelivery, s.status(second))

	s.Require().NoError(s.svc.ConfirmDelivered(s.ctx, first, driverA, "", onePhoto))
	s.NoError(s.svc.StartDelivery(s.ctx, second, driverA), "после подтверждения водитель свободен")
}

func (s *OrderServiceSuite) TestStartDelivery_CancelFreesDriver() {
	first := s.scheduledDeliveryOrder(driverA)
	second := s.scheduledDeliveryOrder(driverA)
	s.Require().NoError(s.svc.StartDelivery(s.ctx, first, driverA))

	s.Require().NoError(s.svc.CancelAssignedDelivery(s.ctx, first, driverA, "пробка", onePhoto))
	s.NoError(s.svc.StartDelivery(s.ctx, second, driverA))
}

func (s *OrderServiceSuite) TestConfirmDeliveryReturned() {
	id := s.deliveringOrder(driverA)
	s.ErrorIs(s.svc.ConfirmDeliveryReturned(s.ctx, id, driverA), apperrors.ErrConflict, "до подтверждения доставки")

	s.Require().NoError(s.svc.ConfirmDelivered(s.ctx, id, driverA, "", onePhoto))
	published := s.publisher.count()

	s.ErrorIs(s.svc.ConfirmDeliveryReturned(s.ctx, id, driverB), apperrors.ErrForbidden)
	s.NoError(s.svc.ConfirmDeliveryReturned(s.ctx, id, driverA))
	s.Equal(constants.OrderStatusDelivered, s.status(id))
	s.Equal(published, s.publisher.count())

	a := s.latestAssignment(id, constants.PhaseDelivery)
	s.Equal(constants.OutcomeSuccess, a.Outcome)
	s.True(a.CompletedAt.Valid)
	labels := s.store.historyLabels(id)
	s.Equal("DELIVERY_SUCCESS", labels[len(labels)-1])

	// назначение уже закрыто, завершение его не трогает
	s.NoError(s.svc.CompleteOrder(s.ctx, id, customerID))
	s.Equal(a, s.latestAssignment(id, constants.PhaseDelivery))
}

func (s *OrderServiceSuite) assertDeliveryClosed(id string) {
	a := s.latestAssignment(id, constants.PhaseDelivery)
	s.Equal(constants.OutcomeSuccess, a.Outcome)
	s.True(a.CompletedAt.Valid)
	s.False(a.InProgress)

	s.False(s.env.gate.CanDriverAct(s.ctx, id, driverA, constants.PhaseDelivery))
	s.False(s.env.gate.CanDriverActAny(s.ctx, id, driverA))
	s.False(s.env.gate.CanTrack(s.ctx, id, driverA))
	s.True(s.env.gate.CanTrack(s.ctx, id, customerID), "клиент по-прежнему видит свой заказ")
	s.ErrorIs(s.svc.ConfirmDeliveryReturned(s.ctx, id, driverA), apperrors.ErrConflict)
}

func (s *OrderServiceSuite) TestCompleteOrder_ClosesDeliveryAssignment() {
	id := s.deliveredOrder(driverA)
	s.Require().True(s.env.gate.CanDriverAct(s.ctx, id, driverA, constants.PhaseDelivery))

	s.NoError(s.svc.CompleteOrder(s.ctx, id, customerID))
	s.Equal(constants.OrderStatusCompleted, s.status(id))
	s.assertDeliveryClosed(id)
}

func (s *OrderServiceSuite) TestAutoComplete_ClosesDeliveryAssignment() {
	id := s.deliveredOrder(driverA)

	s.NoError(s.svc.HandleAutoComplete(s.ctx, id))
	s.Equal(constants.OrderStatusCompleted, s.status(id))
	s.assertDeliveryClosed(id)
}

func (s *OrderServiceSuite) TestReportLocation_RejectedAfterCompletion() {
	id := s.deliveredOrder(driverA)
	cache := tracking.NewLocationCache()
	tracker := NewTrackingService(websocket.NewHub(zap.NewNop()), tracking.NewSessionRegistry(), cache, s.env.gate, zap.NewNop())
	conn := newRecordingConn("driver-conn")

	s.Require().NoError(tracker.Join(s.ctx, conn, id, driverA))
	s.Require().NoError(tracker.ReportLocation(s.ctx, conn, 38.57, 68.79))

	s.Require().NoError(s.svc.CompleteOrder(s.ctx, id, customerID))
	cache.Evict(id)

	s.ErrorIs(tracker.ReportLocation(s.ctx, conn, 38.58, 68.80), apperrors.ErrForbidden)
	_, ok := cache.Get(id)
	s.False(ok, "позиция завершённого заказа не возвращается в кеш")
	s.True(conn.isClosed())
}

// TestClaim_ConcurrentClaimsExactlyOneWins - несколько экземпляров сервиса
// одновременно берут один заказ. Выигрывает ровно один.
func (s *OrderServiceSuite) TestClaim_ConcurrentClaimsExactlyOneWins() {
	id := s.newOrder()
	s.Require().NoError(s.svc.SubmitOrder(s.ctx, id, customerID))

	type claimer struct {
		svc   *OrderService
		staff uint64
	}
	claimers := []claimer{
		{s.svc, staffID}, {s.svc, adminID},
		{s.env.replica(), staffID}, {s.env.replica(), adminID},
	}

	start := make(chan struct{})
	results := make([]error, len(claimers))
	var wg sync.WaitGroup
	for i, c := range claimers {
		wg.Add(1)
		go func(i int, c claimer) {
			defer wg.Done()
			<-start
			results[i] = c.svc.ClaimForProcessing(s.ctx, id, c.staff)
		}(i, c)
	}
	close(start)
	wg.Wait()

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		s.ErrorIs(err, apperrors.ErrConflict)
	}
	s.Equal(1, ok)
	s.Equal(constants.OrderStatusProcessing, s.status(id))

	s.store.mu.Lock()
	var active int
	for _, p := range s.store.processing {
		if p.OrderID == id && p.Status == constants.ProcessingStatusProcessing {
			active++
		}
	}
	s.store.mu.Unlock()
	s.Equal(1, active)
}

// raceConfirmAndCancel одновременно подтверждает и отменяет этап с разных экземпляров сервиса.
func (s *OrderServiceSuite) raceConfirmAndCancel(id string, driver uint64, phase constants.AssignmentPhase) (confirmErr, cancelErr error) {
	confirmer, canceller := s.svc, s.env.replica()
	confirm, cancel := confirmer.ConfirmPickedUp, canceller.CancelAssignedPickup
	if phase == constants.PhaseDelivery {
		confirm, cancel = confirmer.ConfirmDelivered, canceller.CancelAssignedDelivery
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		confirmErr = confirm(context.Background(), id, driver, "", photos(1))
	}()
	go func() {
		defer wg.Done()
		<-start
		cancelErr = cancel(context.Background(), id, driver, "колесо спустило", photos(1))
	}()
	close(start)
	wg.Wait()
	return confirmErr, cancelErr
}

func (s *OrderServiceSuite) assertOneOfRaceCommitted(id string, phase constants.AssignmentPhase, confirmErr, cancelErr error) {
	st := phase.Statuses()
	a := s.latestAssignment(id, phase)
	switch {
	case confirmErr == nil:
		s.ErrorIs(cancelErr, apperrors.ErrConflict)
		s.Equal(st.Done, s.status(id))
		s.Equal(constants.OutcomeAssigned, a.Outcome)
		s.False(a.InProgress)
	case cancelErr == nil:
		s.ErrorIs(confirmErr, apperrors.ErrConflict)
		s.Equal(st.Failed, s.status(id))
		s.Equal(constants.OutcomeFailed, a.Outcome)
	default:
		s.Failf("ни один запрос не прошёл", "confirm: %v, cancel: %v", confirmErr, cancelErr)
	}
}

func (s *OrderServiceSuite) TestConfirmAndCancelPickup_Concurrent() {
	for i := 0; i < 5; i++ {
		id := s.confirmedOrder()
		s.Require().NoError(s.svc.AssignDriver(s.ctx, id, adminID, driverA, constants.PhasePickup))
		s.Require().NoError(s.svc.StartPickup(s.ctx, id, driverA))

		confirmErr, cancelErr := s.raceConfirmAndCancel(id, driverA, constants.PhasePickup)
		s.assertOneOfRaceCommitted(id, constants.PhasePickup, confirmErr, cancelErr)
	}
}

func (s *OrderServiceSuite) TestConfirmAndCancelDelivery_Concurrent() {
	for i := 0; i < 5; i++ {
		id := s.deliveringOrder(driverA)

		confirmErr, cancelErr := s.raceConfirmAndCancel(id, driverA, constants.PhaseDelivery)
		s.assertOneOfRaceCommitted(id, constants.PhaseDelivery, confirmErr, cancelErr)
	}
}
