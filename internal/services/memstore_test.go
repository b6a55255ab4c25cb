package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"

	"laundry-delivery/internal/entities"
	"laundry-delivery/internal/repositories"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/eventbus"
)

// memStore - хранилище в памяти с теми же гарантиями, что дают условия WHERE
// и частичные уникальные индексы в PostgreSQL.
type memStore struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	orders      map[string]entities.Order
	assignments []entities.Assignment
	processing  []entities.OrderProcessing
	history     []entities.OrderHistory
	roles       map[uint64]constants.Role
	seq         uint64
	now         time.Time
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]entities.Order),
		roles:  make(map[uint64]constants.Role),
		now:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) nextID() uint64 {
	m.seq++
	return m.seq
}

type memSnapshot struct {
	orders      map[string]entities.Order
	assignments []entities.Assignment
	processing  []entities.OrderProcessing
	history     []entities.OrderHistory
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make(map[string]entities.Order, len(m.orders))
	for k, v := range m.orders {
		orders[k] = v
	}
	return memSnapshot{
		orders:      orders,
		assignments: append([]entities.Assignment(nil), m.assignments...),
		processing:  append([]entities.OrderProcessing(nil), m.processing...),
		history:     append([]entities.OrderHistory(nil), m.history...),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = s.orders
	m.assignments = s.assignments
	m.processing = s.processing
	m.history = s.history
}

// RunInTransaction откатывает все изменения fn при ошибке. Транзакции выполняются по одной.
func (m *memStore) RunInTransaction(_ context.Context, fn func(tx pgx.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) GetRole(_ context.Context, userID uint64) (constants.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[userID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return role, nil
}

func (m *memStore) order(id string) entities.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) historyLabels(orderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var labels []string
	for _, h := range m.history {
		if h.OrderID == orderID {
			labels = append(labels, h.Status)
		}
	}
	return labels
}

func (m *memStore) historyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

func (m *memStore) assignmentsOf(orderID string) []entities.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Assignment
	for _, a := range m.assignments {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out
}

// ---- заказы ----

type memOrders struct{ *memStore }

var _ repositories.OrderRepositoryInterface = memOrders{}

func (r memOrders) FindByID(_ context.Context, _ pgx.Tx, id string) (*entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &o, nil
}

func (r memOrders) Create(_ context.Context, _ pgx.Tx, order *entities.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return apperrors.ErrConflict
	}
	order.Version = 1
	order.CreatedAt = r.now
	order.UpdatedAt = r.now
	r.orders[order.ID] = *order
	return nil
}

func (r memOrders) UpdateStatus(_ context.Context, _ pgx.Tx, id string, version int64, expected, next constants.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != expected || o.Version != version {
		return apperrors.ErrConflict
	}
	o.Status = next
	o.Version++
	r.orders[id] = o
	return nil
}

// ---- назначения ----

type memAssignments struct{ *memStore }

var _ repositories.AssignmentRepositoryInterface = memAssignments{}

func (r memAssignments) Create(_ context.Context, _ pgx.Tx, a *entities.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.assignments {
		if x.OrderID == a.OrderID && x.Phase == a.Phase && x.Outcome == constants.OutcomeAssigned {
			return apperrors.ErrConflict
		}
	}
	a.ID = r.nextID()
	a.AssignedAt = r.now
	r.assignments = append(r.assignments, *a)
	return nil
}

func (r memAssignments) FindActive(_ context.Context, _ pgx.Tx, orderID string, phase constants.AssignmentPhase) (*entities.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.OrderID == orderID && a.Phase == phase && a.Outcome == constants.OutcomeAssigned {
			return &a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memAssignments) FindLatest(_ context.Context, _ pgx.Tx, orderID string, phase constants.AssignmentPhase) (*entities.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.assignments) - 1; i >= 0; i-- {
		a := r.assignments[i]
		if a.OrderID == orderID && a.Phase == phase && a.Outcome != constants.OutcomeSuperseded {
			return &a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memAssignments) FindByOrderID(_ context.Context, orderID string) ([]entities.Assignment, error) {
	return r.assignmentsOf(orderID), nil
}

func (r memAssignments) Update(_ context.Context, _ pgx.Tx, a *entities.Assignment, expected constants.AssignmentOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.InProgress {
		for _, x := range r.assignments {
			if x.ID != a.ID && x.AssignedTo == a.AssignedTo && x.Phase == a.Phase && x.InProgress {
				return apperrors.ErrConflict
			}
		}
	}
	for i, x := range r.assignments {
		if x.ID == a.ID {
			if x.Outcome != expected {
				return apperrors.ErrConflict
			}
			r.assignments[i] = *a
			return nil
		}
	}
	return apperrors.ErrConflict
}

func (r memAssignments) HasOtherInProgress(_ context.Context, _ pgx.Tx, driverID uint64, phase constants.AssignmentPhase, excludeOrderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.AssignedTo == driverID && a.Phase == phase && a.Outcome == constants.OutcomeAssigned &&
			a.InProgress && a.OrderID != excludeOrderID {
			return true, nil
		}
	}
	return false, nil
}

// ---- обработка ----

type memProcessing struct{ *memStore }

var _ repositories.OrderProcessingRepositoryInterface = memProcessing{}

func (r memProcessing) Create(_ context.Context, _ pgx.Tx, p *entities.OrderProcessing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.processing {
		if x.OrderID == p.OrderID && x.Status == constants.ProcessingStatusProcessing {
			return apperrors.ErrConflict
		}
	}
	p.ID = r.nextID()
	p.ClaimedAt = r.now
	r.processing = append(r.processing, *p)
	return nil
}

func (r memProcessing) FindActive(_ context.Context, _ pgx.Tx, orderID string) (*entities.OrderProcessing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.processing {
		if p.OrderID == orderID && p.Status == constants.ProcessingStatusProcessing {
			return &p, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memProcessing) Resolve(_ context.Context, _ pgx.Tx, id uint64, status constants.ProcessingStatus, reason null.String) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.processing {
		if p.ID == id && p.Status == constants.ProcessingStatusProcessing {
			r.processing[i].Status = status
			r.processing[i].Reason = reason
			r.processing[i].ResolvedAt = null.TimeFrom(r.now)
			return nil
		}
	}
	return apperrors.ErrConflict
}

func (r memProcessing) FindExpired(_ context.Context, claimedBefore time.Time, limit uint64) ([]entities.OrderProcessing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.OrderProcessing
	for _, p := range r.processing {
		if p.Status == constants.ProcessingStatusProcessing && p.ClaimedAt.Before(claimedBefore) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(out[j].ClaimedAt) })
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- история ----

type memHistory struct{ *memStore }

var _ repositories.OrderHistoryRepositoryInterface = memHistory{}

func (r memHistory) CreateInTx(_ context.Context, _ pgx.Tx, h *entities.OrderHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = r.nextID()
	h.CreatedAt = r.now
	r.history = append(r.history, *h)
	return nil
}

func (r memHistory) FindByOrderID(_ context.Context, orderID string) ([]entities.OrderHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.OrderHistory
	for _, h := range r.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// ---- внешние зависимости ----

type fakeMedia struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	uploadErr error
}

func (f *fakeMedia) Upload(_ context.Context, uc constants.UploadContext, files []PhotoFile) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	urls := make([]string, 0, len(files))
	for _, file := range files {
		url := "/uploads/" + uc.String() + "/" + file.Name
		urls = append(urls, url)
		f.uploaded = append(f.uploaded, url)
	}
	return urls, nil
}

func (f *fakeMedia) Delete(_ context.Context, urls []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, urls...)
}

type fakeScheduler struct {
	mu          sync.Mutex
	scheduled   map[string]time.Duration
	cancelled   []string
	scheduleErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Duration)}
}

func (f *fakeScheduler) Schedule(_ context.Context, _, key string, delay time.Duration, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.scheduled[key] = delay
	return nil
}

func (f *fakeScheduler) Cancel(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, key)
	f.cancelled = append(f.cancelled, key)
	return nil
}

func (f *fakeScheduler) isScheduled(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.scheduled[key]
	return ok
}

type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (f *fakePublisher) Publish(_ context.Context, event eventbus.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

var errStoreDown = errors.New("хранилище недоступно")
