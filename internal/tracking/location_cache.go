package tracking

import (
	"sync"
	"time"
)

// Location - последняя известная позиция водителя по заказу.
type Location struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ReportedBy uint64    `json:"reportedBy"`
	ReportedAt time.Time `json:"reportedAt"`
}

// LocationCache хранит последнюю позицию по каждому заказу.
// Записи не зависят от соединений и переживают переподключения.
type LocationCache struct {
	entries sync.Map // orderID -> *Location
}

func NewLocationCache() *LocationCache {
	return &LocationCache{}
}

// Put сохраняет позицию, если она не старше уже сохранённой.
// Возвращает false, если запись отброшена как устаревшая.
func (c *LocationCache) Put(orderID string, loc Location) bool {
	next := &loc
	for {
		prev, loaded := c.entries.LoadOrStore(orderID, next)
		if !loaded {
			return true
		}
		if loc.ReportedAt.Before(prev.(*Location).ReportedAt) {
			return false
		}
		if c.entries.CompareAndSwap(orderID, prev, next) {
			return true
		}
	}
}

func (c *LocationCache) Get(orderID string) (Location, bool) {
	v, ok := c.entries.Load(orderID)
	if !ok {
		return Location{}, false
	}
	return *v.(*Location), true
}

func (c *LocationCache) Evict(orderID string) {
	c.entries.Delete(orderID)
}
