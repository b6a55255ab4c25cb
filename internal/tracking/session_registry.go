package tracking

import "sync"

// Binding - к какой комнате заказа привязано соединение и от чьего имени.
type Binding struct {
	OrderID string
	UserID  uint64
}

// SessionRegistry: одно соединение - не больше одной комнаты.
type SessionRegistry struct {
	bindings sync.Map // connID -> Binding
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Bind привязывает соединение к заказу и возвращает прежнюю привязку, если она была.
func (r *SessionRegistry) Bind(connID string, b Binding) (Binding, bool) {
	prev, loaded := r.bindings.Swap(connID, b)
	if !loaded {
		return Binding{}, false
	}
	return prev.(Binding), true
}

func (r *SessionRegistry) Lookup(connID string) (Binding, bool) {
	v, ok := r.bindings.Load(connID)
	if !ok {
		return Binding{}, false
	}
	return v.(Binding), true
}

func (r *SessionRegistry) Unbind(connID string) (Binding, bool) {
	v, ok := r.bindings.LoadAndDelete(connID)
	if !ok {
		return Binding{}, false
	}
	return v.(Binding), true
}
