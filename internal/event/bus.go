package event

import (
	"sync"

	"go.uber.org/zap"

	"custody-wallet/internal/logger"
)

type Handler func(payload interface{})

// Bus fans events out to subscribers. Handlers run on their own goroutine, so
// a slow consumer never holds up the ledger operation that published.
type Bus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[event] = append(b.handlers[event], handler)
}

func (b *Bus) Publish(event string, payload interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[event] {
		go dispatch(event, h, payload)
	}
}

func dispatch(event string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("event handler panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	h(payload)
}
