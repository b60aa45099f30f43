// Package memory contains an in-memory publisher for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []crawler.PromotionEvent
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, event crawler.PromotionEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded events.
func (p *Publisher) Events() []crawler.PromotionEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.PromotionEvent, len(p.events))
	copy(out, p.events)
	return out
}
