package handlers

import (
	"context"
	"log"

	"github.com/Ananth-NQI/poputky-backend/internal/services"
)

// EventProcessor consumes decoded chat events
type EventProcessor interface {
	OnInboundEvent(ctx context.Context, chatID string, ev services.InboundEvent) error
}

// chatEvents hands events to the engine one chat at a time
type chatEvents struct {
	engine     EventProcessor
	dispatcher *services.ChatDispatcher
}

func (h chatEvents) process(ctx context.Context, chatID string, ev services.InboundEvent) error {
	err := h.dispatcher.Do(chatID, func() error {
		return h.engine.OnInboundEvent(ctx, chatID, ev)
	})
	if err != nil {
		log.Printf("❌ Error processing %s event from %s: %v", ev.Kind, chatID, err)
	}
	return err
}
