package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
)

// EventListingCreated is the type of events published for new listings
const EventListingCreated = "listing.created"

// ListingEvent is the message value written to the listings topic
type ListingEvent struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	OccurredAt time.Time           `json:"occurred_at"`
	Listing    *models.RideListing `json:"listing"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes listing events to Kafka
type KafkaProducer struct {
	writer  messageWriter
	timeout time.Duration
	now     func() time.Time
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w, timeout: 2 * time.Second, now: time.Now}
}

// PublishListingCreated writes one event keyed by listing id
func (k *KafkaProducer) PublishListingCreated(ctx context.Context, l *models.RideListing) error {
	msg, err := listingMessage(l, k.now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish listing %d: %w", l.ID, err)
	}
	return nil
}

func listingMessage(l *models.RideListing, at time.Time) (kafka.Message, error) {
	b, err := json.Marshal(ListingEvent{
		ID:         uuid.NewString(),
		Type:       EventListingCreated,
		OccurredAt: at.UTC(),
		Listing:    l,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode listing event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(l.ID), 10)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventListingCreated)},
		},
	}, nil
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
