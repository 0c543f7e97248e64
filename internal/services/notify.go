package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/poputky-backend/internal/models"
	"github.com/Ananth-NQI/poputky-backend/internal/observability"
	"github.com/Ananth-NQI/poputky-backend/internal/storage"
)

// DefaultNotifyConcurrency bounds concurrent sends when none is configured
const DefaultNotifyConcurrency = 4

// ChannelResolver finds the chat channel a phone can be reached on
type ChannelResolver interface {
	ResolveChannelByPhone(ctx context.Context, phone string) (string, error)
}

// DeliveryReport summarizes a fan-out. It is informational only.
type DeliveryReport struct {
	Delivered  int
	Unresolved int
	Failures   []*DeliveryError

	mu sync.Mutex
}

func (r *DeliveryReport) delivered() {
	r.mu.Lock()
	r.Delivered++
	r.mu.Unlock()
	observability.NotificationsSent.WithLabelValues("delivered").Inc()
}

func (r *DeliveryReport) unresolved() {
	r.mu.Lock()
	r.Unresolved++
	r.mu.Unlock()
	observability.NotificationsSent.WithLabelValues("unresolved").Inc()
}

func (r *DeliveryReport) failed(err *DeliveryError) {
	r.mu.Lock()
	r.Failures = append(r.Failures, err)
	r.mu.Unlock()
	observability.NotificationsSent.WithLabelValues("failed").Inc()
}

// Notifier delivers match results to the originator and to every candidate
type Notifier struct {
	resolver    ChannelResolver
	messenger   Messenger
	concurrency int
}

// NewNotifier creates a notifier running at most concurrency sends at once
func NewNotifier(resolver ChannelResolver, messenger Messenger, concurrency int) *Notifier {
	if concurrency <= 0 {
		concurrency = DefaultNotifyConcurrency
	}
	return &Notifier{resolver: resolver, messenger: messenger, concurrency: concurrency}
}

// Notify sends one grouped message per non-empty tier to originChannel and one
// personalized message to each candidate. Every send is independent: a failure
// is logged and recorded in the report, and never stops the others.
func (n *Notifier) Notify(ctx context.Context, listing *models.RideListing, originChannel string, result MatchResult) *DeliveryReport {
	report := &DeliveryReport{}
	if result.Empty() {
		return report
	}

	var tasks []func(context.Context) error
	if originChannel != "" {
		for _, tier := range []struct {
			tier       MatchTier
			candidates []*models.RideListing
		}{{TierExact, result.Exact}, {TierApproximate, result.Approximate}} {
			if len(tier.candidates) == 0 {
				continue
			}
			text := originatorMatchesMessage(tier.tier, tier.candidates)
			tasks = append(tasks, func(ctx context.Context) error {
				if err := n.messenger.SendMessage(ctx, originChannel, text, nil); err != nil {
					report.failed(&DeliveryError{ChannelID: originChannel, ListingID: listing.ID, Err: err})
					return err
				}
				report.delivered()
				return nil
			})
		}
	}

	add := func(tier MatchTier, candidates []*models.RideListing) {
		text := candidateMessage(tier, listing)
		for _, c := range candidates {
			c := c
			tasks = append(tasks, func(ctx context.Context) error {
				return n.notifyCandidate(ctx, report, c, text)
			})
		}
	}
	add(TierExact, result.Exact)
	add(TierApproximate, result.Approximate)

	settleAll(ctx, n.concurrency, tasks)

	log.Printf("📣 Listing #%d: %d delivered, %d unresolved, %d failed",
		listing.ID, report.Delivered, report.Unresolved, len(report.Failures))
	return report
}

func (n *Notifier) notifyCandidate(ctx context.Context, report *DeliveryReport, candidate *models.RideListing, text string) error {
	channelID, err := n.resolver.ResolveChannelByPhone(ctx, candidate.Phone)
	if errors.Is(err, storage.ErrNotFound) {
		report.unresolved()
		return nil
	}
	if err != nil {
		report.failed(&DeliveryError{ListingID: candidate.ID, Err: fmt.Errorf("resolve channel: %w", err)})
		return err
	}

	if err := n.messenger.SendMessage(ctx, channelID, text, nil); err != nil {
		report.failed(&DeliveryError{ChannelID: channelID, ListingID: candidate.ID, Err: err})
		return err
	}
	report.delivered()
	return nil
}

// settleAll runs every task with at most limit in flight and waits for all of
// them. Task errors and panics are logged; they never cancel sibling tasks.
func settleAll(ctx context.Context, limit int, tasks []func(context.Context) error) {
	var g errgroup.Group
	g.SetLimit(limit)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ Notification task panicked: %v", r)
				}
			}()
			if err := task(ctx); err != nil {
				log.Printf("⚠️ Notification failed: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
