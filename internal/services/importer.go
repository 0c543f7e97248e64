package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Ananth-NQI/poputky-backend/internal/observability"
	"github.com/Ananth-NQI/poputky-backend/internal/storage"
)

// ImporterConfig wires the Viber importer
type ImporterConfig struct {
	Store     storage.Store
	Messenger Messenger
	Parser    TextParser
	Events    ListingEventPublisher

	Location          *time.Location
	NotifyConcurrency int
	Now               func() time.Time
}

// ImportReport counts what happened to each message of an export
type ImportReport struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`  // already imported
	Unparsed int `json:"unparsed"` // no route or phone
	Failed   int `json:"failed"`
}

// ViberImporter stores listings copied from the Viber group chat and runs
// them through matching like listings created in the bot.
type ViberImporter struct {
	store    storage.Store
	parser   ViberParser
	events   ListingEventPublisher
	matcher  *Matcher
	notifier *Notifier
}

// NewViberImporter creates an importer
func NewViberImporter(cfg ImporterConfig) *ViberImporter {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Events == nil {
		cfg.Events = NopPublisher{}
	}
	return &ViberImporter{
		store:    cfg.Store,
		parser:   ViberParser{Text: cfg.Parser, Location: cfg.Location, Now: cfg.Now},
		events:   cfg.Events,
		matcher:  NewMatcher(cfg.Store, cfg.Location),
		notifier: NewNotifier(cfg.Store, cfg.Messenger, cfg.NotifyConcurrency),
	}
}

// Import processes every message of export. A failing message is counted
// and the rest still go through; only a cancelled context stops the run.
func (im *ViberImporter) Import(ctx context.Context, export string) (ImportReport, error) {
	var report ImportReport
	for _, raw := range SplitViberExport(export) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Total++

		outcome, err := im.importMessage(ctx, raw)
		if err != nil {
			log.Printf("❌ Viber import: %v", err)
		}
		observability.ViberMessages.WithLabelValues(outcome).Inc()

		switch outcome {
		case "imported":
			report.Imported++
		case "skipped":
			report.Skipped++
		case "unparsed":
			report.Unparsed++
		default:
			report.Failed++
		}
	}

	log.Printf("📥 Viber import: %d messages, %d imported, %d skipped, %d unparsed, %d failed",
		report.Total, report.Imported, report.Skipped, report.Unparsed, report.Failed)
	return report, nil
}

func (im *ViberImporter) importMessage(ctx context.Context, raw string) (string, error) {
	key := importKey(raw)
	seen, err := im.store.HasImportKey(ctx, key)
	if err != nil {
		return "failed", err
	}
	if seen {
		return "skipped", nil
	}

	msg, err := im.parser.Parse(raw)
	if errors.Is(err, ErrNoRoute) || errors.Is(err, ErrNoPhone) {
		return "unparsed", nil
	}
	if err != nil {
		return "failed", err
	}

	fields := msg.Fields
	fields.ImportKey = &key
	listing, err := im.store.CreateListing(ctx, fields)
	if err != nil {
		return "failed", fmt.Errorf("store listing: %w", err)
	}
	observability.ListingsCreated.WithLabelValues(string(listing.ListingType)).Inc()
	log.Printf("✅ Listing #%d imported from Viber: %s %s %s", listing.ID, listing.ListingType, listing.Route, DateKey(listing.Date))

	if err := im.events.PublishListingCreated(ctx, listing); err != nil {
		log.Printf("⚠️ Failed to publish listing #%d: %v", listing.ID, err)
	}

	result, err := im.matcher.Match(ctx, listing)
	if err != nil {
		log.Printf("⚠️ Matching failed for listing #%d: %v", listing.ID, err)
		return "imported", nil
	}

	// The author may also use the bot; otherwise only the candidates hear about it
	origin, err := im.store.ResolveChannelByPhone(ctx, listing.Phone)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("⚠️ Failed to resolve channel for %s: %v", listing.Phone, err)
		}
		origin = ""
	}
	im.notifier.Notify(ctx, listing, origin, result)
	return "imported", nil
}

func importKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
