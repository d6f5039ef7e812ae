package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lendchain/core/events"
	"lendchain/core/types"
	"lendchain/services/lendindexd/models"
)

// Open connects to the configured SQL backend and migrates the schema.
// Supported drivers are "sqlite" (default, DSN is a file path or :memory:) and
// "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if strings.TrimSpace(dsn) == "" {
			dsn = "lendindex.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unknown driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Indexer drains the node's event feed into SQL rows.
type Indexer struct {
	db       *gorm.DB
	recorder *events.Recorder
	logger   *slog.Logger
	sequence atomic.Uint64
}

// New builds an indexer on an open database. The sequence counter resumes from
// the highest persisted value so restarts do not collide.
func New(db *gorm.DB, recorder *events.Recorder, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Indexer{db: db, recorder: recorder, logger: logger}
	var last models.EventRecord
	err := db.Order("sequence desc").First(&last).Error
	switch {
	case err == nil:
		idx.sequence.Store(last.Sequence)
	case err == gorm.ErrRecordNotFound:
	default:
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	return idx, nil
}

// Run subscribes to the live feed and persists events until the context is
// cancelled.
func (i *Indexer) Run(ctx context.Context) error {
	feed, cancel := i.recorder.Subscribe(256)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-feed:
			if !ok {
				return nil
			}
			if err := i.Index(evt); err != nil {
				i.logger.Error("failed to index event", "type", evt.EventType(), "err", err)
			}
		}
	}
}

type attributed interface {
	Event() *types.Event
}

// Index persists a single event.
func (i *Indexer) Index(evt events.Event) error {
	if evt == nil {
		return nil
	}
	record := models.EventRecord{
		Sequence: i.sequence.Add(1),
		Type:     evt.EventType(),
	}
	if carrier, ok := evt.(attributed); ok {
		if inner := carrier.Event(); inner != nil && inner.Attributes != nil {
			record.OfferID = inner.Attributes["offerId"]
			record.AssetContract = inner.Attributes["assetContract"]
			record.AssetID = inner.Attributes["assetId"]
			record.Lender = inner.Attributes["lender"]
			record.Borrower = inner.Attributes["borrower"]
			raw, err := json.Marshal(inner.Attributes)
			if err != nil {
				return err
			}
			record.Attributes = string(raw)
		}
	}
	return i.db.Create(&record).Error
}

// ByOffer returns every recorded event for an offer in emission order.
func (i *Indexer) ByOffer(offerID string) ([]models.EventRecord, error) {
	var records []models.EventRecord
	err := i.db.Where("offer_id = ?", offerID).Order("sequence asc").Find(&records).Error
	return records, err
}

// ByType returns every recorded event of the given type in emission order.
func (i *Indexer) ByType(eventType string) ([]models.EventRecord, error) {
	var records []models.EventRecord
	err := i.db.Where("type = ?", eventType).Order("sequence asc").Find(&records).Error
	return records, err
}
