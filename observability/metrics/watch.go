package metrics

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"lendchain/core/events"
	"lendchain/core/types"
	"lendchain/native/lending"
	"lendchain/native/lendpool"
)

// listingSource exposes the listing registry the watcher refreshes gauges from.
type listingSource interface {
	GetListed() ([]*lending.ListedAsset, error)
}

// poolSource exposes the pool ledger the watcher refreshes gauges from.
type poolSource interface {
	Get() (*lendpool.State, error)
}

// attributed is implemented by the engine event wrappers that expose the
// underlying attribute map.
type attributed interface {
	Event() *types.Event
}

// WatchLending subscribes to the recorder and keeps the lending metrics in
// step with the emitted lifecycle events until the context is cancelled.
// Gauges are re-read from the engines on every relevant event, so a dropped
// event only delays a refresh rather than skewing the series.
func WatchLending(ctx context.Context, recorder *events.Recorder, listings listingSource, pool poolSource) {
	if recorder == nil {
		return
	}
	m := Lending()
	feed, cancel := recorder.Subscribe(256)
	defer cancel()

	var active float64
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-feed:
			if !ok {
				return
			}
			m.applyEvent(evt, &active, listings, pool)
		}
	}
}

// applyEvent folds a single lifecycle event into the metric series. The
// active-offer count is tracked incrementally; everything else is re-read from
// the engines.
func (m *LendingMetrics) applyEvent(evt events.Event, active *float64, listings listingSource, pool poolSource) {
	if m == nil || evt == nil {
		return
	}
	eventType := evt.EventType()
	m.ObserveEvent(eventType)

	switch eventType {
	case lending.EventTypeOfferCreated:
		*active++
	case lending.EventTypeLendRepaid, lending.EventTypeNFTClaimed, lending.EventTypeOfferCancelled:
		if *active > 0 {
			*active--
		}
	}
	m.SetActiveOffers(*active)

	switch {
	case strings.HasPrefix(eventType, "lending."):
		m.refreshListings(listings)
	case strings.HasPrefix(eventType, "lendpool."):
		m.refreshPool(pool)
		if eventType == lendpool.EventTypeDistributed {
			m.observeDistribution(evt)
		}
	}
}

func (m *LendingMetrics) refreshListings(listings listingSource) {
	if listings == nil {
		return
	}
	listed, err := listings.GetListed()
	if err != nil {
		return
	}
	count := 0
	for _, asset := range listed {
		if asset != nil && asset.IsListed {
			count++
		}
	}
	m.SetListedAssets(float64(count))
}

func (m *LendingMetrics) refreshPool(pool poolSource) {
	if pool == nil {
		return
	}
	state, err := pool.Get()
	if err != nil || state == nil {
		return
	}
	if state.TotalDeposits != nil {
		deposits, _ := new(big.Float).SetInt(state.TotalDeposits).Float64()
		m.SetPoolDeposits(deposits)
	}
	m.SetPoolDepositors(float64(len(state.Depositors)))
}

func (m *LendingMetrics) observeDistribution(evt events.Event) {
	carrier, ok := evt.(attributed)
	if !ok {
		return
	}
	inner := carrier.Event()
	if inner == nil {
		return
	}
	if paid, err := strconv.ParseFloat(inner.Attributes["paid"], 64); err == nil {
		m.AddInterestPaid(paid)
	}
	if dust, err := strconv.ParseFloat(inner.Attributes["dust"], 64); err == nil {
		m.SetDistributionDust(dust)
	}
}
