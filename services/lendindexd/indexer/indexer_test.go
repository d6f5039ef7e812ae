package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lendchain/core/events"
	"lendchain/core/types"
)

type indexedEvent struct {
	evt types.Event
}

func (e *indexedEvent) EventType() string   { return e.evt.Type }
func (e *indexedEvent) Event() *types.Event { return &e.evt }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	return db
}

func offerEvent(eventType, offerID string) *indexedEvent {
	return &indexedEvent{evt: types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"offerId":       offerID,
			"assetContract": "lend1contract",
			"assetId":       "7",
			"lender":        "lend1lender",
		},
	}}
}

func TestIndexFlattensAttributes(t *testing.T) {
	db := openTestDB(t)
	idx, err := New(db, events.NewRecorder(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.Index(offerEvent("lending.offer.created", "4")))

	records, err := idx.ByOffer("4")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "lending.offer.created", records[0].Type)
	require.Equal(t, "lend1lender", records[0].Lender)
	require.Equal(t, "7", records[0].AssetID)
	require.JSONEq(t, `{"offerId":"4","assetContract":"lend1contract","assetId":"7","lender":"lend1lender"}`, records[0].Attributes)
}

func TestByTypeKeepsEmissionOrder(t *testing.T) {
	db := openTestDB(t)
	idx, err := New(db, events.NewRecorder(), nil)
	require.NoError(t, err)

	require.NoError(t, idx.Index(offerEvent("lending.offer.created", "1")))
	require.NoError(t, idx.Index(offerEvent("lending.offer.accepted", "1")))
	require.NoError(t, idx.Index(offerEvent("lending.offer.created", "2")))

	created, err := idx.ByType("lending.offer.created")
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Equal(t, "1", created[0].OfferID)
	require.Equal(t, "2", created[1].OfferID)
	require.Less(t, created[0].Sequence, created[1].Sequence)
}

func TestSequenceResumesAcrossRestart(t *testing.T) {
	db := openTestDB(t)
	idx, err := New(db, events.NewRecorder(), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Index(offerEvent("lending.offer.created", "1")))
	require.NoError(t, idx.Index(offerEvent("lending.offer.accepted", "1")))

	// A fresh indexer on the same database continues the sequence.
	resumed, err := New(db, events.NewRecorder(), nil)
	require.NoError(t, err)
	require.NoError(t, resumed.Index(offerEvent("lending.offer.created", "2")))

	records, err := resumed.ByOffer("2")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(3), records[0].Sequence)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "")
	require.Error(t, err)
}
