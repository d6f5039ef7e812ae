package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"lendchain/crypto"
	"lendchain/native/lending"
)

type lendingRoutes struct {
	engine *lending.Engine
}

func (lr *lendingRoutes) mount(r chi.Router) {
	r.Get("/lending/listings", lr.handleListings)
	r.Get("/lending/offers/{offerID}", lr.handleOffer)
	r.Get("/lending/offers/{offerID}/interest", lr.handleInterest)
	r.Get("/lending/assets/{contract}/{assetID}/offers", lr.handleAssetOffers)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorPayload struct {
	Error string `json:"error"`
}

func writeEngineFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lending.ErrOfferNotFound):
		writeJSON(w, http.StatusNotFound, errorPayload{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "internal error"})
	}
}

func parseOfferID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "offerID"), 10, 64)
}

func (lr *lendingRoutes) handleListings(w http.ResponseWriter, r *http.Request) {
	listings, err := lr.engine.GetListed()
	if err != nil {
		writeEngineFailure(w, err)
		return
	}
	live := strings.EqualFold(r.URL.Query().Get("live"), "true")
	if live {
		filtered := listings[:0]
		for _, l := range listings {
			if l != nil && l.IsListed {
				filtered = append(filtered, l)
			}
		}
		listings = filtered
	}
	if listings == nil {
		listings = []*lending.ListedAsset{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"listings": listings})
}

func (lr *lendingRoutes) handleOffer(w http.ResponseWriter, r *http.Request) {
	id, err := parseOfferID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid offer id"})
		return
	}
	offer, err := lr.engine.GetOffer(id)
	if err != nil {
		writeEngineFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offer": offer})
}

func (lr *lendingRoutes) handleInterest(w http.ResponseWriter, r *http.Request) {
	id, err := parseOfferID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid offer id"})
		return
	}
	elapsed, err := strconv.ParseInt(r.URL.Query().Get("elapsed"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "elapsed query parameter required"})
		return
	}
	interest, err := lr.engine.GetInterest(id, elapsed)
	if err != nil {
		writeEngineFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"offerId":  id,
		"elapsed":  elapsed,
		"interest": interest.String(),
	})
}

func (lr *lendingRoutes) handleAssetOffers(w http.ResponseWriter, r *http.Request) {
	contract, err := crypto.DecodeAddress(chi.URLParam(r, "contract"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid asset contract"})
		return
	}
	assetID, err := strconv.ParseUint(chi.URLParam(r, "assetID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid asset id"})
		return
	}
	offers, err := lr.engine.GetOffersByAsset(contract, assetID)
	if err != nil {
		writeEngineFailure(w, err)
		return
	}
	if offers == nil {
		offers = []*lending.Offer{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offers": offers})
}
