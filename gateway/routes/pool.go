package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendchain/crypto"
	"lendchain/native/lendpool"
)

type poolRoutes struct {
	engine *lendpool.Engine
}

func (pr *poolRoutes) mount(r chi.Router) {
	r.Get("/pool", pr.handleState)
	r.Get("/pool/providers/{address}", pr.handleProvider)
}

func (pr *poolRoutes) handleState(w http.ResponseWriter, _ *http.Request) {
	state, err := pr.engine.Get()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pool": state})
}

func (pr *poolRoutes) handleProvider(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid provider address"})
		return
	}
	state, err := pr.engine.Get()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": addr.String(),
		"balance":  state.BalanceOf(addr).String(),
	})
}
