package rpc

import (
	"math/big"
	"net/http"

	"lendchain/crypto"
	"lendchain/native/lendpool"
)

type poolAmountParams struct {
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
}

type poolBalanceResult struct {
	Provider string `json:"provider"`
	Balance  string `json:"balance"`
}

type poolStateResult struct {
	Pool *lendpool.State `json:"pool"`
}

func (s *Server) handlePoolDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handlePoolAmount(w, req, s.pool.Deposit)
}

func (s *Server) handlePoolWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handlePoolAmount(w, req, s.pool.Withdraw)
}

func (s *Server) handlePoolAmount(w http.ResponseWriter, req *RPCRequest, action func(crypto.Address, *big.Int) error) {
	var params poolAmountParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	provider, rpcErr := decodeAddressParam(params.Provider, "provider")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := action(provider, amount); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	state, err := s.pool.Get()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, poolBalanceResult{Provider: provider.String(), Balance: state.BalanceOf(provider).String()})
}

func (s *Server) handlePoolGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	state, err := s.pool.Get()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, poolStateResult{Pool: state})
}
