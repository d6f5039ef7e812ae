package rpc

import (
	"net/http"
	"strings"

	"lendchain/crypto"
	"lendchain/native/lending"
)

type listAssetParams struct {
	AssetContract string `json:"assetContract"`
	AssetID       uint64 `json:"assetId"`
	Caller        string `json:"caller"`
}

type createOfferParams struct {
	AssetContract   string `json:"assetContract"`
	AssetID         uint64 `json:"assetId"`
	InterestRateBps uint64 `json:"interestRateBps"`
	Duration        int64  `json:"duration"`
	Amount          string `json:"amount"`
	Lender          string `json:"lender"`
}

type createPoolOfferParams struct {
	AssetContract   string `json:"assetContract"`
	AssetID         uint64 `json:"assetId"`
	InterestRateBps uint64 `json:"interestRateBps"`
	Duration        int64  `json:"duration"`
	Amount          string `json:"amount"`
	Caller          string `json:"caller"`
}

type offerActionParams struct {
	OfferID uint64 `json:"offerId"`
	Caller  string `json:"caller"`
}

type offerIDParams struct {
	OfferID uint64 `json:"offerId"`
}

type assetParams struct {
	AssetContract string `json:"assetContract"`
	AssetID       uint64 `json:"assetId"`
}

type interestParams struct {
	OfferID uint64 `json:"offerId"`
	Elapsed int64  `json:"elapsed"`
}

type createOfferResult struct {
	OfferID uint64 `json:"offerId"`
}

type offerResult struct {
	Offer *lending.Offer `json:"offer"`
}

type offersResult struct {
	Offers []*lending.Offer `json:"offers"`
}

type listedResult struct {
	Listings []*lending.ListedAsset `json:"listings"`
}

type interestResult struct {
	OfferID  uint64 `json:"offerId"`
	Elapsed  int64  `json:"elapsed"`
	Interest string `json:"interest"`
}

func (s *Server) handleListAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listAssetParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	contract, rpcErr := decodeAddressParam(params.AssetContract, "assetContract")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := decodeAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.lending.List(contract, params.AssetID, caller); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, assetParams{AssetContract: strings.TrimSpace(params.AssetContract), AssetID: params.AssetID})
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createOfferParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	contract, rpcErr := decodeAddressParam(params.AssetContract, "assetContract")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	lender, rpcErr := decodeAddressParam(params.Lender, "lender")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.lending.CreateOffer(contract, params.AssetID, params.InterestRateBps, params.Duration, amount, lender)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, createOfferResult{OfferID: id})
}

func (s *Server) handleCreatePoolOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createPoolOfferParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	contract, rpcErr := decodeAddressParam(params.AssetContract, "assetContract")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := decodeAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.lending.CreatePoolOffer(contract, params.AssetID, params.InterestRateBps, params.Duration, amount, caller)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, createOfferResult{OfferID: id})
}

func (s *Server) handleOfferAction(w http.ResponseWriter, req *RPCRequest, action func(uint64, crypto.Address) error) {
	var params offerActionParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, rpcErr := decodeAddressParam(params.Caller, "caller")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := action(params.OfferID, caller); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	offer, err := s.lending.GetOffer(params.OfferID)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, offerResult{Offer: offer})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleOfferAction(w, req, s.lending.AcceptOffer)
}

func (s *Server) handleRepayLend(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleOfferAction(w, req, s.lending.RepayLend)
}

func (s *Server) handleRedeemCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleOfferAction(w, req, s.lending.RedeemCollateral)
}

func (s *Server) handleCancelOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.handleOfferAction(w, req, s.lending.CancelOffer)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerIDParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	offer, err := s.lending.GetOffer(params.OfferID)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, offerResult{Offer: offer})
}

func (s *Server) handleGetOffersByAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params assetParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	contract, rpcErr := decodeAddressParam(params.AssetContract, "assetContract")
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	offers, err := s.lending.GetOffersByAsset(contract, params.AssetID)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	if offers == nil {
		offers = []*lending.Offer{}
	}
	writeResult(w, req.ID, offersResult{Offers: offers})
}

func (s *Server) handleGetListed(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	listings, err := s.lending.GetListed()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	if listings == nil {
		listings = []*lending.ListedAsset{}
	}
	writeResult(w, req.ID, listedResult{Listings: listings})
}

func (s *Server) handleGetInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params interestParams
	if rpcErr := singleObjectParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	interest, err := s.lending.GetInterest(params.OfferID, params.Elapsed)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, interestResult{OfferID: params.OfferID, Elapsed: params.Elapsed, Interest: interest.String()})
}
