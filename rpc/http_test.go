package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"lendchain/core/state"
	"lendchain/crypto"
	"lendchain/native/lending"
	"lendchain/native/lendpool"
	"lendchain/native/nft"
	"lendchain/native/token"
	"lendchain/storage"
)

const testToken = "test-token"

func makeAddress(fill byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = fill
	}
	return crypto.NewAddress(crypto.LendPrefix, buf)
}

type rpcHarness struct {
	server   *Server
	contract crypto.Address
	owner    crypto.Address
	lender   crypto.Address
	now      int64
}

// newRPCHarness wires real engines over an in-memory database so handler tests
// exercise the full dispatch, decode and error-mapping path.
func newRPCHarness(t *testing.T) *rpcHarness {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())

	ledger := token.NewLedger()
	ledger.SetState(manager)
	registry := nft.NewRegistry()
	registry.SetState(manager)

	h := &rpcHarness{
		contract: makeAddress(0x22),
		owner:    makeAddress(0x33),
		lender:   makeAddress(0x44),
		now:      1_000,
	}
	module := makeAddress(0x01)
	pool := makeAddress(0x02)

	if err := ledger.Mint(h.owner, big.NewInt(5_000)); err != nil {
		t.Fatalf("mint owner: %v", err)
	}
	if err := ledger.Mint(h.lender, big.NewInt(5_000)); err != nil {
		t.Fatalf("mint lender: %v", err)
	}
	if err := registry.Mint(h.contract, 7, h.owner); err != nil {
		t.Fatalf("mint nft: %v", err)
	}

	poolEngine := lendpool.NewEngine(pool)
	poolEngine.SetState(manager)
	poolEngine.SetLedger(ledger)

	lendingEngine := lending.NewEngine(module)
	lendingEngine.SetState(manager)
	lendingEngine.SetLedger(ledger)
	lendingEngine.SetRegistry(registry)
	lendingEngine.SetNowFunc(func() int64 { return h.now })

	h.server = NewServer(lendingEngine, poolEngine, slog.Default())
	h.server.SetAuthToken(testToken)
	return h
}

func (h *rpcHarness) do(t *testing.T, authed bool, method string, params interface{}) (*http.Response, *RPCResponse) {
	t.Helper()
	reqParams := []interface{}{}
	if params != nil {
		reqParams = append(reqParams, params)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  reqParams,
	})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	// Distinct sources keep the per-source limiter out of lifecycle tests.
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", len(method)))
	rec := httptest.NewRecorder()
	h.server.handle(rec, req)

	resp := rec.Result()
	decoded := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func resultInto(t *testing.T, decoded *RPCResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(decoded.Result)
	if err != nil {
		t.Fatalf("re-encode result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestMethodNotFound(t *testing.T) {
	h := newRPCHarness(t)
	resp, decoded := h.do(t, false, "lending_noSuchMethod", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", decoded.Error)
	}
}

func TestMutationRequiresAuth(t *testing.T) {
	h := newRPCHarness(t)
	resp, decoded := h.do(t, false, "lending_listAsset", listAssetParams{
		AssetContract: h.contract.String(),
		AssetID:       7,
		Caller:        h.owner.String(),
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", decoded.Error)
	}
}

func TestOfferLifecycleOverRPC(t *testing.T) {
	h := newRPCHarness(t)

	resp, decoded := h.do(t, true, "lending_listAsset", listAssetParams{
		AssetContract: h.contract.String(),
		AssetID:       7,
		Caller:        h.owner.String(),
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("list asset failed: %d %+v", resp.StatusCode, decoded.Error)
	}

	resp, decoded = h.do(t, true, "lending_createOffer", createOfferParams{
		AssetContract:   h.contract.String(),
		AssetID:         7,
		InterestRateBps: 500,
		Duration:        100,
		Amount:          "1000",
		Lender:          h.lender.String(),
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("create offer failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	var created createOfferResult
	resultInto(t, decoded, &created)

	resp, decoded = h.do(t, true, "lending_acceptOffer", offerActionParams{
		OfferID: created.OfferID,
		Caller:  h.owner.String(),
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("accept offer failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	var accepted offerResult
	resultInto(t, decoded, &accepted)
	if accepted.Offer == nil || accepted.Offer.StartTime != 1_000 || accepted.Offer.EndTime != 1_100 {
		t.Fatalf("unexpected accepted offer: %+v", accepted.Offer)
	}

	h.now = 1_050
	_, decoded = h.do(t, false, "lending_getInterest", interestParams{OfferID: created.OfferID, Elapsed: 50})
	var quote interestResult
	resultInto(t, decoded, &quote)
	if quote.Interest != "25" {
		t.Fatalf("expected interest 25, got %s", quote.Interest)
	}

	resp, decoded = h.do(t, true, "lending_repayLend", offerActionParams{
		OfferID: created.OfferID,
		Caller:  h.owner.String(),
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("repay failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	var repaid offerResult
	resultInto(t, decoded, &repaid)
	if repaid.Offer == nil || repaid.Offer.Active || repaid.Offer.Status != lending.OfferRepaid {
		t.Fatalf("unexpected repaid offer: %+v", repaid.Offer)
	}
}

func TestUnknownOfferMapsToNotFound(t *testing.T) {
	h := newRPCHarness(t)
	resp, decoded := h.do(t, false, "lending_getOffer", offerIDParams{OfferID: 99})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeServerError {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
}

func TestInvalidTermsMapToInvalidParams(t *testing.T) {
	h := newRPCHarness(t)
	_, decoded := h.do(t, true, "lending_listAsset", listAssetParams{
		AssetContract: h.contract.String(),
		AssetID:       7,
		Caller:        h.owner.String(),
	})
	if decoded.Error != nil {
		t.Fatalf("list asset failed: %+v", decoded.Error)
	}
	resp, decoded := h.do(t, true, "lending_createOffer", createOfferParams{
		AssetContract:   h.contract.String(),
		AssetID:         7,
		InterestRateBps: 0,
		Duration:        100,
		Amount:          "1000",
		Lender:          h.lender.String(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if decoded.Error == nil || decoded.Error.Code != codeInvalidParams {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}
}

func TestPoolDepositAndWithdrawOverRPC(t *testing.T) {
	h := newRPCHarness(t)

	resp, decoded := h.do(t, true, "lendpool_deposit", poolAmountParams{
		Provider: h.lender.String(),
		Amount:   "600",
	})
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		t.Fatalf("deposit failed: %d %+v", resp.StatusCode, decoded.Error)
	}
	var balance poolBalanceResult
	resultInto(t, decoded, &balance)
	if balance.Balance != "600" {
		t.Fatalf("expected balance 600, got %s", balance.Balance)
	}

	resp, decoded = h.do(t, true, "lendpool_withdraw", poolAmountParams{
		Provider: h.lender.String(),
		Amount:   "700",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if decoded.Error == nil {
		t.Fatalf("expected error for over-withdrawal")
	}

	_, decoded = h.do(t, false, "lendpool_get", nil)
	var pool poolStateResult
	resultInto(t, decoded, &pool)
	if pool.Pool == nil || pool.Pool.TotalDeposits.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected pool state: %+v", pool.Pool)
	}
}
