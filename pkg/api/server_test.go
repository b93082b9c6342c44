package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/swaplabs/swapd/params"
	"github.com/swaplabs/swapd/pkg/escrow"
	"github.com/swaplabs/swapd/pkg/events"
	"github.com/swaplabs/swapd/pkg/ledger"
	"github.com/swaplabs/swapd/pkg/metering"
	"github.com/swaplabs/swapd/pkg/storage"
	"github.com/swaplabs/swapd/pkg/util"
)

var (
	maker = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	taker = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

const testMint = "sGOR"

type testAPI struct {
	srv    *httptest.Server
	ledger *ledger.Ledger
	clock  *util.ManualClock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := storage.NewPebbleStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := zap.NewNop().Sugar()
	cfg := params.Engine{
		MinOrderAmount:  100_000,
		MaxExpiryWindow: 216_000,
		OrderDeposit:    2_000,
		TokenMint:       testMint,
	}

	book, err := ledger.NewLedger(store, testMint, log)
	if err != nil {
		t.Fatalf("ledger failed: %v", err)
	}
	orders, err := escrow.NewOrderStore(store)
	if err != nil {
		t.Fatalf("order store failed: %v", err)
	}
	journal, err := events.NewStoreLog(store)
	if err != nil {
		t.Fatalf("journal failed: %v", err)
	}

	clock := util.NewManualClock(10)
	hub := NewHub(log)
	sink := events.Tee{journal, NewBroadcaster(hub)}
	engine := escrow.NewEngine(cfg, book, orders, sink, clock, log)

	treasury := common.HexToAddress("0x7E00000000000000000000000000000000000001")
	meter, err := metering.NewService(store, treasury, sink, log)
	if err != nil {
		t.Fatalf("metering failed: %v", err)
	}

	server := NewServer(":0", engine, book, meter, clock, journal, hub, log)
	srv := httptest.NewServer(server.http.Handler)
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, ledger: book, clock: clock}
}

func (a *testAPI) post(t *testing.T, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	resp, err := http.Post(a.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (a *testAPI) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(a.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)

	// Fund maker and taker through the faucet endpoints.
	resp, _ := a.post(t, "/api/v1/accounts/"+maker.Hex()+"/token", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open token account status = %d", resp.StatusCode)
	}
	resp, _ = a.post(t, "/api/v1/accounts/"+maker.Hex()+"/deposit", DepositRequest{Kind: "token", Amount: 1_000_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token deposit status = %d", resp.StatusCode)
	}
	a.post(t, "/api/v1/accounts/"+maker.Hex()+"/deposit", DepositRequest{Amount: 2_000})
	a.post(t, "/api/v1/accounts/"+taker.Hex()+"/token", nil)
	a.post(t, "/api/v1/accounts/"+taker.Hex()+"/deposit", DepositRequest{Amount: 1_000_000})

	resp, body := a.post(t, "/api/v1/orders", CreateOrderRequest{
		Maker:          maker.Hex(),
		Amount:         1_000_000,
		Direction:      "sell_token",
		ExpirationTick: 100,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}
	var created OrderResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("bad create response: %v", err)
	}
	if created.Direction != "sell_token" || created.Amount != 1_000_000 {
		t.Errorf("create response = %+v", created)
	}

	resp, body = a.get(t, "/api/v1/orders/"+created.Address)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get order status = %d", resp.StatusCode)
	}

	resp, body = a.post(t, fmt.Sprintf("/api/v1/orders/%s/fill", created.Address), FillOrderRequest{Taker: taker.Hex()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fill status = %d, body %s", resp.StatusCode, body)
	}

	if got := a.ledger.Balance(taker, ledger.Token); got != 1_000_000 {
		t.Errorf("taker token = %d, want 1000000", got)
	}

	// The settled order is gone.
	resp, _ = a.get(t, "/api/v1/orders/"+created.Address)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get filled order status = %d, want 404", resp.StatusCode)
	}

	// The journal saw creation and fill.
	resp, body = a.get(t, "/api/v1/events?limit=10")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d", resp.StatusCode)
	}
	var entries []events.RawEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("bad events response: %v", err)
	}
	kinds := map[string]bool{}
	for _, e := range entries {
		kinds[e.Kind] = true
	}
	if !kinds["order_created"] || !kinds["order_filled"] {
		t.Errorf("journal kinds = %v", kinds)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	a := newTestAPI(t)

	a.post(t, "/api/v1/accounts/"+maker.Hex()+"/token", nil)
	a.post(t, "/api/v1/accounts/"+maker.Hex()+"/deposit", DepositRequest{Kind: "token", Amount: 1_000_000})
	a.post(t, "/api/v1/accounts/"+maker.Hex()+"/deposit", DepositRequest{Amount: 2_000})

	// Validation failure.
	resp, _ := a.post(t, "/api/v1/orders", CreateOrderRequest{
		Maker: maker.Hex(), Amount: 1, Direction: "sell_token", ExpirationTick: 100,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("below-minimum status = %d, want 400", resp.StatusCode)
	}

	// Unknown order.
	resp, _ = a.post(t, "/api/v1/orders/0x0000000000000000000000000000000000000099/fill", FillOrderRequest{Taker: taker.Hex()})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing order status = %d, want 404", resp.StatusCode)
	}

	// Unauthorized cancel.
	resp, body := a.post(t, "/api/v1/orders", CreateOrderRequest{
		Maker: maker.Hex(), Amount: 1_000_000, Direction: "sell_token", ExpirationTick: 100,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}
	var created OrderResponse
	json.Unmarshal(body, &created)

	resp, _ = a.post(t, fmt.Sprintf("/api/v1/orders/%s/cancel", created.Address), CancelOrderRequest{Caller: taker.Hex()})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unauthorized cancel status = %d, want 403", resp.StatusCode)
	}

	// Duplicate identity.
	resp, _ = a.post(t, "/api/v1/orders", CreateOrderRequest{
		Maker: maker.Hex(), Amount: 1_000_000, Direction: "sell_token", ExpirationTick: 100,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", resp.StatusCode)
	}

	// Expired fill.
	a.clock.Set(500)
	resp, _ = a.post(t, fmt.Sprintf("/api/v1/orders/%s/fill", created.Address), FillOrderRequest{Taker: taker.Hex()})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expired fill status = %d, want 409", resp.StatusCode)
	}

	// Bad address in the path.
	resp, _ = a.get(t, "/api/v1/orders/not-an-address")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad address status = %d, want 400", resp.StatusCode)
	}
}

func TestMeteringOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	owner := maker.Hex()

	resp, _ := a.post(t, "/api/v1/metering/"+owner, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("init status = %d", resp.StatusCode)
	}
	resp, _ = a.post(t, "/api/v1/metering/"+owner, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double init status = %d, want 409", resp.StatusCode)
	}

	resp, body := a.post(t, "/api/v1/metering/"+owner+"/deposit", DepositRequest{Amount: 10_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit status = %d", resp.StatusCode)
	}
	resp, body = a.post(t, "/api/v1/metering/"+owner+"/charge", ChargeRequest{Cost: 4_000})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("charge status = %d", resp.StatusCode)
	}
	resp, body = a.post(t, "/api/v1/metering/"+owner+"/events", RecordEventRequest{Label: "match"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record event status = %d", resp.StatusCode)
	}

	resp, body = a.get(t, "/api/v1/metering/"+owner)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get meter status = %d", resp.StatusCode)
	}
	var acc MeterResponse
	if err := json.Unmarshal(body, &acc); err != nil {
		t.Fatalf("bad meter response: %v", err)
	}
	if acc.Balance != 6_000 || acc.TotalSpent != 4_000 || acc.MatchCount != 1 {
		t.Errorf("meter = %+v", acc)
	}

	resp, body = a.post(t, "/api/v1/metering/"+owner+"/withdraw", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw status = %d", resp.StatusCode)
	}
	var wd WithdrawResponse
	if err := json.Unmarshal(body, &wd); err != nil {
		t.Fatalf("bad withdraw response: %v", err)
	}
	if wd.Amount != 6_000 {
		t.Errorf("withdrew %d, want 6000", wd.Amount)
	}
}

func TestHealthEndpoint(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	var h HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatalf("bad health response: %v", err)
	}
	if h.Status != "ok" || h.CurrentTick != 10 {
		t.Errorf("health = %+v", h)
	}
}

func TestGetAccountEndpoint(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.get(t, "/api/v1/accounts/" + maker.Hex())
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing account status = %d, want 404", resp.StatusCode)
	}

	a.post(t, "/api/v1/accounts/"+maker.Hex()+"/token", nil)
	a.post(t, "/api/v1/accounts/"+maker.Hex()+"/deposit", DepositRequest{Kind: "token", Amount: 500})
	a.post(t, "/api/v1/accounts/"+maker.Hex()+"/deposit", DepositRequest{Amount: 42})

	resp, body := a.get(t, "/api/v1/accounts/" + maker.Hex())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get account status = %d", resp.StatusCode)
	}
	var acc AccountResponse
	if err := json.Unmarshal(body, &acc); err != nil {
		t.Fatalf("bad account response: %v", err)
	}
	if acc.NativeBalance != 42 || acc.TokenBalance != 500 || acc.TokenMint != testMint || acc.Vault {
		t.Errorf("account = %+v", acc)
	}
}
