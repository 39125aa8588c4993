package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"github.com/checkbill/checkbill/internal/engine"
	"github.com/checkbill/checkbill/internal/models"
	"github.com/checkbill/checkbill/internal/shortener"
	"github.com/checkbill/checkbill/internal/storage/sqlite"
)

// setupTestServer wires a real SQLite store behind the full router.
// shortenerURL may be empty; share links then fall back to the long form.
func setupTestServer(t *testing.T, shortenerURL string) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	router := mux.NewRouter()
	svc := NewLedgerService(store, shortener.New(shortenerURL, ""), "http://checkbill.test")
	svc.Routes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp
}

// createDinnerLedger creates the canonical three-person dinner ledger and
// returns it with server-assigned IDs.
func createDinnerLedger(t *testing.T, baseURL string) *models.Ledger {
	t.Helper()

	var ledger models.Ledger
	resp := doJSON(t, http.MethodPost, baseURL+"/api/ledgers", map[string]any{
		"name": "Dinner night",
		"persons": []map[string]string{
			{"name": "Alice"}, {"name": "Bob"}, {"name": "Carol"},
		},
	}, &ledger)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create ledger: status %d", resp.StatusCode)
	}
	if len(ledger.Persons) != 3 {
		t.Fatalf("expected 3 persons, got %d", len(ledger.Persons))
	}

	var item models.Item
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/ledgers/%s/items", baseURL, ledger.ID), map[string]any{
		"name":       "Dinner",
		"baseAmount": 300.0,
		"sharedBy":   []string{ledger.Persons[0].ID, ledger.Persons[1].ID, ledger.Persons[2].ID},
		"paidBy":     ledger.Persons[0].ID,
	}, &item)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add item: status %d", resp.StatusCode)
	}
	ledger.Items = append(ledger.Items, item)
	return &ledger
}

func TestSettlementEndpoint(t *testing.T) {
	server := setupTestServer(t, "")
	ledger := createDinnerLedger(t, server.URL)
	alice, bob, carol := ledger.Persons[0], ledger.Persons[1], ledger.Persons[2]

	var result struct {
		Algorithm string                 `json:"algorithm"`
		Balances  []engine.PersonBalance `json:"balances"`
		Transfers []engine.Transfer      `json:"transfers"`
	}
	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/ledgers/%s/settlement", server.URL, ledger.ID), nil, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settlement: status %d", resp.StatusCode)
	}

	if result.Algorithm != "greedy" {
		t.Errorf("algorithm = %q, want greedy", result.Algorithm)
	}

	wantNet := map[string]float64{alice.ID: 200, bob.ID: -100, carol.ID: -100}
	for _, b := range result.Balances {
		if math.Abs(b.NetBalance-wantNet[b.PersonID]) > 0.01 {
			t.Errorf("balance[%s] = %v, want %v", b.Name, b.NetBalance, wantNet[b.PersonID])
		}
	}

	want := []engine.Transfer{
		{From: bob.ID, To: alice.ID, Amount: 100},
		{From: carol.ID, To: alice.ID, Amount: 100},
	}
	if len(result.Transfers) != len(want) {
		t.Fatalf("transfers = %v, want %v", result.Transfers, want)
	}
	for i := range want {
		if result.Transfers[i] != want[i] {
			t.Errorf("transfer[%d] = %v, want %v", i, result.Transfers[i], want[i])
		}
	}
}

func TestItemValidation(t *testing.T) {
	server := setupTestServer(t, "")
	ledger := createDinnerLedger(t, server.URL)
	itemsURL := fmt.Sprintf("%s/api/ledgers/%s/items", server.URL, ledger.ID)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"empty sharer set", map[string]any{"name": "X", "baseAmount": 10.0, "paidBy": ledger.Persons[0].ID}},
		{"missing payer", map[string]any{"name": "X", "baseAmount": 10.0, "sharedBy": []string{ledger.Persons[0].ID}}},
		{"unknown payer", map[string]any{"name": "X", "baseAmount": 10.0, "sharedBy": []string{ledger.Persons[0].ID}, "paidBy": "ghost"}},
		{"unknown sharer", map[string]any{"name": "X", "baseAmount": 10.0, "sharedBy": []string{"ghost"}, "paidBy": ledger.Persons[0].ID}},
		{"negative amount", map[string]any{"name": "X", "baseAmount": -5.0, "sharedBy": []string{ledger.Persons[0].ID}, "paidBy": ledger.Persons[0].ID}},
		{"blank name", map[string]any{"name": "  ", "baseAmount": 10.0, "sharedBy": []string{ledger.Persons[0].ID}, "paidBy": ledger.Persons[0].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, itemsURL, tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestRemovePersonCascadesOverHTTP(t *testing.T) {
	server := setupTestServer(t, "")
	ledger := createDinnerLedger(t, server.URL)
	alice := ledger.Persons[0]

	// Alice paid the only item; removing her must drop it too.
	var updated models.Ledger
	resp := doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/api/ledgers/%s/persons/%s", server.URL, ledger.ID, alice.ID), nil, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove person: status %d", resp.StatusCode)
	}
	if len(updated.Persons) != 2 {
		t.Errorf("persons = %d, want 2", len(updated.Persons))
	}
	if len(updated.Items) != 0 {
		t.Errorf("payer-less item survived: %+v", updated.Items)
	}

	// The cascade is persisted, not just echoed.
	var reloaded models.Ledger
	doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/ledgers/%s", server.URL, ledger.ID), nil, &reloaded)
	if len(reloaded.Items) != 0 {
		t.Errorf("cascade not persisted: %+v", reloaded.Items)
	}
}

func TestShareAndImportRoundTrip(t *testing.T) {
	server := setupTestServer(t, "")
	ledger := createDinnerLedger(t, server.URL)

	var share struct {
		URL     string `json:"url"`
		LongURL string `json:"longUrl"`
		Data    string `json:"data"`
	}
	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/ledgers/%s/share", server.URL, ledger.ID), nil, &share)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("share: status %d", resp.StatusCode)
	}
	// No shortener configured: the share URL is the long URL, unmodified.
	if share.URL != share.LongURL {
		t.Errorf("url = %q, want the long URL %q", share.URL, share.LongURL)
	}
	if share.Data == "" {
		t.Fatal("share data is empty")
	}

	var imported models.Ledger
	resp = doJSON(t, http.MethodPost, server.URL+"/api/import", map[string]string{
		"name": "Imported dinner",
		"data": share.Data,
	}, &imported)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import: status %d", resp.StatusCode)
	}
	if imported.ID == ledger.ID {
		t.Error("import reused the source ledger ID")
	}
	if len(imported.Persons) != 3 || len(imported.Items) != 1 {
		t.Errorf("imported snapshot mismatch: %+v", imported)
	}
	if imported.Items[0].BaseAmount != 300 {
		t.Errorf("imported amount = %v, want 300", imported.Items[0].BaseAmount)
	}
}

func TestImportMalformedDataLeavesStateUntouched(t *testing.T) {
	server := setupTestServer(t, "")
	createDinnerLedger(t, server.URL)

	var before []*models.Ledger
	doJSON(t, http.MethodGet, server.URL+"/api/ledgers", nil, &before)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/import", map[string]string{
		"data": "!!!corrupted!!!",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("import of corrupted data: status %d, want 400", resp.StatusCode)
	}

	var after []*models.Ledger
	doJSON(t, http.MethodGet, server.URL+"/api/ledgers", nil, &after)
	if len(after) != len(before) {
		t.Errorf("ledger count changed from %d to %d on failed import", len(before), len(after))
	}
}

func TestImportNormalizesUntrustedReferences(t *testing.T) {
	server := setupTestServer(t, "")

	// Hand-craft a payload whose item references a person that doesn't exist.
	snapshot := map[string]any{
		"persons": []map[string]string{{"id": "p1", "name": "Alice"}},
		"items": []map[string]any{
			{"id": "i1", "name": "Ghost item", "baseAmount": 10.0, "sharedBy": []string{"ghost"}, "paidBy": "ghost"},
			{"id": "i2", "name": "Valid item", "baseAmount": 10.0, "sharedBy": []string{"p1"}, "paidBy": "p1"},
		},
	}
	raw, _ := json.Marshal(snapshot)
	data := base64.URLEncoding.EncodeToString(raw)

	var imported models.Ledger
	resp := doJSON(t, http.MethodPost, server.URL+"/api/import", map[string]string{"data": data}, &imported)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import: status %d", resp.StatusCode)
	}
	if len(imported.Items) != 1 || imported.Items[0].ID != "i2" {
		t.Errorf("expected only the valid item to survive, got %+v", imported.Items)
	}
}

func TestShortenProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"link": "https://sho.rt/abc"})
	}))
	defer upstream.Close()

	t.Run("success", func(t *testing.T) {
		server := setupTestServer(t, upstream.URL)
		var out struct {
			Link string `json:"link"`
		}
		resp := doJSON(t, http.MethodPost, server.URL+"/api/shorten", map[string]string{
			"long_url": "http://checkbill.test/?data=abc",
		}, &out)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("shorten: status %d", resp.StatusCode)
		}
		if out.Link != "https://sho.rt/abc" {
			t.Errorf("link = %q", out.Link)
		}
	})

	t.Run("invalid long_url", func(t *testing.T) {
		server := setupTestServer(t, upstream.URL)
		resp := doJSON(t, http.MethodPost, server.URL+"/api/shorten", map[string]string{
			"long_url": "notaurl",
		}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("upstream down", func(t *testing.T) {
		server := setupTestServer(t, "http://127.0.0.1:1")
		resp := doJSON(t, http.MethodPost, server.URL+"/api/shorten", map[string]string{
			"long_url": "http://checkbill.test/?data=abc",
		}, nil)
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
	})
}
