// Package service exposes the ledger and settlement engine over HTTP.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/checkbill/checkbill/internal/codec"
	"github.com/checkbill/checkbill/internal/engine"
	"github.com/checkbill/checkbill/internal/middleware"
	"github.com/checkbill/checkbill/internal/models"
	"github.com/checkbill/checkbill/internal/shortener"
	"github.com/checkbill/checkbill/internal/storage"
)

// LedgerService owns the single mutable ledger state and drives the
// settlement engine. Every edit rebuilds the snapshot and persists it whole.
type LedgerService struct {
	store     storage.Store
	shortener *shortener.Client
	baseURL   string
}

// NewLedgerService creates a LedgerService with the given collaborators.
func NewLedgerService(store storage.Store, short *shortener.Client, baseURL string) *LedgerService {
	return &LedgerService{
		store:     store,
		shortener: short,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Routes registers all API routes on the given router.
func (s *LedgerService) Routes(r *mux.Router) {
	r.HandleFunc("/api/ledgers", s.handleCreateLedger).Methods(http.MethodPost)
	r.HandleFunc("/api/ledgers", s.handleListLedgers).Methods(http.MethodGet)
	r.HandleFunc("/api/ledgers/{id}", s.handleGetLedger).Methods(http.MethodGet)
	r.HandleFunc("/api/ledgers/{id}", s.handleDeleteLedger).Methods(http.MethodDelete)
	r.HandleFunc("/api/ledgers/{id}/persons", s.handleAddPerson).Methods(http.MethodPost)
	r.HandleFunc("/api/ledgers/{id}/persons/{personID}", s.handleRemovePerson).Methods(http.MethodDelete)
	r.HandleFunc("/api/ledgers/{id}/items", s.handleAddItem).Methods(http.MethodPost)
	r.HandleFunc("/api/ledgers/{id}/items/{itemID}", s.handleUpdateItem).Methods(http.MethodPut)
	r.HandleFunc("/api/ledgers/{id}/items/{itemID}", s.handleDeleteItem).Methods(http.MethodDelete)
	r.HandleFunc("/api/ledgers/{id}/settlement", s.handleGetSettlement).Methods(http.MethodGet)
	r.HandleFunc("/api/ledgers/{id}/share", s.handleShare).Methods(http.MethodGet)
	r.HandleFunc("/api/import", s.handleImport).Methods(http.MethodPost)
	r.HandleFunc("/api/shorten", s.handleShorten).Methods(http.MethodPost)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// loadLedger fetches the ledger named by the route, writing the error
// response itself on failure.
func (s *LedgerService) loadLedger(w http.ResponseWriter, r *http.Request) (*models.Ledger, bool) {
	id := mux.Vars(r)["id"]
	ledger, err := s.store.GetLedger(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ledger not found")
		} else {
			slog.Error("Failed to load ledger", "ledger_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load ledger")
		}
		return nil, false
	}
	return ledger, true
}

// validateItem checks the item invariants against the current persons:
// non-empty name, non-negative amount, at least one sharer, and every
// referenced person known to the ledger.
func validateItem(ledger *models.Ledger, item *models.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return fmt.Errorf("item name must not be empty")
	}
	if item.BaseAmount < 0 {
		return fmt.Errorf("baseAmount must not be negative")
	}
	if len(item.SharedBy) == 0 {
		return fmt.Errorf("sharedBy must not be empty")
	}
	seen := make(map[string]bool, len(item.SharedBy))
	for _, id := range item.SharedBy {
		if !ledger.HasPerson(id) {
			return fmt.Errorf("unknown sharer %q", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate sharer %q", id)
		}
		seen[id] = true
	}
	if item.PaidBy == "" {
		return fmt.Errorf("paidBy is required")
	}
	if !ledger.HasPerson(item.PaidBy) {
		return fmt.Errorf("unknown payer %q", item.PaidBy)
	}
	return nil
}

type createLedgerRequest struct {
	Name    string          `json:"name"`
	Persons []models.Person `json:"persons"`
	Items   []models.Item   `json:"items"`
}

func (s *LedgerService) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	// An empty body means an empty ledger; anything else malformed is a
	// client error.
	var req createLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ledger := &models.Ledger{
		Name:    strings.TrimSpace(req.Name),
		Persons: req.Persons,
		Items:   req.Items,
	}
	for i := range ledger.Persons {
		ledger.Persons[i].Name = strings.TrimSpace(ledger.Persons[i].Name)
		if ledger.Persons[i].Name == "" {
			writeError(w, http.StatusBadRequest, "person name must not be empty")
			return
		}
		if ledger.Persons[i].ID == "" {
			ledger.Persons[i].ID = uuid.New().String()
		}
	}
	for i := range ledger.Items {
		if ledger.Items[i].ID == "" {
			ledger.Items[i].ID = uuid.New().String()
		}
		if err := validateItem(ledger, &ledger.Items[i]); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.store.CreateLedger(r.Context(), ledger); err != nil {
		slog.Error("CreateLedger failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create ledger")
		return
	}

	slog.Info("Ledger created", "ledger_id", ledger.ID, "persons", len(ledger.Persons), "items", len(ledger.Items))
	writeJSON(w, http.StatusCreated, ledger)
}

func (s *LedgerService) handleListLedgers(w http.ResponseWriter, r *http.Request) {
	ledgers, err := s.store.ListLedgers(r.Context())
	if err != nil {
		slog.Error("ListLedgers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list ledgers")
		return
	}
	if ledgers == nil {
		ledgers = []*models.Ledger{}
	}
	writeJSON(w, http.StatusOK, ledgers)
}

func (s *LedgerService) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (s *LedgerService) handleDeleteLedger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteLedger(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ledger not found")
			return
		}
		slog.Error("DeleteLedger failed", "ledger_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete ledger")
		return
	}
	slog.Info("Ledger deleted", "ledger_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type addPersonRequest struct {
	Name string `json:"name"`
}

func (s *LedgerService) handleAddPerson(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}

	var req addPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	person, ok := models.NewPerson(req.Name)
	if !ok {
		writeError(w, http.StatusBadRequest, "person name must not be empty")
		return
	}
	ledger.Persons = append(ledger.Persons, person)

	if err := s.store.SaveLedger(r.Context(), ledger); err != nil {
		slog.Error("AddPerson save failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save ledger")
		return
	}

	slog.Info("Person added", "ledger_id", ledger.ID, "person_id", person.ID)
	writeJSON(w, http.StatusCreated, person)
}

func (s *LedgerService) handleRemovePerson(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}

	personID := mux.Vars(r)["personID"]
	itemsBefore := len(ledger.Items)
	if !ledger.RemovePerson(personID) {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}

	if err := s.store.SaveLedger(r.Context(), ledger); err != nil {
		slog.Error("RemovePerson save failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save ledger")
		return
	}

	slog.Info("Person removed",
		"ledger_id", ledger.ID,
		"person_id", personID,
		"items_dropped", itemsBefore-len(ledger.Items),
	)
	writeJSON(w, http.StatusOK, ledger)
}

func (s *LedgerService) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}

	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateItem(ledger, &item); err != nil {
		slog.Warn("AddItem validation failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.ID = uuid.New().String()
	ledger.Items = append(ledger.Items, item)

	if err := s.store.SaveLedger(r.Context(), ledger); err != nil {
		slog.Error("AddItem save failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save ledger")
		return
	}

	slog.Info("Item added", "ledger_id", ledger.ID, "item_id", item.ID)
	writeJSON(w, http.StatusCreated, item)
}

func (s *LedgerService) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}

	itemID := mux.Vars(r)["itemID"]
	idx := ledger.FindItem(itemID)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateItem(ledger, &item); err != nil {
		slog.Warn("UpdateItem validation failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item.ID = itemID
	ledger.Items[idx] = item

	if err := s.store.SaveLedger(r.Context(), ledger); err != nil {
		slog.Error("UpdateItem save failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save ledger")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (s *LedgerService) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}

	itemID := mux.Vars(r)["itemID"]
	idx := ledger.FindItem(itemID)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	ledger.Items = append(ledger.Items[:idx], ledger.Items[idx+1:]...)

	if err := s.store.SaveLedger(r.Context(), ledger); err != nil {
		slog.Error("DeleteItem save failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save ledger")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type settlementResponse struct {
	Algorithm engine.Algorithm       `json:"algorithm"`
	Balances  []engine.PersonBalance `json:"balances"`
	Transfers []engine.Transfer      `json:"transfers"`
}

func (s *LedgerService) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}

	algo := engine.AlgorithmGreedy
	if r.URL.Query().Get("algorithm") == string(engine.AlgorithmPairwise) {
		algo = engine.AlgorithmPairwise
	}

	// The engine gets its own snapshot; results are never cached.
	snapshot := ledger.Clone()
	balances := engine.Balances(snapshot)
	transfers := engine.ResolveWith(snapshot, algo)
	if transfers == nil {
		transfers = []engine.Transfer{}
	}
	middleware.SettlementsComputed.WithLabelValues(string(algo)).Inc()

	slog.Debug("Settlement computed",
		"ledger_id", ledger.ID,
		"algorithm", algo,
		"transfers", len(transfers),
	)
	writeJSON(w, http.StatusOK, settlementResponse{
		Algorithm: algo,
		Balances:  balances,
		Transfers: transfers,
	})
}

type shareResponse struct {
	URL     string `json:"url"`
	LongURL string `json:"longUrl"`
	Data    string `json:"data"`
}

func (s *LedgerService) handleShare(w http.ResponseWriter, r *http.Request) {
	ledger, ok := s.loadLedger(w, r)
	if !ok {
		return
	}

	data, err := codec.Encode(ledger)
	if err != nil {
		slog.Error("Share encode failed", "ledger_id", ledger.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to encode ledger")
		return
	}

	longURL := fmt.Sprintf("%s/?data=%s", s.baseURL, url.QueryEscape(data))
	shortURL, err := s.shortener.Shorten(r.Context(), longURL)
	if err != nil {
		// Recoverable: the long URL works as-is.
		slog.Warn("Link shortening failed, using long URL", "ledger_id", ledger.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, shareResponse{
		URL:     shortURL,
		LongURL: longURL,
		Data:    data,
	})
}

type importRequest struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

func (s *LedgerService) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Data == "" {
		writeError(w, http.StatusBadRequest, "data is required")
		return
	}

	decoded, err := codec.Decode(req.Data)
	if err != nil {
		var decodeErr *codec.DecodeError
		if errors.As(err, &decodeErr) {
			// Recoverable by contract: nothing was created, the caller's
			// state is untouched.
			slog.Warn("Import decode failed", "error", err)
			writeError(w, http.StatusBadRequest, "malformed share data")
			return
		}
		slog.Error("Import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to import ledger")
		return
	}

	// Share payloads are untrusted; enforce referential integrity before
	// anything touches storage or the engine.
	if decoded.Normalize() {
		slog.Warn("Imported snapshot required normalization")
	}
	decoded.Name = strings.TrimSpace(req.Name)

	if err := s.store.CreateLedger(r.Context(), decoded); err != nil {
		slog.Error("Import create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to import ledger")
		return
	}

	slog.Info("Ledger imported", "ledger_id", decoded.ID, "persons", len(decoded.Persons), "items", len(decoded.Items))
	writeJSON(w, http.StatusCreated, decoded)
}

type shortenProxyRequest struct {
	LongURL string `json:"long_url"`
}

type shortenProxyResponse struct {
	Link string `json:"link"`
}

// handleShorten proxies the upstream link shortener, mirroring the original
// edge function: 400 for a bad long_url, the upstream's error passed through
// as 502 otherwise.
func (s *LedgerService) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req shortenProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LongURL == "" || !strings.HasPrefix(req.LongURL, "http") {
		writeError(w, http.StatusBadRequest, "Invalid long_url")
		return
	}

	link, err := s.shortener.Shorten(r.Context(), req.LongURL)
	if err != nil {
		slog.Warn("Shorten proxy upstream failed", "error", err)
		writeError(w, http.StatusBadGateway, "link shortener unavailable")
		return
	}

	writeJSON(w, http.StatusOK, shortenProxyResponse{Link: link})
}
