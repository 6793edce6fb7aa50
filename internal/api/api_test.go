package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/advisor"
	"mise/internal/inventory"
	"mise/internal/models"
	"mise/internal/monitoring"
	"mise/internal/storage"
)

type testServer struct {
	api       *InventoryAPI
	inventory *inventory.Service
	feed      *Feed
}

func newTestServer(t *testing.T, historyPath string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	if historyPath == "" {
		historyPath = filepath.Join(dir, "history.json")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := storage.NewFileGateway(filepath.Join(dir, "inventory.json"), historyPath)
	svc := inventory.Open(context.Background(), gw,
		inventory.WithCategories(models.DefaultCategories()...),
		inventory.WithLogger(logger),
	)

	feed := NewFeed(logger)
	monitor := monitoring.NewMonitor()
	svc.Subscribe(func(change inventory.Change) {
		monitor.RecordInventoryChange(string(change.Action), change.Snapshot.Len(), 0, change.Degraded)
		feed.Publish(change)
	})
	t.Cleanup(feed.Close)

	a := NewInventoryAPI(Options{
		Inventory: svc,
		Advisor:   advisor.NewResilient(nil, advisor.NewFallback(1)),
		Monitor:   monitor,
		Feed:      feed,
		Logger:    logger,
	})
	return &testServer{api: a, inventory: svc, feed: feed}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.api.Router.ServeHTTP(w, req)
	return w
}

func (s *testServer) stock(t *testing.T, category, name, quantity string) {
	t.Helper()
	w := s.do("POST", "/api/v1/inventory/"+category, gin.H{"name": name, "quantity": quantity})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	decode(t, w, &response)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, false, response["degraded"])
	assert.NotContains(t, response, "last_change")

	s.stock(t, "proteins", "tofu", "1 kg")

	w = s.do("GET", "/health", nil)
	response = nil
	decode(t, w, &response)
	assert.Contains(t, response, "last_change")

	w = s.do("GET", "/api/v1/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	response = nil
	decode(t, w, &response)
	assert.Equal(t, "added", response["last_action"])
}

func TestListCategories(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("GET", "/api/v1/categories", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Categories []string `json:"categories"`
		Units      []string `json:"units"`
	}
	decode(t, w, &response)
	assert.Equal(t, []string{"vegetables", "proteins", "sauces", "grains"}, response.Categories)
	assert.Contains(t, response.Units, "kg")
}

func TestAddAndListItems(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("POST", "/api/v1/inventory/proteins", gin.H{"name": "tofu", "quantity": "1.5 kg"})
	require.Equal(t, http.StatusCreated, w.Code)
	var added map[string]interface{}
	decode(t, w, &added)
	assert.NotContains(t, added, "warning")
	entry := added["entry"].(map[string]interface{})
	assert.Equal(t, "added", entry["action"])

	w = s.do("POST", "/api/v1/inventory/sauces", gin.H{"name": "soy sauce", "amount": 1, "unit": "bottle"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do("GET", "/api/v1/inventory/proteins", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var items []map[string]string
	decode(t, w, &items)
	assert.Equal(t, []map[string]string{{"name": "tofu", "quantity": "1.5 kg"}}, items)

	w = s.do("GET", "/api/v1/inventory", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"vegetables":{},"proteins":{"tofu":"1.5 kg"},"sauces":{"soy sauce":"1 bottle"},"grains":{}}`,
		w.Body.String())
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		category string
		body     interface{}
	}{
		{"unknown category", "desserts", gin.H{"name": "cake", "quantity": "1 piece"}},
		{"empty name", "proteins", gin.H{"name": " ", "quantity": "1 kg"}},
		{"malformed quantity", "proteins", gin.H{"name": "tofu", "quantity": "lots"}},
		{"unknown unit", "proteins", gin.H{"name": "tofu", "quantity": "1 bucket"}},
		{"zero amount", "proteins", gin.H{"name": "tofu", "amount": 0, "unit": "kg"}},
		{"no quantity", "proteins", gin.H{"name": "tofu"}},
		{"exponent quantity", "proteins", gin.H{"name": "tofu", "quantity": "1e100000000 kg"}},
		{"exponent amount", "proteins", gin.H{"name": "tofu", "amount": "1e100000000", "unit": "kg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "")

			w := s.do("POST", "/api/v1/inventory/"+tt.category, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, 0, s.inventory.Snapshot().Len())
		})
	}
}

func TestUpdateAndRemoveMissingItem(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("PUT", "/api/v1/inventory/proteins/tofu", gin.H{"quantity": "2 kg"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do("DELETE", "/api/v1/inventory/proteins/tofu", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Empty(t, s.inventory.History())
}

func TestUseItemAndHistory(t *testing.T) {
	s := newTestServer(t, "")
	s.stock(t, "proteins", "tofu", "1 kg")

	w := s.do("POST", "/api/v1/inventory/proteins/tofu/use", gin.H{"amount": "0.25"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("PUT", "/api/v1/inventory/proteins/tofu", gin.H{"quantity": "3 kg"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("GET", "/api/v1/history?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []map[string]interface{}
	decode(t, w, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, "updated", entries[0]["action"])
	assert.Equal(t, "used", entries[1]["action"])

	w = s.do("POST", "/api/v1/inventory/proteins/tofu/use", gin.H{"amount": "1e100000000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("GET", "/api/v1/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportAndClearHistory(t *testing.T) {
	s := newTestServer(t, "")
	s.stock(t, "proteins", "tofu", "1 kg")

	w := s.do("GET", "/api/v1/history.csv", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,action,category,item,quantity,unit", lines[0])

	w = s.do("DELETE", "/api/v1/history", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.inventory.History())
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, "")
	s.stock(t, "sauces", "soy sauce", "1 bottle")
	s.stock(t, "sauces", "teriyaki sauce", "1 bottle")
	s.stock(t, "proteins", "tofu", "1 kg")

	w := s.do("GET", "/api/v1/search?q=SAUCE", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var results []map[string]interface{}
	decode(t, w, &results)
	assert.Len(t, results, 2)
}

func TestLowStockAndShoppingList(t *testing.T) {
	s := newTestServer(t, "")
	s.stock(t, "proteins", "tofu", "1 kg")
	s.stock(t, "vegetables", "broccoli", "2 bunch")

	w := s.do("GET", "/api/v1/alerts/low-stock", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var low struct {
		Items []map[string]interface{} `json:"items"`
	}
	decode(t, w, &low)
	require.Len(t, low.Items, 1)
	assert.Equal(t, "tofu", low.Items[0]["item"])

	w = s.do("GET", "/api/v1/shopping-list", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Lines []string `json:"lines"`
	}
	decode(t, w, &list)
	assert.Equal(t, []string{"tofu (proteins): Current: 1 kg"}, list.Lines)
}

func TestListRecipesReportsAvailability(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("GET", "/api/v1/recipes", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []map[string]interface{}
	decode(t, w, &response)
	require.Len(t, response, 3)
	assert.Equal(t, "Basic Vegetable Stir Fry", response[0]["name"])
	assert.Equal(t, false, response[0]["available"])
	assert.NotEmpty(t, response[0]["missing"])
}

func TestApplyRecipe(t *testing.T) {
	s := newTestServer(t, "")
	s.stock(t, "proteins", "tofu", "1 kg")
	s.stock(t, "vegetables", "broccoli", "0.25 bunch")

	w := s.do("POST", "/api/v1/recipes/Basic%20Vegetable%20Stir%20Fry/apply", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var response struct {
		Usages []map[string]interface{} `json:"usages"`
	}
	decode(t, w, &response)
	require.Len(t, response.Usages, 2)

	q, ok := s.inventory.Snapshot().Get(models.CategoryProteins, "tofu")
	require.True(t, ok)
	assert.Equal(t, "0.5 kg", q.String())
	_, ok = s.inventory.Snapshot().Get(models.CategoryVegetables, "broccoli")
	assert.False(t, ok)
}

func TestApplyUnknownRecipe(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("POST", "/api/v1/recipes/Soup/apply", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeftoversAndSuggestions(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do("POST", "/api/v1/suggestions/recipe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing stocked")

	s.stock(t, "proteins", "tofu", "1 kg")
	w = s.do("POST", "/api/v1/leftovers/proteins/seitan", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do("POST", "/api/v1/leftovers/proteins/tofu", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("POST", "/api/v1/suggestions/leftovers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var suggestion advisor.Suggestion
	decode(t, w, &suggestion)
	assert.Equal(t, advisor.SourceFallback, suggestion.Source)
	assert.Equal(t, []string{"tofu"}, suggestion.Ingredients)
	assert.Contains(t, suggestion.Description, "leftover tofu")

	w = s.do("POST", "/api/v1/suggestions/recipe", gin.H{"ingredients": []string{"rice", "egg"}})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &suggestion)
	assert.ElementsMatch(t, []string{"rice", "egg"}, suggestion.Ingredients)

	w = s.do("DELETE", "/api/v1/leftovers/proteins/tofu", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.inventory.Leftovers())
}

func TestSaveFailureIsReportedAsWarning(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.Mkdir(historyPath, 0o755))
	s := newTestServer(t, historyPath)

	w := s.do("POST", "/api/v1/inventory/proteins", gin.H{"name": "tofu", "quantity": "1 kg"})

	require.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	decode(t, w, &response)
	assert.Contains(t, response, "warning")

	w = s.do("GET", "/health", nil)
	decode(t, w, &response)
	assert.Equal(t, "degraded", response["status"])
}

func TestFeedBroadcastsChanges(t *testing.T) {
	s := newTestServer(t, "")
	srv := httptest.NewServer(s.api.Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.feed.Clients() == 1 }, time.Second, 10*time.Millisecond)

	s.stock(t, "proteins", "tofu", "1 kg")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ChangeMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "inventory_changed", msg.Type)
	assert.Equal(t, models.ActionAdded, msg.Action)
	q, ok := msg.Inventory.Get(models.CategoryProteins, "tofu")
	require.True(t, ok)
	assert.Equal(t, "1 kg", q.String())
}
