package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ApiClient handles requests to the mise inventory API
type ApiClient struct {
	httpClient *http.Client
	BaseURL    string
}

// NewApiClient creates a new API client
func NewApiClient() *ApiClient {
	baseURL := os.Getenv("MISE_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &ApiClient{
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Item is one stocked item as listed by the API
type Item struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// Shelf is a category with its items
type Shelf struct {
	Category string
	Items    []Item
}

// HistoryEntry is one ledger record
type HistoryEntry struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Action   string `json:"action"`
	Category string `json:"category"`
	Item     string `json:"item"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

// Recipe is a recipe with its availability
type Recipe struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Available    bool   `json:"available"`
	Missing      []struct {
		Item     string `json:"item"`
		Category string `json:"category"`
	} `json:"missing"`
}

// Suggestion is a generated recipe idea
type Suggestion struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Ingredients     []string `json:"ingredients"`
	Instructions    []string `json:"instructions"`
	PreparationTime string   `json:"preparation_time"`
	Source          string   `json:"source"`
}

// mutationResponse carries the optional save warning of a mutation
type mutationResponse struct {
	Warning string `json:"warning"`
}

// CheckHealth reports whether the API is up and whether saves are failing
func (c *ApiClient) CheckHealth() (degraded bool, err error) {
	var health struct {
		Degraded bool `json:"degraded"`
	}
	if err := c.do(http.MethodGet, "/health", nil, &health); err != nil {
		return false, err
	}
	return health.Degraded, nil
}

// GetInventory retrieves every category in order
func (c *ApiClient) GetInventory() ([]Shelf, error) {
	var cats struct {
		Categories []string `json:"categories"`
	}
	if err := c.do(http.MethodGet, "/api/v1/categories", nil, &cats); err != nil {
		return nil, err
	}

	shelves := make([]Shelf, 0, len(cats.Categories))
	for _, cat := range cats.Categories {
		var items []Item
		if err := c.do(http.MethodGet, "/api/v1/inventory/"+url.PathEscape(cat), nil, &items); err != nil {
			return nil, err
		}
		shelves = append(shelves, Shelf{Category: cat, Items: items})
	}
	return shelves, nil
}

// AddItem stocks an item, replacing any existing quantity
func (c *ApiClient) AddItem(category, name, quantity string) (string, error) {
	var resp mutationResponse
	body := map[string]string{"name": name, "quantity": quantity}
	err := c.do(http.MethodPost, "/api/v1/inventory/"+url.PathEscape(category), body, &resp)
	return resp.Warning, err
}

// UseItem deducts amount from an item
func (c *ApiClient) UseItem(category, name, amount string) (string, error) {
	var resp mutationResponse
	path := fmt.Sprintf("/api/v1/inventory/%s/%s/use", url.PathEscape(category), url.PathEscape(name))
	err := c.do(http.MethodPost, path, map[string]string{"amount": amount}, &resp)
	return resp.Warning, err
}

// RemoveItem deletes an item
func (c *ApiClient) RemoveItem(category, name string) (string, error) {
	var resp mutationResponse
	path := fmt.Sprintf("/api/v1/inventory/%s/%s", url.PathEscape(category), url.PathEscape(name))
	err := c.do(http.MethodDelete, path, nil, &resp)
	return resp.Warning, err
}

// MarkLeftover flags an item for priority use
func (c *ApiClient) MarkLeftover(category, name string) error {
	path := fmt.Sprintf("/api/v1/leftovers/%s/%s", url.PathEscape(category), url.PathEscape(name))
	return c.do(http.MethodPost, path, nil, nil)
}

// GetShoppingList retrieves the shopping list lines
func (c *ApiClient) GetShoppingList() ([]string, error) {
	var list struct {
		Lines []string `json:"lines"`
	}
	if err := c.do(http.MethodGet, "/api/v1/shopping-list", nil, &list); err != nil {
		return nil, err
	}
	return list.Lines, nil
}

// GetHistory retrieves the latest ledger entries, newest first
func (c *ApiClient) GetHistory(limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := c.do(http.MethodGet, fmt.Sprintf("/api/v1/history?limit=%d", limit), nil, &entries)
	return entries, err
}

// GetRecipes retrieves every recipe with its availability
func (c *ApiClient) GetRecipes() ([]Recipe, error) {
	var recipes []Recipe
	err := c.do(http.MethodGet, "/api/v1/recipes", nil, &recipes)
	return recipes, err
}

// ApplyRecipe deducts a recipe's ingredients
func (c *ApiClient) ApplyRecipe(name string) (string, error) {
	var resp mutationResponse
	err := c.do(http.MethodPost, "/api/v1/recipes/"+url.PathEscape(name)+"/apply", nil, &resp)
	return resp.Warning, err
}

// SuggestLeftovers asks for a dish that uses up flagged leftovers
func (c *ApiClient) SuggestLeftovers() (*Suggestion, error) {
	var s Suggestion
	if err := c.do(http.MethodPost, "/api/v1/suggestions/leftovers", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SuggestRecipe asks for a dish from the given ingredients, or all stock
func (c *ApiClient) SuggestRecipe(ingredients []string) (*Suggestion, error) {
	var s Suggestion
	body := map[string][]string{"ingredients": ingredients}
	if err := c.do(http.MethodPost, "/api/v1/suggestions/recipe", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *ApiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
