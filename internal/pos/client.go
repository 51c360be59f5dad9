// Package pos provides a client for the Alleaves point-of-sale API.
package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrAuthFailed is returned when the credential exchange is rejected.
var (
	ErrAuthFailed = errors.New("pos authentication failed")
	// ErrFetchFailed is returned for transport errors and non-2xx responses.
	ErrFetchFailed = errors.New("pos fetch failed")
)

// Client encapsulates HTTP access to the POS system.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// OrderStatus is the normalized view of a POS order used by reconciliation.
// ItemCounts maps inventory item id to purchased quantity.
type OrderStatus struct {
	ID         string          `json:"id"`
	Total      float64         `json:"total"`
	PickupDate string          `json:"pickupDate"`
	PickupTime string          `json:"pickupTime"`
	Complete   bool            `json:"complete"`
	Status     string          `json:"status"`
	PaidInFull bool            `json:"paidInFull"`
	ItemCounts map[int64]int64 `json:"itemCounts"`
}

// Customer is the payload for registering a customer with the POS.
type Customer struct {
	NameFirst   string `json:"name_first"`
	NameLast    string `json:"name_last"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth"`
}

// InventoryFilter is a single predicate of an inventory search.
type InventoryFilter struct {
	Field    string `json:"field"`
	Value    any    `json:"value"`
	Operator string `json:"operator"`
}

// InventoryItem is one row of the POS inventory search response.
type InventoryItem struct {
	IDItem             int64   `json:"id_item"`
	IDItemGroup        int64   `json:"id_item_group"`
	Item               string  `json:"item"`
	Category           string  `json:"category"`
	Brand              string  `json:"brand"`
	Strain             string  `json:"strain"`
	WeightUseable      float64 `json:"weight_useable"`
	WeightUseableUOM   string  `json:"weight_useable_uom_short"`
	PriceRetail        float64 `json:"price_retail"`
	PriceRetailAdult   float64 `json:"price_retail_adult_use"`
	ProductDescription string  `json:"product_description"`
	MediaList          []struct {
		Content string `json:"content"`
	} `json:"media_list"`
}

// Batch is one row of the POS batch search response.
type Batch struct {
	IDItem    int64 `json:"id_item"`
	Available int64 `json:"available"`
}

// NewClient creates a POS client for the given base address and basic
// credentials. Transient failures are retried by the underlying transport.
func NewClient(baseURL, username, password string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil

	hc := rc.StandardClient()
	hc.Timeout = 15 * time.Second

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: hc,
	}
}

// FetchToken exchanges the stored basic credentials for a bearer token.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("%w: client not configured", ErrAuthFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", nil)
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrAuthFailed, resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrAuthFailed, err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrAuthFailed)
	}

	return result.Token, nil
}

// posOrder is the raw POS order payload. A non-empty Error field means the
// POS has no data for the requested order.
type posOrder struct {
	IDOrder    json.Number `json:"id_order"`
	Total      float64     `json:"total"`
	DatePickup string      `json:"date_pickup"`
	TimePickup string      `json:"time_pickup"`
	Complete   bool        `json:"complete"`
	Status     string      `json:"order_status"`
	PaidInFull bool        `json:"paid_in_full"`
	Items      []struct {
		IDItem   int64 `json:"id_item"`
		Quantity int64 `json:"qty"`
	} `json:"items"`
	Error string `json:"error"`
}

// FetchOrderStatus looks up the current status of a POS order. It returns
// nil without error when the POS reports no data for the order; transport
// and non-2xx failures are returned as errors so callers can treat them as
// "status unknown" rather than "not complete".
func (c *Client) FetchOrderStatus(ctx context.Context, token, posOrderID string) (*OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/order/"+posOrderID, nil)
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	c.setAuthHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	var raw posOrder
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", ErrFetchFailed, err)
	}

	if raw.Error != "" {
		return nil, nil
	}

	status := &OrderStatus{
		ID:         raw.IDOrder.String(),
		Total:      raw.Total,
		PickupDate: raw.DatePickup,
		PickupTime: raw.TimePickup,
		Complete:   raw.Complete,
		Status:     raw.Status,
		PaidInFull: raw.PaidInFull,
		ItemCounts: make(map[int64]int64, len(raw.Items)),
	}
	for _, it := range raw.Items {
		status.ItemCounts[it.IDItem] += it.Quantity
	}

	return status, nil
}

// CreateCustomer registers a customer with the POS and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, token string, cust Customer) (string, error) {
	body, err := json.Marshal(cust)
	if err != nil {
		return "", fmt.Errorf("marshal customer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/customer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create customer request: %w", err)
	}
	c.setAuthHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	var result struct {
		IDCustomer json.Number `json:"id_customer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode customer: %v", ErrFetchFailed, err)
	}

	return result.IDCustomer.String(), nil
}

// searchPageSize is the batch size for paged inventory queries.
const searchPageSize = 5000

// SearchInventory pages through /inventory/search with the given filters.
func (c *Client) SearchInventory(ctx context.Context, token string, filters []InventoryFilter) ([]InventoryItem, error) {
	var all []InventoryItem
	err := c.searchPages(ctx, token, "/inventory/search", filters, func(page json.RawMessage) (int, error) {
		var items []InventoryItem
		if err := json.Unmarshal(page, &items); err != nil {
			return 0, err
		}
		all = append(all, items...)
		return len(items), nil
	})
	return all, err
}

// SearchItems pages through /inventory/item/search for item details.
func (c *Client) SearchItems(ctx context.Context, token string) ([]InventoryItem, error) {
	var all []InventoryItem
	err := c.searchPages(ctx, token, "/inventory/item/search", nil, func(page json.RawMessage) (int, error) {
		var items []InventoryItem
		if err := json.Unmarshal(page, &items); err != nil {
			return 0, err
		}
		all = append(all, items...)
		return len(items), nil
	})
	return all, err
}

// SearchBatches pages through /inventory/batch/search for availability.
func (c *Client) SearchBatches(ctx context.Context, token string) ([]Batch, error) {
	var all []Batch
	err := c.searchPages(ctx, token, "/inventory/batch/search", nil, func(page json.RawMessage) (int, error) {
		var batches []Batch
		if err := json.Unmarshal(page, &batches); err != nil {
			return 0, err
		}
		all = append(all, batches...)
		return len(batches), nil
	})
	return all, err
}

func (c *Client) searchPages(ctx context.Context, token, endpoint string, filters []InventoryFilter, consume func(json.RawMessage) (int, error)) error {
	skip := 0
	if filters == nil {
		filters = []InventoryFilter{}
	}

	for {
		payload := map[string]any{
			"skip": skip,
			"take": searchPageSize,
			"filter": map[string]any{
				"logic":   "and",
				"filters": filters,
			},
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal search: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create search request: %w", err)
		}
		c.setAuthHeaders(req, token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}

		var page json.RawMessage
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: unexpected status %d from %s", ErrFetchFailed, resp.StatusCode, endpoint)
		}
		if decodeErr != nil {
			return fmt.Errorf("%w: decode search page: %v", ErrFetchFailed, decodeErr)
		}

		n, err := consume(page)
		if err != nil {
			return fmt.Errorf("%w: parse search page: %v", ErrFetchFailed, err)
		}
		if n == 0 {
			return nil
		}

		skip += searchPageSize
	}
}

func (c *Client) setAuthHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json; charset=utf-8")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
}
