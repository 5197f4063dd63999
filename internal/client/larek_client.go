package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-api/internal/appstate"
)

// ErrNotFound is returned when the upstream reports a missing resource.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream request failed with status %d: %s", e.StatusCode, e.Message)
}

// LarekClient talks to the remote catalog and order API.
type LarekClient struct {
	apiURL     string
	cdnURL     string
	httpClient *http.Client
}

// NewLarekClient creates a client. Image paths in catalog responses are
// prefixed with cdnURL.
func NewLarekClient(apiURL, cdnURL string, timeout time.Duration) *LarekClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LarekClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		cdnURL: strings.TrimRight(cdnURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type productListResponse struct {
	Total int                `json:"total"`
	Items []appstate.Product `json:"items"`
}

type orderRequest struct {
	Payment appstate.PaymentMethod `json:"payment"`
	Email   string                 `json:"email"`
	Phone   string                 `json:"phone"`
	Address string                 `json:"address"`
	Total   json.Number            `json:"total"`
	Items   []string               `json:"items"`
}

type errorBody struct {
	Error string `json:"error"`
}

// GetProductList fetches the full catalog.
func (c *LarekClient) GetProductList(ctx context.Context) ([]appstate.Product, error) {
	var list productListResponse
	if err := c.do(ctx, http.MethodGet, "/product", nil, &list); err != nil {
		return nil, fmt.Errorf("failed to fetch product list: %w", err)
	}

	products := make([]appstate.Product, 0, len(list.Items))
	for _, p := range list.Items {
		products = append(products, c.withCDN(p))
	}
	return products, nil
}

// GetProduct fetches one product.
func (c *LarekClient) GetProduct(ctx context.Context, id string) (appstate.Product, error) {
	var product appstate.Product
	if err := c.do(ctx, http.MethodGet, "/product/"+id, nil, &product); err != nil {
		return appstate.Product{}, fmt.Errorf("failed to fetch product %s: %w", id, err)
	}
	return c.withCDN(product), nil
}

// OrderProducts submits an order.
func (c *LarekClient) OrderProducts(ctx context.Context, order appstate.Order) (appstate.OrderResult, error) {
	body := orderRequest{
		Payment: order.Payment,
		Email:   order.Email,
		Phone:   order.Phone,
		Address: order.Address,
		Total:   json.Number(order.Total.String()),
		Items:   order.Items,
	}
	if body.Items == nil {
		body.Items = []string{}
	}

	var result appstate.OrderResult
	if err := c.do(ctx, http.MethodPost, "/order", body, &result); err != nil {
		return appstate.OrderResult{}, fmt.Errorf("failed to submit order: %w", err)
	}
	return result, nil
}

// HealthCheck reports whether the upstream answers catalog requests.
func (c *LarekClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/product", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

func (c *LarekClient) withCDN(p appstate.Product) appstate.Product {
	if p.Image != "" && !strings.HasPrefix(p.Image, "http://") && !strings.HasPrefix(p.Image, "https://") {
		p.Image = c.cdnURL + "/" + strings.TrimLeft(p.Image, "/")
	}
	return p
}

func (c *LarekClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
