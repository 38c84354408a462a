package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Employee is one directory record as returned by the employee-directory
// service.
type Employee struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Directory is the employee/store lookup collaborator consulted during
// recipient resolution.
type Directory interface {
	ListActiveEmployees(ctx context.Context, tenantID string) ([]Employee, error)
	GetEmployee(ctx context.Context, tenantID, employeeID string) (*Employee, error)
	GetStoreName(ctx context.Context, tenantID, storeID string) (string, error)
}

// ErrNotFound is returned when the directory has no record for the id.
var ErrNotFound = fmt.Errorf("directory: not found")

// Client talks to the employee-directory REST service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a directory client for the service at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create directory request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	return nil
}

// ListActiveEmployees returns all active employees of the tenant.
func (c *Client) ListActiveEmployees(ctx context.Context, tenantID string) ([]Employee, error) {
	var employees []Employee
	path := fmt.Sprintf("/tenants/%s/employees?active=true", url.PathEscape(tenantID))
	if err := c.get(ctx, path, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// GetEmployee returns one employee by id, or ErrNotFound.
func (c *Client) GetEmployee(ctx context.Context, tenantID, employeeID string) (*Employee, error) {
	var emp Employee
	path := fmt.Sprintf("/tenants/%s/employees/%s", url.PathEscape(tenantID), url.PathEscape(employeeID))
	if err := c.get(ctx, path, &emp); err != nil {
		return nil, err
	}
	return &emp, nil
}

// GetStoreName resolves the display name of a store, or "" when the store is
// unknown.
func (c *Client) GetStoreName(ctx context.Context, tenantID, storeID string) (string, error) {
	var store struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/tenants/%s/stores/%s", url.PathEscape(tenantID), url.PathEscape(storeID))
	if err := c.get(ctx, path, &store); err != nil {
		if err == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return store.Name, nil
}
