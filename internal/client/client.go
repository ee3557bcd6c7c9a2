package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Client bundles the auth session, the collection clients, and the
// server-side procedures of one backend project
type Client struct {
	HTTP *HTTPClient
	Auth *AuthClient

	mu          sync.Mutex
	collections map[string]*CollectionClient
	listOpts    map[string]ListOpts
}

// New creates a client for the backend at baseURL
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	httpClient := NewHTTPClient(baseURL, apiKey, timeout)
	return &Client{
		HTTP:        httpClient,
		Auth:        NewAuthClient(httpClient),
		collections: make(map[string]*CollectionClient),
		listOpts:    make(map[string]ListOpts),
	}
}

// Collection returns the (memoized) client for the named collection
func (c *Client) Collection(name string) *CollectionClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	cc, ok := c.collections[name]
	if !ok {
		cc = NewCollectionClient(c.HTTP, name)
		c.collections[name] = cc
	}
	return cc
}

// SetListOptions sets the options used by List for a collection
func (c *Client) SetListOptions(collection string, opts ListOpts) {
	c.mu.Lock()
	c.listOpts[collection] = opts
	c.mu.Unlock()
}

// List fetches a whole collection using its configured list options
func (c *Client) List(ctx context.Context, collection string) ([]Record, error) {
	c.mu.Lock()
	opts := c.listOpts[collection]
	c.mu.Unlock()
	return c.Collection(collection).List(ctx, opts)
}

// Create inserts a record into collection
func (c *Client) Create(ctx context.Context, collection string, fields Record) (Record, error) {
	return c.Collection(collection).Create(ctx, fields)
}

// Update patches a record of collection
func (c *Client) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	return c.Collection(collection).Update(ctx, id, fields)
}

// Delete removes a record of collection
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.Collection(collection).Delete(ctx, id)
}

// RPC invokes a server-side procedure with named arguments and decodes its
// result into out (which may be nil)
func (c *Client) RPC(ctx context.Context, name string, args map[string]any, out any) error {
	req, err := c.HTTP.newJSONRequest(ctx, http.MethodPost, "/rest/v1/rpc/"+url.PathEscape(name), args)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := decodeResponse(resp, out, http.StatusOK, http.StatusNoContent); err != nil {
		return fmt.Errorf("rpc %s: %w", name, err)
	}
	return nil
}

// Aggregate fetches a server-computed aggregate by name into out
func (c *Client) Aggregate(ctx context.Context, name string, out any) error {
	req, err := c.HTTP.newJSONRequest(ctx, http.MethodGet, "/rest/v1/aggregate/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := decodeResponse(resp, out, http.StatusOK); err != nil {
		return fmt.Errorf("aggregate %s: %w", name, err)
	}
	return nil
}
