package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CollectionClient provides CRUD operations for a single collection
// (residents, reservations, incidents, ledger)
type CollectionClient struct {
	http     *HTTPClient
	name     string
	basePath string // e.g., "/rest/v1/residents"
}

// NewCollectionClient creates a client for the named collection
func NewCollectionClient(httpClient *HTTPClient, collection string) *CollectionClient {
	return &CollectionClient{
		http:     httpClient,
		name:     collection,
		basePath: "/rest/v1/" + url.PathEscape(collection),
	}
}

// Name returns the collection this client targets
func (c *CollectionClient) Name() string {
	return c.name
}

// List fetches the records of the collection
func (c *CollectionClient) List(ctx context.Context, opts ListOpts) ([]Record, error) {
	params := url.Values{}
	if opts.Order != "" {
		params.Set("order", opts.Order)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	for field, value := range opts.Eq {
		params.Set(field, "eq."+value)
	}

	path := c.basePath
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	req, err := c.http.newJSONRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listResp listResponse
	if err := decodeResponse(resp, &listResp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	if listResp.Items == nil {
		listResp.Items = []Record{}
	}
	return listResp.Items, nil
}

// FindOne returns the first record whose field equals value, or nil when none match
func (c *CollectionClient) FindOne(ctx context.Context, field, value string) (Record, error) {
	items, err := c.List(ctx, ListOpts{Limit: 1, Eq: map[string]string{field: value}})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// Get retrieves a single record by id
func (c *CollectionClient) Get(ctx context.Context, id string) (Record, error) {
	req, err := c.http.newJSONRequest(ctx, http.MethodGet, c.itemPath(id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item Record
	if err := decodeResponse(resp, &item, http.StatusOK); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return item, nil
}

// Create inserts a new record; the server assigns the id
// Returns the created record as stored by the server
func (c *CollectionClient) Create(ctx context.Context, fields Record) (Record, error) {
	req, err := c.http.newJSONRequest(ctx, http.MethodPost, c.basePath, fields)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item Record
	if err := decodeResponse(resp, &item, http.StatusCreated, http.StatusOK); err != nil {
		return nil, fmt.Errorf("create %s: %w", c.name, err)
	}
	return item, nil
}

// Update applies a partial update (PATCH) to the record with the given id
func (c *CollectionClient) Update(ctx context.Context, id string, fields Record) (Record, error) {
	req, err := c.http.newJSONRequest(ctx, http.MethodPatch, c.itemPath(id), fields)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var item Record
	if err := decodeResponse(resp, &item, http.StatusOK); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	return item, nil
}

// Delete removes the record with the given id
func (c *CollectionClient) Delete(ctx context.Context, id string) error {
	req, err := c.http.newJSONRequest(ctx, http.MethodDelete, c.itemPath(id), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := decodeResponse(resp, nil, http.StatusOK, http.StatusNoContent); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

func (c *CollectionClient) itemPath(id string) string {
	return c.basePath + "/" + url.PathEscape(id)
}

// Query lists the records whose fields equal the given values
func (c *CollectionClient) Query(ctx context.Context, filters map[string]string) ([]Record, error) {
	return c.List(ctx, ListOpts{Eq: filters})
}
