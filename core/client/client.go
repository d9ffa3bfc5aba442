// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy access to a REST api

The client either talks to a remote server through HTTP, or directly to an http.Handler
in-process. The in-process mode skips marshalling HTTP and is perfectly suited for unit
tests against a fake backend.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Client provides easy access to the REST API.
type Client struct {
	handler    http.Handler
	httpClient *http.Client
	url        string
	token      string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithHandler creates a client to make pseudo-REST requests to the backend,
// directly through the handler
//
// WithContext() specifies a different base context all together.
func NewWithHandler(handler http.Handler) Client {
	return Client{
		handler:        handler,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend at url. The url
// is the API root, for example "http://localhost:8083" or "https://example.com/api".
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHTTPClient returns a new client which uses hc for remote requests
func (c Client) WithHTTPClient(hc *http.Client) Client {
	c.httpClient = hc
	return c
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	// we want a true copy to avoid side effects
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which sends token as bearer authorization
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// URL returns the API root of the client. It is empty for in-process clients.
func (c Client) URL() string {
	return c.url
}

// StatusError is returned when the backend answered with an unexpected status code.
type StatusError struct {
	Method string
	Path   string
	Status int
	Want   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: handler returned wrong status code: got %v want %v. Error: %s",
		e.Method, e.Path, e.Status, e.Want, e.Body)
}

// Collection represents a collection of particular resource
type Collection struct {
	client     *Client
	segments   []string
	parameters []string
}

// Collection returns a new collection client. Resource is a slash separated path
// relative to the API root, like "configuration" or "data/fitbit".
func (c Client) Collection(resource string) Collection {
	var segments []string
	for _, s := range strings.Split(strings.Trim(resource, "/"), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return Collection{
		client:   &c,
		segments: segments,
	}
}

// WithParameter returns a new collection client with a URL parameter added.
func (r Collection) WithParameter(key string, value string) Collection {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	return Collection{
		client:   r.client,
		segments: r.segments,
		// we want a true copy to avoid side effects
		parameters: append(append([]string{}, r.parameters...), parameter),
	}
}

// WithParameters returns a new collection client with all URL parameters added,
// in key order.
func (r Collection) WithParameters(keyValues map[string]string) Collection {
	return Collection{
		client:     r.client,
		segments:   r.segments,
		parameters: append(append([]string{}, r.parameters...), encodeParameters(keyValues)...),
	}
}

// Path returns the created path for the collection plus optional query strings
func (r Collection) Path() string {
	path := joinSegments(r.segments)
	if len(r.parameters) > 0 {
		path += "?" + strings.Join(r.parameters, "&")
	}
	return path
}

// List gets the entire collection.
//
// The operation corresponds to a GET request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result can be a slice, map[string]interface{} or a raw *[]byte.
func (r Collection) List(result interface{}) (int, error) {
	return r.client.RawGet(r.Path(), result)
}

// Create posts a new item to the collection.
//
// The operation corresponds to a POST request.
//
// Expects http.StatusCreated or http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (r Collection) Create(body interface{}, result interface{}) (int, error) {
	return r.client.RawPost(r.Path(), body, result)
}

// Upsert puts the collection.
//
// The operation corresponds to a PUT request.
//
// Expects http.StatusOK, http.StatusCreated or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
func (r Collection) Upsert(body interface{}, result interface{}) (int, error) {
	return r.client.RawPut(r.Path(), body, result)
}

// Item represents a single item in a collection
type Item struct {
	col        Collection
	segments   []string
	parameters []string
}

// Item gets an item from a collection. The segments are path escaped and appended
// to the collection path.
func (r Collection) Item(segments ...string) Item {
	return Item{col: r, segments: segments}
}

// WithParameter returns a new item client with a URL parameter added.
func (r Item) WithParameter(key string, value string) Item {
	parameter := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	return Item{
		col:      r.col,
		segments: r.segments,
		// we want a true copy to avoid side effects
		parameters: append(append([]string{}, r.parameters...), parameter),
	}
}

// WithParameters returns a new item client with all URL parameters added, in key order.
func (r Item) WithParameters(keyValues map[string]string) Item {
	return Item{
		col:        r.col,
		segments:   r.segments,
		parameters: append(append([]string{}, r.parameters...), encodeParameters(keyValues)...),
	}
}

// Path returns the created path for this item
func (r Item) Path() string {
	escaped := make([]string, 0, len(r.segments))
	for _, s := range r.segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	path := joinSegments(append(append([]string{}, r.col.segments...), escaped...))
	parameters := append(append([]string{}, r.col.parameters...), r.parameters...)
	if len(parameters) > 0 {
		path += "?" + strings.Join(parameters, "&")
	}
	return path
}

// Read reads an item from a collection
//
// The operation corresponds to a GET request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result can also be map[string]interface{} or a raw *[]byte.
func (r Item) Read(result interface{}) (int, error) {
	return r.col.client.RawGet(r.Path(), result)
}

// Create posts to the item.
//
// The operation corresponds to a POST request.
func (r Item) Create(body interface{}, result interface{}) (int, error) {
	return r.col.client.RawPost(r.Path(), body, result)
}

// Upsert puts the item.
//
// The operation corresponds to a PUT request.
func (r Item) Upsert(body interface{}, result interface{}) (int, error) {
	return r.col.client.RawPut(r.Path(), body, result)
}

// Delete deletes an item from a collection
//
// The operation corresponds to a DELETE request.
//
// Expects http.StatusOK, http.StatusAccepted or http.StatusNoContent as response,
// otherwise it will flag an error.
//
// Returns the actual http status code.
func (r Item) Delete() (int, error) {
	return r.col.client.RawDelete(r.Path())
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings. An absolute URL is used as is.
//
// result can be map[string]interface{} or a raw *[]byte.
// result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, resBody, err := c.do(http.MethodGet, path, nil, http.StatusOK, http.StatusNoContent)
	if err != nil || status == http.StatusNoContent {
		return status, err
	}
	return status, decode(resBody, result)
}

// RawPost posts a resource to path. Expects http.StatusCreated or http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	j, err := encode(body)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("POST to %s: %w", path, err)
	}
	status, resBody, err := c.do(http.MethodPost, path, j, http.StatusCreated, http.StatusOK)
	if err != nil {
		return status, err
	}
	return status, decode(resBody, result)
}

// RawPut puts a resource to path. Expects http.StatusOK, http.StatusCreated or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	j, err := encode(body)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("PUT to %s: %w", path, err)
	}
	status, resBody, err := c.do(http.MethodPut, path, j, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	if err != nil {
		return status, err
	}
	return status, decode(resBody, result)
}

// RawDelete deletes the resource at path. Expects http.StatusOK, http.StatusAccepted or
// http.StatusNoContent as response, otherwise it will flag an error.
//
// Returns the actual http status code.
func (c Client) RawDelete(path string) (int, error) {
	status, _, err := c.do(http.MethodDelete, path, nil, http.StatusOK, http.StatusAccepted, http.StatusNoContent)
	return status, err
}

// do executes one request. The first accepted status is the one reported as wanted
// in a StatusError.
func (c Client) do(method, path string, body []byte, accepted ...int) (int, []byte, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.url + path
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	r, err := http.NewRequestWithContext(c.Context(), method, target, reader)
	if err != nil {
		return http.StatusBadRequest, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Accept", "application/json")
	if c.token != "" {
		r.Header.Add("Authorization", "Bearer "+c.token)
	}

	var res *http.Response
	var resBody []byte
	if c.handler != nil {
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, r)
		res = rec.Result()
		resBody = rec.Body.Bytes()
	} else {
		res, err = c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, nil, err
		}
		defer res.Body.Close()
		resBody, err = io.ReadAll(res.Body)
		if err != nil {
			return res.StatusCode, nil, fmt.Errorf("%s %s: reading body: %w", method, path, err)
		}
	}

	status := res.StatusCode
	for _, a := range accepted {
		if status == a {
			return status, resBody, nil
		}
	}
	return status, resBody, &StatusError{
		Method: method,
		Path:   path,
		Status: status,
		Want:   accepted[0],
		Body:   strings.TrimSpace(string(resBody)),
	}
}

func encode(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if j, ok := body.([]byte); ok {
		return j, nil
	}
	return json.Marshal(body)
}

func decode(resBody []byte, result interface{}) error {
	if len(resBody) == 0 || result == nil {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return nil
	}
	return json.Unmarshal(resBody, result)
}

func encodeParameters(keyValues map[string]string) []string {
	keys := make([]string, 0, len(keyValues))
	for key := range keyValues {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parameters := make([]string, 0, len(keys))
	for _, key := range keys {
		parameters = append(parameters, url.QueryEscape(key)+"="+url.QueryEscape(keyValues[key]))
	}
	return parameters
}

func joinSegments(segments []string) string {
	if len(segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(segments, "/")
}
