package gokusto

import (
	"context"
	"net/http"
	"time"
)

// Client executes queries and management commands against a Kusto cluster.
// It is safe for concurrent use.
type Client struct {
	cfg    *Config
	rest   *kustoRestful
	closer func()
}

// New builds a client from a parsed configuration. The configuration is
// typically obtained from ParseConnectionString or one of the
// NewConfigWith* constructors.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.ServiceURI == "" {
		return nil, ErrInvalidConn
	}
	transport := &http.Transport{}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
	auth, err := newAuthProvider(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		rest:   newKustoRestful(cfg, httpClient, auth),
		closer: transport.CloseIdleConnections,
	}, nil
}

// NewFromConnectionString parses the connection string and builds a client.
func NewFromConnectionString(connStr string) (*Client, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// QueryOption customizes a single query or management call.
type QueryOption func(*requestOptions)

// WithServerTimeout sets the servertimeout request property, formatted as a
// Kusto timespan literal.
func WithServerTimeout(d time.Duration) QueryOption {
	return WithOption("servertimeout", formatKustoTimespan(d))
}

// WithProgressiveResults asks the service to stream TableHeader and
// TableFragment frames instead of whole DataTable frames.
func WithProgressiveResults(enabled bool) QueryOption {
	return WithOption("results_progressive_enabled", enabled)
}

// WithRequestID overrides the generated x-ms-client-request-id.
func WithRequestID(id string) QueryOption {
	return func(o *requestOptions) { o.requestID = id }
}

// WithOption sets an arbitrary request property by name.
func WithOption(name string, value interface{}) QueryOption {
	return func(o *requestOptions) {
		if o.properties == nil {
			o.properties = map[string]interface{}{}
		}
		opts, ok := o.properties["Options"].(map[string]interface{})
		if !ok {
			opts = map[string]interface{}{}
			o.properties["Options"] = opts
		}
		opts[name] = value
	}
}

func buildRequestOptions(opts []QueryOption) *requestOptions {
	ro := &requestOptions{}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}

// Query runs a KQL query against the database and materializes the v2
// response. Warnings and non-fatal errors are carried on the result; a fatal
// service error returns the partial result alongside the error.
func (c *Client) Query(ctx context.Context, database, query string, opts ...QueryOption) (*QueryResult, error) {
	body, err := c.rest.post(ctx, queryPath, database, query, buildRequestOptions(opts))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return materialize(newFrameDecoder(body))
}

// Mgmt runs a management command against the database using the v1 endpoint.
func (c *Client) Mgmt(ctx context.Context, database, command string, opts ...QueryOption) (*QueryResult, error) {
	body, err := c.rest.post(ctx, mgmtPath, database, command, buildRequestOptions(opts))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	src, err := decodeV1Response(body)
	if err != nil {
		return nil, err
	}
	return materialize(src)
}

// DefaultDatabase returns the initial catalog from the connection string, or
// an empty string when none was given.
func (c *Client) DefaultDatabase() string {
	return c.cfg.InitialCatalog
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.closer()
	return nil
}
