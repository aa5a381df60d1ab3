package gokusto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	queryPath = "/v2/rest/query"
	mgmtPath  = "/v1/rest/mgmt"

	headerAuthorization   = "Authorization"
	headerContentType     = "Content-Type"
	headerAccept          = "Accept"
	headerClientRequestID = "x-ms-client-request-id"
	headerClientVersion   = "x-ms-client-version"
	headerUser            = "x-ms-user"
	headerApp             = "x-ms-app"

	contentTypeJSON = "application/json; charset=utf-8"

	defaultMaxRetries = 2
	maxErrorBodyBytes = 4096
)

// queryBody is the request envelope for both query and management calls.
type queryBody struct {
	DB         string                 `json:"db"`
	CSL        string                 `json:"csl"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// kustoRestful posts statements to the service endpoints and hands back the
// raw response body for the decoder.
type kustoRestful struct {
	client  *http.Client
	baseURL string
	auth    authProvider
	details *clientDetails
	retries int
}

func newKustoRestful(cfg *Config, client *http.Client, auth authProvider) *kustoRestful {
	return &kustoRestful{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.ServiceURI, "/"),
		auth:    auth,
		details: defaultClientDetails(),
		retries: defaultMaxRetries,
	}
}

type requestOptions struct {
	requestID  string
	properties map[string]interface{}
}

// post issues the statement and returns the response body. The caller owns
// closing it.
func (r *kustoRestful) post(ctx context.Context, path, database, statement string, opts *requestOptions) (io.ReadCloser, error) {
	body, err := json.Marshal(queryBody{DB: database, CSL: statement, Properties: opts.properties})
	if err != nil {
		return nil, err
	}

	token, err := r.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	requestID := opts.requestID
	if requestID == "" {
		requestID = r.details.requestID()
	}
	headers := map[string]string{
		headerAuthorization:   "Bearer " + token,
		headerContentType:     contentTypeJSON,
		headerAccept:          contentTypeJSON,
		headerClientRequestID: requestID,
		headerClientVersion:   r.details.version,
		headerUser:            escapeHeaderValue(r.details.user),
		headerApp:             escapeHeaderValue(r.details.application),
	}

	res, err := retryHTTP(ctx, r.client, http.MethodPost, r.baseURL+path, headers, body, r.retries)
	if err != nil {
		return nil, &KustoError{
			Number:      ErrCodeServiceError,
			QueryID:     requestID,
			Message:     "request to %s failed: %v",
			MessageArgs: []interface{}{path, err},
		}
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		return nil, serviceError(res, requestID)
	}
	return res.Body, nil
}

// serviceError turns a non-200 response into a KustoError, preferring the
// OneApiError payload when the body carries one.
func serviceError(res *http.Response, requestID string) error {
	excerpt, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))

	var apiErr oneAPIError
	if err := json.Unmarshal(excerpt, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &KustoError{
			Number:  ErrCodeServiceError,
			QueryID: requestID,
			Message: "service returned %d %s: %s",
			MessageArgs: []interface{}{
				res.StatusCode, apiErr.Error.Code, apiErr.Error.Message,
			},
		}
	}
	msg := strings.TrimSpace(string(excerpt))
	if msg == "" {
		msg = res.Status
	}
	return &KustoError{
		Number:      ErrCodeServiceError,
		QueryID:     requestID,
		Message:     "service returned %d: %s",
		MessageArgs: []interface{}{res.StatusCode, fmt.Sprintf("%.512s", msg)},
	}
}
