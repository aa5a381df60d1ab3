package gokusto

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// requestGUIDKey is attached to every request and replaced on each retry so
// attempts are distinguishable server side.
const requestGUIDKey = "request_guid"

var random = rand.New(rand.NewSource(time.Now().UnixNano()))
var randomMu sync.Mutex

type waitAlgo struct {
	base time.Duration // base wait time
	cap  time.Duration // maximum wait time
}

var defaultWaitAlgo = &waitAlgo{base: time.Second, cap: 30 * time.Second}

// decorr computes the decorrelated jitter sleep for the next attempt.
func (w *waitAlgo) decorr(sleep time.Duration) time.Duration {
	randomMu.Lock()
	t := w.base + time.Duration(random.Int63n(int64(sleep*3-w.base+1)))
	randomMu.Unlock()
	if t > w.cap {
		return w.cap
	}
	return t
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryHTTP issues the request, retrying transient failures with jittered
// exponential backoff until maxRetries attempts were made or the context is
// done. A fresh request guid is attached per attempt.
func retryHTTP(
	ctx context.Context,
	client *http.Client,
	method string,
	fullURL string,
	headers map[string]string,
	body []byte,
	maxRetries int) (*http.Response, error) {

	sleep := defaultWaitAlgo.base
	var res *http.Response
	var err error

	for attempt := 0; ; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, replaceRequestGUID(fullURL), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		res, err = client.Do(req)
		if err == nil && !isRetryableStatus(res.StatusCode) {
			return res, nil
		}
		if attempt >= maxRetries {
			return res, err
		}
		if res != nil {
			// Drain so the connection can be reused.
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
		}

		sleep = defaultWaitAlgo.decorr(sleep)
		logger.WithField("attempt", attempt).Debugf("retrying %s %s in %v", method, req.URL.Path, sleep)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// replaceRequestGUID sets a new request guid on the URL, replacing any
// previous one.
func replaceRequestGUID(fullURL string) string {
	u, err := url.Parse(fullURL)
	if err != nil {
		return fullURL
	}
	vs := u.Query()
	vs.Set(requestGUIDKey, uuid.NewString())
	u.RawQuery = vs.Encode()
	return u.String()
}
