package input

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/pathfmt"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

// HTTP is the `http` Input kind: pull-based, returning at most one payload
// per round. Params are substituted into the URL template; for each key
// declared in the `params` option, the round's value (or the option's
// default) is also set in the query string. The `method` option selects
// get, post, put, delete or head. Grounded on
// original_source/batchout/std/inputs/http.py (the original's manual
// redirect-following is replaced by net/http's client default, which
// already bounds redirects).
type HTTP struct {
	fragment registry.Fragment

	url               string
	method            string
	headers           map[string]string
	params            map[string]string
	timeout           time.Duration
	ignoreStatusCodes map[int]bool
	retries           int
	maxBackoff        time.Duration
	client            *http.Client

	mu      sync.Mutex
	fetched bool
}

// NewHTTP constructs an http input from a resolved fragment.
func NewHTTP(fragment registry.Fragment) (*HTTP, error) {
	rawURL, err := config.BindString("input.http", fragment, config.Option{Key: "url", Required: true})
	if err != nil {
		return nil, err
	}
	method, err := config.BindString("input.http", fragment, config.Option{
		Key: "method", Default: "get",
		Choices: []any{"get", "post", "put", "delete", "head"},
	})
	if err != nil {
		return nil, err
	}
	headers, err := config.BindStringMap("input.http", fragment, config.Option{Key: "headers"})
	if err != nil {
		return nil, err
	}
	params, err := config.BindStringMap("input.http", fragment, config.Option{Key: "params"})
	if err != nil {
		return nil, err
	}
	timeoutSec, err := config.BindInt("input.http", fragment, config.Option{Key: "timeout_sec", Default: 60})
	if err != nil {
		return nil, err
	}
	ignoreCodes, err := config.BindIntSlice("input.http", fragment, config.Option{Key: "ignore_status_codes", Default: []any{}})
	if err != nil {
		return nil, err
	}
	retries, err := config.BindInt("input.http", fragment, config.Option{Key: "retries", Default: 3})
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, berrors.NewConfigInvalid("input.http", "retries", "must be a non-negative integer", nil)
	}
	maxBackoffSec, err := config.BindInt("input.http", fragment, config.Option{Key: "max_backoff_sec", Default: 60})
	if err != nil {
		return nil, err
	}
	if maxBackoffSec < 0 {
		return nil, berrors.NewConfigInvalid("input.http", "max_backoff_sec", "must be a non-negative integer", nil)
	}

	ignoreSet := make(map[int]bool, len(ignoreCodes))
	for _, code := range ignoreCodes {
		ignoreSet[code] = true
	}

	return &HTTP{
		fragment:          fragment,
		url:               rawURL,
		method:            strings.ToUpper(method),
		headers:           headers,
		params:            params,
		timeout:           time.Duration(timeoutSec) * time.Second,
		ignoreStatusCodes: ignoreSet,
		retries:           retries,
		maxBackoff:        time.Duration(maxBackoffSec) * time.Second,
		client:            &http.Client{},
	}, nil
}

// Fetch implements Input. It returns at most one payload per round, retrying
// a 4xx/5xx response up to `retries` times with backoff; a second call after
// a successful fetch and before Reset returns (nil, nil).
func (h *HTTP) Fetch(params map[string]any) ([]byte, error) {
	h.mu.Lock()
	if h.fetched {
		h.mu.Unlock()
		return nil, nil
	}
	h.mu.Unlock()

	target, err := h.buildURL(params)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	var attempt int
	for {
		req, err := http.NewRequest(h.method, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "batchout.HttpInput")
		req.Header.Set("Accept", "*/*")
		for k, v := range h.headers {
			req.Header.Set(k, v)
		}

		client := *h.client
		client.Timeout = h.timeout
		resp, err = client.Do(req)
		if err != nil {
			return nil, berrors.NewInputError("http", err)
		}

		if h.ignoreStatusCodes[resp.StatusCode] {
			resp.Body.Close()
			return nil, nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 600 && attempt < h.retries {
			resp.Body.Close()
			attempt++
			time.Sleep(backoff(attempt, h.maxBackoff))
			continue
		}
		break
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, berrors.NewInputError("http", err)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 600 {
		return nil, berrors.NewInputError("http", fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	h.mu.Lock()
	h.fetched = true
	h.mu.Unlock()
	return body, nil
}

func (h *HTTP) buildURL(params map[string]any) (string, error) {
	raw := pathfmt.Format(h.url, params)

	if len(h.params) == 0 {
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	for k, def := range h.params {
		if v, ok := params[k]; ok {
			q.Set(k, fmt.Sprintf("%v", v))
			continue
		}
		q.Set(k, def)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func backoff(attempt int, max time.Duration) time.Duration {
	d := time.Duration(math.Pow(float64(attempt), 2)) * time.Second
	if d > max {
		return max
	}
	return d
}

// Commit implements Input.
func (h *HTTP) Commit() error { return nil }

// Reset implements Input.
func (h *HTTP) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetched = false
	return nil
}

// Clone implements Input.
func (h *HTTP) Clone() (Input, error) { return NewHTTP(h.fragment) }

var _ Input = (*HTTP)(nil)
