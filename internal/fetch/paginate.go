// Package fetch holds the low-level HTTP plumbing shared by backend
// adapters: cursor pagination with a page bound, and a transient-only
// retry wrapper.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Doer is the subset of http.Client this package needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxPageBody = 32 * 1024 * 1024 // one page should never be this big

// pageEnvelope is the object form of a page response. Servers disagree on
// the field holding the items, so both are captured raw and tried in order.
type pageEnvelope struct {
	Results json.RawMessage `json:"results"`
	Data    json.RawMessage `json:"data"`
	Next    string          `json:"next"`
}

// AllPages follows a cursor-paginated endpoint starting at startURL until no
// next cursor is returned or maxPages pages have been fetched (0 means
// unlimited; the bound exists to cap memory on feeds with unbounded
// history). Items accumulate in arrival order; deduplication is the
// caller's concern. Pages are fetched strictly in cursor order.
func AllPages[T any](ctx context.Context, client Doer, startURL string, maxPages int) ([]T, error) {
	var all []T

	next := startURL
	for page := 0; next != ""; page++ {
		if maxPages > 0 && page >= maxPages {
			break
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("page request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read page: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("page fetch returned status %d", resp.StatusCode)
		}

		items, cursor, err := decodePage(body)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			var batch []T
			if err := json.Unmarshal(items, &batch); err != nil {
				return nil, fmt.Errorf("decode page items: %w", err)
			}
			all = append(all, batch...)
		}

		next, err = resolveCursor(next, cursor)
		if err != nil {
			return nil, err
		}
	}

	return all, nil
}

// decodePage accepts the three page shapes seen in the wild, in order: an
// object with a "results" field, an object with a "data" field, or a bare
// array.
func decodePage(body []byte) (items json.RawMessage, next string, err error) {
	trimmed := bytes.TrimSpace(body)

	var env pageEnvelope
	if jsonErr := json.Unmarshal(trimmed, &env); jsonErr == nil && !bytes.HasPrefix(trimmed, []byte("[")) {
		switch {
		case isPresent(env.Results):
			return env.Results, env.Next, nil
		case isPresent(env.Data):
			return env.Data, env.Next, nil
		default:
			return nil, env.Next, nil
		}
	}

	if bytes.HasPrefix(trimmed, []byte("[")) {
		return json.RawMessage(trimmed), "", nil
	}
	return nil, "", fmt.Errorf("unrecognized page shape: %.40s", trimmed)
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// resolveCursor turns a possibly relative next cursor into an absolute URL.
func resolveCursor(current, cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(cursor)
	if err != nil {
		return "", fmt.Errorf("parse next cursor: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
