package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gyeh/npi-directory/internal/provider"
	"github.com/rs/zerolog/log"
)

// maxAttempts bounds FetchPage retries.
const maxAttempts = 3

// retryBase is the first backoff delay; it doubles on each attempt.
var retryBase = 2 * time.Second

// FetchPage fetches one page for bulk work, retrying transport failures and
// 5xx responses with exponential backoff. Client errors and application
// errors are returned immediately.
func (c *Client) FetchPage(ctx context.Context, q Query) (*provider.Page, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * retryBase
			log.Warn().Err(lastErr).Int("page", q.Page).Dur("backoff", delay).Msg("retrying page")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		res, err := c.ListDoctors(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if res.Kind == KindOK {
			return res.Page, nil
		}

		lastErr = res.Err()
		var se *StatusError
		if errors.As(lastErr, &se) && !se.Retryable() {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("fetching page %d failed after retries: %w", q.Page, lastErr)
}

// Walk visits every page matching q, starting at q.Page, until the server
// reports no next page or fn returns an error.
func (c *Client) Walk(ctx context.Context, q Query, fn func(*provider.Page) error) error {
	if q.Page < 1 {
		q.Page = 1
	}
	for {
		page, err := c.FetchPage(ctx, q)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if !page.Pagination.HasNextPage {
			return nil
		}
		q.Page++
	}
}
