// Package fetcher retrieves raw stats payloads from upstream providers and
// parses the CSV, JSON and XLSX sources they come in.
package fetcher

import (
	"context"
	"fmt"
	"io"

	"github.com/sells-group/statline/internal/model"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// FetchError reports that the raw data for a (season, week) unit could not
// be retrieved after retries.
type FetchError struct {
	Season int
	Week   int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", model.NewUnit(e.Season, e.Week), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
