// Package fetcher downloads open-data payloads over HTTP with per-host rate
// limiting and retry, and decodes the JSON and CSV bodies they return.
package fetcher

import (
	"context"
	"io"
	"net/http"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadWithHeader is Download with extra request headers (API keys).
	DownloadWithHeader(ctx context.Context, url string, header http.Header) (io.ReadCloser, error)
}
