package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"oas-testgen/internal/logger"
)

const defaultFetchTimeout = 30 * time.Second

// Loader fetches API descriptions from local paths or remote URLs.
// It keeps no state between calls: every Load re-reads the source.
type Loader struct {
	client *http.Client
	logger *logger.Logger
}

// NewLoader creates a new Loader. A nil client gets a bounded default.
func NewLoader(client *http.Client, log *logger.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Loader{
		client: client,
		logger: logger.OrNop(log),
	}
}

// IsRemote reports whether source should be fetched over HTTP.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Load reads source and parses it into a Document.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if IsRemote(source) {
		data, err = l.fetch(ctx, source)
	} else {
		data, err = l.readFile(source)
	}
	if err != nil {
		l.logger.Error("Loader", err, "Failed to load spec")
		return nil, err
	}

	doc, err := Parse(source, data)
	if err != nil {
		l.logger.Error("Loader", err, "Failed to parse spec")
		return nil, err
	}

	l.logger.Info("Loader", "Loaded %s spec from %s (%d bytes)", doc.Encoding, source, len(data))
	return doc, nil
}

// fetch fetches the API description from the given URL
func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SpecFetchError{Source: url, Err: err}
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &SpecFetchError{Source: url, Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SpecFetchError{Source: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SpecFetchError{Source: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return body, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SpecFetchError{Source: path, Err: err}
	}
	return data, nil
}
