// Package openfda is a small client for the openFDA drug label endpoint.
package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jwalitptl/medvault-api/pkg/circuitbreaker"
)

const DefaultBaseURL = "https://api.fda.gov"

// ErrNotFound means the API answered but had no label for the term.
var ErrNotFound = errors.New("no drug label found")

// Label holds the label sections the dashboard shows. openFDA returns every
// section as an array of paragraphs.
type Label struct {
	Purpose          []string `json:"purpose"`
	Warnings         []string `json:"warnings"`
	ActiveIngredient []string `json:"active_ingredient"`
}

type labelResponse struct {
	Results []Label `json:"results"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "openfda",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			IsFailure:   func(err error) bool { return !errors.Is(err, ErrNotFound) },
		}),
	}
}

// LabelByBrandName returns the first label whose brand name matches term.
func (c *Client) LabelByBrandName(ctx context.Context, term string) (*Label, error) {
	var label *Label
	err := c.breaker.Execute(func() error {
		var err error
		label, err = c.fetch(ctx, term)
		return err
	})
	if err != nil {
		return nil, err
	}
	return label, nil
}

func (c *Client) fetch(ctx context.Context, term string) (*Label, error) {
	q := url.Values{}
	q.Set("search", fmt.Sprintf("openfda.brand_name:%q", term))
	q.Set("limit", "1")
	endpoint := c.baseURL + "/drug/label.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call openfda: %w", err)
	}
	defer resp.Body.Close()

	// openFDA answers 404 with an error document when nothing matches.
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("openfda returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read openfda response: %w", err)
	}

	var parsed labelResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode openfda response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, ErrNotFound
	}
	return &parsed.Results[0], nil
}
