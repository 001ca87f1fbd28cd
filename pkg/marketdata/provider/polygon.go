package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/market-downloader/internal/types"
)

const (
	polygonBaseURL = "https://api.polygon.io"
	// Polygon caps a single aggregates response at 50k results.
	polygonPageLimit = 50000
)

// polygonAggsResponse is the vendor shape of a v2 aggregates page.
type polygonAggsResponse struct {
	Ticker       string       `json:"ticker"`
	Status       string       `json:"status"`
	ResultsCount int          `json:"resultsCount"`
	Results      []polygonAgg `json:"results"`
	NextURL      string       `json:"next_url,omitempty"`
}

// polygonAgg is one raw aggregate with the vendor's single-letter fields.
type polygonAgg struct {
	Timestamp int64   `json:"t"` // Unix milliseconds
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// PolygonProvider fetches aggregates from the Polygon.io v2 range endpoint.
// Pagination follows the next_url cursor returned with each page.
type PolygonProvider struct {
	client  *resty.Client
	baseURL string
}

// NewPolygonProvider creates a Polygon adapter.
func NewPolygonProvider(opts Options) *PolygonProvider {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = polygonBaseURL
	}

	return &PolygonProvider{
		client:  resty.New().SetTimeout(timeout),
		baseURL: baseURL,
	}
}

// Name returns the provider identifier.
func (p *PolygonProvider) Name() string {
	return string(ProviderPolygon)
}

// FetchPage fetches one aggregates page. The first page is built from the
// request; subsequent pages follow the next_url cursor with the API key
// re-appended, since Polygon strips it from next_url.
func (p *PolygonProvider) FetchPage(ctx context.Context, req FetchRequest, cursor optional.Option[Cursor]) (Page, error) {
	if err := req.Validate(); err != nil {
		return Page{}, err
	}

	request := p.client.R().
		SetContext(ctx).
		SetQueryParam("apiKey", req.APIKey)

	var resp *resty.Response
	var err error

	if cur, takeErr := cursor.Take(); takeErr == nil {
		resp, err = request.Get(string(cur))
	} else {
		resp, err = request.
			SetQueryParams(map[string]string{
				"adjusted": "true",
				"sort":     "asc",
				"limit":    strconv.Itoa(polygonPageLimit),
			}).
			Get(p.rangeURL(req))
	}

	if err != nil {
		return Page{}, &NetworkError{Provider: p.Name(), Err: err}
	}

	if pageErr := p.checkStatus(resp); pageErr != nil {
		return Page{}, pageErr
	}

	var body polygonAggsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Page{}, &ProviderError{Provider: p.Name(), Status: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}

	bars := make([]types.Bar, 0, len(body.Results))
	for _, agg := range body.Results {
		bars = append(bars, types.Bar{
			Ticker: req.Ticker,
			Time:   time.UnixMilli(agg.Timestamp).UTC().Truncate(req.Granularity.Duration()),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	next := optional.None[Cursor]()
	if body.NextURL != "" {
		next = optional.Some(Cursor(body.NextURL))
	}

	return Page{Bars: bars, Next: next}, nil
}

// rangeURL builds the v2 aggregates URL for the full requested range.
func (p *PolygonProvider) rangeURL(req FetchRequest) string {
	return fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/%s/%s/%s",
		p.baseURL,
		url.PathEscape(req.Ticker),
		req.Granularity,
		req.From.Format("2006-01-02"),
		req.To.Format("2006-01-02"))
}

// checkStatus maps a non-2xx response onto the error taxonomy.
func (p *PolygonProvider) checkStatus(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return &AuthError{Provider: p.Name(), Status: resp.StatusCode(), Reason: string(resp.Body())}
	case resp.StatusCode() == http.StatusTooManyRequests:
		return &RateLimitError{Provider: p.Name()}
	case !resp.IsSuccess():
		return &ProviderError{Provider: p.Name(), Status: resp.StatusCode(), Body: string(resp.Body())}
	default:
		return nil
	}
}
