package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/market-downloader/internal/types"
)

const (
	twelveDataBaseURL = "https://api.twelvedata.com"
	// Twelve Data caps a single time_series response at 5000 values.
	twelveDataPageSize = 5000

	twelveDataTimeLayout = "2006-01-02 15:04:05"
	twelveDataDateLayout = "2006-01-02"
)

// twelveDataResponse is the vendor shape of a time_series page. Errors are
// reported in-band with status "error" even on HTTP 200.
type twelveDataResponse struct {
	Status  string            `json:"status"`
	Code    int               `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Values  []twelveDataValue `json:"values"`
}

// twelveDataValue is one raw bar. All fields are string-typed on the wire.
type twelveDataValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// TwelveDataProvider fetches bars from the Twelve Data time_series
// endpoint. The API has no cursor token, so pagination is driven by
// date-range slicing: a full page advances the cursor to the instant after
// the last returned bar.
type TwelveDataProvider struct {
	client  *resty.Client
	baseURL string
}

// NewTwelveDataProvider creates a Twelve Data adapter.
func NewTwelveDataProvider(opts Options) *TwelveDataProvider {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = twelveDataBaseURL
	}

	return &TwelveDataProvider{
		client:  resty.New().SetTimeout(timeout),
		baseURL: baseURL,
	}
}

// Name returns the provider identifier.
func (p *TwelveDataProvider) Name() string {
	return string(ProviderTwelveData)
}

// FetchPage fetches one time_series page starting at the cursor instant,
// or at the request's from-date when cursor is none.
func (p *TwelveDataProvider) FetchPage(ctx context.Context, req FetchRequest, cursor optional.Option[Cursor]) (Page, error) {
	if err := req.Validate(); err != nil {
		return Page{}, err
	}

	startDate := req.From.Format(twelveDataDateLayout)
	if cur, takeErr := cursor.Take(); takeErr == nil {
		startDate = string(cur)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     req.Ticker,
			"interval":   req.Granularity.TwelveDataInterval(),
			"start_date": startDate,
			"end_date":   req.To.Format(twelveDataDateLayout) + " 23:59:59",
			"order":      "ASC",
			"outputsize": strconv.Itoa(twelveDataPageSize),
			"apikey":     req.APIKey,
		}).
		Get(p.baseURL + "/time_series")

	if err != nil {
		return Page{}, &NetworkError{Provider: p.Name(), Err: err}
	}

	if pageErr := p.checkStatus(resp); pageErr != nil {
		return Page{}, pageErr
	}

	var body twelveDataResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Page{}, &ProviderError{Provider: p.Name(), Status: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}

	if err := p.checkBodyStatus(resp.StatusCode(), body); err != nil {
		return Page{}, err
	}

	bars := make([]types.Bar, 0, len(body.Values))
	for _, value := range body.Values {
		bar, err := p.normalize(req, value)
		if err != nil {
			return Page{}, &ProviderError{Provider: p.Name(), Status: resp.StatusCode(), Err: err}
		}

		bars = append(bars, bar)
	}

	return Page{Bars: bars, Next: p.nextCursor(req, bars)}, nil
}

// normalize converts one string-typed vendor value to a Bar.
func (p *TwelveDataProvider) normalize(req FetchRequest, value twelveDataValue) (types.Bar, error) {
	timestamp, err := time.Parse(twelveDataTimeLayout, value.Datetime)
	if err != nil {
		// Daily series carry a date-only datetime.
		timestamp, err = time.Parse(twelveDataDateLayout, value.Datetime)
		if err != nil {
			return types.Bar{}, fmt.Errorf("parse datetime %q: %w", value.Datetime, err)
		}
	}

	open, err := strconv.ParseFloat(value.Open, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse open %q: %w", value.Open, err)
	}

	high, err := strconv.ParseFloat(value.High, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse high %q: %w", value.High, err)
	}

	low, err := strconv.ParseFloat(value.Low, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse low %q: %w", value.Low, err)
	}

	closePrice, err := strconv.ParseFloat(value.Close, 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse close %q: %w", value.Close, err)
	}

	volume := 0.0
	if value.Volume != "" {
		volume, err = strconv.ParseFloat(value.Volume, 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("parse volume %q: %w", value.Volume, err)
		}
	}

	return types.Bar{
		Ticker: req.Ticker,
		Time:   timestamp.UTC().Truncate(req.Granularity.Duration()),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

// nextCursor computes the next date-range slice. A short page means the
// range is exhausted; a full page continues at the instant after the last
// returned bar.
func (p *TwelveDataProvider) nextCursor(req FetchRequest, bars []types.Bar) optional.Option[Cursor] {
	if len(bars) < twelveDataPageSize {
		return optional.None[Cursor]()
	}

	nextStart := bars[len(bars)-1].Time.Add(req.Granularity.Duration())

	endOfRange := req.To.UTC()
	endOfRange = time.Date(endOfRange.Year(), endOfRange.Month(), endOfRange.Day(), 23, 59, 59, 0, time.UTC)
	if nextStart.After(endOfRange) {
		return optional.None[Cursor]()
	}

	return optional.Some(Cursor(nextStart.Format(twelveDataTimeLayout)))
}

// checkStatus maps a non-2xx response onto the error taxonomy.
func (p *TwelveDataProvider) checkStatus(resp *resty.Response) error {
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

// checkBodyStatus maps Twelve Data's in-band error envelope onto the error
// taxonomy.
func (p *TwelveDataProvider) checkBodyStatus(httpStatus int, body twelveDataResponse) error {
	if body.Status != "error" {
		return nil
	}

	switch body.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Provider: p.Name(), Status: body.Code, Reason: body.Message}
	case http.StatusTooManyRequests:
		return &RateLimitError{Provider: p.Name()}
	default:
		return &ProviderError{Provider: p.Name(), Status: httpStatus, Body: body.Message}
	}
}
