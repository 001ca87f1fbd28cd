package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/market-downloader/internal/types"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon    ProviderType = "polygon"
	ProviderTwelveData ProviderType = "twelvedata"
)

// DefaultTimeout bounds a single HTTP request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Cursor is an opaque pagination token identifying the next page of a
// response. Polygon returns it as a next_url; Twelve Data computes it as
// the start instant of the next date-range slice.
type Cursor string

// FetchRequest describes one bounded download: a ticker, an inclusive date
// range, the bucket size and the vendor API key. Immutable for the
// duration of an invocation.
type FetchRequest struct {
	Ticker      string      `validate:"required"`
	From        time.Time   `validate:"required"`
	To          time.Time   `validate:"required,gtefield=From"`
	Granularity Granularity `validate:"required,oneof=minute day"`
	APIKey      string      `validate:"required"`
}

// Validate checks the request fields. A missing API key is reported as an
// AuthError so callers can fail fast without issuing a request.
func (r FetchRequest) Validate() error {
	if r.APIKey == "" {
		return &AuthError{Reason: "API key not provided"}
	}

	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid fetch request: %w", err)
	}

	return nil
}

// Page is one parsed response page: normalized bars in ascending timestamp
// order plus the cursor of the next page, if any.
type Page struct {
	Bars []types.Bar
	Next optional.Option[Cursor]
}

// Provider is the closed set of vendor adapters. One FetchPage call issues
// one HTTP request and returns one normalized page regardless of the
// vendor's field naming and typing. Adding a vendor means adding a
// variant, not modifying the pager.
type Provider interface {
	// Name returns the provider identifier used in logs and errors.
	Name() string
	// FetchPage fetches the page identified by cursor, or the first page of
	// the request when cursor is none.
	FetchPage(ctx context.Context, req FetchRequest, cursor optional.Option[Cursor]) (Page, error)
}

// Options configures a vendor adapter.
type Options struct {
	// BaseURL overrides the vendor endpoint. Tests point it at a stub server.
	BaseURL string
	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewProvider creates a vendor adapter by type.
func NewProvider(providerType ProviderType, opts Options) (Provider, error) {
	switch providerType {
	case ProviderPolygon:
		return NewPolygonProvider(opts), nil
	case ProviderTwelveData:
		return NewTwelveDataProvider(opts), nil
	default:
		return nil, fmt.Errorf("unsupported market data provider: %s", providerType)
	}
}
