package marketdata

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/market-downloader/internal/logger"
	"github.com/rxtech-lab/market-downloader/pkg/marketdata/provider"
	"github.com/rxtech-lab/market-downloader/pkg/marketdata/writer"
	"go.uber.org/zap"
)

// Format defines the output serialization format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	return string(f)
}

// Defaults applied by NewClient when the corresponding config field is
// zero.
const (
	DefaultOutputDir     = "data"
	DefaultRateLimitWait = 12 * time.Second
	DefaultMaxRetries    = 3
)

// ClientConfig holds the configuration for the market data client. API
// keys are passed in explicitly; the library never consults the
// environment.
type ClientConfig struct {
	Provider provider.ProviderType `validate:"required,oneof=polygon twelvedata"`
	Format   Format                `validate:"required,oneof=csv json"`
	APIKey   string                `validate:"required"`

	// OutputPath is the explicit output file. When empty the path is
	// auto-generated as {ticker}_{from}_{to}.{ext} under OutputDir.
	OutputPath string
	OutputDir  string

	// BaseURL overrides the vendor endpoint. Tests point it at a stub server.
	BaseURL string

	RateLimitWait  time.Duration
	MaxRetries     int
	RequestTimeout time.Duration

	SplitByDay  bool
	NoHeader    bool
	MaxDecimals int
}

// DefaultClientConfig returns a config with the documented defaults
// filled in. Provider, Format and APIKey still have to be set.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		OutputDir:      DefaultOutputDir,
		RateLimitWait:  DefaultRateLimitWait,
		MaxRetries:     DefaultMaxRetries,
		RequestTimeout: provider.DefaultTimeout,
		MaxDecimals:    writer.FullPrecision,
	}
}

// DownloadParams holds the parameters for one market data download
// request.
type DownloadParams struct {
	Ticker      string               `validate:"required"`
	StartDate   time.Time            `validate:"required"`
	EndDate     time.Time            `validate:"required,gtefield=StartDate"`
	Granularity provider.Granularity `validate:"required,oneof=minute day"`
}

// Client is the orchestrator: it validates inputs, selects the provider
// adapter, runs the pager to completion and hands the accumulated bars to
// a writer.
type Client struct {
	config   ClientConfig
	provider provider.Provider
	validate *validator.Validate
	logger   *logger.Logger
}

// NewClient creates a market data client with the given configuration.
func NewClient(config ClientConfig, log *logger.Logger) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	if config.Format == FormatJSON && config.SplitByDay {
		return nil, writer.ErrSplitUnsupported
	}

	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}

	if config.RateLimitWait == 0 {
		config.RateLimitWait = DefaultRateLimitWait
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}

	marketProvider, err := provider.NewProvider(config.Provider, provider.Options{
		BaseURL: config.BaseURL,
		Timeout: config.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return &Client{
		config:   config,
		provider: marketProvider,
		validate: validate,
		logger:   log,
	}, nil
}

// Download runs one bounded fetch-then-write invocation and returns the
// written paths. The context cancels the fetch between requests.
func (c *Client) Download(ctx context.Context, params DownloadParams, onPage OnPageProgress) ([]string, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid download parameters: %w", err)
	}

	req := provider.FetchRequest{
		Ticker:      params.Ticker,
		From:        params.StartDate,
		To:          params.EndDate,
		Granularity: params.Granularity,
		APIKey:      c.config.APIKey,
	}

	c.logger.Info("starting download",
		zap.String("provider", c.provider.Name()),
		zap.String("ticker", params.Ticker),
		zap.String("from", params.StartDate.Format("2006-01-02")),
		zap.String("to", params.EndDate.Format("2006-01-02")),
		zap.String("granularity", string(params.Granularity)))

	pager := NewPager(c.provider, c.config.RateLimitWait, c.config.MaxRetries, c.logger, onPage)

	bars, err := pager.FetchAll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	barWriter, err := c.setupWriter(params)
	if err != nil {
		return nil, fmt.Errorf("failed to setup writer: %w", err)
	}

	paths, err := barWriter.Write(bars)
	if err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	c.logger.Info("download complete",
		zap.Int("bars", len(bars)),
		zap.Strings("paths", paths))

	return paths, nil
}

// setupWriter initializes the appropriate writer based on configuration.
func (c *Client) setupWriter(params DownloadParams) (writer.BarWriter, error) {
	switch c.config.Format {
	case FormatCSV:
		if c.config.SplitByDay {
			return writer.NewSplitCSVWriter(c.config.OutputDir, !c.config.NoHeader, c.config.MaxDecimals), nil
		}

		return writer.NewCSVWriter(c.outputPath(params), !c.config.NoHeader, c.config.MaxDecimals), nil
	case FormatJSON:
		return writer.NewJSONWriter(c.outputPath(params)), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", c.config.Format)
	}
}

// outputPath resolves the explicit output path, or auto-generates
// {ticker}_{from}_{to}.{ext} under the output directory.
func (c *Client) outputPath(params DownloadParams) string {
	if c.config.OutputPath != "" {
		return c.config.OutputPath
	}

	name := fmt.Sprintf("%s_%s_%s.%s",
		params.Ticker,
		params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"),
		c.config.Format.Extension())

	return filepath.Join(c.config.OutputDir, name)
}
