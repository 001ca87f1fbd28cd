package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/market-downloader/internal/logger"
	"github.com/rxtech-lab/market-downloader/pkg/marketdata"
	"github.com/rxtech-lab/market-downloader/pkg/marketdata/provider"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// apiKeyEnvVars maps each provider to the environment variable consulted
// when the --apikey flag is absent.
var apiKeyEnvVars = map[provider.ProviderType]string{
	provider.ProviderPolygon:    "POLYGON_API_KEY",
	provider.ProviderTwelveData: "TWELVEDATA_API_KEY",
}

// downloadAction is the core logic executed by the download command. It
// resolves flags, file-config defaults and environment fallbacks, sets up
// the market data client and runs the download to completion.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	verbose := cmd.Bool("verbose")

	var appLogger *logger.Logger
	var err error

	if verbose {
		appLogger, err = logger.NewVerboseLogger()
	} else {
		appLogger, err = logger.NewLogger()
	}

	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	var fileConfig marketdata.FileConfig

	if path := cmd.String("config"); path != "" {
		loaded, err := marketdata.LoadFileConfig(path)
		if err != nil {
			return err
		}

		fileConfig = *loaded
	}

	providerName := resolveString(cmd, "provider", fileConfig.Provider)
	providerType := provider.ProviderType(providerName)

	apiKey := cmd.String("apikey")
	if apiKey == "" {
		envVar, known := apiKeyEnvVars[providerType]
		if !known {
			return fmt.Errorf("unsupported provider: %s", providerName)
		}

		apiKey = os.Getenv(envVar)
		if apiKey == "" {
			return fmt.Errorf("API key not provided: use --apikey or set %s", envVar)
		}
	}

	granularity, err := provider.ParseGranularity(resolveString(cmd, "granularity", fileConfig.Granularity))
	if err != nil {
		return err
	}

	config := marketdata.DefaultClientConfig()
	config.Provider = providerType
	config.Format = marketdata.Format(resolveString(cmd, "format", fileConfig.Format))
	config.APIKey = apiKey
	config.OutputPath = cmd.String("out")

	if fileConfig.OutputDir != "" {
		config.OutputDir = fileConfig.OutputDir
	}

	if fileConfig.MaxRetries != nil {
		config.MaxRetries = *fileConfig.MaxRetries
	}

	config.RateLimitWait = resolveSeconds(cmd, "rate-limit-wait", fileConfig.RateLimitWaitSecs, config.RateLimitWait)
	config.RequestTimeout = resolveSeconds(cmd, "timeout", fileConfig.TimeoutSecs, config.RequestTimeout)
	config.MaxDecimals = resolveInt(cmd, "max-decimals", fileConfig.MaxDecimals, config.MaxDecimals)
	config.SplitByDay = resolveBool(cmd, "split-by-day", fileConfig.SplitByDay)
	config.NoHeader = resolveBool(cmd, "no-header", fileConfig.NoHeader)

	startDate := cmd.Timestamp("from")

	endDate := startDate
	if cmd.IsSet("to") {
		endDate = cmd.Timestamp("to")
	}

	params := marketdata.DownloadParams{
		Ticker:      cmd.String("ticker"),
		StartDate:   startDate,
		EndDate:     endDate,
		Granularity: granularity,
	}

	client, err := marketdata.NewClient(config, appLogger)
	if err != nil {
		return err
	}

	var onPage marketdata.OnPageProgress

	if verbose {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", params.Ticker)),
			progressbar.OptionShowCount())
		onPage = func(page int, totalBars int) {
			bar.Describe(fmt.Sprintf("Downloading %s: page %d, %d bars", params.Ticker, page, totalBars))
			bar.Add(1)
		}
	}

	paths, err := client.Download(ctx, params, onPage)
	if err != nil {
		return err
	}

	appLogger.Info("saved", zap.Strings("paths", paths))

	return nil
}

// resolveString returns the flag value, falling back to the file-config
// value when the flag was left at its default.
func resolveString(cmd *cli.Command, name string, fileValue string) string {
	if !cmd.IsSet(name) && fileValue != "" {
		return fileValue
	}

	return cmd.String(name)
}

func resolveSeconds(cmd *cli.Command, name string, fileValue *int, fallback time.Duration) time.Duration {
	if cmd.IsSet(name) {
		return time.Duration(cmd.Int(name)) * time.Second
	}

	if fileValue != nil {
		return time.Duration(*fileValue) * time.Second
	}

	return fallback
}

func resolveInt(cmd *cli.Command, name string, fileValue *int, fallback int) int {
	if cmd.IsSet(name) {
		return int(cmd.Int(name))
	}

	if fileValue != nil {
		return *fileValue
	}

	return fallback
}

func resolveBool(cmd *cli.Command, name string, fileValue *bool) bool {
	if cmd.IsSet(name) {
		return cmd.Bool(name)
	}

	if fileValue != nil {
		return *fileValue
	}

	return false
}

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download historical aggregates for a ticker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Ticker symbol, e.g. AAPL or I:SPX",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "from",
				Aliases:  []string{"f"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:    "to",
				Aliases: []string{"T"},
				Usage:   "End date (inclusive) in `YYYY-MM-DD` format. Defaults to the start date.",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:  "granularity",
				Usage: fmt.Sprintf("Bar granularity (%s or %s)", provider.GranularityMinute, provider.GranularityDay),
				Value: string(provider.GranularityMinute),
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: fmt.Sprintf("Output format (%s or %s)", marketdata.FormatCSV, marketdata.FormatJSON),
				Value: string(marketdata.FormatCSV),
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file path. Defaults to {ticker}_{from}_{to}.{ext} under the data directory.",
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s or %s)", provider.ProviderPolygon, provider.ProviderTwelveData),
				Value:   string(provider.ProviderPolygon),
			},
			&cli.StringFlag{
				Name:    "apikey",
				Aliases: []string{"k"},
				Usage:   "Vendor API key. Falls back to POLYGON_API_KEY or TWELVEDATA_API_KEY.",
			},
			&cli.BoolFlag{
				Name:  "split-by-day",
				Usage: "Write one CSV file per calendar day (csv format only)",
			},
			&cli.BoolFlag{
				Name:  "no-header",
				Usage: "Omit the CSV header row",
			},
			&cli.IntFlag{
				Name:  "max-decimals",
				Usage: "Maximum decimal places for numeric CSV fields (-1 keeps full precision)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:  "rate-limit-wait",
				Usage: "Seconds to wait between paged requests (~12s respects 5 req/min plans)",
				Value: 12,
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Per-request HTTP timeout in seconds",
				Value: 30,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML file with default settings; flags take precedence",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Debug logging plus a per-page progress bar",
			},
		},
		Action: downloadAction,
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "market-downloader",
		Usage: "Download historical market data aggregates to CSV or JSON files",
		Commands: []*cli.Command{
			downloadCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
