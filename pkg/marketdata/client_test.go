package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/market-downloader/internal/logger"
	"github.com/rxtech-lab/market-downloader/pkg/marketdata/provider"
	"github.com/rxtech-lab/market-downloader/pkg/marketdata/writer"
	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.logger = log
}

func (suite *ClientTestSuite) validConfig() ClientConfig {
	config := DefaultClientConfig()
	config.Provider = provider.ProviderPolygon
	config.Format = FormatCSV
	config.APIKey = "test-api-key"
	config.RateLimitWait = time.Millisecond

	return config
}

func (suite *ClientTestSuite) validParams() DownloadParams {
	return DownloadParams{
		Ticker:      "AAPL",
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Granularity: provider.GranularityDay,
	}
}

// polygonStub serves a fixed single-page aggregates response.
func (suite *ClientTestSuite) polygonStub() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{
				{"t": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), "o": 185.0, "h": 186.0, "l": 184.5, "c": 185.5, "v": 1000000.0},
			},
		})
	}))
}

func (suite *ClientTestSuite) TestNewClient_RejectsMissingAPIKey() {
	config := suite.validConfig()
	config.APIKey = ""

	_, err := NewClient(config, suite.logger)
	suite.Error(err)
	suite.Contains(err.Error(), "invalid client configuration")
}

func (suite *ClientTestSuite) TestNewClient_RejectsUnknownProvider() {
	config := suite.validConfig()
	config.Provider = "bloomberg"

	_, err := NewClient(config, suite.logger)
	suite.Error(err)
}

func (suite *ClientTestSuite) TestNewClient_RejectsJSONSplitByDay() {
	config := suite.validConfig()
	config.Format = FormatJSON
	config.SplitByDay = true

	_, err := NewClient(config, suite.logger)
	suite.ErrorIs(err, writer.ErrSplitUnsupported)
}

func (suite *ClientTestSuite) TestDownload_RejectsInvalidParams() {
	config := suite.validConfig()
	config.OutputDir = suite.T().TempDir()

	client, err := NewClient(config, suite.logger)
	suite.Require().NoError(err)

	params := suite.validParams()
	params.EndDate = params.StartDate.AddDate(0, 0, -1)

	_, err = client.Download(context.Background(), params, nil)
	suite.Error(err)
	suite.Contains(err.Error(), "invalid download parameters")

	params = suite.validParams()
	params.Ticker = ""

	_, err = client.Download(context.Background(), params, nil)
	suite.Error(err)
}

func (suite *ClientTestSuite) TestDownload_WritesCSV() {
	server := suite.polygonStub()
	defer server.Close()

	outputDir := suite.T().TempDir()

	config := suite.validConfig()
	config.BaseURL = server.URL
	config.OutputDir = outputDir

	client, err := NewClient(config, suite.logger)
	suite.Require().NoError(err)

	paths, err := client.Download(context.Background(), suite.validParams(), nil)
	suite.Require().NoError(err)
	suite.Require().Len(paths, 1)
	suite.Equal(filepath.Join(outputDir, "AAPL_2024-01-01_2024-01-01.csv"), paths[0])

	data, err := os.ReadFile(paths[0])
	suite.Require().NoError(err)
	suite.Equal(
		"ticker,timestamp,open,high,low,close,volume\n"+
			"AAPL,2024-01-01T00:00:00Z,185,186,184.5,185.5,1000000\n",
		string(data))
}

func (suite *ClientTestSuite) TestDownload_ExplicitOutputPath() {
	server := suite.polygonStub()
	defer server.Close()

	outputPath := filepath.Join(suite.T().TempDir(), "custom.json")

	config := suite.validConfig()
	config.BaseURL = server.URL
	config.Format = FormatJSON
	config.OutputPath = outputPath

	client, err := NewClient(config, suite.logger)
	suite.Require().NoError(err)

	paths, err := client.Download(context.Background(), suite.validParams(), nil)
	suite.Require().NoError(err)
	suite.Equal([]string{outputPath}, paths)

	data, err := os.ReadFile(outputPath)
	suite.Require().NoError(err)

	var decoded []map[string]any
	suite.Require().NoError(json.Unmarshal(data, &decoded))
	suite.Require().Len(decoded, 1)
	suite.Equal("AAPL", decoded[0]["ticker"])
	suite.Equal(185.5, decoded[0]["close"])
}

func (suite *ClientTestSuite) TestDownload_Idempotent() {
	server := suite.polygonStub()
	defer server.Close()

	config := suite.validConfig()
	config.BaseURL = server.URL
	config.OutputDir = suite.T().TempDir()

	client, err := NewClient(config, suite.logger)
	suite.Require().NoError(err)

	first, err := client.Download(context.Background(), suite.validParams(), nil)
	suite.Require().NoError(err)

	firstData, err := os.ReadFile(first[0])
	suite.Require().NoError(err)

	second, err := client.Download(context.Background(), suite.validParams(), nil)
	suite.Require().NoError(err)
	suite.Equal(first, second)

	secondData, err := os.ReadFile(second[0])
	suite.Require().NoError(err)
	suite.Equal(firstData, secondData)
}

func (suite *ClientTestSuite) TestDownload_PropagatesAuthError() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	config := suite.validConfig()
	config.BaseURL = server.URL
	config.OutputDir = suite.T().TempDir()

	client, err := NewClient(config, suite.logger)
	suite.Require().NoError(err)

	_, err = client.Download(context.Background(), suite.validParams(), nil)
	suite.Require().Error(err)

	var authErr *provider.AuthError
	suite.ErrorAs(err, &authErr)
}

func (suite *ClientTestSuite) TestDownload_ReportsPageProgress() {
	server := suite.polygonStub()
	defer server.Close()

	config := suite.validConfig()
	config.BaseURL = server.URL
	config.OutputDir = suite.T().TempDir()

	client, err := NewClient(config, suite.logger)
	suite.Require().NoError(err)

	var pages, totals []int
	_, err = client.Download(context.Background(), suite.validParams(), func(page, totalBars int) {
		pages = append(pages, page)
		totals = append(totals, totalBars)
	})
	suite.Require().NoError(err)
	suite.Equal([]int{1}, pages)
	suite.Equal([]int{1}, totals)
}
