package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/market-downloader/internal/types"
	"github.com/stretchr/testify/suite"
)

type CSVWriterTestSuite struct {
	suite.Suite
	dir string
}

func TestCSVWriterSuite(t *testing.T) {
	suite.Run(t, new(CSVWriterTestSuite))
}

func (suite *CSVWriterTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
}

func appleBar() types.Bar {
	return types.Bar{
		Ticker: "AAPL",
		Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:   185.0,
		High:   186.0,
		Low:    184.5,
		Close:  185.5,
		Volume: 1000000,
	}
}

func (suite *CSVWriterTestSuite) readFile(path string) string {
	data, err := os.ReadFile(path)
	suite.Require().NoError(err)

	return string(data)
}

func (suite *CSVWriterTestSuite) TestWrite_SingleFileWithHeader() {
	path := filepath.Join(suite.dir, "AAPL_2024-01-01_2024-01-01.csv")

	paths, err := NewCSVWriter(path, true, FullPrecision).Write([]types.Bar{appleBar()})
	suite.Require().NoError(err)
	suite.Equal([]string{path}, paths)

	suite.Equal(
		"ticker,timestamp,open,high,low,close,volume\n"+
			"AAPL,2024-01-01T00:00:00Z,185,186,184.5,185.5,1000000\n",
		suite.readFile(path))
}

func (suite *CSVWriterTestSuite) TestWrite_NoHeader() {
	path := filepath.Join(suite.dir, "out.csv")

	_, err := NewCSVWriter(path, false, FullPrecision).Write([]types.Bar{appleBar()})
	suite.Require().NoError(err)

	content := suite.readFile(path)
	suite.NotContains(content, "ticker,timestamp")
	suite.Equal(1, strings.Count(content, "\n"))
}

func (suite *CSVWriterTestSuite) TestWrite_MaxDecimalsTruncates() {
	path := filepath.Join(suite.dir, "out.csv")

	bar := appleBar()
	bar.Open = 185.123456
	bar.Close = 185.999999

	_, err := NewCSVWriter(path, false, 2).Write([]types.Bar{bar})
	suite.Require().NoError(err)

	content := suite.readFile(path)
	suite.Contains(content, ",185.12,")
	// Truncation, not rounding.
	suite.Contains(content, ",185.99,")
}

func (suite *CSVWriterTestSuite) TestWrite_TimestampsAreRFC3339UTC() {
	path := filepath.Join(suite.dir, "out.csv")

	est := time.FixedZone("EST", -5*60*60)
	bar := appleBar()
	bar.Time = time.Date(2024, 1, 1, 19, 0, 0, 0, est)

	_, err := NewCSVWriter(path, false, FullPrecision).Write([]types.Bar{bar})
	suite.Require().NoError(err)

	content := suite.readFile(path)
	suite.Contains(content, "2024-01-02T00:00:00Z")

	fields := strings.Split(strings.TrimSpace(content), ",")
	parsed, err := time.Parse(time.RFC3339, fields[1])
	suite.Require().NoError(err)
	suite.True(parsed.Equal(bar.Time))
}

func (suite *CSVWriterTestSuite) TestWrite_SplitByDay() {
	bars := []types.Bar{}
	for day := 1; day <= 3; day++ {
		for minute := 0; minute < 2; minute++ {
			bar := appleBar()
			bar.Time = time.Date(2024, 1, day, 9, 30+minute, 0, 0, time.UTC)
			bars = append(bars, bar)
		}
	}

	paths, err := NewSplitCSVWriter(suite.dir, true, FullPrecision).Write(bars)
	suite.Require().NoError(err)

	suite.Equal([]string{
		filepath.Join(suite.dir, "2024", "01", "AAPL_2024-01-01.csv"),
		filepath.Join(suite.dir, "2024", "01", "AAPL_2024-01-02.csv"),
		filepath.Join(suite.dir, "2024", "01", "AAPL_2024-01-03.csv"),
	}, paths)

	for _, path := range paths {
		content := suite.readFile(path)
		// Each day file carries its own header plus two bars.
		suite.Equal(3, strings.Count(content, "\n"))
		suite.True(strings.HasPrefix(content, "ticker,timestamp,"))
	}
}

func (suite *CSVWriterTestSuite) TestWrite_EmptyBars() {
	path := filepath.Join(suite.dir, "out.csv")

	paths, err := NewCSVWriter(path, true, FullPrecision).Write(nil)
	suite.Require().NoError(err)
	suite.Equal([]string{path}, paths)

	// Header only.
	suite.Equal("ticker,timestamp,open,high,low,close,volume\n", suite.readFile(path))
}

func (suite *CSVWriterTestSuite) TestWrite_SplitEmptyBarsWritesNothing() {
	paths, err := NewSplitCSVWriter(suite.dir, true, FullPrecision).Write(nil)
	suite.Require().NoError(err)
	suite.Empty(paths)
}

func (suite *CSVWriterTestSuite) TestWrite_OverwritesExistingFile() {
	path := filepath.Join(suite.dir, "out.csv")
	suite.Require().NoError(os.WriteFile(path, []byte("stale content"), 0644))

	_, err := NewCSVWriter(path, true, FullPrecision).Write([]types.Bar{appleBar()})
	suite.Require().NoError(err)
	suite.NotContains(suite.readFile(path), "stale")
}

func (suite *CSVWriterTestSuite) TestWrite_LeavesNoTempFiles() {
	path := filepath.Join(suite.dir, "out.csv")

	_, err := NewCSVWriter(path, true, FullPrecision).Write([]types.Bar{appleBar()})
	suite.Require().NoError(err)

	entries, err := os.ReadDir(suite.dir)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Equal("out.csv", entries[0].Name())
}

func (suite *CSVWriterTestSuite) TestWrite_UnwritablePath() {
	_, err := NewCSVWriter(filepath.Join(suite.dir, "missing", "\x00bad", "out.csv"), true, FullPrecision).Write([]types.Bar{appleBar()})
	suite.Require().Error(err)

	var ioErr *IoError
	suite.ErrorAs(err, &ioErr)
}
