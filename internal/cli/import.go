package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/utils"
)

type importCmd struct {
	symbol string
	file   string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import daily prices for one symbol from a CSV file" }
func (*importCmd) Usage() string {
	return `frontier import -s <symbol> [-f <file.csv>]

  Upserts daily prices into the history database. The CSV needs a header row
  with at least "date" and "close" columns; "open", "high", "low" and "volume"
  are optional. Reads stdin when -f is omitted or "-".
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol the prices belong to")
	f.StringVar(&c.file, "f", "-", "CSV file to import")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.symbol) == "" {
		return fail(domain.ValidationError("import", "symbol", "a symbol is required (-s)"))
	}

	var in io.Reader = os.Stdin
	if c.file != "" && c.file != "-" {
		file, err := os.Open(c.file)
		if err != nil {
			return fail(fmt.Errorf("failed to open %s: %w", c.file, err))
		}
		defer file.Close()
		in = file
	}

	prices, err := parsePricesCSV(in)
	if err != nil {
		return fail(err)
	}

	return run(ctx, func(ctx context.Context, a *app) error {
		n, err := a.History.UpsertPrices(ctx, c.symbol, prices)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d prices for %s\n", n, strings.ToUpper(strings.TrimSpace(c.symbol)))
		return nil
	})
}

// parsePricesCSV reads a header-led price CSV. Missing open/high/low columns
// default to the close.
func parsePricesCSV(r io.Reader) ([]domain.DailyPrice, error) {
	const op = "parse_prices_csv"
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ValidationError(op, "file", "empty CSV")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, domain.ValidationError(op, "date", "CSV header has no date column")
	}
	closeCol, ok := cols["close"]
	if !ok {
		if closeCol, ok = cols["adj close"]; !ok {
			return nil, domain.ValidationError(op, "close", "CSV header has no close column")
		}
	}

	var prices []domain.DailyPrice
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		field := func(col int) string {
			if col < len(rec) {
				return strings.TrimSpace(rec[col])
			}
			return ""
		}
		number := func(name string, fallback float64) (float64, error) {
			col, ok := cols[name]
			if !ok || field(col) == "" {
				return fallback, nil
			}
			v, err := strconv.ParseFloat(field(col), 64)
			if err != nil {
				return 0, domain.ValidationError(op, name, "line %d: invalid %s %q", line, name, field(col))
			}
			return v, nil
		}

		date, err := utils.ParseDate(field(dateCol))
		if err != nil || date.IsZero() {
			return nil, domain.ValidationError(op, "date", "line %d: invalid date %q", line, field(dateCol))
		}
		closePrice, err := strconv.ParseFloat(field(closeCol), 64)
		if err != nil {
			return nil, domain.ValidationError(op, "close", "line %d: invalid close %q", line, field(closeCol))
		}

		p := domain.DailyPrice{Date: date, Close: closePrice}
		if p.Open, err = number("open", closePrice); err != nil {
			return nil, err
		}
		if p.High, err = number("high", closePrice); err != nil {
			return nil, err
		}
		if p.Low, err = number("low", closePrice); err != nil {
			return nil, err
		}
		if col, ok := cols["volume"]; ok && field(col) != "" {
			v, err := strconv.ParseInt(field(col), 10, 64)
			if err != nil {
				return nil, domain.ValidationError(op, "volume", "line %d: invalid volume %q", line, field(col))
			}
			p.Volume = &v
		}
		prices = append(prices, p)
	}

	if len(prices) == 0 {
		return nil, domain.ValidationError(op, "file", "CSV has no price rows")
	}
	return prices, nil
}
