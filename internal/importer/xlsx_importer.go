package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

var (
	ErrNoSheet       = errors.New("no sheets found in XLSX file")
	ErrNoData        = errors.New("no data found in XLSX file")
	ErrMissingColumn = errors.New("required column missing")
)

var requiredColumns = []string{"name", "price", "stock"}

// ProductUpserter creates or updates a product keyed by its name.
type ProductUpserter interface {
	UpsertByName(ctx context.Context, input service.ProductInput) (*model.Product, bool, error)
}

// RowError reports a spreadsheet row that was not imported. Row is the
// 1-based row number as shown in a spreadsheet program.
type RowError struct {
	Row    int    `json:"row"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

type Row struct {
	Number int
	Input  service.ProductInput
}

type Report struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped []RowError `json:"skipped"`
}

// ReadProducts parses the first sheet. The first row is a header naming
// the columns name, description, price, stock and image in any order.
// Rows that cannot be parsed are returned as RowErrors.
func ReadProducts(r io.Reader) ([]Row, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, ErrNoData
	}

	columns := make(map[string]int)
	for i, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	cell := func(row []string, column string) string {
		i, ok := columns[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var parsed []Row
	var skipped []RowError
	for i, row := range rows[1:] {
		number := i + 2
		name := cell(row, "name")
		if name == "" && strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}

		price, err := strconv.ParseFloat(cell(row, "price"), 64)
		if err != nil {
			skipped = append(skipped, RowError{Row: number, Name: name, Reason: "price is not a number"})
			continue
		}
		stock, err := strconv.Atoi(cell(row, "stock"))
		if err != nil {
			skipped = append(skipped, RowError{Row: number, Name: name, Reason: "stock is not a whole number"})
			continue
		}

		parsed = append(parsed, Row{
			Number: number,
			Input: service.ProductInput{
				Name:        name,
				Description: cell(row, "description"),
				Price:       price,
				Stock:       stock,
				Image:       cell(row, "image"),
			},
		})
	}

	logger.Info("Read products from XLSX", map[string]interface{}{
		"sheet":   sheetName,
		"rows":    len(rows) - 1,
		"valid":   len(parsed),
		"skipped": len(skipped),
	})
	return parsed, skipped, nil
}

// Import upserts every row by name. Rows rejected by product validation
// are reported and do not stop the import.
func Import(ctx context.Context, products ProductUpserter, rows []Row) (*Report, error) {
	report := &Report{}
	for _, row := range rows {
		_, created, err := products.UpsertByName(ctx, row.Input)
		if err != nil {
			var validation *service.ValidationError
			if errors.As(err, &validation) {
				report.Skipped = append(report.Skipped, RowError{
					Row:    row.Number,
					Name:   row.Input.Name,
					Reason: validation.Message,
				})
				continue
			}
			return report, fmt.Errorf("row %d (%s): %w", row.Number, row.Input.Name, err)
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	logger.Info("Catalog import finished", map[string]interface{}{
		"created": report.Created,
		"updated": report.Updated,
		"skipped": len(report.Skipped),
	})
	return report, nil
}
