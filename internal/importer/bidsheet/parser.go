package bidsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/MrJamesThe3rd/merenda/internal/apperr"
	"github.com/MrJamesThe3rd/merenda/internal/contract"
	enc "github.com/MrJamesThe3rd/merenda/internal/encoding"
)

// Parser reads the price sheets suppliers attach to a won bid, exported as
// semicolon separated CSV, and turns each product row into a contract line
// item. The layout is auto-detected from the header row.
type Parser struct {
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Parser{logger: logger}
}

func (p *Parser) Parse(r io.Reader) ([]contract.LineItemSpec, error) {
	utf8r, charset, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "read csv")
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, apperr.Validation("no known bid sheet layout found: expected a header with description, unit, unit price and quantity columns")
	}

	p.logger.Debug("bid sheet detected",
		zap.String("profile", profile.Name),
		zap.String("charset", string(charset)),
		zap.Int("header_row", headerIdx+1),
	)

	return parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
}

// colIndex maps folded column names to their index in the row.
type colIndex map[string]int

func fold(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			if name := fold(cell); name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[fold(name)]; !ok {
			return false
		}
	}

	return true
}

// parseRows converts data rows to line items. Rows without a description are
// treated as blank or totals lines and skipped; a described row with a bad
// number is an error. headerRowNum is the 0-based header index, used for
// 1-based row numbers in messages.
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) ([]contract.LineItemSpec, error) {
	descIdx := cols[fold(p.DescCol)]
	unitIdx := cols[fold(p.UnitCol)]
	priceIdx := cols[fold(p.PriceCol)]
	qtyIdx := cols[fold(p.QuantityCol)]

	acquiredIdx := -1
	if p.AcquiredCol != "" {
		acquiredIdx = cols[fold(p.AcquiredCol)]
	}

	var items []contract.LineItemSpec

	for i, row := range rows {
		rowNum := headerRowNum + i + 2

		desc := cellValue(row, descIdx)
		if desc == "" {
			continue
		}

		unit := strings.ToUpper(cellValue(row, unitIdx))
		if unit == "" {
			return nil, apperr.Validation("row %d: missing unit", rowNum)
		}

		price, err := parseNonNegative(row, priceIdx)
		if err != nil {
			return nil, apperr.Validation("row %d: invalid unit price: %v", rowNum, err)
		}

		qty, err := parseNonNegative(row, qtyIdx)
		if err != nil {
			return nil, apperr.Validation("row %d: invalid quantity: %v", rowNum, err)
		}

		acquired := decimal.Zero

		if acquiredIdx >= 0 && cellValue(row, acquiredIdx) != "" {
			acquired, err = parseNonNegative(row, acquiredIdx)
			if err != nil {
				return nil, apperr.Validation("row %d: invalid acquired quantity: %v", rowNum, err)
			}
		}

		items = append(items, contract.LineItemSpec{
			Description:        desc,
			Unit:               unit,
			UnitPrice:          price,
			ContractedQuantity: qty,
			AcquiredQuantity:   acquired,
		})
	}

	return items, nil
}

func parseNonNegative(row []string, idx int) (decimal.Decimal, error) {
	s := cellValue(row, idx)
	if s == "" {
		return decimal.Zero, errors.New("empty")
	}

	d, err := parseBrazilianDecimal(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}

	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%q is negative", s)
	}

	return d, nil
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
