package view

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dbTimeout = 5 * time.Second

// FormatMoney formats a value in reais with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}

func FormatQuantity(d decimal.Decimal) string {
	return d.String()
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, errors.New("must be a positive whole number")
	}

	return n, nil
}

// parseQuantity accepts both "12.5" and "12,5".
func parseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, errors.New("must be a positive number")
	}

	return d, nil
}

func validatePositiveInt(s string) error {
	_, err := parsePositiveInt(s)
	return err
}

func validateQuantity(s string) error {
	_, err := parseQuantity(s)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}
