package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrJamesThe3rd/merenda/internal/order"
)

type OrderLister interface {
	ListOrders(ctx context.Context, filter order.ListFilter) ([]*order.Order, error)
}

// Item represents a single exported order with its local file path.
type Item struct {
	Order    *order.Order
	FilePath string
}

// Service renders issued orders as plain-text documents for suppliers.
type Service struct {
	orders OrderLister
}

func NewService(orders OrderLister) *Service {
	return &Service{orders: orders}
}

// Export writes one text document per order matching the filter to the
// output directory.
func (s *Service) Export(ctx context.Context, filter order.ListFilter, outputDir string) ([]Item, error) {
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	items := make([]Item, 0, len(orders))

	for _, o := range orders {
		path := filepath.Join(outputDir, fileName(o))

		if err := os.WriteFile(path, []byte(s.RenderOrder(o)), 0o644); err != nil {
			return nil, fmt.Errorf("writing order %s: %w", o.ID, err)
		}

		items = append(items, Item{Order: o, FilePath: path})
	}

	return items, nil
}

// fileName builds YYYYMMDD_Supplier_shortid.txt.
func fileName(o *order.Order) string {
	safeSupplier := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}

		return '_'
	}, o.SupplierName)

	return fmt.Sprintf("%s_%s_%s.txt", o.IssueDate.Format("20060102"), safeSupplier, shortID(o))
}

func shortID(o *order.Order) string {
	return strings.ToUpper(o.ID.String()[:8])
}

// RenderOrder formats an order as the document sent to the supplier.
func (s *Service) RenderOrder(o *order.Order) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "PEDIDO DE FORNECIMENTO %s\n", shortID(o))
	fmt.Fprintf(&sb, "Fornecedor: %s\n", o.SupplierName)
	fmt.Fprintf(&sb, "Emissão: %s\n", o.IssueDate.Format("02/01/2006"))

	if o.Responsible != "" {
		fmt.Fprintf(&sb, "Responsável: %s\n", o.Responsible)
	}

	sb.WriteString("\n")

	for i, line := range o.Lines {
		fmt.Fprintf(&sb, "%3d. %s | %s %s x R$ %s = R$ %s\n",
			i+1,
			line.Description,
			line.Quantity.String(),
			line.Unit,
			line.UnitPrice.StringFixed(2),
			line.Total().StringFixed(2),
		)
	}

	fmt.Fprintf(&sb, "\nTotal: R$ %s\n", o.TotalValue.StringFixed(2))

	return sb.String()
}

// GenerateEmailBody creates a formatted email body from the exported items.
func (s *Service) GenerateEmailBody(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		date := item.Order.IssueDate.Format("2006-01-02")

		file := "Sem Documento"
		if item.FilePath != "" {
			file = filepath.Base(item.FilePath)
		}

		sb.WriteString(fmt.Sprintf("* %s | %s | %d itens | R$ %s | %s\n",
			date, item.Order.SupplierName, len(item.Order.Lines), item.Order.TotalValue.StringFixed(2), file))
	}

	return sb.String()
}
