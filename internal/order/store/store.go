package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/merenda/internal/order"
)

type Store struct {
	db *sql.DB
}

var _ order.Repository = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectOrderColumns = `
	o.id, o.contract_id, o.supplier_name, o.issue_date,
	COALESCE((SELECT SUM(l.quantity * l.unit_price) FROM order_lines l WHERE l.order_id = o.id), 0),
	o.status, o.responsible
`

func scanOrder(s scanner) (*order.Order, error) {
	var (
		o         order.Order
		statusStr string
	)

	if err := s.Scan(
		&o.ID, &o.ContractID, &o.SupplierName, &o.IssueDate, &o.TotalValue, &statusStr, &o.Responsible,
	); err != nil {
		return nil, err
	}

	o.Status = order.Status(statusStr)

	return &o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (id, contract_id, supplier_name, issue_date, status, responsible)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := s.db.ExecContext(ctx, query,
		o.ID,
		o.ContractID,
		o.SupplierName,
		o.IssueDate,
		o.Status,
		o.Responsible,
	); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func (s *Store) IssueOrder(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, order.StatusIssued, id)
	if err != nil {
		return fmt.Errorf("issuing order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("issuing order: %w", err)
	}

	if n == 0 {
		return order.ErrNotFound
	}

	return nil
}

// DeleteOrder only removes pending orders nothing was delivered against.
func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM orders o
		WHERE o.id = $1
		  AND o.status = $2
		  AND NOT EXISTS (SELECT 1 FROM contract_events e WHERE e.order_id = o.id)
	`

	if _, err := s.db.ExecContext(ctx, query, id, order.StatusPending); err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders o WHERE o.id = $1`

	o, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrNotFound
		}

		return nil, fmt.Errorf("getting order: %w", err)
	}

	if err := s.loadLines(ctx, map[uuid.UUID]*order.Order{o.ID: o}); err != nil {
		return nil, err
	}

	return o, nil
}

// ListOrders returns orders oldest first, optionally restricted to one contract.
func (s *Store) ListOrders(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	query := `SELECT ` + selectOrderColumns + ` FROM orders o`

	var args []any

	if filter.ContractID != nil {
		query += " WHERE o.contract_id = $1"

		args = append(args, *filter.ContractID)
	}

	query += " ORDER BY o.seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order

	byID := make(map[uuid.UUID]*order.Order)

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}

		orders = append(orders, o)
		byID[o.ID] = o
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	if err := s.loadLines(ctx, byID); err != nil {
		return nil, err
	}

	return orders, nil
}

// loadLines attaches lines, in delivery order, to the given orders.
func (s *Store) loadLines(ctx context.Context, orders map[uuid.UUID]*order.Order) error {
	ids := make([]string, 0, len(orders))
	for id := range orders {
		ids = append(ids, id.String())
	}

	query := `
		SELECT order_id, contract_line_item_id, event_id, description, unit, quantity, unit_price
		FROM order_lines
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`

	rows, err := s.db.QueryContext(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("listing order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line order.Line

		if err := rows.Scan(
			&line.OrderID, &line.ContractLineItemID, &line.EventID,
			&line.Description, &line.Unit, &line.Quantity, &line.UnitPrice,
		); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}

		if o, ok := orders[line.OrderID]; ok {
			o.Lines = append(o.Lines, &line)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating order lines: %w", err)
	}

	return nil
}
