package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/merenda/internal/contract"
)

type Store struct {
	db *sql.DB
}

var _ contract.Repository = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectContractColumns = `
	c.id, c.number, c.supplier_id, c.supplier_name, c.start_date, c.end_date, c.status, c.created_at
`

const selectLineItemColumns = `
	li.id, li.contract_id, li.position, li.description, li.unit, li.unit_price,
	li.contracted_quantity, li.acquired_quantity, li.version
`

func scanContract(s scanner) (*contract.Contract, error) {
	var (
		c         contract.Contract
		statusStr string
		startDate sql.NullTime
		endDate   sql.NullTime
	)

	if err := s.Scan(
		&c.ID, &c.Number, &c.SupplierID, &c.SupplierName, &startDate, &endDate, &statusStr, &c.CreatedAt,
	); err != nil {
		return nil, err
	}

	c.Status = contract.Status(statusStr)
	c.StartDate = startDate.Time
	c.EndDate = endDate.Time

	return &c, nil
}

func scanLineItem(s scanner) (*contract.LineItem, error) {
	var li contract.LineItem

	if err := s.Scan(
		&li.ID, &li.ContractID, &li.Position, &li.Description, &li.Unit, &li.UnitPrice,
		&li.ContractedQuantity, &li.AcquiredQuantity, &li.Version,
	); err != nil {
		return nil, err
	}

	return &li, nil
}

func nullTime(c *contract.Contract, end bool) sql.NullTime {
	t := c.StartDate
	if end {
		t = c.EndDate
	}

	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// CreateContract inserts the contract and all its line items atomically.
func (s *Store) CreateContract(ctx context.Context, c *contract.Contract) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	contractQuery := `
		INSERT INTO contracts (id, number, supplier_id, supplier_name, start_date, end_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if _, err := dbTx.ExecContext(ctx, contractQuery,
		c.ID,
		c.Number,
		c.SupplierID,
		c.SupplierName,
		nullTime(c, false),
		nullTime(c, true),
		c.Status,
		c.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting contract: %w", err)
	}

	lineQuery := `
		INSERT INTO contract_line_items
			(id, contract_id, position, description, unit, unit_price, contracted_quantity, acquired_quantity, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
	`

	for _, li := range c.LineItems {
		if _, err := dbTx.ExecContext(ctx, lineQuery,
			li.ID,
			c.ID,
			li.Position,
			li.Description,
			li.Unit,
			li.UnitPrice,
			li.ContractedQuantity,
			li.AcquiredQuantity,
		); err != nil {
			return fmt.Errorf("inserting line item %d: %w", li.Position, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) GetContract(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	query := `SELECT ` + selectContractColumns + ` FROM contracts c WHERE c.id = $1`

	c, err := scanContract(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contract.ErrNotFound
		}

		return nil, fmt.Errorf("getting contract: %w", err)
	}

	linesQuery := `SELECT ` + selectLineItemColumns + `
		FROM contract_line_items li
		WHERE li.contract_id = $1
		ORDER BY li.position ASC`

	rows, err := s.db.QueryContext(ctx, linesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("listing line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning line item: %w", err)
		}

		c.LineItems = append(c.LineItems, li)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating line items: %w", err)
	}

	return c, nil
}

// ListContracts returns contracts in registration order with their line items
// in position order. A nil status lists every contract. Both reads share one
// snapshot.
func (s *Store) ListContracts(ctx context.Context, status *contract.Status) ([]*contract.Contract, error) {
	filter := ""
	if status != nil {
		filter = string(*status)
	}

	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `SELECT ` + selectContractColumns + `
		FROM contracts c
		WHERE ($1 = '' OR c.status = $1)
		ORDER BY c.seq ASC`

	rows, err := dbTx.QueryContext(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*contract.Contract

	byID := make(map[uuid.UUID]*contract.Contract)

	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contract: %w", err)
		}

		contracts = append(contracts, c)
		byID[c.ID] = c
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contracts: %w", err)
	}

	if len(contracts) == 0 {
		return nil, nil
	}

	linesQuery := `SELECT ` + selectLineItemColumns + `
		FROM contract_line_items li
		JOIN contracts c ON c.id = li.contract_id
		WHERE ($1 = '' OR c.status = $1)
		ORDER BY c.seq ASC, li.position ASC`

	lineRows, err := dbTx.QueryContext(ctx, linesQuery, filter)
	if err != nil {
		return nil, fmt.Errorf("listing line items: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		li, err := scanLineItem(lineRows)
		if err != nil {
			return nil, fmt.Errorf("scanning line item: %w", err)
		}

		if c, ok := byID[li.ContractID]; ok {
			c.LineItems = append(c.LineItems, li)
		}
	}

	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating line items: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return contracts, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status contract.Status) error {
	query := `UPDATE contracts SET status = $1 WHERE id = $2`

	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating contract status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating contract status: %w", err)
	}

	if n == 0 {
		return contract.ErrNotFound
	}

	return nil
}

func (s *Store) GetLineItem(ctx context.Context, contractID, lineItemID uuid.UUID) (*contract.LineItem, error) {
	query := `SELECT ` + selectLineItemColumns + `
		FROM contract_line_items li
		WHERE li.id = $1 AND li.contract_id = $2`

	li, err := scanLineItem(s.db.QueryRowContext(ctx, query, lineItemID, contractID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contract.ErrLineItemNotFound
		}

		return nil, fmt.Errorf("getting line item: %w", err)
	}

	return li, nil
}

// ApplyBalanceChange is a compare-and-set on the line item version. The bounds
// are re-checked by the UPDATE predicate itself and by the table's CHECK
// constraint, so a stale or out-of-range write never lands.
func (s *Store) ApplyBalanceChange(ctx context.Context, change contract.BalanceChange) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	// The share lock makes a concurrent close wait for this change, or this
	// change see the close.
	var status string

	err = dbTx.QueryRowContext(ctx, `
		SELECT c.status
		FROM contracts c
		JOIN contract_line_items li ON li.contract_id = c.id
		WHERE li.id = $1
		FOR SHARE OF c
	`, change.LineItemID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contract.ErrLineItemNotFound
		}

		return fmt.Errorf("locking contract: %w", err)
	}

	if contract.Status(status) != contract.StatusActive {
		return contract.ErrClosed
	}

	updateQuery := `
		UPDATE contract_line_items
		SET contracted_quantity = $1::numeric,
			acquired_quantity = $2::numeric,
			version = version + 1
		WHERE id = $3
		  AND version = $4
		  AND $2::numeric >= acquired_quantity
		  AND $1::numeric >= contracted_quantity
		  AND $2::numeric <= $1::numeric
	`

	res, err := dbTx.ExecContext(ctx, updateQuery,
		change.ContractedQuantity,
		change.AcquiredQuantity,
		change.LineItemID,
		change.ExpectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}

	if n == 0 {
		return s.explainRejectedUpdate(ctx, dbTx, change)
	}

	if err := insertEvent(ctx, dbTx, change.Event); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) explainRejectedUpdate(ctx context.Context, dbTx *sql.Tx, change contract.BalanceChange) error {
	var version int64

	err := dbTx.QueryRowContext(ctx,
		`SELECT version FROM contract_line_items WHERE id = $1`, change.LineItemID,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contract.ErrLineItemNotFound
		}

		return fmt.Errorf("reading line item version: %w", err)
	}

	if version != change.ExpectedVersion {
		return contract.ErrStaleVersion
	}

	return fmt.Errorf("line item %s: balance %s/%s rejected",
		change.LineItemID, change.AcquiredQuantity, change.ContractedQuantity)
}

func insertEvent(ctx context.Context, dbTx *sql.Tx, ev *contract.Event) error {
	query := `
		INSERT INTO contract_events
			(id, contract_id, line_item_id, type, occurred_at, quantity, unit, unit_price, value_impact,
			 responsible, description, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if _, err := dbTx.ExecContext(ctx, query,
		ev.ID,
		ev.ContractID,
		ev.LineItemID,
		ev.Type,
		ev.Timestamp,
		ev.Quantity,
		ev.Unit,
		ev.UnitPrice,
		ev.ValueImpact,
		ev.Responsible,
		ev.Description,
		ev.OrderID,
	); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

func (s *Store) ListEvents(ctx context.Context, contractID uuid.UUID) ([]*contract.Event, error) {
	query := `
		SELECT id, contract_id, line_item_id, type, occurred_at, quantity, unit, unit_price, value_impact,
			responsible, description, order_id
		FROM contract_events
		WHERE contract_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*contract.Event

	for rows.Next() {
		var (
			ev      contract.Event
			typeStr string
			orderID *uuid.UUID
			qty     decimal.Decimal
			value   decimal.Decimal
		)

		if err := rows.Scan(
			&ev.ID, &ev.ContractID, &ev.LineItemID, &typeStr, &ev.Timestamp,
			&qty, &ev.Unit, &ev.UnitPrice, &value, &ev.Responsible, &ev.Description, &orderID,
		); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		ev.Type = contract.EventType(typeStr)
		ev.Quantity = qty
		ev.ValueImpact = value
		ev.OrderID = orderID

		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}
