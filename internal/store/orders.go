package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sales-order-service/internal/models"
	"sales-order-service/internal/pipeline"

	"github.com/jmoiron/sqlx"
)

// orderColumns are the writable columns of the orders table
var orderColumns = []string{
	"order_id",
	"customer_name", "contact_name", "contact_no", "alter_no", "customer_email",
	"city", "state", "pin_code", "gst_no", "shipping_address", "billing_address", "same_address",
	"order_type", "company", "dispatch_from", "products",
	"total", "payment_collected", "payment_method", "payment_due", "payment_terms", "credit_days",
	"freight_charges", "freight_status", "installation_charges", "install_charges_status",
	"actual_freight", "neft_transaction_id", "cheque_id", "gem_order_number",
	"sales_person", "report",
	"so_status", "fulfilling_status", "dispatch_status", "installation_status",
	"payment_received", "bill_status", "completion_status", "stock_status",
	"transporter", "transporter_details", "docket_no", "invoice_no", "bill_number", "pi_number",
	"remarks", "remarks_by_production", "remarks_by_installation", "remarks_by_accounts",
	"remarks_by_billing", "verification_remarks",
	"so_date", "dispatch_date", "receipt_date", "invoice_date", "delivery_date",
	"delivered_date", "demo_date", "fulfillment_date",
	"po_file_path", "created_by", "assigned_to",
}

var writable = func() map[string]bool {
	m := make(map[string]bool, len(orderColumns))
	for _, c := range orderColumns {
		m[c] = true
	}
	return m
}()

var insertOrderQuery = fmt.Sprintf(
	"INSERT INTO orders (%s) VALUES (:%s) RETURNING id, created_at, updated_at",
	strings.Join(orderColumns, ", "),
	strings.Join(orderColumns, ", :"),
)

const selectOrders = `
	SELECT o.*,
		cu.username AS creator_username, cu.email AS creator_email,
		au.username AS assignee_username, au.email AS assignee_email
	FROM orders o
	LEFT JOIN users cu ON cu.id = o.created_by
	LEFT JOIN users au ON au.id = o.assigned_to`

const orderBy = " ORDER BY o.so_date DESC NULLS LAST, o.id DESC"

// Change sets one column of an order
type Change struct {
	Column string
	Value  interface{}
}

// reserveSequence increments the named counter by n and returns the new value.
// The caller owns the range [seq-n+1, seq].
func reserveSequence(ctx context.Context, tx *sqlx.Tx, name string, n int) (int64, error) {
	var seq int64
	err := tx.GetContext(ctx, &seq, `
		INSERT INTO counters (name, sequence) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET sequence = counters.sequence + EXCLUDED.sequence
		RETURNING sequence`, name, n)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve sequence: %w", err)
	}
	return seq, nil
}

func insertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query, args, err := sqlx.Named(insertOrderQuery, order)
	if err != nil {
		return fmt.Errorf("failed to bind order: %w", err)
	}
	row := tx.QueryRowxContext(ctx, tx.Rebind(query), args...)
	if err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.OrderID, err)
	}
	return nil
}

// NotifyFunc builds the notification for a freshly inserted order
type NotifyFunc func(order *models.Order) *models.Notification

// CreateOrder mints an order number, inserts the order and its notification
// in one transaction. notify runs after the insert so the message can carry
// the minted order number.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, notify NotifyFunc) (*models.Notification, error) {
	var n *models.Notification
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		seq, err := reserveSequence(ctx, tx, models.OrderSequenceName, 1)
		if err != nil {
			return err
		}
		order.OrderID = models.FormatOrderID(seq)
		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}
		if notify != nil {
			n = notify(order)
		}
		return insertNotification(ctx, tx, n)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// BulkCreateOrders reserves a contiguous block of order numbers and inserts
// every order atomically
func (s *Store) BulkCreateOrders(ctx context.Context, orders []*models.Order, n *models.Notification) error {
	if len(orders) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		last, err := reserveSequence(ctx, tx, models.OrderSequenceName, len(orders))
		if err != nil {
			return err
		}
		first := last - int64(len(orders)) + 1
		for i, order := range orders {
			order.OrderID = models.FormatOrderID(first + int64(i))
			if err := insertOrder(ctx, tx, order); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		return insertNotification(ctx, tx, n)
	})
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, s.db, id)
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q, &order, selectOrders+" WHERE o.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	order.ResolveUsers()
	return &order, nil
}

// buildUpdate renders an UPDATE for the given changes. Columns outside the
// writable set are rejected.
func buildUpdate(id int64, changes []Change) (string, []interface{}, error) {
	if len(changes) == 0 {
		return "", nil, errors.New("no changes")
	}
	sets := make([]string, 0, len(changes)+1)
	args := make([]interface{}, 0, len(changes)+1)
	for i, c := range changes {
		if !writable[c.Column] || c.Column == "order_id" {
			return "", nil, fmt.Errorf("column %q is not updatable", c.Column)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Column, i+1))
		args = append(args, c.Value)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args, nil
}

// UpdateOrder applies the changes and records the notification atomically,
// returning the stored order after the update
func (s *Store) UpdateOrder(ctx context.Context, id int64, changes []Change, n *models.Notification) (*models.Order, error) {
	query, args, err := buildUpdate(id, changes)
	if err != nil {
		return nil, err
	}

	var updated *models.Order
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNotFound
		}
		if err := insertNotification(ctx, tx, n); err != nil {
			return err
		}
		updated, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteOrder removes the order and records the notification atomically
func (s *Store) DeleteOrder(ctx context.Context, id int64, n *models.Notification) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrNotFound
		}
		return insertNotification(ctx, tx, n)
	})
}

// scopeClause restricts a query to the owners in scope
func scopeClause(scope models.Scope) (string, []interface{}) {
	if scope.All {
		return "", nil
	}
	if len(scope.UserIDs) == 0 {
		return "FALSE", nil
	}
	return "(o.created_by IN (?) OR o.assigned_to IN (?))", []interface{}{scope.UserIDs, scope.UserIDs}
}

// buildListQuery joins the optional stage predicate and the scope into one
// query with postgres bindvars
func buildListQuery(stage *pipeline.Stage, scope models.Scope) (string, []interface{}, error) {
	var conds []string
	var args []interface{}
	if stage != nil {
		conds = append(conds, stage.Clause)
		args = append(args, stage.Args...)
	}
	if clause, scopeArgs := scopeClause(scope); clause != "" {
		conds = append(conds, clause)
		args = append(args, scopeArgs...)
	}

	query := selectOrders
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand query: %w", err)
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}

func (s *Store) queryOrders(ctx context.Context, stage *pipeline.Stage, scope models.Scope) ([]models.Order, error) {
	query, args, err := buildListQuery(stage, scope)
	if err != nil {
		return nil, err
	}
	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	for i := range orders {
		orders[i].ResolveUsers()
	}
	return orders, nil
}

// ListOrders retrieves every order in scope, newest first
func (s *Store) ListOrders(ctx context.Context, scope models.Scope) ([]models.Order, error) {
	return s.queryOrders(ctx, nil, scope)
}

// ListStageOrders retrieves the orders in scope sitting in the given stage
func (s *Store) ListStageOrders(ctx context.Context, stage pipeline.Stage, scope models.Scope) ([]models.Order, error) {
	return s.queryOrders(ctx, &stage, scope)
}

// CountStageOrders counts every order sitting in the given stage
func (s *Store) CountStageOrders(ctx context.Context, stage pipeline.Stage) (int, error) {
	query, args, err := sqlx.In("SELECT COUNT(*) FROM orders o WHERE "+stage.Clause, stage.Args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expand query: %w", err)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count %s orders: %w", stage.Name, err)
	}
	return count, nil
}
