package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"garment-storefront/internal/domain"
	"garment-storefront/internal/lifecycle"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500

	stockConstraint = "products_stock_nonnegative"
)

const orderColumns = `id::text, customer_id, kind, state, total_cents, notes, custom_spec, proposal,
       payment_proof, payment_rejection, delivery, cancel_reason, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	custom, err := marshalOptional(o.Custom)
	if err != nil {
		return nil, err
	}
	proposal, err := marshalOptional(o.Proposal)
	if err != nil {
		return nil, err
	}
	delivery, err := marshalOptional(o.Delivery)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO orders (id, customer_id, kind, state, total_cents, notes, custom_spec, proposal,
                    payment_proof, payment_rejection, delivery, cancel_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`, o.ID, o.CustomerID, string(o.Kind), string(o.State), o.TotalCents, o.Notes, custom, proposal,
		o.PaymentProof, o.PaymentRejection, delivery, o.CancelReason); err != nil {
		r.logger.Printf("order repo: insert id=%s error=%v", o.ID, err)
		return nil, err
	}

	for i, l := range o.Items {
		if _, err := tx.Exec(ctx, `
INSERT INTO order_lines (order_id, line_no, line_id, product_id, name, size, color, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, o.ID, i, l.ID, l.ProductID, l.Name, l.Size, l.Color, l.Quantity, l.UnitPriceCents); err != nil {
			r.logger.Printf("order repo: insert line order_id=%s line=%d error=%v", o.ID, i, err)
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Printf("order repo: created id=%s kind=%s state=%s lines=%d", o.ID, o.Kind, o.State, len(o.Items))
	return r.GetByID(ctx, o.ID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get id=%s error=%v", id, err)
		return nil, err
	}
	orders := []domain.Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepo) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	states := []string{}
	if f.State != "" {
		states = lifecycle.Aliases(f.State)
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE ($1 = '' OR customer_id = $1)
  AND (cardinality($2::text[]) = 0 OR state = ANY($2::text[]))
ORDER BY created_at DESC
LIMIT $3
`, f.CustomerID, states, limit)
	if err != nil {
		r.logger.Printf("order repo: list customer=%s state=%s error=%v", f.CustomerID, f.State, err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) Transition(ctx context.Context, p TransitionParams) (*domain.Order, error) {
	n := p.Next
	proposal, err := marshalOptional(n.Proposal)
	if err != nil {
		return nil, err
	}
	delivery, err := marshalOptional(n.Delivery)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
UPDATE orders
SET state = $3,
    total_cents = $4,
    proposal = $5,
    payment_proof = $6,
    payment_rejection = $7,
    delivery = $8,
    cancel_reason = $9,
    updated_at = now()
WHERE id = $1 AND state = ANY($2::text[])
RETURNING id::text
`, n.ID, lifecycle.Aliases(p.From), string(n.State), n.TotalCents, proposal,
		n.PaymentProof, n.PaymentRejection, delivery, n.CancelReason).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missedTransition(ctx, tx, n.ID, p.From)
	}
	if err != nil {
		r.logger.Printf("order repo: transition id=%s error=%v", n.ID, err)
		return nil, err
	}

	if p.Stock != StockNone {
		tag, err := tx.Exec(ctx, `
UPDATE products p
SET stock = p.stock + ($2 * agg.qty)
FROM (
    SELECT product_id, SUM(quantity) AS qty
    FROM order_lines
    WHERE order_id = $1
    GROUP BY product_id
) agg
WHERE p.id = agg.product_id
`, id, int(p.Stock))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" && pgErr.ConstraintName == stockConstraint {
			r.logger.Printf("order repo: adjust stock order_id=%s insufficient stock", id)
			return nil, domain.PreconditionFailed("reserve_stock", "stock", "not enough stock for the ordered lines")
		}
		if err != nil {
			r.logger.Printf("order repo: adjust stock order_id=%s error=%v", id, err)
			return nil, err
		}
		r.logger.Printf("order repo: adjust stock order_id=%s direction=%d products=%d", id, p.Stock, tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Printf("order repo: transition id=%s %s -> %s", id, p.From, n.State)
	return r.GetByID(ctx, id)
}

func (r *postgresRepo) missedTransition(ctx context.Context, tx pgx.Tx, id string, expected domain.State) error {
	var raw string
	if err := tx.QueryRow(ctx, `SELECT state FROM orders WHERE id = $1`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	actual, err := lifecycle.ParseState(raw)
	if err != nil {
		actual = domain.State(raw)
	}
	r.logger.Printf("order repo: transition id=%s conflict expected=%s actual=%s", id, expected, actual)
	return domain.StateConflict(expected, actual)
}

func (r *postgresRepo) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	rows, err := r.pool.Query(ctx, `
SELECT order_id::text, line_id, product_id, name, size, color, quantity, unit_price_cents
FROM order_lines
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, line_no
`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var l domain.LineItem
		if err := rows.Scan(&orderID, &l.ID, &l.ProductID, &l.Name, &l.Size, &l.Color, &l.Quantity, &l.UnitPriceCents); err != nil {
			return err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, l)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                          domain.Order
		kind, state                string
		custom, proposal, delivery []byte
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &kind, &state, &o.TotalCents, &o.Notes, &custom, &proposal,
		&o.PaymentProof, &o.PaymentRejection, &delivery, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	o.Kind = domain.OrderKind(kind)
	st, err := lifecycle.ParseState(state)
	if err != nil {
		return o, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.State = st
	if o.Custom, err = unmarshalOptional[domain.CustomOrderSpec](custom); err != nil {
		return o, fmt.Errorf("order %s custom_spec: %w", o.ID, err)
	}
	if o.Proposal, err = unmarshalOptional[domain.Proposal](proposal); err != nil {
		return o, fmt.Errorf("order %s proposal: %w", o.ID, err)
	}
	if o.Delivery, err = unmarshalOptional[domain.DeliveryEvidence](delivery); err != nil {
		return o, fmt.Errorf("order %s delivery: %w", o.ID, err)
	}
	return o, nil
}

func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional[T any](raw []byte) (*T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
