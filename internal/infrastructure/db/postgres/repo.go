package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

const uniqueViolation = "23505"

// repo implements ports.Tx over one pgx transaction.
type repo struct {
	q pgx.Tx
}

var _ ports.Tx = (*repo)(nil)

// --- users ---

const userColumns = `id, email, password_hash, role, created_by_id, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedByID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedByID, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *repo) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, nil
}

func (r *repo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *repo) ListSubordinateIDs(ctx context.Context, creatorID string) ([]string, error) {
	return r.selectIDs(ctx, `SELECT id FROM users WHERE created_by_id = $1 ORDER BY id`, creatorID)
}

func (r *repo) ListUsers(ctx context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	const where = `
		WHERE ($1 = '' OR role = $1)
		  AND ($2 OR created_by_id = ANY($3) OR id = ANY($4))`
	args := []any{string(f.Role), f.Scope.All, nonNil(f.Scope.CreatedBy), nonNil(f.Scope.IDs)}

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users`+where+`
		ORDER BY created_at, id
		LIMIT NULLIF($5, 0) OFFSET $6`,
		append(args, f.Limit, ports.Offset(f.Page, f.Limit))...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

// --- assignments ---

func (r *repo) AssignCustomer(ctx context.Context, a domain.CustomerAssignment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO customer_assignments (customer_id, employee_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id) DO UPDATE
		SET employee_id = EXCLUDED.employee_id, assigned_at = EXCLUDED.assigned_at`,
		a.CustomerID, a.EmployeeID, a.AssignedAt,
	)
	if err != nil {
		return fmt.Errorf("assign customer: %w", err)
	}
	return nil
}

func (r *repo) UnassignCustomer(ctx context.Context, customerID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM customer_assignments WHERE customer_id = $1`, customerID)
	if err != nil {
		return false, fmt.Errorf("unassign customer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repo) ListAssigneeIDs(ctx context.Context, customerID string) ([]string, error) {
	return r.selectIDs(ctx, `SELECT employee_id FROM customer_assignments WHERE customer_id = $1 ORDER BY employee_id`, customerID)
}

func (r *repo) ListAssignedCustomerIDs(ctx context.Context, employeeIDs []string) ([]string, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	return r.selectIDs(ctx, `SELECT customer_id FROM customer_assignments WHERE employee_id = ANY($1) ORDER BY customer_id`, employeeIDs)
}

// --- products ---

const productColumns = `id, sku, name, price::text, stock, COALESCE(created_by_id, ''), created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &price, &p.Stock, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price of %s: %w", p.ID, err)
	}
	return &p, nil
}

func (r *repo) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO products (id, sku, name, price, stock, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, NULLIF($6, ''), $7, $8)`,
		p.ID, p.SKU, p.Name, p.Price.String(), p.Stock, p.CreatedByID, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *repo) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return p, nil
}

func (r *repo) FindProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, nonNil(ids))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (r *repo) ListProducts(ctx context.Context, f ports.ProductFilter) ([]*domain.Product, int64, error) {
	const where = ` WHERE ($1 = '' OR sku ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')`
	search := escapeLike(f.Search)

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM products`+where, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products`+where+`
		ORDER BY sku
		LIMIT NULLIF($2, 0) OFFSET $3`,
		search, f.Limit, ports.Offset(f.Page, f.Limit),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

// --- stock ---

// DecrementStock relies on the row lock taken by UPDATE: concurrent
// decrements of the same product re-evaluate the stock predicate after the
// competing transaction commits.
func (r *repo) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`,
		productID, qty,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repo) IncrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return false, fmt.Errorf("increment stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// --- orders ---

const orderColumns = `id, customer_id, created_by_id, assigned_to_id, status, total::text, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o     domain.Order
		total string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CreatedByID, &o.AssignedToID, &o.Status, &total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total of %s: %w", o.ID, err)
	}
	return &o, nil
}

func (r *repo) CreateOrder(ctx context.Context, o *domain.Order) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO orders (id, customer_id, created_by_id, assigned_to_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`,
		o.ID, o.CustomerID, o.CreatedByID, o.AssignedToID, string(o.Status), o.Total.String(), o.CreatedAt, o.UpdatedAt,
	)
	for i, item := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, line, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5::numeric)`,
			o.ID, i, item.ProductID, item.Quantity, item.UnitPrice.String(),
		)
	}

	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *repo) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT product_id, quantity, unit_price::text
		FROM order_items
		WHERE order_id = $1
		ORDER BY line`, id)
	if err != nil {
		return nil, fmt.Errorf("find order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := domain.OrderItem{OrderID: id}
		var price string
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return o, nil
}

func (r *repo) ListOrders(ctx context.Context, f ports.OrderFilter) ([]*domain.Order, int64, error) {
	const where = `
		WHERE ($1 OR created_by_id = ANY($2) OR assigned_to_id = ANY($3) OR customer_id = ANY($4))
		  AND ($5 = '' OR status = $5)
		  AND ($6 = '' OR customer_id = $6)`
	args := []any{
		f.Scope.All,
		nonNil(f.Scope.CreatedBy),
		nonNil(f.Scope.AssignedTo),
		nonNil(f.Scope.Customers),
		string(f.Status),
		f.CustomerID,
	}

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.q.Query(ctx, `SELECT `+orderColumns+` FROM orders`+where+`
		ORDER BY created_at DESC, id
		LIMIT NULLIF($7, 0) OFFSET $8`,
		append(args, f.Limit, ports.Offset(f.Page, f.Limit))...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

func (r *repo) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at,
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repo) UpdateOrderAssignee(ctx context.Context, id string, assigneeID *string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE orders SET assigned_to_id = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled')`,
		id, assigneeID, at,
	)
	if err != nil {
		return false, fmt.Errorf("update order assignee: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repo) DeleteOrder(ctx context.Context, id string, status domain.OrderStatus) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND status = $2`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// --- helpers ---

func (r *repo) selectIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nonNil keeps ANY($n) comparisons false rather than NULL for empty sets.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
