package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bizdesk/backoffice/internal/core/domain"
	"github.com/bizdesk/backoffice/internal/core/ports"
)

// timeLayout is fixed-width so stored timestamps order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var errReadOnly = errors.New("sqlite: write attempted in a read-only transaction")

// repo implements ports.Tx over a connection that is inside a transaction.
// The context is not consulted per statement: the connection was taken from
// the pool with it.
type repo struct {
	conn     *sqlite.Conn
	readOnly bool
}

var _ ports.Tx = (*repo)(nil)

func (r *repo) exec(query string, args ...any) (int, error) {
	if r.readOnly {
		return 0, errReadOnly
	}
	if err := sqlitex.Execute(r.conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return 0, err
	}
	return r.conn.Changes(), nil
}

func (r *repo) query(query string, fn func(stmt *sqlite.Stmt) error, args ...any) error {
	return sqlitex.Execute(r.conn, query, &sqlitex.ExecOptions{Args: args, ResultFunc: fn})
}

func (r *repo) count(query string, args ...any) (int64, error) {
	var n int64
	err := r.query(query, func(stmt *sqlite.Stmt) error {
		n = stmt.ColumnInt64(0)
		return nil
	}, args...)
	return n, err
}

// --- users ---

const userColumns = `id, email, password_hash, role, created_by_id, created_at, updated_at`

func readUser(stmt *sqlite.Stmt) (*domain.User, error) {
	u := &domain.User{
		ID:           stmt.ColumnText(0),
		Email:        stmt.ColumnText(1),
		PasswordHash: stmt.ColumnText(2),
		Role:         domain.Role(stmt.ColumnText(3)),
		CreatedByID:  nullableText(stmt, 4),
	}
	var err error
	if u.CreatedAt, err = parseTime(stmt.ColumnText(5)); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(stmt.ColumnText(6)); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repo) CreateUser(_ context.Context, u *domain.User) error {
	_, err := r.exec(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), nullable(u.CreatedByID),
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *repo) findUser(where string, arg any) (*domain.User, error) {
	var found *domain.User
	err := r.query(`SELECT `+userColumns+` FROM users WHERE `+where, func(stmt *sqlite.Stmt) error {
		u, err := readUser(stmt)
		found = u
		return err
	}, arg)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, domain.ErrUserNotFound
	}
	return found, nil
}

func (r *repo) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	u, err := r.findUser(`id = ?`, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, err
}

func (r *repo) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	u, err := r.findUser(`email = ?`, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, err
}

func (r *repo) ListSubordinateIDs(_ context.Context, creatorID string) ([]string, error) {
	return r.selectIDs(`SELECT id FROM users WHERE created_by_id = ? ORDER BY id`, creatorID)
}

func (r *repo) ListUsers(_ context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	const where = `
		WHERE (?1 = '' OR role = ?1)
		  AND (?2 OR created_by_id IN (SELECT value FROM json_each(?3)) OR id IN (SELECT value FROM json_each(?4)))`
	args := []any{string(f.Role), flag(f.Scope.All), idSet(f.Scope.CreatedBy), idSet(f.Scope.IDs)}

	total, err := r.count(`SELECT count(*) FROM users`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	users := []*domain.User{}
	err = r.query(`SELECT `+userColumns+` FROM users`+where+`
		ORDER BY created_at, id
		LIMIT ?5 OFFSET ?6`,
		func(stmt *sqlite.Stmt) error {
			u, err := readUser(stmt)
			if err != nil {
				return err
			}
			users = append(users, u)
			return nil
		},
		append(args, limit(f.Limit), ports.Offset(f.Page, f.Limit))...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// --- assignments ---

func (r *repo) AssignCustomer(_ context.Context, a domain.CustomerAssignment) error {
	_, err := r.exec(`
		INSERT INTO customer_assignments (customer_id, employee_id, assigned_at)
		VALUES (?, ?, ?)
		ON CONFLICT (customer_id) DO UPDATE
		SET employee_id = excluded.employee_id, assigned_at = excluded.assigned_at`,
		a.CustomerID, a.EmployeeID, formatTime(a.AssignedAt),
	)
	if err != nil {
		return fmt.Errorf("assign customer: %w", err)
	}
	return nil
}

func (r *repo) UnassignCustomer(_ context.Context, customerID string) (bool, error) {
	n, err := r.exec(`DELETE FROM customer_assignments WHERE customer_id = ?`, customerID)
	if err != nil {
		return false, fmt.Errorf("unassign customer: %w", err)
	}
	return n > 0, nil
}

func (r *repo) ListAssigneeIDs(_ context.Context, customerID string) ([]string, error) {
	return r.selectIDs(`SELECT employee_id FROM customer_assignments WHERE customer_id = ? ORDER BY employee_id`, customerID)
}

func (r *repo) ListAssignedCustomerIDs(_ context.Context, employeeIDs []string) ([]string, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	return r.selectIDs(`
		SELECT customer_id FROM customer_assignments
		WHERE employee_id IN (SELECT value FROM json_each(?))
		ORDER BY customer_id`, idSet(employeeIDs))
}

// --- products ---

const productColumns = `id, sku, name, price, stock, COALESCE(created_by_id, ''), created_at, updated_at`

func readProduct(stmt *sqlite.Stmt) (*domain.Product, error) {
	p := &domain.Product{
		ID:          stmt.ColumnText(0),
		SKU:         stmt.ColumnText(1),
		Name:        stmt.ColumnText(2),
		Stock:       stmt.ColumnInt(4),
		CreatedByID: stmt.ColumnText(5),
	}
	var err error
	if p.Price, err = decimal.NewFromString(stmt.ColumnText(3)); err != nil {
		return nil, fmt.Errorf("parse price of %s: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(stmt.ColumnText(6)); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(stmt.ColumnText(7)); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repo) CreateProduct(_ context.Context, p *domain.Product) error {
	_, err := r.exec(`
		INSERT INTO products (id, sku, name, price, stock, created_by_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		p.ID, p.SKU, p.Name, p.Price.String(), p.Stock, p.CreatedByID,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *repo) FindProductByID(_ context.Context, id string) (*domain.Product, error) {
	var found *domain.Product
	err := r.query(`SELECT `+productColumns+` FROM products WHERE id = ?`, func(stmt *sqlite.Stmt) error {
		p, err := readProduct(stmt)
		found = p
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	if found == nil {
		return nil, domain.ErrProductNotFound
	}
	return found, nil
}

func (r *repo) FindProductsByIDs(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	err := r.query(`SELECT `+productColumns+` FROM products WHERE id IN (SELECT value FROM json_each(?))`,
		func(stmt *sqlite.Stmt) error {
			p, err := readProduct(stmt)
			if err != nil {
				return err
			}
			out[p.ID] = p
			return nil
		}, idSet(ids))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return out, nil
}

// ListProducts relies on LIKE being case-insensitive for ASCII in SQLite.
func (r *repo) ListProducts(_ context.Context, f ports.ProductFilter) ([]*domain.Product, int64, error) {
	const where = ` WHERE (?1 = '' OR sku LIKE '%' || ?1 || '%' ESCAPE '\' OR name LIKE '%' || ?1 || '%' ESCAPE '\')`
	search := escapeLike(f.Search)

	total, err := r.count(`SELECT count(*) FROM products`+where, search)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products := []*domain.Product{}
	err = r.query(`SELECT `+productColumns+` FROM products`+where+`
		ORDER BY sku
		LIMIT ?2 OFFSET ?3`,
		func(stmt *sqlite.Stmt) error {
			p, err := readProduct(stmt)
			if err != nil {
				return err
			}
			products = append(products, p)
			return nil
		},
		search, limit(f.Limit), ports.Offset(f.Page, f.Limit),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// --- stock ---

// DecrementStock runs under the IMMEDIATE transaction's write lock, so the
// stock predicate cannot be invalidated between check and update.
func (r *repo) DecrementStock(_ context.Context, productID string, qty int) (bool, error) {
	n, err := r.exec(`
		UPDATE products
		SET stock = stock - ?2, updated_at = ?3
		WHERE id = ?1 AND stock >= ?2`,
		productID, qty, formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return n == 1, nil
}

func (r *repo) IncrementStock(_ context.Context, productID string, qty int) (bool, error) {
	n, err := r.exec(`
		UPDATE products
		SET stock = stock + ?2, updated_at = ?3
		WHERE id = ?1`,
		productID, qty, formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("increment stock: %w", err)
	}
	return n == 1, nil
}

// --- orders ---

const orderColumns = `id, customer_id, created_by_id, assigned_to_id, status, total, created_at, updated_at`

func readOrder(stmt *sqlite.Stmt) (*domain.Order, error) {
	o := &domain.Order{
		ID:           stmt.ColumnText(0),
		CustomerID:   stmt.ColumnText(1),
		CreatedByID:  stmt.ColumnText(2),
		AssignedToID: nullableText(stmt, 3),
		Status:       domain.OrderStatus(stmt.ColumnText(4)),
	}
	var err error
	if o.Total, err = decimal.NewFromString(stmt.ColumnText(5)); err != nil {
		return nil, fmt.Errorf("parse total of %s: %w", o.ID, err)
	}
	if o.CreatedAt, err = parseTime(stmt.ColumnText(6)); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(stmt.ColumnText(7)); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repo) CreateOrder(_ context.Context, o *domain.Order) error {
	_, err := r.exec(`
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerID, o.CreatedByID, nullable(o.AssignedToID), string(o.Status),
		o.Total.String(), formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	for i, item := range o.Items {
		_, err := r.exec(`
			INSERT INTO order_items (order_id, line, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			o.ID, i, item.ProductID, item.Quantity, item.UnitPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("create order item %d: %w", i, err)
		}
	}
	return nil
}

func (r *repo) FindOrderByID(_ context.Context, id string) (*domain.Order, error) {
	var found *domain.Order
	err := r.query(`SELECT `+orderColumns+` FROM orders WHERE id = ?`, func(stmt *sqlite.Stmt) error {
		o, err := readOrder(stmt)
		found = o
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	if found == nil {
		return nil, domain.ErrOrderNotFound
	}

	err = r.query(`
		SELECT product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ?
		ORDER BY line`,
		func(stmt *sqlite.Stmt) error {
			price, err := decimal.NewFromString(stmt.ColumnText(2))
			if err != nil {
				return fmt.Errorf("parse unit price: %w", err)
			}
			found.Items = append(found.Items, domain.OrderItem{
				OrderID:   id,
				ProductID: stmt.ColumnText(0),
				Quantity:  stmt.ColumnInt(1),
				UnitPrice: price,
			})
			return nil
		}, id)
	if err != nil {
		return nil, fmt.Errorf("find order items: %w", err)
	}
	return found, nil
}

func (r *repo) ListOrders(_ context.Context, f ports.OrderFilter) ([]*domain.Order, int64, error) {
	const where = `
		WHERE (?1
		       OR created_by_id IN (SELECT value FROM json_each(?2))
		       OR assigned_to_id IN (SELECT value FROM json_each(?3))
		       OR customer_id IN (SELECT value FROM json_each(?4)))
		  AND (?5 = '' OR status = ?5)
		  AND (?6 = '' OR customer_id = ?6)`
	args := []any{
		flag(f.Scope.All),
		idSet(f.Scope.CreatedBy),
		idSet(f.Scope.AssignedTo),
		idSet(f.Scope.Customers),
		string(f.Status),
		f.CustomerID,
	}

	total, err := r.count(`SELECT count(*) FROM orders`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders := []*domain.Order{}
	err = r.query(`SELECT `+orderColumns+` FROM orders`+where+`
		ORDER BY created_at DESC, id
		LIMIT ?7 OFFSET ?8`,
		func(stmt *sqlite.Stmt) error {
			o, err := readOrder(stmt)
			if err != nil {
				return err
			}
			orders = append(orders, o)
			return nil
		},
		append(args, limit(f.Limit), ports.Offset(f.Page, f.Limit))...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func (r *repo) UpdateOrderStatus(_ context.Context, id string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	n, err := r.exec(`
		UPDATE orders SET status = ?3, updated_at = ?4
		WHERE id = ?1 AND status = ?2`,
		id, string(from), string(to), formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return n == 1, nil
}

func (r *repo) UpdateOrderAssignee(_ context.Context, id string, assigneeID *string, at time.Time) (bool, error) {
	n, err := r.exec(`
		UPDATE orders SET assigned_to_id = ?2, updated_at = ?3
		WHERE id = ?1 AND status NOT IN ('completed', 'cancelled')`,
		id, nullable(assigneeID), formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("update order assignee: %w", err)
	}
	return n == 1, nil
}

// DeleteOrder removes items through the ON DELETE CASCADE on order_items;
// foreign keys are enabled per connection.
func (r *repo) DeleteOrder(_ context.Context, id string, status domain.OrderStatus) (bool, error) {
	n, err := r.exec(`DELETE FROM orders WHERE id = ? AND status = ?`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	return n == 1, nil
}

// --- helpers ---

func (r *repo) selectIDs(query string, args ...any) ([]string, error) {
	var ids []string
	err := r.query(query, func(stmt *sqlite.Stmt) error {
		ids = append(ids, stmt.ColumnText(0))
		return nil
	}, args...)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultConstraintUnique || code == sqlite.ResultConstraintPrimaryKey
}

// idSet encodes ids as a JSON array for json_each. Empty sets encode as []
// so membership tests are false rather than NULL.
func idSet(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// limit maps "no limit" to SQLite's -1.
func limit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableText(stmt *sqlite.Stmt, col int) *string {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	s := stmt.ColumnText(col)
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
