package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/tableside/internal/domain"
)

const orderColumns = `id, ticket_number, status, total, table_number, client_id,
	client_name, note, origin, payment_method, created_at, updated_at`

type orderRow struct {
	ID            int64           `db:"id"`
	TicketNumber  int             `db:"ticket_number"`
	Status        string          `db:"status"`
	Total         decimal.Decimal `db:"total"`
	TableNumber   sql.NullInt64   `db:"table_number"`
	ClientID      sql.NullInt64   `db:"client_id"`
	ClientName    string          `db:"client_name"`
	Note          string          `db:"note"`
	Origin        string          `db:"origin"`
	PaymentMethod string          `db:"payment_method"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r orderRow) toDomain() *domain.Order {
	order := &domain.Order{
		ID:            r.ID,
		TicketNumber:  r.TicketNumber,
		Status:        domain.OrderStatus(r.Status),
		Total:         r.Total,
		ClientName:    r.ClientName,
		Note:          r.Note,
		Origin:        domain.Origin(r.Origin),
		PaymentMethod: r.PaymentMethod,
		Lines:         []domain.OrderLine{},
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.TableNumber.Valid {
		n := int(r.TableNumber.Int64)
		order.TableNumber = &n
	}
	if r.ClientID.Valid {
		id := r.ClientID.Int64
		order.ClientID = &id
	}
	return order
}

type lineRow struct {
	OrderID     int64           `db:"order_id"`
	ProductID   int64           `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	Note        string          `db:"note"`
}

type tableRow struct {
	Number    int           `db:"number"`
	Status    string        `db:"status"`
	OrderID   sql.NullInt64 `db:"order_id"`
	UpdatedAt time.Time     `db:"updated_at"`
}

func (r tableRow) toDomain() *domain.Table {
	table := &domain.Table{
		Number:    r.Number,
		Status:    domain.TableStatus(r.Status),
		UpdatedAt: r.UpdatedAt,
	}
	if r.OrderID.Valid {
		id := r.OrderID.Int64
		table.OrderID = &id
	}
	return table
}

// OrderRepository is the Postgres Store. Row locks taken with FOR UPDATE
// serialize writers on the same order and on the same table.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: sqlx.NewDb(db, "postgres")}
}

func (r *OrderRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return getOrder(ctx, r.db, id, false)
}

func (r *OrderRepository) ListOrders(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toDomain())
	}
	if err := loadLines(ctx, r.db, orders...); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, *o)
	}
	return result, nil
}

func (r *OrderRepository) ListTables(ctx context.Context) ([]domain.Table, error) {
	var rows []tableRow
	err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT number, status, order_id, updated_at
		FROM dining_tables
		ORDER BY number
	`)
	if err != nil {
		return nil, fmt.Errorf("select tables: %w", err)
	}

	tables := make([]domain.Table, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, *row.toDomain())
	}
	return tables, nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

// NextTicketNumber increments the day's sequence row. The row stays locked
// until commit, so concurrent creations on the same day queue up instead of
// reading the same count.
func (t *pgTx) NextTicketNumber(ctx context.Context, businessDay string) (int, error) {
	var number int
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO ticket_sequences (business_day, last_number)
		VALUES ($1, 1)
		ON CONFLICT (business_day)
		DO UPDATE SET last_number = ticket_sequences.last_number + 1
		RETURNING last_number
	`, businessDay).Scan(&number)
	if err != nil {
		return 0, err
	}
	return number, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order *domain.Order, businessDay string) error {
	err := t.tx.QueryRowxContext(ctx, `
		INSERT INTO orders (ticket_number, business_day, status, total, table_number, client_id,
			client_name, note, origin, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, order.TicketNumber, businessDay, order.Status, order.Total, order.TableNumber, order.ClientID,
		order.ClientName, order.Note, order.Origin, order.PaymentMethod, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return err
	}

	for i, line := range order.Lines {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, position, product_id, product_name, quantity, unit_price, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, order.ID, i, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, line.Note)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", i+1, err)
		}
	}

	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, note = $2, payment_method = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, order.Status, order.Note, order.PaymentMethod, order.UpdatedAt, order.ID, expected)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return &domain.TransitionError{OrderID: order.ID, From: expected, To: order.Status}
	}

	return nil
}

func (t *pgTx) LockTable(ctx context.Context, number int) (*domain.Table, error) {
	var row tableRow
	err := sqlx.GetContext(ctx, t.tx, &row, `
		SELECT number, status, order_id, updated_at
		FROM dining_tables
		WHERE number = $1
		FOR UPDATE
	`, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("table %d", number)
		}
		return nil, fmt.Errorf("lock table %d: %w", number, err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) SaveTable(ctx context.Context, table *domain.Table) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE dining_tables
		SET status = $1, order_id = $2, updated_at = $3
		WHERE number = $4
	`, table.Status, table.OrderID, table.UpdatedAt, table.Number)
	if err != nil {
		return fmt.Errorf("save table %d: %w", table.Number, err)
	}
	return nil
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, id int64, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row orderRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("order %d", id)
		}
		return nil, fmt.Errorf("select order %d: %w", id, err)
	}

	order := row.toDomain()
	if err := loadLines(ctx, q, order); err != nil {
		return nil, err
	}
	return order, nil
}

func loadLines(ctx context.Context, q sqlx.QueryerContext, orders ...*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	var rows []lineRow
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT order_id, product_id, product_name, quantity, unit_price, note
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("select order lines: %w", err)
	}

	for _, row := range rows {
		order := byID[row.OrderID]
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			Quantity:    row.Quantity,
			UnitPrice:   row.UnitPrice,
			Note:        row.Note,
		})
	}

	return nil
}
