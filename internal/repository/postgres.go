// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vkarpenko/storefront-system/internal/commission"
	"github.com/vkarpenko/storefront-system/internal/model"
	"github.com/vkarpenko/storefront-system/internal/pricing"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductNotFound возвращается, если товар не существует или снят с продажи.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается, если запрошенное количество превышает остаток на складе.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound возвращается, если заказ с указанным номером не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNumberTaken возвращается при коллизии номера заказа; вызывающий
	// должен повторить оформление с новым номером.
	ErrOrderNumberTaken = errors.New("order number already taken")
	// ErrInvalidTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrTransactionConflict возвращается, когда транзакция не зафиксировалась
	// из-за конкурентного конфликта и внутренние повторы исчерпаны. Операцию
	// можно безопасно повторить с начала.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// retryDelays задаёт паузы между повторами транзакций при конкурентных сбоях.
var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	policy *commission.Policy
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
// Политика комиссий применяется внутри транзакции оформления заказа.
func NewPostgresRepository(dsn string, policy *commission.Policy) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if policy == nil {
		policy = commission.NewPolicy(commission.DefaultRate, commission.DefaultOrderLimit)
	}

	r := &PostgresRepository{pool: pool, policy: policy}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure или Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(retryDelays) {
					time.Sleep(retryDelays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(retryDelays) {
				time.Sleep(retryDelays[i])
				continue
			}
		}

		break
	}

	// Исчерпанные повторы сериализационных сбоев и взаимоблокировок — это
	// конфликт транзакции: вызывающий может повторить операцию целиком.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) &&
		(pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected) {
		return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
	}

	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя. Назначенный при регистрации торговый
// агент неизменяем в течение жизни пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte, agentID *int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, assigned_sales_agent_id) VALUES ($1, $2, $3) RETURNING id`,
		login, passwordHash, agentID,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, assigned_sales_agent_id, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.AssignedSalesAgentID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateSalesAgent создаёт торгового агента.
func (r *PostgresRepository) CreateSalesAgent(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sales_agents (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create sales agent: %w", err)
	}
	return id, nil
}

// CreateProduct создаёт товар вместе с его тарифными диапазонами.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO products (name, base_price, stock_quantity, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		p.Name, p.BasePrice, p.StockQuantity, p.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}

	for _, tier := range p.Tiers {
		_, err = tx.Exec(ctx,
			`INSERT INTO pricing_tiers (product_id, min_quantity, max_quantity, unit_price)
			 VALUES ($1, $2, $3, $4)`,
			id, tier.MinQuantity, tier.MaxQuantity, tier.UnitPrice,
		)
		if err != nil {
			return 0, fmt.Errorf("insert pricing tier: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// GetProduct возвращает товар с тарифами по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, base_price, stock_quantity, is_active, created_at, updated_at
		 FROM products
		 WHERE id = $1`,
		productID,
	)

	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.BasePrice, &p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	tiers, err := r.getTiers(ctx, r.pool, productID)
	if err != nil {
		return nil, err
	}
	p.Tiers = tiers

	return &p, nil
}

// queryRower объединяет pgxpool.Pool и pgx.Tx для запросов тарифов.
type queryRower interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PostgresRepository) getTiers(ctx context.Context, q queryRower, productID int64) ([]model.PricingTier, error) {
	rows, err := q.Query(ctx,
		`SELECT min_quantity, max_quantity, unit_price
		 FROM pricing_tiers
		 WHERE product_id = $1
		 ORDER BY min_quantity`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select pricing tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.PricingTier
	for rows.Next() {
		var t model.PricingTier
		if err := rows.Scan(&t.MinQuantity, &t.MaxQuantity, &t.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan pricing tier: %w", err)
		}
		tiers = append(tiers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tiers, nil
}

// ListProducts возвращает список активных товаров с тарифами.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, base_price, stock_quantity, is_active, created_at, updated_at
		 FROM products
		 WHERE is_active
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.BasePrice, &p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range products {
		tiers, err := r.getTiers(ctx, r.pool, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Tiers = tiers
	}

	return products, nil
}

// PlaceOrder оформляет заказ в одной транзакции: резервирует остатки,
// фиксирует цены позиций, создаёт заказ с позициями и начисляет комиссию
// агенту, если заказ квалифицирующий. Любая ошибка откатывает транзакцию
// целиком — частично оформленных заказов не бывает.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, userID int64, number string, items []model.CartLine, shippingAddress string) (*model.Order, error) {
	var order *model.Order
	var connFailed bool
	err := r.withRetry(ctx, func() error {
		var err error
		order, err = r.placeOrderTx(ctx, userID, number, items, shippingAddress)
		if err != nil && isConnectionError(err) {
			connFailed = true
		}
		return err
	})
	if err != nil {
		// Если соединение оборвалось после фиксации, но до подтверждения,
		// повторная транзакция упрётся в уникальный индекс номера. Заказ при
		// этом уже сохранён — возвращаем его вместо ошибки коллизии, чтобы
		// вызывающий не оформил дубликат с новым номером.
		if connFailed && errors.Is(err, ErrOrderNumberTaken) {
			if saved, lookupErr := r.getOrderByNumber(ctx, number, userID); lookupErr == nil {
				return saved, nil
			}
		}
		return nil, err
	}
	return order, nil
}

func (r *PostgresRepository) getOrderByNumber(ctx context.Context, number string, userID int64) (*model.Order, error) {
	o := model.Order{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, status, total_amount, shipping_address, created_at, updated_at
		 FROM orders
		 WHERE number = $1 AND user_id = $2`,
		number, userID,
	).Scan(&o.ID, &o.Number, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, number)
		}
		return nil, fmt.Errorf("select order by number: %w", err)
	}

	items, err := r.getOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *PostgresRepository) placeOrderTx(ctx context.Context, userID int64, number string, items []model.CartLine, shippingAddress string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	orderItems := make([]model.OrderItem, 0, len(items))

	for _, item := range items {
		// Блокируем строку товара: конкурирующие заказы на один товар
		// резервируют остаток строго по очереди.
		var p model.Product
		err := tx.QueryRow(ctx,
			`SELECT id, name, base_price, stock_quantity, is_active
			 FROM products
			 WHERE id = $1
			 FOR UPDATE`,
			item.ProductID,
		).Scan(&p.ID, &p.Name, &p.BasePrice, &p.StockQuantity, &p.IsActive)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
			}
			return nil, fmt.Errorf("select product: %w", err)
		}

		if !p.IsActive {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}

		tiers, err := r.getTiers(ctx, tx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Tiers = tiers

		unitPrice := pricing.ResolveUnitPrice(p, item.Quantity)

		// Атомарное списание с проверкой остатка: при нехватке ни одна
		// единица не списывается.
		cmdTag, err := tx.Exec(ctx,
			`UPDATE products
			 SET stock_quantity = stock_quantity - $2, updated_at = now()
			 WHERE id = $1 AND stock_quantity >= $2`,
			p.ID, item.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("reserve stock: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return nil, fmt.Errorf("%w: product %d: requested %d, available %d",
				ErrInsufficientStock, p.ID, item.Quantity, p.StockQuantity)
		}

		lineTotal := int64(item.Quantity) * unitPrice
		total += lineTotal

		orderItems = append(orderItems, model.OrderItem{
			ProductID: p.ID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
	}

	order := &model.Order{
		Number:          number,
		UserID:          userID,
		Status:          model.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: shippingAddress,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (number, user_id, status, total_amount, shipping_address)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		number, userID, string(model.OrderStatusPending), total, shippingAddress,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrOrderNumberTaken, number)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range orderItems {
		orderItems[i].OrderID = order.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			order.ID, orderItems[i].ProductID, orderItems[i].Quantity, orderItems[i].UnitPrice, orderItems[i].LineTotal,
		).Scan(&orderItems[i].ID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}
	order.Items = orderItems

	if err := r.createCommissionTx(ctx, tx, userID, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return order, nil
}

// createCommissionTx начисляет комиссию агенту внутри транзакции оформления.
// Счётчик заказов покупателя считается после вставки заказа и включает
// оформляемый заказ; статус заказов не фильтруется.
func (r *PostgresRepository) createCommissionTx(ctx context.Context, tx pgx.Tx, userID int64, order *model.Order) error {
	var agentID *int64
	err := tx.QueryRow(ctx,
		`SELECT assigned_sales_agent_id FROM users WHERE id = $1`,
		userID,
	).Scan(&agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("select assigned agent: %w", err)
	}

	var orderCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`,
		userID,
	).Scan(&orderCount)
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}

	c := r.policy.Evaluate(agentID, orderCount, order.TotalAmount)
	if c == nil {
		return nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO commissions (order_id, sales_agent_id, commission_rate, commission_amount, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		order.ID, c.SalesAgentID, c.Rate, c.Amount, string(c.Status),
	)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}

	return nil
}

// GetOrdersByUser возвращает список заказов пользователя с позициями.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, status, total_amount, shipping_address, created_at, updated_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o := model.Order{UserID: userID}
		if err := rows.Scan(&o.ID, &o.Number, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		items, err := r.getOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *PostgresRepository) getOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, quantity, unit_price, line_total
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		item := model.OrderItem{OrderID: orderID}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// UpdateOrderStatus переводит заказ в новый статус. Текущий статус читается
// под блокировкой строки, переход проверяется машиной состояний заказа.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, number string, next model.OrderStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current model.OrderStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM orders WHERE number = $1 FOR UPDATE`,
		number,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, number)
		}
		return fmt.Errorf("select order status: %w", err)
	}

	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE number = $1`,
		number, string(next),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetOrderNumbersByStatus возвращает номера заказов в указанном статусе.
func (r *PostgresRepository) GetOrderNumbersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT number
		 FROM orders
		 WHERE status = $1
		 ORDER BY updated_at
		 LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders by status: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan order number: %w", err)
		}
		numbers = append(numbers, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return numbers, nil
}

// GetCommissionsByAgent возвращает комиссии торгового агента.
func (r *PostgresRepository) GetCommissionsByAgent(ctx context.Context, agentID int64) ([]model.Commission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, sales_agent_id, commission_rate, commission_amount, status, created_at
		 FROM commissions
		 WHERE sales_agent_id = $1
		 ORDER BY created_at DESC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("select commissions: %w", err)
	}
	defer rows.Close()

	var res []model.Commission
	for rows.Next() {
		var c model.Commission
		if err := rows.Scan(&c.ID, &c.OrderID, &c.SalesAgentID, &c.Rate, &c.Amount, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpsertCartLine добавляет товар в корзину пользователя или заменяет количество.
func (r *PostgresRepository) UpsertCartLine(ctx context.Context, userID, productID int64, quantity int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

// GetCartLines возвращает содержимое корзины пользователя.
func (r *PostgresRepository) GetCartLines(ctx context.Context, userID int64) ([]model.CartLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity
		 FROM cart_items
		 WHERE user_id = $1
		 ORDER BY product_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// ClearCart удаляет все строки корзины пользователя.
func (r *PostgresRepository) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
