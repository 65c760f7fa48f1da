// Package service реализует бизнес-логику сервиса витрины.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/vkarpenko/storefront-system/internal/model"
	"github.com/vkarpenko/storefront-system/internal/repository"
	"github.com/vkarpenko/storefront-system/internal/shipping"
	"github.com/vkarpenko/storefront-system/internal/validation"
)

// ErrEmptyOrder возвращается при попытке оформить заказ без позиций.
var (
	ErrEmptyOrder = errors.New("order has no items")
	// ErrInvalidItems возвращается, если список позиций заказа некорректен.
	ErrInvalidItems = errors.New("invalid order items")
	// ErrInvalidStatus возвращается, если запрошен неизвестный статус заказа.
	ErrInvalidStatus = errors.New("invalid order status")
)

// orderNumberAttempts ограничивает число повторных генераций номера заказа
// при коллизии уникального индекса.
const orderNumberAttempts = 3

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte, agentID *int64) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateSalesAgent(ctx context.Context, name string) (int64, error)
	CreateProduct(ctx context.Context, p model.Product) (int64, error)
	GetProduct(ctx context.Context, productID int64) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	PlaceOrder(ctx context.Context, userID int64, number string, items []model.CartLine, shippingAddress string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, number string, next model.OrderStatus) error
	GetOrderNumbersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]string, error)
	GetCommissionsByAgent(ctx context.Context, agentID int64) ([]model.Commission, error)
	UpsertCartLine(ctx context.Context, userID, productID int64, quantity int) error
	GetCartLines(ctx context.Context, userID int64) ([]model.CartLine, error)
	ClearCart(ctx context.Context, userID int64) error
}

// Service содержит бизнес-логику сервиса витрины.
type Service struct {
	repo           Repository
	shippingClient *shipping.Client
	logger         *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом системы отслеживания.
func NewService(repo Repository, shippingClient *shipping.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:           repo,
		shippingClient: shippingClient,
		logger:         logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя. Торговый агент назначается
// один раз при регистрации.
func (s *Service) RegisterUser(ctx context.Context, login, password string, agentID *int64) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed, agentID)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateSalesAgent создаёт торгового агента.
func (s *Service) CreateSalesAgent(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, errors.New("agent name must not be empty")
	}
	return s.repo.CreateSalesAgent(ctx, name)
}

// CreateProduct создаёт товар с тарифными диапазонами.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (int64, error) {
	if p.Name == "" {
		return 0, errors.New("product name must not be empty")
	}
	if p.BasePrice < 0 || p.StockQuantity < 0 {
		return 0, errors.New("product price and stock must not be negative")
	}
	for _, tier := range p.Tiers {
		if tier.MinQuantity <= 0 || tier.UnitPrice < 0 {
			return 0, errors.New("invalid pricing tier")
		}
		if tier.MaxQuantity != nil && *tier.MaxQuantity < tier.MinQuantity {
			return 0, errors.New("invalid pricing tier range")
		}
	}
	return s.repo.CreateProduct(ctx, p)
}

// ListProducts возвращает список активных товаров.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// PlaceOrder оформляет заказ пользователя.
//
// Пустой заказ отклоняется до обращений к хранилищу. Номер заказа генерируется
// из времени и идентификатора пользователя; уникальность гарантирует индекс БД,
// при коллизии номер генерируется заново, а исчерпание попыток возвращает
// repository.ErrTransactionConflict. После успешной фиксации заказа
// корзина пользователя очищается по возможности: ошибка очистки логируется и
// не отменяет уже сохранённый заказ.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, items []model.CartLine, shippingAddress string) (*model.OrderSummary, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if !validation.ValidItems(items) {
		return nil, ErrInvalidItems
	}

	var order *model.Order
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number := generateOrderNumber(userID)
		order, err = s.repo.PlaceOrder(ctx, userID, number, items, shippingAddress)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrOrderNumberTaken) {
			return nil, err
		}
	}
	if err != nil {
		if errors.Is(err, repository.ErrOrderNumberTaken) {
			return nil, fmt.Errorf("%w: order number attempts exhausted", repository.ErrTransactionConflict)
		}
		return nil, err
	}

	if clearErr := s.repo.ClearCart(ctx, userID); clearErr != nil {
		s.logger.Warn("clear cart after order",
			zap.Int64("userID", userID),
			zap.String("order", order.Number),
			zap.Error(clearErr),
		)
	}

	return &model.OrderSummary{
		ID:          order.ID,
		Number:      order.Number,
		TotalAmount: float64(order.TotalAmount) / 100,
		Status:      order.Status,
	}, nil
}

// generateOrderNumber составляет человекочитаемый номер заказа из метки времени,
// идентификатора пользователя и случайного суффикса. Уникальность обеспечивает
// ограничение БД, а не гранулярность времени.
func generateOrderNumber(userID int64) string {
	return fmt.Sprintf("%s-%d-%04d", time.Now().UTC().Format("20060102150405"), userID, rand.Intn(10000))
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// UpdateOrderStatus переводит заказ в новый статус с проверкой машины состояний.
func (s *Service) UpdateOrderStatus(ctx context.Context, number string, next model.OrderStatus) error {
	if !validation.IsValidOrderNumber(number) || !model.IsValidOrderStatus(next) {
		return ErrInvalidStatus
	}
	return s.repo.UpdateOrderStatus(ctx, number, next)
}

// GetCommissionsByAgent возвращает комиссии торгового агента.
func (s *Service) GetCommissionsByAgent(ctx context.Context, agentID int64) ([]model.Commission, error) {
	return s.repo.GetCommissionsByAgent(ctx, agentID)
}

// AddCartLine добавляет товар в корзину пользователя или обновляет количество.
func (s *Service) AddCartLine(ctx context.Context, userID, productID int64, quantity int) error {
	if productID <= 0 || quantity <= 0 {
		return ErrInvalidItems
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return err
	}
	return s.repo.UpsertCartLine(ctx, userID, productID, quantity)
}

// GetCartLines возвращает содержимое корзины пользователя.
func (s *Service) GetCartLines(ctx context.Context, userID int64) ([]model.CartLine, error) {
	return s.repo.GetCartLines(ctx, userID)
}

// StartShippingUpdates запускает фоновый процесс синхронизации статусов доставки
// с внешней системой отслеживания.
func (s *Service) StartShippingUpdates(ctx context.Context) {
	if s.shippingClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processShippingBatch(ctx)
			}
		}
	}()
}

func (s *Service) processShippingBatch(ctx context.Context) {
	numbers, err := s.repo.GetOrderNumbersByStatus(ctx, model.OrderStatusShipped, 100)
	if err != nil {
		s.logger.Warn("select shipped orders", zap.Error(err))
		return
	}

	for _, number := range numbers {
		resp, statusCode, retryAfter, err := s.shippingClient.GetShipment(ctx, number)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if resp == nil || resp.Status != shipping.ShipmentStatusDelivered {
			continue
		}

		if err := s.repo.UpdateOrderStatus(ctx, number, model.OrderStatusDelivered); err != nil {
			s.logger.Warn("mark order delivered", zap.String("order", number), zap.Error(err))
		}
	}
}
