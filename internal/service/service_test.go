package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vkarpenko/storefront-system/internal/model"
	"github.com/vkarpenko/storefront-system/internal/repository"
	"github.com/vkarpenko/storefront-system/internal/validation"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	placeOrderCalls   int
	placeOrderNumbers []string
	placeOrder        *model.Order
	placeOrderErr     error
	// первые N вызовов PlaceOrder завершаются ErrOrderNumberTaken
	numberTakenTimes int

	clearCartCalls int
	clearCartErr   error

	productErr error

	updateStatusErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte, agentID *int64) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) CreateSalesAgent(ctx context.Context, name string) (int64, error) {
	return 1, nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p model.Product) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetProduct(ctx context.Context, productID int64) (*model.Product, error) {
	if s.productErr != nil {
		return nil, s.productErr
	}
	return &model.Product{ID: productID, IsActive: true}, nil
}

func (s *stubRepo) ListProducts(ctx context.Context) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) PlaceOrder(ctx context.Context, userID int64, number string, items []model.CartLine, shippingAddress string) (*model.Order, error) {
	s.placeOrderCalls++
	s.placeOrderNumbers = append(s.placeOrderNumbers, number)
	if s.numberTakenTimes > 0 {
		s.numberTakenTimes--
		return nil, repository.ErrOrderNumberTaken
	}
	if s.placeOrderErr != nil {
		return nil, s.placeOrderErr
	}
	if s.placeOrder != nil {
		return s.placeOrder, nil
	}
	return &model.Order{
		ID:          1,
		Number:      number,
		UserID:      userID,
		Status:      model.OrderStatusPending,
		TotalAmount: 45000,
	}, nil
}

func (s *stubRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, number string, next model.OrderStatus) error {
	return s.updateStatusErr
}

func (s *stubRepo) GetOrderNumbersByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]string, error) {
	return nil, nil
}

func (s *stubRepo) GetCommissionsByAgent(ctx context.Context, agentID int64) ([]model.Commission, error) {
	return nil, nil
}

func (s *stubRepo) UpsertCartLine(ctx context.Context, userID, productID int64, quantity int) error {
	return nil
}

func (s *stubRepo) GetCartLines(ctx context.Context, userID int64) ([]model.CartLine, error) {
	return nil, nil
}

func (s *stubRepo) ClearCart(ctx context.Context, userID int64) error {
	s.clearCartCalls++
	return s.clearCartErr
}

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user", "pass")
	b := hashPassword("user", "pass")
	c := hashPassword("user", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.RegisterUser(context.Background(), "login", "pass", nil)
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	hashed := hashPassword("user", "correct")
	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Login:        "user",
			PasswordHash: hashed,
		},
	}

	svc := NewService(repo, nil, nil)

	_, err := svc.AuthenticateUser(context.Background(), "user", "wrong")
	if err == nil {
		t.Fatalf("expected error for invalid credentials")
	}
}

func TestPlaceOrder_EmptyOrderRejectedBeforeRepo(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	_, err := svc.PlaceOrder(context.Background(), 1, nil, "")
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
	if repo.placeOrderCalls != 0 {
		t.Fatalf("repository must not be called for empty order")
	}
}

func TestPlaceOrder_InvalidItemsRejected(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	items := []model.CartLine{{ProductID: 1, Quantity: 0}}
	_, err := svc.PlaceOrder(context.Background(), 1, items, "")
	if !errors.Is(err, ErrInvalidItems) {
		t.Fatalf("expected ErrInvalidItems, got %v", err)
	}
	if repo.placeOrderCalls != 0 {
		t.Fatalf("repository must not be called for invalid items")
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	items := []model.CartLine{{ProductID: 1, Quantity: 5}}
	summary, err := svc.PlaceOrder(context.Background(), 42, items, "Somewhere st. 1")
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	if summary.Status != model.OrderStatusPending {
		t.Fatalf("status = %s, want pending", summary.Status)
	}
	if summary.TotalAmount != 450.00 {
		t.Fatalf("total = %v, want 450.00", summary.TotalAmount)
	}
	if !validation.IsValidOrderNumber(summary.Number) {
		t.Fatalf("generated order number %q has invalid format", summary.Number)
	}
	if repo.clearCartCalls != 1 {
		t.Fatalf("cart must be cleared once, got %d", repo.clearCartCalls)
	}
}

func TestPlaceOrder_PropagatesStockError(t *testing.T) {
	repo := &stubRepo{
		placeOrderErr: repository.ErrInsufficientStock,
	}
	svc := NewService(repo, nil, nil)

	items := []model.CartLine{{ProductID: 1, Quantity: 5}}
	_, err := svc.PlaceOrder(context.Background(), 1, items, "")
	if !errors.Is(err, repository.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if repo.clearCartCalls != 0 {
		t.Fatalf("cart must not be cleared after failed order")
	}
}

func TestPlaceOrder_PropagatesProductNotFound(t *testing.T) {
	repo := &stubRepo{
		placeOrderErr: repository.ErrProductNotFound,
	}
	svc := NewService(repo, nil, nil)

	items := []model.CartLine{{ProductID: 99, Quantity: 1}}
	_, err := svc.PlaceOrder(context.Background(), 1, items, "")
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestPlaceOrder_RetriesOnNumberCollision(t *testing.T) {
	repo := &stubRepo{
		numberTakenTimes: 1,
	}
	svc := NewService(repo, nil, nil)

	items := []model.CartLine{{ProductID: 1, Quantity: 1}}
	_, err := svc.PlaceOrder(context.Background(), 1, items, "")
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}

	if repo.placeOrderCalls != 2 {
		t.Fatalf("expected retry after number collision, calls = %d", repo.placeOrderCalls)
	}
	if len(repo.placeOrderNumbers) == 2 && repo.placeOrderNumbers[0] == repo.placeOrderNumbers[1] {
		t.Fatalf("retry must use a fresh order number")
	}
}

func TestPlaceOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := &stubRepo{
		numberTakenTimes: orderNumberAttempts,
	}
	svc := NewService(repo, nil, nil)

	items := []model.CartLine{{ProductID: 1, Quantity: 1}}
	_, err := svc.PlaceOrder(context.Background(), 1, items, "")
	if !errors.Is(err, repository.ErrTransactionConflict) {
		t.Fatalf("expected ErrTransactionConflict after retries, got %v", err)
	}
	if errors.Is(err, repository.ErrOrderNumberTaken) {
		t.Fatalf("internal collision error must not leak to the caller, got %v", err)
	}
	if repo.placeOrderCalls != orderNumberAttempts {
		t.Fatalf("placeOrderCalls = %d, want %d", repo.placeOrderCalls, orderNumberAttempts)
	}
}

func TestPlaceOrder_CartClearFailureDoesNotFailOrder(t *testing.T) {
	repo := &stubRepo{
		clearCartErr: errors.New("cart unavailable"),
	}
	svc := NewService(repo, nil, nil)

	items := []model.CartLine{{ProductID: 1, Quantity: 2}}
	summary, err := svc.PlaceOrder(context.Background(), 1, items, "")
	if err != nil {
		t.Fatalf("order must survive cart clear failure, got %v", err)
	}
	if summary == nil {
		t.Fatalf("expected order summary")
	}
}

func TestUpdateOrderStatus_RejectsUnknownStatus(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)

	err := svc.UpdateOrderStatus(context.Background(), "123", model.OrderStatus("paid"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestAddCartLine_RejectsInvalidQuantity(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)

	err := svc.AddCartLine(context.Background(), 1, 1, 0)
	if !errors.Is(err, ErrInvalidItems) {
		t.Fatalf("expected ErrInvalidItems, got %v", err)
	}
}

func TestAddCartLine_RejectsUnknownProduct(t *testing.T) {
	repo := &stubRepo{
		productErr: repository.ErrProductNotFound,
	}
	svc := NewService(repo, nil, nil)

	err := svc.AddCartLine(context.Background(), 1, 99, 1)
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCreateProduct_RejectsInvalidTier(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)

	maxQ := 2
	_, err := svc.CreateProduct(context.Background(), model.Product{
		Name:      "widget",
		BasePrice: 100,
		Tiers: []model.PricingTier{
			{MinQuantity: 5, MaxQuantity: &maxQ, UnitPrice: 90},
		},
	})
	if err == nil {
		t.Fatalf("expected error for tier with max below min")
	}
}
