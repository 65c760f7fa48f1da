// Package model содержит доменные сущности витрины магазина.
package model

import "time"

// User представляет зарегистрированного покупателя.
type User struct {
	ID                   int64
	Login                string
	PasswordHash         []byte
	AssignedSalesAgentID *int64
	CreatedAt            time.Time
}

// SalesAgent представляет торгового агента, привлекающего покупателей.
type SalesAgent struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// PricingTier описывает диапазон количества товара с фиксированной ценой за единицу.
// Цена хранится в копейках. MaxQuantity == nil означает диапазон без верхней границы.
type PricingTier struct {
	MinQuantity int
	MaxQuantity *int
	UnitPrice   int64
}

// Product описывает товар каталога. Тарифы отсортированы по возрастанию MinQuantity.
type Product struct {
	ID            int64
	Name          string
	BasePrice     int64
	StockQuantity int64
	IsActive      bool
	Tiers         []PricingTier
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// statusRank задаёт порядок статусов для проверки монотонности переходов.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// IsValidOrderStatus сообщает, является ли строка известным статусом заказа.
func IsValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода статуса заказа.
// Переходы строго вперёд: pending → confirmed → processing → shipped → delivered.
// Отмена допустима из любого статуса, кроме delivered и cancelled.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == OrderStatusDelivered || s == OrderStatusCancelled {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to == from+1
}

// OrderItem описывает позицию заказа. Цена за единицу фиксируется в момент
// оформления и никогда не пересчитывается при изменении тарифов каталога.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// Order описывает заказ покупателя. TotalAmount всегда равен сумме LineTotal позиций.
type Order struct {
	ID              int64
	Number          string
	UserID          int64
	Status          OrderStatus
	TotalAmount     int64
	ShippingAddress string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CommissionStatus описывает статус выплаты комиссии.
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
)

// Commission описывает комиссию агента за квалифицирующий заказ.
// Ставка хранится в сотых долях процента (500 = 5.00%).
type Commission struct {
	ID           int64
	OrderID      int64
	SalesAgentID int64
	Rate         int64
	Amount       int64
	Status       CommissionStatus
	CreatedAt    time.Time
}

// CartLine описывает строку корзины покупателя.
type CartLine struct {
	ProductID int64
	Quantity  int
}

// OrderSummary содержит результат успешного оформления заказа.
type OrderSummary struct {
	ID          int64       `json:"id"`
	Number      string      `json:"number"`
	TotalAmount float64     `json:"total_amount"`
	Status      OrderStatus `json:"status"`
}
