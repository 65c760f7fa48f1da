// Package commission реализует правило начисления комиссии торговому агенту.
package commission

import "github.com/vkarpenko/storefront-system/internal/model"

// DefaultRate — ставка комиссии по умолчанию в сотых долях процента (500 = 5.00%).
const DefaultRate int64 = 500

// DefaultOrderLimit — количество первых заказов покупателя, за которые агент
// получает комиссию. Комиссия стимулирует привлечение покупателя, а не каждую
// его последующую покупку.
const DefaultOrderLimit = 3

// Policy вычисляет комиссию агента за заказ. Нулевое значение использует
// ставку и лимит по умолчанию.
type Policy struct {
	rate       int64
	orderLimit int
}

// NewPolicy создаёт политику комиссий с указанной ставкой (в сотых долях
// процента) и лимитом квалифицирующих заказов. Неположительные значения
// заменяются значениями по умолчанию.
func NewPolicy(rate int64, orderLimit int) *Policy {
	if rate <= 0 {
		rate = DefaultRate
	}
	if orderLimit <= 0 {
		orderLimit = DefaultOrderLimit
	}
	return &Policy{rate: rate, orderLimit: orderLimit}
}

// Evaluate решает, положена ли агенту комиссия за заказ, и возвращает её
// параметры либо nil.
//
// Комиссия начисляется, если покупателю назначен агент и порядковый номер
// заказа в истории покупателя (включая оформляемый заказ; отменённые заказы
// учитываются) не превышает лимит. Сумма считается целочисленно в копейках
// с округлением до ближайшей копейки.
//
// Функция только принимает решение; сохранение комиссии выполняет оркестратор
// транзакции заказа.
func (p *Policy) Evaluate(agentID *int64, lifetimeOrderCount int, totalAmount int64) *model.Commission {
	if agentID == nil {
		return nil
	}

	rate := p.rate
	if rate <= 0 {
		rate = DefaultRate
	}
	limit := p.orderLimit
	if limit <= 0 {
		limit = DefaultOrderLimit
	}

	if lifetimeOrderCount > limit {
		return nil
	}

	amount := (totalAmount*rate + 5000) / 10000

	return &model.Commission{
		SalesAgentID: *agentID,
		Rate:         rate,
		Amount:       amount,
		Status:       model.CommissionStatusPending,
	}
}
