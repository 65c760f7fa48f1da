// Package validation содержит функции валидации входных данных.
package validation

import "github.com/vkarpenko/storefront-system/internal/model"

// ValidItems проверяет корректность списка позиций заказа: у каждой позиции
// положительный идентификатор товара и положительное количество, товары не
// повторяются. Пустой список считается корректным, его отклоняет бизнес-логика.
func ValidItems(items []model.CartLine) bool {
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return false
		}
		if _, ok := seen[item.ProductID]; ok {
			return false
		}
		seen[item.ProductID] = struct{}{}
	}
	return true
}

// IsValidOrderNumber проверяет формат номера заказа: непустая строка из цифр,
// дефисов и заглавных латинских букв.
func IsValidOrderNumber(number string) bool {
	if number == "" {
		return false
	}
	for i := 0; i < len(number); i++ {
		ch := number[i]
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'A' && ch <= 'Z':
		case ch == '-':
		default:
			return false
		}
	}
	return true
}
