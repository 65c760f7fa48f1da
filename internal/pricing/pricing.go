// Package pricing реализует расчёт цены за единицу товара по тарифным диапазонам.
package pricing

import "github.com/vkarpenko/storefront-system/internal/model"

// ResolveUnitPrice возвращает цену за единицу товара в копейках для указанного количества.
//
// Тарифы просматриваются в порядке возрастания MinQuantity, выбирается первый
// диапазон, в который попадает количество (границы включительно). При
// пересечении диапазонов из-за ошибки в данных каталога побеждает первый
// подходящий. Если количество не попало ни в один диапазон или тарифов нет,
// возвращается базовая цена товара.
//
// Функция чистая: без побочных эффектов и обращений к хранилищу.
func ResolveUnitPrice(product model.Product, quantity int) int64 {
	for _, tier := range product.Tiers {
		if quantity < tier.MinQuantity {
			continue
		}
		if tier.MaxQuantity != nil && quantity > *tier.MaxQuantity {
			continue
		}
		return tier.UnitPrice
	}
	return product.BasePrice
}
