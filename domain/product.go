package domain

import "time"

// Product описывает товар в каталоге владельца.
type Product struct {
	ID      string
	OwnerID string
	// Name и Brand — витринные атрибуты товара.
	Name  string
	Brand string
	// SKU уникален в рамках одного владельца.
	SKU         string
	Description string
	Category    string
	Size        string
	Type        string
	ImageURL    string
	// PriceMinor — цена за единицу в минимальных денежных единицах (центы/тийин).
	PriceMinor int64
	// Stock — текущий остаток; меняется только через атомарную корректировку.
	Stock     int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.SKU == "" {
		errs = append(errs, ErrSKURequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
