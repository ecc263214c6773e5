package domain

import "time"

// Supplier — поставщик мерчанта со списком брендов, которые он возит.
type Supplier struct {
	ID        string
	OwnerID   string
	Name      string
	Phone     string
	Email     string
	Address   string
	Brands    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля поставщика.
func (s *Supplier) Validate() []error {
	var errs []error

	if s.Name == "" {
		errs = append(errs, ErrSupplierNameRequired)
	}

	return errs
}
