// Package analytics строит сводные отчёты по заказам, расходам и каталогу.
// Отчёты считаются на чтении, без отдельного хранилища агрегатов.
package analytics

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/duka/domain"
)

// lowStockThreshold — остаток, ниже которого товар попадает в low stock.
const lowStockThreshold = 5

// Service — сервис отчётов.
type Service struct {
	orders   domain.OrderRepository
	expenses domain.ExpenseRepository
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService создаёт сервис отчётов.
func NewService(orders domain.OrderRepository, expenses domain.ExpenseRepository, products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "analytics")
	}
	return &Service{orders: orders, expenses: expenses, products: products, logger: logger}
}

// SalesSummary — сводка продаж за период.
type SalesSummary struct {
	OrdersCount     int
	PaidCount       int
	CancelledCount  int
	RevenueMinor    int64 // сумма оплаченных заказов
	PendingMinor    int64 // сумма заказов, ждущих оплаты
	AvgOrderMinor   int64 // средний чек по оплаченным заказам
	ExpensesMinor   int64
	NetProfitMinor  int64 // RevenueMinor - ExpensesMinor
}

// Sales считает сводку продаж владельца за [since, until). Нулевые границы
// снимают ограничение с соответствующей стороны.
func (s *Service) Sales(ownerID string, since, until time.Time) (SalesSummary, error) {
	orders, err := s.orders.List(ownerID, 0)
	if err != nil {
		return SalesSummary{}, err
	}

	var summary SalesSummary
	for _, order := range orders {
		if !inRange(order.CreatedAt, since, until) {
			continue
		}
		summary.OrdersCount++
		switch order.PaymentStatus {
		case domain.PaymentStatePaid:
			summary.PaidCount++
			summary.RevenueMinor += order.AmountMinor
		case domain.PaymentStatePending:
			summary.PendingMinor += order.AmountMinor
		}
		if order.Status == domain.OrderStatusCancelled {
			summary.CancelledCount++
		}
	}
	if summary.PaidCount > 0 {
		summary.AvgOrderMinor = summary.RevenueMinor / int64(summary.PaidCount)
	}

	expenses, err := s.expenses.List(ownerID)
	if err != nil {
		return SalesSummary{}, err
	}
	for _, expense := range expenses {
		if !inRange(expense.SpentAt, since, until) {
			continue
		}
		summary.ExpensesMinor += expense.AmountMinor
	}
	summary.NetProfitMinor = summary.RevenueMinor - summary.ExpensesMinor

	return summary, nil
}

// CategoryTotal — расходы по одной категории.
type CategoryTotal struct {
	Category    string
	AmountMinor int64
}

// ExpenseBreakdown группирует расходы за период по категориям, крупные первыми.
func (s *Service) ExpenseBreakdown(ownerID string, since, until time.Time) ([]CategoryTotal, error) {
	expenses, err := s.expenses.List(ownerID)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]int64)
	for _, expense := range expenses {
		if !inRange(expense.SpentAt, since, until) {
			continue
		}
		byCategory[expense.Category] += expense.AmountMinor
	}

	result := make([]CategoryTotal, 0, len(byCategory))
	for category, amount := range byCategory {
		result = append(result, CategoryTotal{Category: category, AmountMinor: amount})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AmountMinor != result[j].AmountMinor {
			return result[i].AmountMinor > result[j].AmountMinor
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

// CustomerSummary — агрегат по одному клиенту. Клиенты не хранятся отдельной
// таблицей: агрегация идёт по телефону из заказов.
type CustomerSummary struct {
	Name        string
	Phone       string
	OrdersCount int
	SpentMinor  int64 // только оплаченные заказы
	LastOrderAt time.Time
}

// TopCustomers возвращает клиентов владельца по убыванию выручки.
func (s *Service) TopCustomers(ownerID string, limit int) ([]CustomerSummary, error) {
	orders, err := s.orders.List(ownerID, 0)
	if err != nil {
		return nil, err
	}

	byPhone := make(map[string]*CustomerSummary)
	for _, order := range orders {
		phone := order.Customer.Phone
		summary, ok := byPhone[phone]
		if !ok {
			summary = &CustomerSummary{Name: order.Customer.Name, Phone: phone}
			byPhone[phone] = summary
		}
		summary.OrdersCount++
		if order.PaymentStatus == domain.PaymentStatePaid {
			summary.SpentMinor += order.AmountMinor
		}
		if order.CreatedAt.After(summary.LastOrderAt) {
			summary.LastOrderAt = order.CreatedAt
			summary.Name = order.Customer.Name
		}
	}

	result := make([]CustomerSummary, 0, len(byPhone))
	for _, summary := range byPhone {
		result = append(result, *summary)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SpentMinor != result[j].SpentMinor {
			return result[i].SpentMinor > result[j].SpentMinor
		}
		return result[i].Phone < result[j].Phone
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// InventorySnapshot — состояние каталога на момент запроса.
type InventorySnapshot struct {
	ProductsCount   int
	UnitsTotal      int64
	StockValueMinor int64 // сумма цена*остаток по каталогу
	OutOfStock      int
	LowStock        int // остаток ниже lowStockThreshold, но не ноль
}

// Inventory считает снимок остатков каталога владельца.
func (s *Service) Inventory(ownerID string) (InventorySnapshot, error) {
	products, err := s.products.List(ownerID)
	if err != nil {
		return InventorySnapshot{}, err
	}

	var snapshot InventorySnapshot
	snapshot.ProductsCount = len(products)
	for _, product := range products {
		snapshot.UnitsTotal += int64(product.Stock)
		snapshot.StockValueMinor += int64(product.Stock) * product.PriceMinor
		switch {
		case product.Stock == 0:
			snapshot.OutOfStock++
		case product.Stock < lowStockThreshold:
			snapshot.LowStock++
		}
	}
	return snapshot, nil
}

func inRange(ts, since, until time.Time) bool {
	if !since.IsZero() && ts.Before(since) {
		return false
	}
	if !until.IsZero() && !ts.Before(until) {
		return false
	}
	return true
}
