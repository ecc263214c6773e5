package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/duka/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:      "order-1",
		OwnerID: "owner-1",
		Customer: domain.Customer{
			Name:  "Wanjiku N.",
			Phone: "0712345678",
		},
		Delivery: domain.Delivery{
			Address: "Moi Avenue 12",
			Mode:    domain.DeliveryModeBoda,
		},
		AmountMinor:   500,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatePending,
		PaymentMethod: domain.PaymentMethodMpesaSTK,
		Items: []domain.OrderItem{
			{
				ID:          "item-1",
				ProductID:   "product-1",
				ProductName: "Air Max 90",
				Qty:         5,
				PriceMinor:  100,
				CreatedAt:   now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer name",
			mut: func(o *domain.Order) {
				o.Customer.Name = ""
			},
		},
		{
			name: "no customer phone",
			mut: func(o *domain.Order) {
				o.Customer.Phone = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].PriceMinor = -5
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.AmountMinor = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Изменяем состояние согласно сценарию.
			mutOrder := order
			tc.mut(&mutOrder)

			if len(mutOrder.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderCancellable(t *testing.T) {
	cases := []struct {
		status domain.OrderStatus
		want   bool
	}{
		{domain.OrderStatusPending, true},
		{domain.OrderStatusConfirmed, true},
		{domain.OrderStatusDispatched, true},
		{domain.OrderStatusDelivered, false},
		{domain.OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		order := makeOrder()
		order.Status = tc.status
		if got := order.Cancellable(); got != tc.want {
			t.Errorf("Cancellable() for %s = %v, want %v", tc.status, got, tc.want)
		}
	}
}
