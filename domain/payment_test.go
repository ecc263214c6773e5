package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/duka/domain"
)

func makeAttempt() domain.PaymentAttempt {
	now := time.Now().UTC()
	return domain.PaymentAttempt{
		ID:          "payment-1",
		OwnerID:     "owner-1",
		OrderID:     "order-1",
		Reference:   "ORDER-1",
		AmountMinor: 300000,
		Status:      domain.AttemptStatusPending,
		Method:      domain.PaymentMethodMpesaSTK,
		Customer: domain.Customer{
			Name:  "Wanjiku N.",
			Phone: "254712345678",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPaymentAttemptValidate_Ok(t *testing.T) {
	attempt := makeAttempt()
	if errs := attempt.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestPaymentAttemptValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(p *domain.PaymentAttempt)
	}{
		{
			name: "no reference",
			mut: func(p *domain.PaymentAttempt) {
				p.Reference = ""
			},
		},
		{
			name: "zero amount",
			mut: func(p *domain.PaymentAttempt) {
				p.AmountMinor = 0
			},
		},
		{
			name: "no customer name",
			mut: func(p *domain.PaymentAttempt) {
				p.Customer.Name = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempt := makeAttempt()
			tc.mut(&attempt)

			if len(attempt.Validate()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestAttemptStatusTerminal(t *testing.T) {
	cases := []struct {
		status domain.AttemptStatus
		want   bool
	}{
		{domain.AttemptStatusPending, false},
		{domain.AttemptStatusCompleted, true},
		{domain.AttemptStatusFailed, true},
	}

	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("Terminal() for %s = %v, want %v", tc.status, got, tc.want)
		}
	}
}
