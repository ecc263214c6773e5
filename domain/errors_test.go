package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "version conflict error",
			err:  ErrVersionConflict,
			want: true,
		},
		{
			name: "wrapped version conflict error",
			err:  errors.Join(ErrVersionConflict, errors.New("additional context")),
			want: true,
		},
		{
			name: "other error",
			err:  ErrNotFound,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVersionConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "transient gateway error",
			err:  &GatewayError{Op: "stk_push", Transient: true, Err: errors.New("timeout")},
			want: true,
		},
		{
			name: "wrapped transient gateway error",
			err:  fmt.Errorf("initiate charge: %w", &GatewayError{Op: "auth", Transient: true, Err: errors.New("eof")}),
			want: true,
		},
		{
			name: "non-transient gateway error",
			err:  &GatewayError{Op: "stk_push", Transient: false, Err: errors.New("rejected")},
			want: false,
		},
		{
			name: "non gateway error",
			err:  ErrInvalidCode,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsTransient(tt.err)
			if got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{ProductID: "product-7", Requested: 3, Available: 2}

	want := "insufficient stock for product product-7: requested 3, available 2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestInconsistentStateError_Unwrap(t *testing.T) {
	cause := errors.New("storage down")
	err := &InconsistentStateError{OrderRef: "order-1", Unreverted: []string{"product-1"}, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the root cause")
	}
}
