package domain

import "time"

// TimelineEvent — событие жизненного цикла заказа для аудита.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
