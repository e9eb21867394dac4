package usecase

import "time"

// 注文ライフサイクルのイベント種別（Kafkaトピック名と一致）
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCanceled  = "order.canceled"
	EventOrderCompleted = "order.completed"
)

type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	UserID     int64     `json:"user_id"`
	Status     string    `json:"status"`
	TotalPrice float64   `json:"total_price"`
	OccurredAt time.Time `json:"occurred_at"`
}

// コミット後にイベントを流す約束。fire-and-forgetで、
// 失敗しても注文処理の結果には影響しない
type EventPublisher interface {
	PublishOrderEvent(ev OrderEvent)
}
