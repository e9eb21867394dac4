package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/rs/zerolog"
)

// PENDING注文を更新できる期間
const orderUpdateWindow = time.Hour

// 注文ステータス遷移のパラメータ。
// サブクラスの階層ではなく1つの遷移関数に寄せてある
type transition struct {
	current model.OrderStatus
	next    model.OrderStatus

	//-1: 在庫引き当て / +1: 在庫戻し / 0: 在庫には触らない
	deltaSign int64

	//falseなら所有者を問わない（管理者操作）
	ownerScoped bool

	reason model.StockMovementReason
	event  string
}

type OrderStatusUsecase struct {
	tx     repo.TransactionManager
	cache  OrderCache
	events EventPublisher
	logger zerolog.Logger
}

func NewOrderStatusUsecase(tx repo.TransactionManager, cache OrderCache, events EventPublisher, logger zerolog.Logger) *OrderStatusUsecase {
	return &OrderStatusUsecase{tx: tx, cache: cache, events: events, logger: logger}
}

// PENDING→CONFIRMED。行ロックの下で在庫を再検証してから引き当てる
func (u *OrderStatusUsecase) Confirm(ctx context.Context, userID int64, orderID int64) (string, error) {
	return u.transition(ctx, userID, orderID, transition{
		current:     model.OrderStatusPending,
		next:        model.OrderStatusConfirmed,
		deltaSign:   -1,
		ownerScoped: true,
		reason:      model.StockMovementOrderConfirmed,
		event:       EventOrderConfirmed,
	})
}

// CONFIRMED→CANCELED。引き当てた在庫をそのまま戻す
func (u *OrderStatusUsecase) Cancel(ctx context.Context, userID int64, orderID int64) (string, error) {
	return u.transition(ctx, userID, orderID, transition{
		current:     model.OrderStatusConfirmed,
		next:        model.OrderStatusCanceled,
		deltaSign:   +1,
		ownerScoped: true,
		reason:      model.StockMovementOrderCanceled,
		event:       EventOrderCanceled,
	})
}

// CONFIRMED→COMPLETED。管理者専用の終端遷移で在庫には触らない
func (u *OrderStatusUsecase) Complete(ctx context.Context, adminID int64, orderID int64) (string, error) {
	return u.transition(ctx, adminID, orderID, transition{
		current:     model.OrderStatusConfirmed,
		next:        model.OrderStatusCompleted,
		deltaSign:   0,
		ownerScoped: false,
		event:       EventOrderCompleted,
	})
}

// 遷移本体。1トランザクションで
// 取得→行ロック→再検証→在庫増減→ステータス更新まで行う。
// コミットで整合性違反が出たらロールバック済みの409として返す
func (u *OrderStatusUsecase) transition(ctx context.Context, actorID int64, orderID int64, t transition) (string, error) {
	if actorID <= 0 {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return "", NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var trackingCode string
	var userID int64
	var totalPrice float64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//存在しない・他人の注文・状態違いはすべて404
		var o model.Order
		var err error
		if t.ownerScoped {
			o, err = r.Orders().FindForUser(ctx, actorID, orderID, t.current)
		} else {
			o, err = r.Orders().FindWithStatus(ctx, orderID, t.current)
		}
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "User don't have this order.")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if t.deltaSign != 0 {
			items, err := r.Items().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			ids := make([]int64, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ProductID)
			}

			//全商品の行ロックを1クエリで取る
			snapshot, err := r.Inventory().SnapshotByIDs(ctx, ids, true)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			//引き当てはロック下で在庫を再検証する。
			//注文作成後に他の確定で在庫が減っていることがある
			if t.deltaSign < 0 {
				for _, it := range items {
					p, ok := snapshot[it.ProductID]
					if !ok {
						return NewHTTPError(http.StatusNotFound, fmt.Sprintf("Product with id %d not found.", it.ProductID))
					}
					if p.Inventory < it.Quantity {
						return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Product %d has insufficient stock: %d available.", it.ProductID, p.Inventory))
					}
				}
			}

			for _, it := range items {
				applied, err := r.Inventory().ApplyDelta(ctx, it.ProductID, t.deltaSign*it.Quantity, t.reason, &orderID)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				if !applied {
					//ガード付きUPDATEが0行＝在庫が足りない。全体を巻き戻す
					return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Product %d has insufficient stock.", it.ProductID))
				}
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, t.next); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//管理者の完了操作は監査ログに残す
		if t.next == model.OrderStatusCompleted {
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actorID,
				Action:       model.AuditActionCompleteOrder,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   orderID,
				BeforeJSON:   statusJSON(t.current),
				AfterJSON:    statusJSON(t.next),
			}); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		trackingCode = o.TrackingCode
		userID = o.UserID
		totalPrice = o.TotalPrice
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return "", NewHTTPError(http.StatusConflict, "An error occurred, try again later.")
		}
		return "", err
	}

	u.cache.DeleteByTracking(ctx, trackingCode)
	u.events.PublishOrderEvent(OrderEvent{
		Type:       t.event,
		OrderID:    orderID,
		UserID:     userID,
		Status:     string(t.next),
		TotalPrice: totalPrice,
		OccurredAt: time.Now(),
	})
	u.logger.Info().
		Int64("order_id", orderID).
		Str("from", string(t.current)).
		Str("to", string(t.next)).
		Msg("order status changed")

	return fmt.Sprintf("Order with ID %d %s.", orderID, strings.ToLower(string(t.next))), nil
}

// PENDING注文の削除。
// 在庫は引き当て前なので触らない
func (u *OrderStatusUsecase) Delete(ctx context.Context, userID int64, orderID int64) (string, error) {
	if userID <= 0 {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return "", NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var trackingCode string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindForUser(ctx, userID, orderID, "")
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "User don't have this order.")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if o.Status != model.OrderStatusPending {
			return NewHTTPError(http.StatusForbidden, "Your order is not in 'Pending' status and cannot be deleted.")
		}

		if err := r.Orders().Delete(ctx, orderID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		trackingCode = o.TrackingCode
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return "", NewHTTPError(http.StatusConflict, "An error occurred, try again later.")
		}
		return "", err
	}

	u.cache.DeleteByTracking(ctx, trackingCode)
	return fmt.Sprintf("Order with ID %d successfully deleted.", orderID), nil
}

// PENDING注文の全置換更新。
// 作成から1時間を過ぎた注文は更新できない。
// 「存在しない」「状態違い」「古すぎる」は呼び出し側にはすべて404
func (u *OrderStatusUsecase) FullUpdate(ctx context.Context, userID int64, orderID int64, in CreateOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, &ValidationError{Errors: []string{"items must not be empty."}}
	}

	notUpdatable := NewHTTPError(http.StatusNotFound,
		fmt.Sprintf("Order with ID %d is not found, cannot be updated, or is too old.", orderID))

	ids := make([]int64, 0, len(in.Items))
	formErrs := []string{}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			formErrs = append(formErrs, "product_id must be a positive integer.")
			continue
		}
		if it.Quantity < 1 {
			formErrs = append(formErrs, fmt.Sprintf("Product %d quantity must be >= 1.", it.ProductID))
			continue
		}
		ids = append(ids, it.ProductID)
	}
	if len(formErrs) > 0 {
		return OrderOutput{}, &ValidationError{Errors: formErrs}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindForUser(ctx, userID, orderID, model.OrderStatusPending)
		if errors.Is(err, repo.ErrNotFound) {
			return notUpdatable
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if time.Since(o.CreatedAt) > orderUpdateWindow {
			return notUpdatable
		}

		snapshot, err := r.Inventory().SnapshotByIDs(ctx, ids, false)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, total, verr := buildItems(in.Items, snapshot)
		if verr != nil {
			return verr
		}

		//全置換：既存明細を消してから新スナップショットで作り直す
		if err := r.Items().DeleteByOrderID(ctx, orderID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Items().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Orders().UpdateTotalPrice(ctx, orderID, total); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.TotalPrice = total
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return OrderOutput{}, NewHTTPError(http.StatusConflict, "An error occurred, try again later.")
		}
		return OrderOutput{}, err
	}

	u.cache.DeleteByTracking(ctx, out.TrackingCode)
	return out, nil
}

func statusJSON(s model.OrderStatus) string {
	return `{"status":"` + string(s) + `"}`
}
