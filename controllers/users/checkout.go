package users

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/rewards"
	"github.com/00anuyh/souvenir/utils"
)

type checkoutItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Qty       int    `json:"qty"`
}

type checkoutRequest struct {
	OrderID string         `json:"order_id"`
	Items   []checkoutItem `json:"items"`
}

// CheckoutHandler is called by the payment flow after a confirmed order. It
// issues the order's coupons and marks the recent purchase exactly once;
// retrying the same order id is answered with 409 and changes nothing.
func (c *Controller) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authedUID(w, r)
	if !ok {
		return
	}
	userID, _ := utils.GetUserID(r)

	var req checkoutRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		req.OrderID = utils.GenerateOrderID(userID)
	}
	if len(req.Items) == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "주문 상품이 없습니다"})
		return
	}

	items := make([]rewards.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, rewards.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Qty:       it.Qty,
		})
	}

	result, err := c.Coupons.IssueForOrder(r.Context(), uid, req.OrderID, items, rewards.DefaultCouponRate, rewards.DefaultCouponTTLDays)
	if err != nil {
		switch {
		case errors.Is(err, rewards.ErrDuplicateOrder):
			utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "이미 쿠폰이 발급된 주문입니다"})
		case errors.Is(err, rewards.ErrValidation):
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "주문 정보가 올바르지 않습니다"})
		default:
			log.Printf("[checkout] issue coupons for %s order %s: %v", uid, req.OrderID, err)
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "일시적인 오류가 발생했습니다. 다시 시도해 주세요"})
		}
		return
	}

	// The order id is claimed already, so a coupon-issuing retry is not
	// possible; report a failed token write instead of hiding it.
	lotteryOpen := true
	if err := c.Tokens.MarkRecentPurchase(r.Context(), uid, map[string]string{"order_id": req.OrderID}, rewards.DefaultTokenTTLHours); err != nil {
		log.Printf("[checkout] mark purchase for %s: %v", uid, err)
		lotteryOpen = false
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "쿠폰이 발급되었습니다",
		Data: map[string]interface{}{
			"order_id":     req.OrderID,
			"issued":       result.Issued,
			"coupons":      result.Coupons,
			"lottery_open": lotteryOpen,
		},
	})
}
