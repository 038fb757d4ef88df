package users

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/rewards"
	"github.com/00anuyh/souvenir/utils"
)

// GET /users/coupons?include_used=&exclude_expired=
//
// Opening the coupon view runs the count reconciliation once, then lists.
func (c *Controller) ListCouponsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authedUID(w, r)
	if !ok {
		return
	}

	if _, err := c.Coupons.SyncLedgerWithCount(r.Context(), uid); err != nil {
		log.Printf("[coupons] sync %s: %v", uid, err)
	}

	opts := rewards.ListOptions{
		IncludeUsed:    parseBoolQuery(r, "include_used", true),
		ExcludeExpired: parseBoolQuery(r, "exclude_expired", false),
	}
	list, err := c.Coupons.List(r.Context(), uid, opts)
	if err != nil {
		log.Printf("[coupons] list %s: %v", uid, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "일시적인 오류가 발생했습니다. 다시 시도해 주세요"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "쿠폰 목록을 불러왔습니다",
		Data:    map[string]interface{}{"coupons": list, "count": len(list)},
	})
}

type redeemRequest struct {
	Subtotal int `json:"subtotal"`
}

// POST /users/coupons/{id}/redeem
func (c *Controller) RedeemCouponHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authedUID(w, r)
	if !ok {
		return
	}
	couponID := mux.Vars(r)["id"]

	var req redeemRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	discount, err := c.Coupons.Redeem(r.Context(), uid, couponID, req.Subtotal)
	if err != nil {
		switch {
		case errors.Is(err, rewards.ErrNotFound):
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "쿠폰을 찾을 수 없습니다"})
		case errors.Is(err, rewards.ErrAlreadyUsed):
			utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "이미 사용된 쿠폰입니다"})
		case errors.Is(err, rewards.ErrValidation):
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "쿠폰 정보가 올바르지 않습니다"})
		default:
			log.Printf("[coupons] redeem %s/%s: %v", uid, couponID, err)
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "일시적인 오류가 발생했습니다. 다시 시도해 주세요"})
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "쿠폰이 적용되었습니다",
		Data: map[string]interface{}{
			"coupon_id": couponID,
			"discount":  discount,
		},
	})
}
