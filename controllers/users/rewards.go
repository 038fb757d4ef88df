package users

import (
	"log"
	"net/http"

	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/utils"
)

// GET /users/rewards
func (c *Controller) GetRewardsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authedUID(w, r)
	if !ok {
		return
	}
	acct, err := c.Ledger.Account(r.Context(), uid)
	if err != nil {
		log.Printf("[rewards] load account %s: %v", uid, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "일시적인 오류가 발생했습니다. 다시 시도해 주세요"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "리워드 정보를 불러왔습니다",
		Data:    acct,
	})
}

type spendPointsRequest struct {
	Amount int `json:"amount"`
}

// POST /users/points/spend
//
// Spends up to the requested amount. The response carries the amount
// actually removed; the checkout page decides what to do with a shortfall.
func (c *Controller) SpendPointsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authedUID(w, r)
	if !ok {
		return
	}
	var req spendPointsRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.Amount < 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "사용할 적립금이 올바르지 않습니다"})
		return
	}

	spent, err := c.Ledger.SpendPoints(r.Context(), uid, req.Amount)
	if err != nil {
		log.Printf("[rewards] spend points %s: %v", uid, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "일시적인 오류가 발생했습니다. 다시 시도해 주세요"})
		return
	}
	acct, _ := c.Ledger.Account(r.Context(), uid)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "적립금을 사용했습니다",
		Data: map[string]interface{}{
			"requested": req.Amount,
			"spent":     spent,
			"points":    acct.Points,
		},
	})
}
