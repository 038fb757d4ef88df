package users

import (
	"errors"
	"log"
	"net/http"

	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/rewards"
	"github.com/00anuyh/souvenir/utils"
)

// GET /users/lottery
func (c *Controller) LotteryStatusHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authedUID(w, r)
	if !ok {
		return
	}
	st, err := c.Lottery.Status(r.Context(), uid)
	if err != nil {
		log.Printf("[lottery] status %s: %v", uid, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "일시적인 오류가 발생했습니다. 다시 시도해 주세요"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "이벤트 상태를 불러왔습니다",
		Data:    st,
	})
}

type drawRequest struct {
	Card int `json:"card"`
}

// POST /users/lottery/draw
//
// One card flip. The engine owns every rule: token consumption, the
// two-attempt window and the once-ever prize.
func (c *Controller) LotteryDrawHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authedUID(w, r)
	if !ok {
		return
	}
	var req drawRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	result, err := c.Lottery.Draw(r.Context(), uid, req.Card)
	if err != nil {
		switch {
		case errors.Is(err, rewards.ErrAlreadyWon):
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "이미 당첨 이력이 있어 참여하실 수 없습니다"})
		case errors.Is(err, rewards.ErrTokenMissing):
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "결제가 완료된 경우에만 참여할 수 있어요"})
		case errors.Is(err, rewards.ErrTokenExpired):
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "참여 가능 기간이 지났습니다. 다시 구매 후 도전해 주세요"})
		case errors.Is(err, rewards.ErrValidation):
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "선택한 카드가 올바르지 않습니다"})
		default:
			log.Printf("[lottery] draw %s: %v", uid, err)
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "일시적인 오류가 발생했습니다. 다시 시도해 주세요"})
		}
		return
	}

	msg := "아쉽네요! 다른 기회에 다시 도전해주세요"
	if result.Won {
		msg = "축하합니다! 당첨되셨습니다"
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: msg,
		Data:    result,
	})
}
