package users

import (
	"net/http"
	"strconv"

	"github.com/00anuyh/souvenir/rewards"
	"github.com/00anuyh/souvenir/store"
	"github.com/00anuyh/souvenir/utils"
)

// Controller wires the HTTP surface to the loyalty core. The UI never
// mutates ledger state directly; everything funnels through these handlers.
type Controller struct {
	Ledger  *rewards.Ledger
	Coupons *rewards.Coupons
	Tokens  *rewards.Tokens
	Lottery *rewards.Lottery
}

func NewController(kv store.KeyValueStore) *Controller {
	ledger := rewards.NewLedger(kv)
	coupons := rewards.NewCoupons(kv, ledger)
	tokens := rewards.NewTokens(kv)
	return &Controller{
		Ledger:  ledger,
		Coupons: coupons,
		Tokens:  tokens,
		Lottery: rewards.NewLottery(kv, ledger, coupons, tokens),
	}
}

// rewardsUID maps the authenticated user to their rewards namespace.
func rewardsUID(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func authedUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := utils.GetUserID(r)
	if !ok || userID == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "로그인이 필요합니다"})
		return "", false
	}
	return rewardsUID(userID), true
}

func parseBoolQuery(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
