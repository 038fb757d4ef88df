package rewards

// Store key layout, one namespace per user. The purchase token is namespaced
// per user as well, unlike the storefront's single global slot.
func rewardsKey(uid string) string { return "rewards:" + uid }
func couponsKey(uid string) string { return "coupons:" + uid }
func tokenKey(uid string) string   { return "purchaseToken:" + uid }

func signupBonusKey(uid string) string { return "signupBonusGiven:" + uid }
func everWonKey(uid string) string     { return "eventEverWon:" + uid }
func eventResultKey(uid string) string { return "eventResult:" + uid }

func couponOrderKey(uid, orderID string) string {
	return "couponOrder:" + uid + ":" + orderID
}
