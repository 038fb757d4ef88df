package auth

import (
	"net/http"
	"time"

	"github.com/00anuyh/souvenir/database"
	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/models"
	"github.com/00anuyh/souvenir/utils"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshHandler rotates the refresh token: the presented one is revoked and
// a new pair is issued.
func RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	rt, err := utils.ValidateRefreshToken(db, req.RefreshToken)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "세션이 만료되었습니다. 다시 로그인해 주세요"})
		return
	}

	if err := db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	accessToken, err := utils.GenerateAccessTokenWithExpiry(rt.UserID, 15*time.Minute)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	refreshToken, err := utils.GenerateRefreshToken(db, rt.UserID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "토큰이 갱신되었습니다",
		Data: map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
		},
	})
}

// LogoutHandler revokes the presented refresh token.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	db := database.DB
	if err := db.Model(&models.RefreshToken{}).Where("id = ?", req.RefreshToken).Update("revoked", true).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "로그아웃되었습니다"})
}
