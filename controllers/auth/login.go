package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/00anuyh/souvenir/database"
	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/models"
	"github.com/00anuyh/souvenir/utils"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required,usernameok"`
	Password string `json:"password" validate:"required,pwdmin"`
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB

	var user models.User
	if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "아이디 또는 비밀번호가 올바르지 않습니다"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	if !strings.EqualFold(user.Status, "active") {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "사용할 수 없는 계정입니다. 관리자에게 문의해 주세요"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "아이디 또는 비밀번호가 올바르지 않습니다"})
		return
	}

	accessToken, err := utils.GenerateAccessTokenWithExpiry(user.ID, 15*time.Minute)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "로그인에 실패했습니다"})
		return
	}
	refreshToken, err := utils.GenerateRefreshToken(db, user.ID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "로그인에 실패했습니다"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "로그인되었습니다",
		Data: map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"user": map[string]interface{}{
				"id":       user.ID,
				"username": user.Username,
			},
		},
	})
}
