package auth

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/00anuyh/souvenir/database"
	"github.com/00anuyh/souvenir/middleware"
	"github.com/00anuyh/souvenir/models"
	"github.com/00anuyh/souvenir/rewards"
	"github.com/00anuyh/souvenir/utils"
)

type RegisterRequest struct {
	Username             string `json:"username" validate:"required,usernameok"`
	Email                string `json:"email"`
	Password             string `json:"password" validate:"required,pwdmin"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// Controller carries the rewards ledger so registration can grant the
// one-time signup bonus.
type Controller struct {
	Ledger *rewards.Ledger
}

func NewController(ledger *rewards.Ledger) *Controller {
	return &Controller{Ledger: ledger}
}

func (c *Controller) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	db := database.DB

	var existing models.User
	if err := db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "이미 사용 중인 아이디입니다"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[register] DB error checking username: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	user := models.User{
		Username: req.Username,
		Password: string(hashed),
		Status:   "Active",
	}
	if req.Email != "" {
		user.Email = &req.Email
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "이미 사용 중인 아이디입니다"})
			return
		}
		log.Printf("[register] DB error creating user: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	// Welcome bonus: applied exactly once per account for its lifetime,
	// even if this request is retried.
	uid := strconv.FormatUint(uint64(user.ID), 10)
	granted, err := c.Ledger.GrantSignupBonusOnce(r.Context(), uid)
	if err != nil {
		log.Printf("[register] signup bonus for %s: %v", uid, err)
	}

	accessToken, err := utils.GenerateAccessTokenWithExpiry(user.ID, 15*time.Minute)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	refreshToken, err := utils.GenerateRefreshToken(db, user.ID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "회원가입이 완료되었습니다",
		Data: map[string]interface{}{
			"user": map[string]interface{}{
				"id":       user.ID,
				"username": user.Username,
			},
			"bonus_granted": granted,
			"access_token":  accessToken,
			"refresh_token": refreshToken,
		},
	})
}
