package httpserver

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/model"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72,password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

type userResponse struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Role      model.Role `json:"role"`
	IsBlocked bool       `json:"isBlocked"`
	Score     int64      `json:"score"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		IsBlocked: u.IsBlocked,
		Score:     u.Score,
		CreatedAt: u.CreatedAt,
	}
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

type notifyRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	Message string `json:"message" validate:"required"`
}

type announceRequest struct {
	Message string `json:"message" validate:"required"`
}

type announceResponse struct {
	Created   int `json:"created"`
	Delivered int `json:"delivered"`
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

type challengeRequest struct {
	CategoryID  string `json:"categoryId" validate:"required,uuid"`
	Title       string `json:"title" validate:"required,max=128"`
	Description string `json:"description" validate:"max=4096"`
	Points      int64  `json:"points" validate:"gt=0"`
	Flag        string `json:"flag" validate:"required,max=256"`
}

type challengeResponse struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"categoryId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int64     `json:"points"`
	CreatedAt   time.Time `json:"createdAt"`
}

type submitRequest struct {
	Flag string `json:"flag" validate:"required,max=256"`
}
