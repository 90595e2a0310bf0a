package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront/internal/users"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

func (h *api) signup(c *gin.Context) {
	var req validation.SignupRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	sess, err := h.cfg.Users.Signup(c.Request.Context(), users.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *api) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	sess, err := h.cfg.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *api) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": identity(c)})
}
