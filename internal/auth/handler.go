package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-events/backend/internal/authz"
	"github.com/campus-events/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Name            string `json:"name" binding:"required,max=120"`
	Email           string `json:"email" binding:"required,email"`
	CollegeID       string `json:"college_id" binding:"required,college_id"`
	Department      string `json:"department" binding:"required,department"`
	Phone           string `json:"phone" binding:"omitempty,phone"`
	Year            int    `json:"year" binding:"required,min=1,max=4"`
	Password        string `json:"password" binding:"required,min=6"`
	Role            string `json:"role"` // optional, defaults to student
	ClubName        string `json:"club_name" binding:"max=120"`
	ClubDescription string `json:"club_description" binding:"max=1000"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyOTPRequest is the body for POST /auth/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,numeric,len=6"`
}

// ResendOTPRequest is the body for POST /auth/resend-otp.
type ResendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.Register(c.Request.Context(), RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		CollegeID:       req.CollegeID,
		Department:      req.Department,
		Phone:           req.Phone,
		Year:            req.Year,
		Password:        req.Password,
		Role:            req.Role,
		ClubName:        req.ClubName,
		ClubDescription: req.ClubDescription,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, response.Body{
		Success: true,
		Message: "registration successful; check your email for the verification code",
		Data:    user.ToPublic(),
	})
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sess, err := h.svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "email verified", sess)
}

// ResendOTP handles POST /auth/resend-otp.
func (h *Handler) ResendOTP(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ResendOTP(c.Request.Context(), req.Email); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OKMessage(c, "if the account exists, a new code has been sent", nil)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sess, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, sess)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	id, ok := authz.FromContext(c.Request.Context())
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	user, err := h.svc.Me(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, user.ToPublic())
}
