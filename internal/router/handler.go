package router

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/auth"
	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

func (s *Server) HealthCheck(c *gin.Context) {
	status := map[string]string{"status": "OK"}
	var failed []global.ValidationError
	for name, p := range s.deps.Health {
		if err := p.Ping(c.Request.Context()); err != nil {
			status[name] = "Disconnected"
			failed = append(failed, global.ValidationError{Field: name, Message: err.Error(), Code: "unreachable"})
			continue
		}
		status[name] = "Connected"
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, global.ErrorResponse("Dependency check failed", failed))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(status))
}

// Auth

func (s *Server) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to process password", nil))
		return
	}

	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    normalizeEmail(req.Email),
		Password: hashed,
	}
	if err := s.deps.Users.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, global.ErrConflict) {
			c.JSON(http.StatusConflict, global.ErrorResponse("User already exists", []global.ValidationError{
				{Field: "email", Message: "An account with this email already exists", Code: "duplicate"},
			}))
			return
		}
		s.respondError(c, err)
		return
	}

	s.issueToken(c, http.StatusCreated, user)
}

func (s *Server) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := s.deps.Users.FindUserByEmail(c.Request.Context(), normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, global.ErrNotFound) {
		s.respondError(c, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, global.ErrorResponse("Invalid email or password", nil))
		return
	}

	s.issueToken(c, http.StatusOK, user)
}

func (s *Server) issueToken(c *gin.Context, status int, user *models.User) {
	token, err := s.deps.Auth.IssueToken(user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, global.SuccessResponse(models.AuthResponse{Token: token, User: user.Profile()}))
}

func (s *Server) Profile(c *gin.Context) {
	user, err := s.deps.Users.FindUserByID(c.Request.Context(), currentUser(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(user.Profile()))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Products

// GetProduct serves a product through the redis read-through cache.
func (s *Server) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id", c.Param("id"))
	if !ok {
		return
	}

	product, hit, err := s.deps.Cache.GetOrLoadProduct(c.Request.Context(), id.Hex(), func(ctx context.Context) (*models.Product, error) {
		return s.deps.Products.FindProduct(ctx, id)
	})
	if err != nil {
		if errors.Is(err, global.ErrNotFound) {
			c.JSON(http.StatusNotFound, global.ErrorResponse("Product not found", []global.ValidationError{
				{Field: "id", Message: "No product exists with this id", Code: "not_found"},
			}))
			return
		}
		s.logger.Error("failed to fetch product", zap.String("product_id", id.Hex()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to fetch product", nil))
		return
	}

	c.Header("X-Cache", cacheHeader(hit))
	c.JSON(http.StatusOK, global.SuccessResponse(product))
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
