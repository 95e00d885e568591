package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

func (s *Server) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := s.deps.Orders.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, global.SuccessResponse(order))
}

// ListOrders accepts ?page and ?limit, defaulting to 1 and 20.
func (s *Server) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := s.deps.Orders.List(c.Request.Context(), currentUser(c), page, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}

func (s *Server) GetOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id", c.Param("id"))
	if !ok {
		return
	}

	order, err := s.deps.Orders.Get(c.Request.Context(), currentUser(c), orderID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}
