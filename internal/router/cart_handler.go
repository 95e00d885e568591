package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

// Every cart endpoint answers with the full resulting cart.

func (s *Server) GetCart(c *gin.Context) {
	s.respondCart(c, currentUser(c))
}

func (s *Server) AddToCart(c *gin.Context) {
	userID := currentUser(c)
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	productID, ok := parseID(c, "productId", req.ProductID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	product, err := s.deps.Products.FindProduct(ctx, productID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !product.IsInStock() {
		c.JSON(http.StatusConflict, global.ErrorResponse(product.Name+" is out of stock", []global.ValidationError{
			{Field: "productId", Message: "Product is out of stock", Code: global.CodeInsufficientStock},
		}))
		return
	}

	lineID := req.LineID
	if lineID == "" {
		lineID = uuid.NewString()
	}
	_, err = s.deps.Users.AddCartLine(ctx, userID, models.CartLine{
		LineID:          lineID,
		Product:         productID,
		Quantity:        req.Quantity,
		SelectedOptions: req.SelectedOptions,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.cartChanged(c, userID)
}

func (s *Server) UpdateCartItem(c *gin.Context) {
	userID := currentUser(c)
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := s.deps.Users.UpdateCartLine(c.Request.Context(), userID, req.LineID, req.Quantity); err != nil {
		if errors.Is(err, global.ErrNotFound) {
			c.JSON(http.StatusNotFound, global.ErrorResponse("Cart item not found", []global.ValidationError{
				{Field: "lineId", Message: "No cart line with this id", Code: "not_found"},
			}))
			return
		}
		s.respondError(c, err)
		return
	}
	s.cartChanged(c, userID)
}

// RemoveFromCart drops one line when a lineId is given, in the query or the
// body, and clears the cart otherwise.
func (s *Server) RemoveFromCart(c *gin.Context) {
	userID := currentUser(c)
	lineID := c.Query("lineId")
	if lineID == "" && c.Request.ContentLength > 0 {
		var req models.RemoveCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		lineID = req.LineID
	}

	ctx := c.Request.Context()
	var err error
	if lineID == "" {
		err = s.deps.Users.ClearCart(ctx, userID)
	} else {
		err = s.deps.Users.RemoveCartLine(ctx, userID, lineID)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.cartChanged(c, userID)
}

func (s *Server) cartChanged(c *gin.Context, userID bson.ObjectID) {
	if err := s.deps.Cache.InvalidateCart(c.Request.Context(), userID.Hex()); err != nil {
		s.logger.Warn("failed to invalidate cart cache", zap.String("user_id", userID.Hex()), zap.Error(err))
	}
	s.respondCart(c, userID)
}

func (s *Server) respondCart(c *gin.Context, userID bson.ObjectID) {
	lines, hit, err := s.deps.Cache.GetOrLoadCart(c.Request.Context(), userID.Hex(), func(ctx context.Context) ([]models.CartLineView, error) {
		return s.loadCart(ctx, userID)
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("X-Cache", cacheHeader(hit))
	c.JSON(http.StatusOK, global.SuccessResponse(lines))
}

// loadCart joins the stored lines with their products. Lines whose product
// no longer exists are left out.
func (s *Server) loadCart(ctx context.Context, userID bson.ObjectID) ([]models.CartLineView, error) {
	lines, err := s.deps.Users.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.CartLineView, 0, len(lines))
	for _, line := range lines {
		product, err := s.deps.Products.FindProduct(ctx, line.Product)
		if errors.Is(err, global.ErrNotFound) {
			s.logger.Warn("dropping cart line for missing product",
				zap.String("user_id", userID.Hex()),
				zap.String("product_id", line.Product.Hex()),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		views = append(views, models.NewCartLineView(line, product))
	}
	return views, nil
}
