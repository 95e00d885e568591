package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"shophub.store/storefront/pkg/global"
)

// bindError answers a request whose body failed to bind or validate.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]global.ValidationError, len(verrs))
		for i, fe := range verrs {
			details[i] = global.ValidationError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Code:    fe.Tag(),
			}
		}
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Validation failed", details))
		return
	}
	c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid JSON format", []global.ValidationError{
		{Field: "body", Message: err.Error(), Code: "json_parse_error"},
	}))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Please enter a valid email address"
	case "phone":
		return "Please enter a valid phone number"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

// respondError maps the error taxonomy onto HTTP statuses.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, global.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, global.ErrorResponse(err.Error(), nil))
	case errors.Is(err, global.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, global.ErrorResponse("Authentication required", nil))
	case errors.Is(err, global.ErrUnauthorized):
		c.JSON(http.StatusForbidden, global.ErrorResponse("Not authorized to access this resource", nil))
	case errors.Is(err, global.ErrNotFound):
		c.JSON(http.StatusNotFound, global.ErrorResponse(err.Error(), nil))
	case errors.Is(err, global.ErrInsufficientStock):
		c.JSON(http.StatusConflict, global.ErrorResponse(err.Error(), []global.ValidationError{
			{Field: "items", Message: err.Error(), Code: global.CodeInsufficientStock},
		}))
	case errors.Is(err, global.ErrConflict):
		c.JSON(http.StatusConflict, global.ErrorResponse(err.Error(), nil))
	default:
		_ = c.Error(err)
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Internal server error", nil))
	}
}

func parseID(c *gin.Context, field, raw string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid "+field, []global.ValidationError{
			{Field: field, Message: field + " must be a 24 character hex id", Code: "invalid_format"},
		}))
		return bson.ObjectID{}, false
	}
	return id, true
}
