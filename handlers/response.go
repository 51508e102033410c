package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"visitortrack/api/apperrors"
	"visitortrack/api/logger"
	"visitortrack/api/models"
)

// base carries what every handler group needs to answer a request.
type base struct {
	log     *logger.Logger
	release bool
	timeout time.Duration
}

func (b base) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), b.timeout)
}

func (b base) ok(c *gin.Context, status int, data any) {
	c.JSON(status, models.Response{Success: true, Data: data})
}

func (b base) okPage(c *gin.Context, data any, page models.Pagination, total int64, totalPages int) {
	c.JSON(http.StatusOK, models.Response{
		Success: true,
		Data:    data,
		Meta: &models.Meta{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// fail writes the error envelope. Internal messages are replaced in release mode.
func (b base) fail(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	body := &models.ErrorBody{Code: string(kind), Message: err.Error()}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}

	if kind == apperrors.KindInternal {
		b.log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		if b.release {
			body.Message = "internal server error"
			body.Details = nil
		} else {
			body.Message = err.Error()
		}
	}

	_ = c.Error(err)
	c.JSON(apperrors.HTTPStatus(kind), models.Response{Success: false, Error: body})
}

type fieldProblem struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// bindError converts a gin binding failure into a validation error.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldProblem, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldProblem{Field: fe.Field(), Rule: fe.Tag()})
		}
		return apperrors.Validation("invalid request body").WithDetails(details)
	}
	return apperrors.Validation("invalid request body: %v", err)
}
