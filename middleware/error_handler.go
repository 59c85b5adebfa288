package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"schoolfee/models"
	"schoolfee/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle recovers panics and renders errors attached with c.Error.
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.handleGinErrors(c)
		}
	})
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	}).Error("Panic recovered")

	response := models.NewErrorResponse("INTERNAL_ERROR", "Internal server error", "PANIC_RECOVERED", c.GetString("request_id"))
	if eh.environment == "development" {
		response.WithDetails("panic", err)
	}

	c.JSON(http.StatusInternalServerError, response)
	c.Abort()
}

func (eh *ErrorHandler) handleGinErrors(c *gin.Context) {
	lastError := c.Errors.Last()
	if lastError == nil {
		return
	}

	for _, ginErr := range c.Errors {
		eh.logError(c, ginErr.Err)
	}

	eh.processError(c, lastError.Err)
}

func (eh *ErrorHandler) logError(c *gin.Context, err error) {
	entry := eh.logger.WithFields(logrus.Fields{
		"error":           err.Error(),
		"request_id":      c.GetString("request_id"),
		"path":            c.Request.URL.Path,
		"method":          c.Request.Method,
		"organization_id": c.GetString("organizationID"),
	})

	if status := eh.statusFor(err); status >= 500 {
		entry.Error("Server error")
	} else {
		entry.Warn("Client error")
	}
}

func (eh *ErrorHandler) processError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")

	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		response := models.NewErrorResponse("VALIDATION_ERROR", "Validation failed", "VALIDATION_FAILED", requestID)
		response.WithDetails("fields", formatValidationErrors(validationErr))
		c.JSON(http.StatusBadRequest, response)
		return
	}

	if serviceErr, ok := utils.GetServiceError(err); ok {
		response := models.NewErrorResponse(serviceErr.Code, serviceErr.Message, serviceErr.Code, requestID)
		if serviceErr.Details != "" {
			response.WithDetails("reason", serviceErr.Details)
		}
		c.JSON(eh.statusFor(err), response)
		return
	}

	switch {
	case mongo.IsDuplicateKeyError(err):
		c.JSON(http.StatusConflict, models.NewErrorResponse("CONFLICT", "Resource already exists", "DUPLICATE_RESOURCE", requestID))
	case mongo.IsTimeout(err):
		c.JSON(http.StatusGatewayTimeout, models.NewErrorResponse("TIMEOUT", "Database operation timed out", "DATABASE_TIMEOUT", requestID))
	case mongo.IsNetworkError(err):
		c.JSON(http.StatusServiceUnavailable, models.NewErrorResponse("SERVICE_UNAVAILABLE", "Database connection error", "DATABASE_CONNECTION_ERROR", requestID))
	default:
		response := models.NewErrorResponse("INTERNAL_ERROR", "An unexpected error occurred", "UNKNOWN_ERROR", requestID)
		if eh.environment == "development" {
			response.WithDetails("original_error", err.Error())
		}
		c.JSON(http.StatusInternalServerError, response)
	}
}

func (eh *ErrorHandler) statusFor(err error) int {
	var validationErr validator.ValidationErrors
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case utils.IsServiceError(err):
		serviceErr, _ := utils.GetServiceError(err)
		if serviceErr.StatusCode == 0 {
			return http.StatusInternalServerError
		}
		return serviceErr.StatusCode
	case mongo.IsDuplicateKeyError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func formatValidationErrors(validationErrors validator.ValidationErrors) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, err := range validationErrors {
		fields[err.Field()] = map[string]interface{}{
			"tag":   err.Tag(),
			"value": err.Value(),
		}
	}
	return fields
}

// AbortWithError aborts the request with an error
func AbortWithError(c *gin.Context, statusCode int, errorType, message, code string) {
	c.JSON(statusCode, models.NewErrorResponse(errorType, message, code, c.GetString("request_id")))
	c.Abort()
}
