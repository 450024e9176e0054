package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const messageBadGateway = "bad gateway"

// respondError writes the {"error": message} envelope for err.
// Unclassified errors are treated as downstream failures.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var classified *apperr.Error
	if !errors.As(err, &classified) {
		h.logger.Error("unclassified request failure", zap.String("route", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": messageBadGateway})
		return
	}

	status := statusForKind(classified.Kind())
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway:
		h.logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("code", classified.Code()),
			zap.Error(err),
		)
	default:
		h.logger.Debug("request rejected",
			zap.String("route", c.FullPath()),
			zap.String("code", classified.Code()),
			zap.Int("status", status),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": classified.Message()})
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInternal:
		return http.StatusInternalServerError
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeBody binds a JSON body into dest and runs struct validation.
// An empty body is accepted when optional is set.
func decodeBody(c *gin.Context, dest any, optional bool) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.KindValidation, "server.decode.invalid_body", "invalid request body", err)
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apperr.Wrap(apperr.KindValidation, "server.decode.validation_failed", "validation failed", err)
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		messages = append(messages, fieldErr.Field()+" "+validationMessage(fieldErr))
	}
	sort.Strings(messages)
	return apperr.Wrap(apperr.KindValidation, "server.decode.validation_failed", strings.Join(messages, "; "), err)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}
