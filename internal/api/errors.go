package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"minimalapi/school/internal/student"
)

// writeError maps a domain error to its status code. Unknown errors are
// logged and hidden behind a generic 500.
func writeError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, student.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, student.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, student.ErrInvalidInput), errors.Is(err, student.ErrFutureDate):
		code = http.StatusBadRequest
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"err", err,
		)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(code, errorResponse{Status: "error", Error: msg})
}

// bindingMessage renders a ShouldBindJSON failure. Validator errors are
// reported per JSON field; decoding errors keep their own text.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body: " + err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonFieldName(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "gt":
			msgs = append(msgs, field+" must be greater than "+fe.Param())
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return "invalid request body: " + strings.Join(msgs, "; ")
}

// jsonFieldName lower-cases the first letter of a Go field name, which is
// how every request field is named on the wire.
func jsonFieldName(goName string) string {
	if goName == "ID" {
		return "id"
	}
	return strings.ToLower(goName[:1]) + goName[1:]
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Status: "error", Error: msg})
}
