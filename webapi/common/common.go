package common

import (
	"errors"
	"strconv"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/domain"
	authsvc "github.com/amirasaad/accrual/pkg/service/auth"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorToStatusCode maps domain errors to HTTP status codes. Specific
// categories are checked before the generic ones they may also wrap.
func ErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, authsvc.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrAuthorization):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrSequence):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrStaleRound):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrTiming):
		return fiber.StatusTooEarly
	case errors.Is(err, domain.ErrState):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrOracle), errors.Is(err, domain.ErrTransfer):
		return fiber.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// ProblemContentType is the media type of every error response.
const ProblemContentType = "application/problem+json"

// ProblemDetailsJSON writes an RFC 9457 response. extra may carry a detail
// string, a status code overriding the mapped one, or structured errors.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, extra ...any) error {
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   ErrorToStatusCode(err),
		Instance: c.OriginalURL(),
	}
	if err != nil {
		pd.Detail = err.Error()
	} else {
		pd.Status = fiber.StatusBadRequest
	}
	for _, e := range extra {
		switch v := e.(type) {
		case int:
			pd.Status = v
		case string:
			pd.Detail = v
		default:
			pd.Errors = v
		}
	}
	return c.Status(pd.Status).JSON(pd, ProblemContentType)
}

// SuccessResponseJSON writes the standard success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// On failure it writes the error response and returns a nil input.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest, fields)
		}
		return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
	}
	return &input, nil
}

// AccountID parses the :id route parameter. When ok is false the error
// response has been written.
func AccountID(c *fiber.Ctx) (id uint64, ok bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		_ = ProblemDetailsJSON(c, "Invalid account ID", err, "Account ID must be an unsigned integer", fiber.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// Caller returns the identity of the verified token in the request context.
// When ok is false the error response has been written.
func Caller(c *fiber.Ctx, authSvc *authsvc.Service) (id access.Identity, ok bool) {
	token, _ := c.Locals("user").(*jwt.Token)
	id, err := authSvc.Identity(token)
	if err != nil {
		_ = ProblemDetailsJSON(c, "Unauthorized", err)
		return "", false
	}
	return id, true
}
