package handlers

import (
	"errors"
	"strings"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var statusByKind = map[ledger.Kind]int{
	ledger.KindUnauthenticated:    fiber.StatusUnauthorized,
	ledger.KindInvalidArgument:    fiber.StatusBadRequest,
	ledger.KindNotFound:           fiber.StatusNotFound,
	ledger.KindFailedPrecondition: fiber.StatusPreconditionFailed,
	ledger.KindAlreadyExists:      fiber.StatusConflict,
	ledger.KindPermissionDenied:   fiber.StatusForbidden,
	ledger.KindAborted:            fiber.StatusConflict,
	ledger.KindInternal:           fiber.StatusInternalServerError,
}

// HTTPStatus maps an error kind to its response status.
func HTTPStatus(kind ledger.Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

func (h *Handler) fail(c *fiber.Ctx, op string, err error) error {
	err = ledger.MapError(op, err)
	kind := ledger.KindOf(err)
	if kind == ledger.KindInternal {
		h.log.Error("request failed", "op", op, "path", c.Path(), "method", c.Method(), "error", err)
	}
	body := fiber.Map{
		"status":  "error",
		"code":    kind,
		"message": ledger.PublicMessage(err),
	}
	if ledger.Retryable(err) {
		body["retryable"] = true
	}
	return c.Status(HTTPStatus(kind)).JSON(body)
}

func invalid(op, msg string) error {
	return ledger.NewError(ledger.KindInvalidArgument, op, msg)
}

// bind parses and validates the JSON body into req.
func bind(c *fiber.Ctx, op string, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return invalid(op, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return invalid(op, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" must be a valid email")
		case "min":
			parts = append(parts, fe.Field()+" must be at least "+fe.Param())
		case "lte", "max":
			parts = append(parts, fe.Field()+" must be at most "+fe.Param())
		case "oneof":
			parts = append(parts, fe.Field()+" must be one of: "+fe.Param())
		default:
			parts = append(parts, fe.Field()+" failed "+fe.Tag()+" "+fe.Param())
		}
	}
	return strings.Join(parts, "; ") + "."
}

// caller returns the authenticated user id or an unauthenticated error.
func caller(c *fiber.Ctx, op string) (string, error) {
	id := middleware.CallerID(c)
	if id == "" {
		return "", ledger.NewError(ledger.KindUnauthenticated, op, "You must be logged in.")
	}
	return id, nil
}
