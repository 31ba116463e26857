package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	"github.com/papercomputeco/sleeves/pkg/embeddings"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

// statusFor maps an engine or embedder error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vector.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, embeddings.ErrUnsupportedInput):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, vector.ErrBackendUnavailable), errors.Is(err, embeddings.ErrModelUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(apisearch.ErrorResponse{Error: msg})
}

// failErr writes err with its mapped status. Server errors are logged and
// their details withheld from the client.
func (s *Server) failErr(c *fiber.Ctx, op string, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
		return s.fail(c, status, op+" failed")
	}
	s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	return s.fail(c, status, err.Error())
}

// handleFiberError renders errors raised by fiber itself, such as an
// oversized body, in the API's error envelope.
func (s *Server) handleFiberError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		msg = fe.Message
	} else {
		s.logger.Error("unhandled request error", zap.Error(err))
	}

	if status == fiber.StatusRequestEntityTooLarge {
		msg = "uploaded file is too large"
	}
	return s.fail(c, status, msg)
}
