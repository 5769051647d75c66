// Package api holds the HTTP handlers. Handlers parse and validate the wire
// shapes, delegate to services, and translate AppError taxonomy onto status
// codes; no routing policy lives here.
package api

import (
	"github.com/modelzoo/backend/internal/models"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// respondError maps a service error onto its HTTP status with a sanitized body
func respondError(c *fiber.Ctx, requestID string, err error) error {
	appErr := models.SanitizeError(err)

	if appErr.GetStatusCode() >= fiber.StatusInternalServerError {
		fiberlog.Errorf("[%s] %s %s failed: %v", requestID, c.Method(), c.Path(), err)
	} else {
		fiberlog.Debugf("[%s] %s %s rejected: %v", requestID, c.Method(), c.Path(), err)
	}

	return c.Status(appErr.GetStatusCode()).JSON(fiber.Map{"error": appErr})
}

// requestID returns the request's correlation id set by the server middleware
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok {
		return id
	}
	return "unknown"
}
