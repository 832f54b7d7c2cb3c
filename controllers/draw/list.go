package draw

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/models"
	"lotto/services"
)

// OpenByTypeHandler returns the betting board: the next open draw per
// lottery type. Types come comma-separated in the query; empty means every
// type with an open draw.
func OpenByTypeHandler(svc *services.DrawService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var types []models.LotteryType
		if raw := c.Query("types"); raw != "" {
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					types = append(types, models.LotteryType(t))
				}
			}
		}
		views, err := svc.ListOpenByType(c.UserContext(), types)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Open draws", views)
	}
}
