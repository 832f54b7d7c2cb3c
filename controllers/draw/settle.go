package draw

import (
	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/services"
)

// SettleHandler re-runs settlement on a completed draw. Only bets still
// pending are touched, so this is safe to call after a partial failure.
func SettleHandler(svc *services.SettlementService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := actorID(c); err != nil {
			return helpers.JSONError(c, err)
		}
		id, err := drawID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		summary, err := svc.SettleDraw(c.UserContext(), id)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Draw settled", summary)
	}
}
