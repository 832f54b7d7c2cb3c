package bet

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/middlewares"
	"lotto/services"
)

var validate = validator.New()

// PlaceHandler accepts a wager set from the authenticated member and runs
// the bet placement transaction.
func PlaceHandler(svc *services.BetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		member, ok := middlewares.CurrentAccount(c)
		if !ok {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "member session required"))
		}

		var req services.PlaceBetRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}

		result, err := svc.PlaceBet(c.UserContext(), member.ID, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Bet placed", result)
	}
}
