package credit

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/middlewares"
	"lotto/services"
)

var validate = validator.New()

// AdjustHandler moves credit between the authenticated actor and one of
// its direct downlines.
func AdjustHandler(svc *services.CreditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middlewares.CurrentAccount(c)
		if !ok {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "session required"))
		}

		var req services.AdjustCreditRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}

		result, err := svc.AdjustCredit(c.UserContext(), actor.ID, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Credit adjusted", result)
	}
}
