package draw

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/middlewares"
	"lotto/models"
	"lotto/services"
)

var validate = validator.New()

func actorID(c *fiber.Ctx) (uint, error) {
	account, ok := middlewares.CurrentAccount(c)
	if !ok {
		return 0, services.Errf(services.KindForbidden, "session required")
	}
	return account.ID, nil
}

func drawID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, services.Errf(services.KindInvalidInput, "invalid draw id")
	}
	return uint(id), nil
}

func CreateHandler(svc *services.DrawService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var req services.DrawRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}
		d, err := svc.CreateDraw(c.UserContext(), actor, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Draw created", d)
	}
}

func UpdateHandler(svc *services.DrawService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		id, err := drawID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var req services.DrawRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}
		d, err := svc.UpdateDraw(c.UserContext(), actor, id, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Draw updated", d)
	}
}

type changeStatusRequest struct {
	Status models.DrawStatus  `json:"status" validate:"required,oneof=closed completed cancelled"`
	Result *models.DrawResult `json:"result"`
}

// ChangeStatusHandler drives the lifecycle machine; completing a draw
// carries the result payload and settles pending bets in the same call.
func ChangeStatusHandler(svc *services.DrawService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		id, err := drawID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var req changeStatusRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}
		d, summary, err := svc.ChangeStatus(c.UserContext(), actor, id, req.Status, req.Result)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Draw status changed", fiber.Map{
			"draw":       d,
			"settlement": summary,
		})
	}
}

func DeleteHandler(svc *services.DrawService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		id, err := drawID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		if err := svc.DeleteDraw(c.UserContext(), actor, id); err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Draw deleted", nil)
	}
}

func BulkHandler(svc *services.DrawService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := actorID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var req services.BulkGenerateRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}
		result, err := svc.BulkGenerate(c.UserContext(), actor, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Draws generated", result)
	}
}
