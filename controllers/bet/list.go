package bet

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/middlewares"
	"lotto/models"
	"lotto/services"
	"lotto/store"
)

// ListHandler pages through the authenticated member's bets, optionally
// filtered by status and draw.
func ListHandler(svc *services.BetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		member, ok := middlewares.CurrentAccount(c)
		if !ok {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "member session required"))
		}

		filter := store.BetFilter{
			Status: models.BetStatus(c.Query("status")),
			DrawID: uint(c.QueryInt("draw_id")),
			Page: store.Page{
				Page:  c.QueryInt("page", 1),
				Limit: c.QueryInt("limit", 20),
			},
		}
		bets, total, err := svc.ListBets(c.UserContext(), member.ID, filter)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Bets", fiber.Map{
			"bets":  bets,
			"total": total,
			"page":  filter.Page.Page,
			"limit": filter.Page.Size(),
		})
	}
}

// GetHandler loads one bet by id within the caller's authority scope.
func GetHandler(svc *services.BetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middlewares.CurrentAccount(c)
		if !ok {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "session required"))
		}
		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil {
			return helpers.JSONBadRequest(c, "invalid bet id")
		}
		bet, err := svc.GetBet(c.UserContext(), actor.ID, uint(id))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Bet", bet)
	}
}
