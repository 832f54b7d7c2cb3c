package account

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/middlewares"
	"lotto/models"
	"lotto/services"
	"lotto/store"
)

var validate = validator.New()

func current(c *fiber.Ctx) (models.Account, error) {
	account, ok := middlewares.CurrentAccount(c)
	if !ok {
		return models.Account{}, services.Errf(services.KindForbidden, "session required")
	}
	return account, nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, services.Errf(services.KindInvalidInput, "invalid %s", name)
	}
	return uint(id), nil
}

// RegisterAgentHandler lets a master create an agent with an initial
// credit allocation.
func RegisterAgentHandler(svc *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := current(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var req services.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}
		agent, err := svc.RegisterAgent(c.UserContext(), actor.ID, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Agent registered", fiber.Map{
			"account":    agent,
			"secret_key": agent.SecretKey,
		})
	}
}

// RegisterMemberHandler lets an agent create a member; the initial credit
// moves out of the agent's credit line.
func RegisterMemberHandler(svc *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := current(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var req services.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}
		member, err := svc.RegisterMember(c.UserContext(), actor.ID, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Member registered", fiber.Map{
			"account":    member,
			"secret_key": member.SecretKey,
		})
	}
}

// InfoHandler returns one account with its spending power. With no id
// parameter it answers for the caller itself.
func InfoHandler(svc *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := current(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		targetID := actor.ID
		if c.Params("id") != "" {
			if targetID, err = paramID(c, "id"); err != nil {
				return helpers.JSONError(c, err)
			}
		}
		target, err := svc.Info(c.UserContext(), actor.ID, targetID)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Account", fiber.Map{
			"account":   target,
			"available": target.Available(),
		})
	}
}

// DownlinesHandler lists the caller's direct children.
func DownlinesHandler(svc *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := current(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		accounts, err := svc.Downlines(c.UserContext(), actor.ID)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Downlines", accounts)
	}
}

// LedgerHandler pages through an account's ledger history.
func LedgerHandler(svc *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := current(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		targetID, err := paramID(c, "id")
		if err != nil {
			return helpers.JSONError(c, err)
		}
		page := store.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", 20)}
		entries, total, err := svc.LedgerHistory(c.UserContext(), actor.ID, targetID, page)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Ledger", fiber.Map{
			"entries": entries,
			"total":   total,
			"page":    page.Page,
			"limit":   page.Size(),
		})
	}
}

type setStatusRequest struct {
	Status models.AccountStatus `json:"status" validate:"required,oneof=active suspended"`
}

// SetStatusHandler suspends or reactivates a direct downline.
func SetStatusHandler(svc *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := current(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		targetID, err := paramID(c, "id")
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var req setStatusRequest
		if err := c.BodyParser(&req); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return helpers.JSONBadRequest(c, err.Error())
		}
		target, err := svc.SetStatus(c.UserContext(), actor.ID, targetID, req.Status)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Status updated", target)
	}
}

// UpsertRatesHandler sets a downline's commission percentages for one
// lottery type.
func UpsertRatesHandler(svc *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := current(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		var rate models.CommissionRate
		if err := c.BodyParser(&rate); err != nil {
			return helpers.JSONBadRequest(c, "invalid JSON body")
		}
		saved, err := svc.UpsertCommissionRates(c.UserContext(), actor.ID, rate)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, "Commission rates saved", saved)
	}
}
