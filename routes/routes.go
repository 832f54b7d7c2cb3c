package routes

import (
	"github.com/gofiber/fiber/v2"

	"lotto/controllers/account"
	"lotto/controllers/bet"
	"lotto/controllers/credit"
	"lotto/controllers/draw"
	"lotto/middlewares"
	"lotto/models"
	"lotto/services"
	"lotto/store"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Store      store.Store
	Accounts   *services.AccountService
	Bets       *services.BetService
	Credits    *services.CreditService
	Draws      *services.DrawService
	Settlement *services.SettlementService
}

func Setup(app *fiber.App, d Deps) {
	// master surface: draw registry + agent management
	master := app.Group("/master", middlewares.RequireAccount(d.Store, models.RoleMaster))
	master.Post("/agents", account.RegisterAgentHandler(d.Accounts))
	master.Get("/agents", account.DownlinesHandler(d.Accounts))
	master.Post("/credit/adjust", credit.AdjustHandler(d.Credits))
	master.Post("/accounts/:id/status", account.SetStatusHandler(d.Accounts))
	master.Post("/commission-rates", account.UpsertRatesHandler(d.Accounts))

	master.Post("/draws", draw.CreateHandler(d.Draws))
	master.Post("/draws/bulk", draw.BulkHandler(d.Draws))
	master.Put("/draws/:id", draw.UpdateHandler(d.Draws))
	master.Post("/draws/:id/status", draw.ChangeStatusHandler(d.Draws))
	master.Delete("/draws/:id", draw.DeleteHandler(d.Draws))
	master.Post("/draws/:id/settle", draw.SettleHandler(d.Settlement))

	// agent surface: member management + credit
	agent := app.Group("/agent", middlewares.RequireAccount(d.Store, models.RoleAgent))
	agent.Post("/members", account.RegisterMemberHandler(d.Accounts))
	agent.Get("/members", account.DownlinesHandler(d.Accounts))
	agent.Post("/credit/adjust", credit.AdjustHandler(d.Credits))
	agent.Post("/accounts/:id/status", account.SetStatusHandler(d.Accounts))
	agent.Post("/commission-rates", account.UpsertRatesHandler(d.Accounts))

	// member surface: betting
	member := app.Group("/member", middlewares.RequireAccount(d.Store, models.RoleMember))
	member.Post("/bets", bet.PlaceHandler(d.Bets))
	member.Get("/bets", bet.ListHandler(d.Bets))
	member.Get("/draws/open", draw.OpenByTypeHandler(d.Draws))

	// shared authenticated surface
	shared := app.Group("/", middlewares.RequireAccount(d.Store))
	shared.Get("/me", account.InfoHandler(d.Accounts))
	shared.Get("/accounts/:id", account.InfoHandler(d.Accounts))
	shared.Get("/accounts/:id/ledger", account.LedgerHandler(d.Accounts))
	shared.Get("/bets/:id", bet.GetHandler(d.Bets))
}
