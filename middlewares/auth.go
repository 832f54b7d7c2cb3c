package middlewares

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"lotto/helpers"
	"lotto/models"
	"lotto/services"
	"lotto/store"
)

// RequireAccount authenticates the caller via account-code/secret headers
// and enforces an allowed-role set. The resolved account is stashed in
// locals for the handlers. Token issuance and refresh live outside this
// service.
func RequireAccount(st store.Store, roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Get("X-Account-Code")
		secret := c.Get("X-Secret-Key")
		if code == "" || secret == "" {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "account credentials required"))
		}

		account, err := st.GetAccountByCode(c.Context(), code)
		if err != nil {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "invalid account credentials"))
		}
		if subtle.ConstantTimeCompare([]byte(account.SecretKey), []byte(secret)) != 1 {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "invalid account credentials"))
		}
		if !account.Active() {
			return helpers.JSONError(c, services.Errf(services.KindForbidden, "account is suspended"))
		}

		if len(roles) > 0 {
			allowed := false
			for _, r := range roles {
				if account.Role == r {
					allowed = true
					break
				}
			}
			if !allowed {
				return helpers.JSONError(c, services.Errf(services.KindForbidden, "role %s not allowed here", account.Role))
			}
		}

		c.Locals("account", *account)
		return c.Next()
	}
}

// CurrentAccount fetches the authenticated account set by RequireAccount.
func CurrentAccount(c *fiber.Ctx) (models.Account, bool) {
	account, ok := c.Locals("account").(models.Account)
	return account, ok
}
