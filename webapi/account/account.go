package account

import (
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/handler"
	"github.com/amirasaad/accrual/pkg/middleware"
	authsvc "github.com/amirasaad/accrual/pkg/service/auth"
	"github.com/amirasaad/accrual/pkg/service/query"
	withdrawalsvc "github.com/amirasaad/accrual/pkg/service/withdrawal"
	"github.com/amirasaad/accrual/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers account reads and the withdrawal gate.
//
//   - GET  /accounts/:id            : the stored account.
//   - POST /accounts/:id/attributes : base attributes augmented with account data.
//   - GET  /accounts/:id/history    : events seen for the account.
//   - POST /accounts/:id/withdraw   : withdraw (external authorizer only).
func Routes(
	app *fiber.App,
	querySvc *query.Service,
	withdrawalSvc *withdrawalsvc.Service,
	authSvc *authsvc.Service,
	audit *handler.AuditTrail,
	cfg *config.App,
) {
	app.Get("/accounts/:id", GetAccount(querySvc))
	app.Post("/accounts/:id/attributes", Attributes(querySvc))
	app.Get("/accounts/:id/history", History(audit))
	app.Post("/accounts/:id/withdraw", middleware.JwtProtected(cfg.Auth.Jwt), Withdraw(withdrawalSvc, authSvc))
}

func GetAccount(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := common.AccountID(c)
		if !ok {
			return nil
		}
		acc, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Account not available", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Account", common.ToAccountDTO(acc))
	}
}

// Attributes never fails for unknown ids; they read as an empty account.
func Attributes(svc *query.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := common.AccountID(c)
		if !ok {
			return nil
		}
		var base []query.Attribute
		if len(c.Body()) > 0 {
			input, err := common.BindAndValidate[AttributesRequest](c)
			if input == nil {
				return err
			}
			base = input.Attributes
		}
		attrs, err := svc.Augment(c.UserContext(), id, base)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to read account", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Attributes", attrs)
	}
}

func History(audit *handler.AuditTrail) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := common.AccountID(c)
		if !ok {
			return nil
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "History", audit.For(id))
	}
}

func Withdraw(svc *withdrawalsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := common.Caller(c, authSvc)
		if !ok {
			return nil
		}
		id, ok := common.AccountID(c)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[WithdrawRequest](c)
		if input == nil {
			return err
		}
		res, err := svc.Withdraw(c.UserContext(), withdrawalsvc.Request{
			Caller:     caller,
			SystemRef:  input.SystemRef,
			AccountID:  id,
			ParamKey:   input.ParamKey,
			ParamValue: input.ParamValue,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Withdrawal rejected", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Withdrawn", WithdrawResponse{
			Account:     common.ToAccountDTO(res.Account),
			Beneficiary: res.Beneficiary,
			TransferID:  res.Receipt.ID,
			Asset:       res.Receipt.Asset,
			Amount:      res.Receipt.Amount.String(),
		})
	}
}
