package admin

import (
	"context"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/middleware"
	authsvc "github.com/amirasaad/accrual/pkg/service/auth"
	settingssvc "github.com/amirasaad/accrual/pkg/service/settings"
	"github.com/amirasaad/accrual/webapi/common"
	"github.com/gofiber/fiber/v2"
)

type IdentityRequest struct {
	Identity string `json:"identity" validate:"required"`
}

type OracleRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// PaidAmountRequest clears the source when Endpoint is empty.
type PaidAmountRequest struct {
	Endpoint string `json:"endpoint"`
}

type SettingsResponse struct {
	AutomationAgent  string `json:"automation_agent"`
	FundingRelay     string `json:"funding_relay"`
	Oracle           string `json:"oracle"`
	PaidAmountSource string `json:"paid_amount_source,omitempty"`
	UpdatedBy        string `json:"updated_by,omitempty"`
}

// Routes registers the administrator configuration surface. Every route
// requires a token; the service checks the administrator role.
//
//   - GET /admin/settings
//   - PUT /admin/roles/automation-agent
//   - PUT /admin/roles/funding-relay
//   - PUT /admin/oracle
//   - PUT /admin/paid-amount-source
func Routes(app *fiber.App, svc *settingssvc.Service, authSvc *authsvc.Service, cfg *config.App) {
	group := app.Group("/admin", middleware.JwtProtected(cfg.Auth.Jwt))
	group.Get("/settings", GetSettings(svc, authSvc))
	group.Put("/roles/automation-agent", SetRole(svc.SetAutomationAgent, authSvc))
	group.Put("/roles/funding-relay", SetRole(svc.SetFundingRelay, authSvc))
	group.Put("/oracle", SetOracle(svc, authSvc))
	group.Put("/paid-amount-source", SetPaidAmountSource(svc, authSvc))
}

func GetSettings(svc *settingssvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := common.Caller(c, authSvc); !ok {
			return nil
		}
		s := svc.Current(c.UserContext())
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Settings", SettingsResponse{
			AutomationAgent:  s.AutomationAgent,
			FundingRelay:     s.FundingRelay,
			Oracle:           s.OracleURL,
			PaidAmountSource: s.PaidAmountURL,
			UpdatedBy:        s.UpdatedBy,
		})
	}
}

type roleSetter func(ctx context.Context, caller, id access.Identity) error

func SetRole(set roleSetter, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := common.Caller(c, authSvc)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[IdentityRequest](c)
		if input == nil {
			return err
		}
		if err := set(c.UserContext(), caller, access.Identity(input.Identity)); err != nil {
			return common.ProblemDetailsJSON(c, "Role change rejected", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Role assigned", input)
	}
}

func SetOracle(svc *settingssvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := common.Caller(c, authSvc)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[OracleRequest](c)
		if input == nil {
			return err
		}
		if err := svc.SetOracle(c.UserContext(), caller, input.Endpoint); err != nil {
			return common.ProblemDetailsJSON(c, "Oracle change rejected", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Oracle changed", input)
	}
}

func SetPaidAmountSource(svc *settingssvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := common.Caller(c, authSvc)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[PaidAmountRequest](c)
		if input == nil {
			return err
		}
		if err := svc.SetPaidAmountSource(c.UserContext(), caller, input.Endpoint); err != nil {
			return common.ProblemDetailsJSON(c, "Amount paid source change rejected", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Amount paid source changed", input)
	}
}
