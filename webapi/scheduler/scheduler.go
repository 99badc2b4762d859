package scheduler

import (
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/middleware"
	authsvc "github.com/amirasaad/accrual/pkg/service/auth"
	schedulersvc "github.com/amirasaad/accrual/pkg/service/scheduler"
	"github.com/amirasaad/accrual/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// AdvanceRequest claims the round the caller observed.
type AdvanceRequest struct {
	Round *int `json:"round" validate:"required,min=0,max=12"`
}

type NextReadyResponse struct {
	Found     bool    `json:"found"`
	AccountID *uint64 `json:"account_id,omitempty"`
	Round     *int    `json:"round,omitempty"`
}

type AdvanceResponse struct {
	Account common.AccountDTO     `json:"account"`
	Sample  common.PriceSampleDTO `json:"sample"`
}

// Routes registers the automation poller endpoints.
//
//   - GET  /scheduler/next-ready  : lowest ready account id, if any.
//   - GET  /accounts/:id/ready    : readiness of one account.
//   - POST /accounts/:id/advance  : advance one round (automation agent only).
func Routes(app *fiber.App, svc *schedulersvc.Service, authSvc *authsvc.Service, cfg *config.App) {
	app.Get("/scheduler/next-ready", NextReady(svc))
	app.Get("/accounts/:id/ready", IsReady(svc))
	app.Post("/accounts/:id/advance", middleware.JwtProtected(cfg.Auth.Jwt), Advance(svc, authSvc))
}

func NextReady(svc *schedulersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		acc, err := svc.FindNextReady(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Scan failed", err)
		}
		resp := NextReadyResponse{}
		if acc != nil {
			id, round := acc.ID, acc.Round()
			resp = NextReadyResponse{Found: true, AccountID: &id, Round: &round}
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Next ready account", resp)
	}
}

func IsReady(svc *schedulersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := common.AccountID(c)
		if !ok {
			return nil
		}
		ready, err := svc.IsReady(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Readiness check failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Readiness", fiber.Map{"account_id": id, "ready": ready})
	}
}

func Advance(svc *schedulersvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := common.Caller(c, authSvc)
		if !ok {
			return nil
		}
		id, ok := common.AccountID(c)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[AdvanceRequest](c)
		if input == nil {
			return err
		}
		acc, sample, err := svc.AdvanceRound(c.UserContext(), caller, id, *input.Round)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Advance rejected", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Round advanced", AdvanceResponse{
			Account: common.ToAccountDTO(acc),
			Sample:  common.PriceSampleDTO{Round: sample.Round, Price: sample.Price.String(), SampledAt: sample.SampledAt},
		})
	}
}
