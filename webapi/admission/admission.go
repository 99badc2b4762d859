package admission

import (
	"encoding/hex"
	"strings"

	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/middleware"
	admissionsvc "github.com/amirasaad/accrual/pkg/service/admission"
	authsvc "github.com/amirasaad/accrual/pkg/service/auth"
	"github.com/amirasaad/accrual/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Routes registers the admission endpoints.
//
//   - POST /admissions        : admit a funded account (funding relay only).
//   - GET  /admissions/latest : the admission sequence.
func Routes(app *fiber.App, svc *admissionsvc.Service, authSvc *authsvc.Service, cfg *config.App) {
	app.Post("/admissions", middleware.JwtProtected(cfg.Auth.Jwt), Admit(svc, authSvc))
	app.Get("/admissions/latest", Latest(svc))
}

// Admit returns a handler that swaps the funding and opens the account.
func Admit(svc *admissionsvc.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := common.Caller(c, authSvc)
		if !ok {
			return nil
		}
		input, err := common.BindAndValidate[AdmitRequest](c)
		if input == nil {
			return err
		}
		seed, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(input.Seed, "0x"), "0X"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid seed", err, fiber.StatusBadRequest)
		}
		amount, err := decimal.NewFromString(input.FundingAmount)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid funding amount", err, fiber.StatusBadRequest)
		}

		acc, err := svc.Admit(c.UserContext(), admissionsvc.Request{
			Caller:        caller,
			AccountID:     *input.AccountID,
			Seed:          seed,
			FundingAmount: amount,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Admission rejected", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Account admitted", common.ToAccountDTO(acc))
	}
}

func Latest(svc *admissionsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		seq, err := svc.Latest(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to read sequence", err)
		}
		resp := LatestResponse{Started: seq.Started}
		if seq.Started {
			first, latest := seq.First, seq.Latest
			resp.FirstID, resp.LatestID = &first, &latest
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Admission sequence", resp)
	}
}
