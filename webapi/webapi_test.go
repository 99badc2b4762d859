package webapi_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/app"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/amirasaad/accrual/pkg/testutils"
	"github.com/amirasaad/accrual/webapi"
	"github.com/amirasaad/accrual/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type WebAPITestSuite struct {
	suite.Suite
	env    *testutils.Env
	app    *app.App
	fiber  *fiber.App
	tokens map[access.Identity]string
}

func (s *WebAPITestSuite) SetupTest() {
	s.env = testutils.NewEnv(s.T())
	newOracle := func(string) (provider.Oracle, error) { return s.env.Venue, nil }
	newPaid := func(string) (provider.PaidAmountSource, error) { return s.env.Venue, nil }

	a, err := app.New(s.env.Deps, newOracle, newPaid)
	s.Require().NoError(err)
	s.app = a
	s.fiber = webapi.SetupApp(a)

	s.tokens = map[access.Identity]string{}
	for _, id := range []access.Identity{testutils.Admin, testutils.Keeper, testutils.Relay, testutils.Authorizer, testutils.Stranger} {
		token, err := a.AuthService.IssueToken(id)
		s.Require().NoError(err)
		s.tokens[id] = token
	}
}

func (s *WebAPITestSuite) do(method, path, body string, as access.Identity) (*http.Response, envelope) {
	resp := testutils.MakeRequest(s.T(), s.fiber, method, path, body, s.tokens[as])
	defer resp.Body.Close() //nolint: errcheck
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	var env envelope
	_ = json.Unmarshal(raw, &env)
	return resp, env
}

func (s *WebAPITestSuite) problem(method, path, body string, as access.Identity) common.ProblemDetails {
	resp := testutils.MakeRequest(s.T(), s.fiber, method, path, body, s.tokens[as])
	defer resp.Body.Close() //nolint: errcheck
	var pd common.ProblemDetails
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&pd))
	s.Equal("application/problem+json", resp.Header.Get("Content-Type"))
	s.Equal(resp.StatusCode, pd.Status)
	return pd
}

func (s *WebAPITestSuite) admit(id uint64) common.AccountDTO {
	body := fmt.Sprintf(`{"account_id": %d, "seed": "0xc0ffee", "funding_amount": "1"}`, id)
	resp, env := s.do(fiber.MethodPost, "/admissions", body, testutils.Relay)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode)
	var dto common.AccountDTO
	s.Require().NoError(json.Unmarshal(env.Data, &dto))
	return dto
}

func (s *WebAPITestSuite) TestHealth() {
	resp, _ := s.do(fiber.MethodGet, "/", "", "")
	s.Equal(fiber.StatusOK, resp.StatusCode)
}

func (s *WebAPITestSuite) TestFullLifecycle() {
	asset := account.Derive([]byte{0xc0, 0xff, 0xee}).Category.Symbol()
	s.env.Venue.SetPrice(asset, decimal.RequireFromString("0.004"))
	s.env.Venue.SetSwapOutput(asset, decimal.NewFromInt(5000))
	s.env.Venue.SetOwner(0, "0xowner")

	acc := s.admit(0)
	s.Equal(uint64(0), acc.ID)
	s.Equal("5000", acc.Balance)
	s.Equal(1, acc.Round)

	// Not ready yet.
	pd := s.problem(fiber.MethodPost, "/accounts/0/advance", `{"round": 1}`, testutils.Keeper)
	s.Equal(fiber.StatusTooEarly, pd.Status)

	s.env.Clock.Advance(time.Duration(acc.IntervalLengthSeconds)*time.Second + time.Second)
	resp, env := s.do(fiber.MethodGet, "/scheduler/next-ready", "", "")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.JSONEq(`{"found": true, "account_id": 0, "round": 1}`, string(env.Data))

	s.env.Venue.SetPrice(asset, decimal.RequireFromString("0.008"))
	resp, _ = s.do(fiber.MethodPost, "/accounts/0/advance", `{"round": 1}`, testutils.Keeper)
	s.Equal(fiber.StatusOK, resp.StatusCode)

	pd = s.problem(fiber.MethodPost, "/accounts/0/advance", `{"round": 1}`, testutils.Keeper)
	s.Equal(fiber.StatusConflict, pd.Status, "replayed round is stale")

	withdraw := `{"system_ref": "accrual", "param_key": "withdrawn", "param_value": "true"}`
	resp, env = s.do(fiber.MethodPost, "/accounts/0/withdraw", withdraw, testutils.Authorizer)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var out struct {
		Beneficiary string `json:"beneficiary"`
		Amount      string `json:"amount"`
		Asset       string `json:"asset"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &out))
	s.Equal("0xowner", out.Beneficiary)
	s.Equal("5000", out.Amount)
	s.Equal(asset, out.Asset)

	pd = s.problem(fiber.MethodPost, "/accounts/0/withdraw", withdraw, testutils.Authorizer)
	s.Equal(fiber.StatusConflict, pd.Status, "withdrawal happens once")

	resp, env = s.do(fiber.MethodGet, "/accounts/0/history", "", "")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	var history []map[string]any
	s.Require().NoError(json.Unmarshal(env.Data, &history))
	s.Len(history, 3)
}

func (s *WebAPITestSuite) TestAdmission_Errors() {
	s.Equal(fiber.StatusBadRequest, s.problem(fiber.MethodPost, "/admissions", `{"account_id": 0}`, testutils.Relay).Status)
	s.Equal(fiber.StatusForbidden,
		s.problem(fiber.MethodPost, "/admissions", `{"account_id": 0, "seed": "01", "funding_amount": "1"}`, testutils.Stranger).Status)
	s.Equal(fiber.StatusBadRequest,
		s.problem(fiber.MethodPost, "/admissions", `{"account_id": 0, "seed": "zz", "funding_amount": "1"}`, testutils.Relay).Status)
	s.Equal(fiber.StatusBadRequest,
		s.problem(fiber.MethodPost, "/admissions", `{"account_id": 0, "seed": "01", "funding_amount": "-1"}`, testutils.Relay).Status)

	s.admit(0)
	s.Equal(fiber.StatusConflict,
		s.problem(fiber.MethodPost, "/admissions", `{"account_id": 5, "seed": "01", "funding_amount": "1"}`, testutils.Relay).Status,
		"ids are sequential")

	resp, env := s.do(fiber.MethodGet, "/admissions/latest", "", "")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.JSONEq(`{"started": true, "first_id": 0, "latest_id": 0}`, string(env.Data))
}

func (s *WebAPITestSuite) TestAccountReads() {
	s.Equal(fiber.StatusNotFound, s.problem(fiber.MethodGet, "/accounts/42", "", "").Status)
	s.Equal(fiber.StatusBadRequest, s.problem(fiber.MethodGet, "/accounts/abc", "", "").Status)

	resp, env := s.do(fiber.MethodPost, "/accounts/42/attributes", `{"attributes": [{"key": "name", "value": "x"}]}`, "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var attrs []map[string]string
	s.Require().NoError(json.Unmarshal(env.Data, &attrs))
	s.Len(attrs, 1+8+account.MaxRounds)
	s.Equal("name", attrs[0]["key"])

	s.admit(0)
	resp, env = s.do(fiber.MethodGet, "/accounts/0/ready", "", "")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.JSONEq(`{"account_id": 0, "ready": false}`, string(env.Data))
}

func (s *WebAPITestSuite) TestAdmin() {
	pd := s.problem(fiber.MethodPut, "/admin/roles/funding-relay", `{"identity": "relay-2"}`, testutils.Relay)
	s.Equal(fiber.StatusForbidden, pd.Status)

	resp, _ := s.do(fiber.MethodPut, "/admin/roles/funding-relay", `{"identity": "relay-2"}`, testutils.Admin)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal(access.Identity("relay-2"), s.env.Deps.Policy.Roles().FundingRelay)

	s.Equal(fiber.StatusForbidden,
		s.problem(fiber.MethodPost, "/admissions", `{"account_id": 0, "seed": "01", "funding_amount": "1"}`, testutils.Relay).Status,
		"the previous relay lost the role")

	resp, _ = s.do(fiber.MethodPut, "/admin/oracle", `{"endpoint": "http://venue-2"}`, testutils.Admin)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("http://venue-2", s.env.Deps.Oracle.Endpoint())

	resp, env := s.do(fiber.MethodGet, "/admin/settings", "", testutils.Admin)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	var settings map[string]string
	s.Require().NoError(json.Unmarshal(env.Data, &settings))
	s.Equal("relay-2", settings["funding_relay"])
	s.Equal("admin", settings["updated_by"])

	resp, _ = s.do(fiber.MethodPut, "/admin/roles/external-authorizer", `{"identity": "stranger"}`, testutils.Admin)
	s.Equal(fiber.StatusNotFound, resp.StatusCode, "the external authorizer is not configurable")
	s.Equal(testutils.Authorizer, s.env.Deps.Policy.Roles().ExternalAuthorizer)
}

func (s *WebAPITestSuite) TestUnauthenticated() {
	s.Equal(fiber.StatusBadRequest, s.problem(fiber.MethodPost, "/accounts/0/advance", `{"round": 1}`, "").Status)
}

func (s *WebAPITestSuite) TestMetricsEndpoint() {
	s.do(fiber.MethodGet, "/", "", "")
	resp := testutils.MakeRequest(s.T(), s.fiber, fiber.MethodGet, "/metrics", "", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	s.Contains(string(raw), "accrual_http_requests_total")
}

func TestWebAPITestSuite(t *testing.T) {
	suite.Run(t, new(WebAPITestSuite))
}
