// Package settings implements the administrator-only configuration surface.
//
// Every change is persisted first and applied to the live role table and
// provider switches only once the write committed, so a restart restores the
// last accepted configuration.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/settings"
	"github.com/amirasaad/accrual/pkg/provider"
	"github.com/amirasaad/accrual/pkg/repository"
	"github.com/jonboulle/clockwork"
)

// ErrEmptyEndpoint is returned when an oracle endpoint is required but empty.
var ErrEmptyEndpoint = fmt.Errorf("%w: endpoint must not be empty", domain.ErrValidation)

// OracleFactory builds an oracle client for an endpoint.
type OracleFactory func(endpoint string) (provider.Oracle, error)

// PaidAmountFactory builds an amount-paid source for an endpoint.
type PaidAmountFactory func(endpoint string) (provider.PaidAmountSource, error)

type Service struct {
	uow       repository.UnitOfWork
	policy    *access.Policy
	oracle    *provider.OracleSwitch
	paid      *provider.PaidAmountSwitch
	clock     clockwork.Clock
	newOracle OracleFactory
	newPaid   PaidAmountFactory
	logger    *slog.Logger
}

func New(deps config.Deps, newOracle OracleFactory, newPaid PaidAmountFactory) *Service {
	return &Service{
		uow:       deps.Uow,
		policy:    deps.Policy,
		oracle:    deps.Oracle,
		paid:      deps.PaidAmount,
		clock:     deps.Clock,
		newOracle: newOracle,
		newPaid:   newPaid,
		logger:    deps.Logger.With("service", "settings"),
	}
}

// Current returns the live configuration.
func (s *Service) Current(ctx context.Context) *settings.Settings {
	roles := s.policy.Roles()
	current := &settings.Settings{
		AutomationAgent: string(roles.AutomationAgent),
		FundingRelay:    string(roles.FundingRelay),
		OracleURL:       s.oracle.Endpoint(),
		PaidAmountURL:   s.paid.Endpoint(),
	}
	repo, err := s.uow.SettingsRepository()
	if err != nil {
		return current
	}
	if stored, err := repo.Get(ctx); err == nil {
		current.UpdatedBy = stored.UpdatedBy
		current.UpdatedAt = stored.UpdatedAt
	}
	return current
}

// update persists the change made by edit and then runs apply.
func (s *Service) update(
	ctx context.Context,
	caller access.Identity,
	edit func(*settings.Settings),
	apply func() error,
) error {
	if err := s.policy.Require(caller, access.RoleAdministrator); err != nil {
		return err
	}
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.SettingsRepository()
		if err != nil {
			return err
		}
		stored, err := repo.Get(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			stored, err = &settings.Settings{}, nil
		}
		if err != nil {
			return err
		}
		edit(stored)
		stored.UpdatedBy = string(caller)
		stored.UpdatedAt = s.clock.Now().UTC().Truncate(time.Second)
		return repo.Save(ctx, stored)
	})
	if err != nil {
		return err
	}
	return apply()
}

func (s *Service) setRole(ctx context.Context, caller access.Identity, role access.Role, id access.Identity) error {
	if id == "" {
		return access.ErrEmptyIdentity
	}
	err := s.update(ctx, caller, func(st *settings.Settings) {
		switch role {
		case access.RoleAutomationAgent:
			st.AutomationAgent = string(id)
		case access.RoleFundingRelay:
			st.FundingRelay = string(id)
		}
	}, func() error {
		return s.policy.Assign(role, id)
	})
	if err != nil {
		s.logger.Warn("role change rejected", "role", role, "caller", caller, "error", err)
		return err
	}
	s.logger.Info("role assigned", "role", role, "identity", id, "by", caller)
	return nil
}

func (s *Service) SetAutomationAgent(ctx context.Context, caller, id access.Identity) error {
	return s.setRole(ctx, caller, access.RoleAutomationAgent, id)
}

func (s *Service) SetFundingRelay(ctx context.Context, caller, id access.Identity) error {
	return s.setRole(ctx, caller, access.RoleFundingRelay, id)
}

// SetOracle points price sampling and swaps at endpoint.
func (s *Service) SetOracle(ctx context.Context, caller access.Identity, endpoint string) error {
	if err := s.policy.Require(caller, access.RoleAdministrator); err != nil {
		return err
	}
	if endpoint == "" {
		return ErrEmptyEndpoint
	}
	oracle, err := s.newOracle(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	err = s.update(ctx, caller, func(st *settings.Settings) {
		st.OracleURL = endpoint
	}, func() error {
		s.oracle.Set(oracle, endpoint)
		return nil
	})
	if err == nil {
		s.logger.Info("oracle changed", "endpoint", endpoint, "by", caller)
	}
	return err
}

// SetPaidAmountSource sets the optional amount-paid source; an empty
// endpoint removes it.
func (s *Service) SetPaidAmountSource(ctx context.Context, caller access.Identity, endpoint string) error {
	if err := s.policy.Require(caller, access.RoleAdministrator); err != nil {
		return err
	}
	var src provider.PaidAmountSource
	if endpoint != "" {
		var err error
		if src, err = s.newPaid(endpoint); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
	}
	err := s.update(ctx, caller, func(st *settings.Settings) {
		st.PaidAmountURL = endpoint
	}, func() error {
		if src == nil {
			s.paid.Clear()
		} else {
			s.paid.Set(src, endpoint)
		}
		return nil
	})
	if err == nil {
		s.logger.Info("amount paid source changed", "endpoint", endpoint, "by", caller)
	}
	return err
}

// Restore applies persisted settings over the startup configuration.
func (s *Service) Restore(ctx context.Context) error {
	repo, err := s.uow.SettingsRepository()
	if err != nil {
		return err
	}
	stored, err := repo.Get(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for role, id := range map[access.Role]string{
		access.RoleAutomationAgent: stored.AutomationAgent,
		access.RoleFundingRelay:    stored.FundingRelay,
	} {
		if id == "" {
			continue
		}
		if err := s.policy.Assign(role, access.Identity(id)); err != nil {
			return err
		}
	}
	if stored.OracleURL != "" {
		oracle, err := s.newOracle(stored.OracleURL)
		if err != nil {
			return fmt.Errorf("restore oracle: %w", err)
		}
		s.oracle.Set(oracle, stored.OracleURL)
	}
	if stored.PaidAmountURL != "" {
		src, err := s.newPaid(stored.PaidAmountURL)
		if err != nil {
			return fmt.Errorf("restore amount paid source: %w", err)
		}
		s.paid.Set(src, stored.PaidAmountURL)
	}
	s.logger.Info("settings restored", "updated_by", stored.UpdatedBy, "updated_at", stored.UpdatedAt)
	return nil
}
