package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// PlanCatalog is the YAML plan catalog used by the seed command.
type PlanCatalog struct {
	Plans []CatalogPlan `yaml:"plans"`
}

type CatalogPlan struct {
	Code          string               `yaml:"code"`
	Name          string               `yaml:"name"`
	Description   string               `yaml:"description"`
	PriceCents    int64                `yaml:"price_cents"`
	Currency      string               `yaml:"currency"`
	MonthlyPoints int64                `yaml:"monthly_points"`
	BillingCycle  string               `yaml:"billing_cycle"`
	TrialDays     int                  `yaml:"trial_days"`
	Active        *bool                `yaml:"active"`
	Metadata      map[string]any       `yaml:"metadata"`
	Entitlements  []CatalogEntitlement `yaml:"entitlements"`
}

type CatalogEntitlement struct {
	Key      string         `yaml:"key"`
	Enabled  *bool          `yaml:"enabled"`
	Value    string         `yaml:"value"`
	Limit    *int64         `yaml:"limit"`
	Metadata map[string]any `yaml:"metadata"`
}

func LoadPlanCatalog(r io.Reader) (*PlanCatalog, error) {
	var c PlanCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Plans))
	for _, p := range c.Plans {
		if p.Code == "" {
			return nil, fmt.Errorf("plan catalog entry without code")
		}
		if seen[p.Code] {
			return nil, fmt.Errorf("plan %q appears twice in catalog", p.Code)
		}
		seen[p.Code] = true
	}
	return &c, nil
}

type SyncResult struct {
	Created      int
	Updated      int
	Entitlements int
}

// SyncPlanCatalogUseCase creates missing plans and updates existing ones in
// place. Entitlements absent from the catalog are left untouched.
type SyncPlanCatalogUseCase struct {
	txm    TransactionManager
	plans  billing.PlanRepository
	manage *ManagePlansUseCase
	logger logger.Interface
}

func NewSyncPlanCatalogUseCase(txm TransactionManager, plans billing.PlanRepository, manage *ManagePlansUseCase, logger logger.Interface) *SyncPlanCatalogUseCase {
	return &SyncPlanCatalogUseCase{txm: txm, plans: plans, manage: manage, logger: logger}
}

func (uc *SyncPlanCatalogUseCase) Execute(ctx context.Context, catalog *PlanCatalog) (*SyncResult, error) {
	result := &SyncResult{}
	err := uc.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, cp := range catalog.Plans {
			if err := uc.syncPlan(ctx, cp, result); err != nil {
				return fmt.Errorf("plan %s: %w", cp.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Infow("plan catalog synced",
		"created", result.Created,
		"updated", result.Updated,
		"entitlements", result.Entitlements,
	)
	return result, nil
}

func (uc *SyncPlanCatalogUseCase) syncPlan(ctx context.Context, cp CatalogPlan, result *SyncResult) error {
	_, err := uc.plans.GetByCode(ctx, cp.Code)
	var nf *billing.NotFoundError
	switch {
	case errors.As(err, &nf):
		if _, err := uc.manage.CreatePlan(ctx, CreatePlanCommand{
			Code:          cp.Code,
			Name:          cp.Name,
			Description:   cp.Description,
			PriceCents:    cp.PriceCents,
			Currency:      cp.Currency,
			MonthlyPoints: cp.MonthlyPoints,
			BillingCycle:  cp.BillingCycle,
			TrialDays:     cp.TrialDays,
			Metadata:      cp.Metadata,
		}); err != nil {
			return err
		}
		result.Created++
	case err != nil:
		return err
	default:
		price := cp.PriceCents
		points := cp.MonthlyPoints
		cycle := cp.BillingCycle
		if _, err := uc.manage.UpdatePlan(ctx, UpdatePlanCommand{
			Code:          cp.Code,
			Name:          &cp.Name,
			Description:   &cp.Description,
			PriceCents:    &price,
			Currency:      cp.Currency,
			MonthlyPoints: &points,
			BillingCycle:  &cycle,
			TrialDays:     &cp.TrialDays,
			Metadata:      cp.Metadata,
		}); err != nil {
			return err
		}
		result.Updated++
	}

	if cp.Active != nil {
		if _, err := uc.manage.SetPlanActive(ctx, cp.Code, *cp.Active); err != nil {
			return err
		}
	}

	for _, ce := range cp.Entitlements {
		enabled := true
		if ce.Enabled != nil {
			enabled = *ce.Enabled
		}
		if _, err := uc.manage.UpsertEntitlement(ctx, UpsertEntitlementCommand{
			PlanCode: cp.Code,
			Key:      ce.Key,
			Enabled:  enabled,
			Value:    ce.Value,
			Limit:    ce.Limit,
			Metadata: ce.Metadata,
		}); err != nil {
			return err
		}
		result.Entitlements++
	}
	return nil
}
