package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"rentflow-backend/internal/domain"
	"rentflow-backend/internal/logger"
	"rentflow-backend/internal/repository"
)

type lateFeePolicyRepository struct {
	db *sql.DB
}

func NewLateFeePolicyRepository(db *sql.DB) repository.LateFeePolicyRepository {
	return &lateFeePolicyRepository{db: db}
}

// GetActive returns the newest active policy. More than one active row is a
// configuration mistake: it is logged and only the newest is used, never a blend.
func (r *lateFeePolicyRepository) GetActive(ctx context.Context) (*domain.LateFeePolicy, error) {
	logger.EnterMethod("lateFeePolicyRepository.GetActive")

	query := `
		SELECT id, name, daily_fee_percentage, max_fee_percentage, grace_period_hours, is_active, created_at
		FROM late_fee_policies
		WHERE is_active = TRUE
		ORDER BY created_at DESC, id DESC
		LIMIT 2
	`
	logger.DatabaseCall("SELECT", "late_fee_policies")
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.ExitMethodWithError("lateFeePolicyRepository.GetActive", err)
		return nil, fmt.Errorf("%w: query active late fee policy: %w", domain.ErrTransientStore, err)
	}
	defer rows.Close()

	var policies []domain.LateFeePolicy
	for rows.Next() {
		var p domain.LateFeePolicy
		if err := rows.Scan(&p.ID, &p.Name, &p.DailyFeePercentage, &p.MaxFeePercentage, &p.GracePeriodHours, &p.IsActive, &p.CreatedAt); err != nil {
			logger.ExitMethodWithError("lateFeePolicyRepository.GetActive", err, "reason", "scan")
			return nil, fmt.Errorf("%w: scan late fee policy: %w", domain.ErrTransientStore, err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		logger.ExitMethodWithError("lateFeePolicyRepository.GetActive", err, "reason", "iterate")
		return nil, fmt.Errorf("%w: iterate late fee policies: %w", domain.ErrTransientStore, err)
	}

	if len(policies) == 0 {
		logger.ExitMethod("lateFeePolicyRepository.GetActive", "found", false)
		return nil, nil
	}
	if len(policies) > 1 {
		logger.Warn("Multiple active late fee policies, using newest",
			"policy_id", policies[0].ID, "ignored_policy_id", policies[1].ID)
	}

	logger.ExitMethod("lateFeePolicyRepository.GetActive", "policyID", policies[0].ID)
	return &policies[0], nil
}
