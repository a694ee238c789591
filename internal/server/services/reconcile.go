package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// AccountChecker answers whether the provider still holds an account.
type AccountChecker interface {
	AccountExists(ctx context.Context, uid string) (bool, error)
}

// ReconcileReport summarises one reconciliation run. Orphans are local ids
// with no remote account; Removed is the subset actually deleted. Recent
// lists records younger than the grace period, which are left alone.
type ReconcileReport struct {
	Checked int
	Recent  []string
	Orphans []string
	Removed []string
	Errors  []error
}

// ReconcileService is a maintenance task. It removes local records left
// behind by a registration whose remote step failed. None of the
// interactive flows call it.
type ReconcileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	checker     AccountChecker
	gracePeriod time.Duration
	now         func() time.Time
	log         logging.Logger
}

// NewReconcileService builds the task. Records created less than gracePeriod
// ago may belong to a registration whose remote step is still running; the
// period must exceed the provider request timeout.
func NewReconcileService(db *sql.DB, m repomanager.RepositoryManager, checker AccountChecker, gracePeriod time.Duration, log logging.Logger) *ReconcileService {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &ReconcileService{db: db, repomanager: m, checker: checker, gracePeriod: gracePeriod, now: time.Now, log: log}
}

// Reconcile checks every local user older than the grace period against the
// provider. With dryRun set orphans are only reported.
func (s *ReconcileService) Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	cutoff := s.now().Add(-s.gracePeriod)
	report := &ReconcileReport{}
	for _, u := range list {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if u.CreatedAt.After(cutoff) {
			report.Recent = append(report.Recent, u.ID)
			continue
		}
		report.Checked++

		exists, err := s.checker.AccountExists(ctx, u.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("lookup %s: %w", u.ID, err))
			continue
		}
		if exists {
			continue
		}

		report.Orphans = append(report.Orphans, u.ID)
		if dryRun {
			continue
		}

		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return s.repomanager.Users(tx).Delete(ctx, u)
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("delete %s: %w", u.ID, err))
			continue
		}

		s.log.Info(ctx, "orphaned local user removed", "user_id", u.ID, "email", u.Email)
		report.Removed = append(report.Removed, u.ID)
	}

	return report, nil
}
