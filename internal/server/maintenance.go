package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// Maintenance bundles the out-of-band directory tasks. They never run as
// part of the register, login or delete flows. Only the task it was built
// for is set.
type Maintenance struct {
	db        *sql.DB
	Reconcile *services.ReconcileService
	Export    *services.ExportService
}

// NewReconcileMaintenance opens the directory and the provider admin API.
func NewReconcileMaintenance(ctx context.Context, c *config.Config, logger logging.Logger) (*Maintenance, error) {
	if err := c.ValidateReconcile(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cr, err := openCore(ctx, c, true)
	if err != nil {
		return nil, err
	}

	return &Maintenance{
		db:        cr.db,
		Reconcile: services.NewReconcileService(cr.db, cr.repomanager, cr.provider, c.ReconcileGracePeriod, logger.With("module", "reconcile")),
	}, nil
}

// NewExportMaintenance opens the directory only; exports never talk to the
// identity provider.
func NewExportMaintenance(ctx context.Context, c *config.Config, logger logging.Logger) (*Maintenance, error) {
	if err := c.ValidateExport(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cr, err := openCore(ctx, c, false)
	if err != nil {
		return nil, err
	}

	return &Maintenance{
		db:     cr.db,
		Export: services.NewExportService(cr.db, cr.repomanager, c, logger.With("module", "export")),
	}, nil
}

func (m *Maintenance) Close() error {
	return m.db.Close()
}
