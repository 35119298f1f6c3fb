package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/clock"
	detectiondomain "github.com/orderguard/orderguard/internal/detection/domain"
	"github.com/orderguard/orderguard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Repo  detectiondomain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	repo  detectiondomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p ServiceParam) detectiondomain.Service {
	return &Service{
		log:   p.Log.Named("detection.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

// GetForTenant returns the tenant's settings, creating the documented
// defaults on first access.
func (s *Service) GetForTenant(ctx context.Context, tenantID snowflake.ID) (detectiondomain.Settings, error) {
	if tenantID == 0 {
		return detectiondomain.Settings{}, detectiondomain.ErrInvalidTenant
	}

	existing, err := s.repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return detectiondomain.Settings{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	settings := detectiondomain.DefaultSettings(tenantID)
	settings.ID = s.genID.Generate()
	settings.CreatedAt = now
	settings.UpdatedAt = now

	if err := s.repo.Insert(ctx, &settings); err != nil {
		// Two workers can race on first access for a tenant; the loser
		// re-reads the winner's row.
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByTenant(ctx, tenantID)
			if findErr != nil {
				return detectiondomain.Settings{}, findErr
			}
			if existing != nil {
				return *existing, nil
			}
		}
		return detectiondomain.Settings{}, err
	}

	s.log.Info("detection settings initialized",
		zap.String("tenant_id", tenantID.String()),
	)
	return settings, nil
}
