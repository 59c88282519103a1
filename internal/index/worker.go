package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/agoramesh/backend/internal/models"
)

// ServiceSource reads the authoritative service record.
type ServiceSource interface {
	GetService(ctx context.Context, id int64) (*models.Service, error)
}

// AgentSource reads the authoritative agent record.
type AgentSource interface {
	GetAgentData(ctx context.Context, key models.Address) (*models.Agent, error)
}

// MirrorWorker consumes MirrorEventArgs jobs and projects the current
// registry state into the index tables.
type MirrorWorker struct {
	river.WorkerDefaults[MirrorEventArgs]
	services ServiceSource
	agents   AgentSource
	repo     *Repository
	log      *slog.Logger
}

func NewMirrorWorker(services ServiceSource, agents AgentSource, repo *Repository, log *slog.Logger) *MirrorWorker {
	if log == nil {
		log = slog.Default()
	}
	return &MirrorWorker{services: services, agents: agents, repo: repo, log: log}
}

func (w *MirrorWorker) Work(ctx context.Context, job *river.Job[MirrorEventArgs]) error {
	args := job.Args
	switch args.Entity {
	case EntityService:
		svc, err := w.services.GetService(ctx, args.ServiceID)
		if err != nil {
			if errors.Is(err, models.ErrServiceNotFound) {
				return nil
			}
			return err
		}
		return w.repo.UpsertService(ctx, ServiceRow{
			ServiceID:   svc.ID,
			Owner:       svc.Owner,
			AgentKey:    svc.AgentKey,
			MetadataURI: svc.MetadataURI,
			Status:      svc.Status,
			Version:     svc.Version,
		})
	case EntityAgent:
		key := models.NormalizeAddress(args.AgentKey)
		a, err := w.agents.GetAgentData(ctx, key)
		if err != nil {
			if errors.Is(err, models.ErrNotRegistered) {
				// Removed agents drop out of the mirror.
				return w.repo.DeleteAgent(ctx, key)
			}
			return err
		}
		return w.repo.UpsertAgent(ctx, AgentRow{
			Key:          a.Key,
			Name:         a.Name,
			Owner:        a.Owner,
			Reputation:   a.Reputation,
			TotalRatings: a.TotalRatings,
		})
	default:
		w.log.Warn("unknown mirror entity", "entity", args.Entity)
		return fmt.Errorf("unknown mirror entity %q", args.Entity)
	}
}
