package controller

import (
	"github.com/google/uuid"

	"github.com/autonmap/scan-orchestrator/config"
	"github.com/autonmap/scan-orchestrator/entity"
	"github.com/autonmap/scan-orchestrator/infra"
	"github.com/autonmap/scan-orchestrator/repository"
)

// ScanStore is the read path the query controllers serve from.
type ScanStore interface {
	FindByID(id uuid.UUID) (*entity.Scan, error)
	List(skip, limit int) ([]entity.Scan, error)
}

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository

	scans ScanStore
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		scans:      repo.ScanRepo,
	}
}
