package repository

import (
	"github.com/autonmap/scan-orchestrator/infra"
)

type Repository struct {
	ScanRepo *ScanRepository
}

func InitRepository(infra *infra.Infra) *Repository {
	return &Repository{
		ScanRepo: NewScanRepository(infra.Postgres.DB),
	}
}
