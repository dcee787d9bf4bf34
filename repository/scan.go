package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autonmap/scan-orchestrator/entity"
)

// ScanRepository owns all writes to scan rows. Status transitions are
// conditional single-row updates keyed by id, so no cross-row locking is
// needed and a stale writer simply affects zero rows.
type ScanRepository struct {
	db *gorm.DB
}

func NewScanRepository(db *gorm.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func (r *ScanRepository) Create(scan *entity.Scan) error {
	return r.db.Create(scan).Error
}

// Delete removes a scan row. Used to roll back a submission whose task
// could not be enqueued, so no orphaned queued row survives.
func (r *ScanRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&entity.Scan{}, "id = ?", id).Error
}

func (r *ScanRepository) FindByID(id uuid.UUID) (*entity.Scan, error) {
	var scan entity.Scan
	err := r.db.Where("id = ?", id).First(&scan).Error
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (r *ScanRepository) List(skip, limit int) ([]entity.Scan, error) {
	var scans []entity.Scan
	err := r.db.Order("created_at DESC").Offset(skip).Limit(limit).Find(&scans).Error
	if err != nil {
		return nil, err
	}
	return scans, nil
}

// MarkRunning claims the scan for execution. The update applies only while
// the stored status is still queued; a false return means another delivery
// of the same task already claimed it (or it already finished), and the
// caller must skip execution.
func (r *ScanRepository) MarkRunning(id uuid.UUID, startedAt time.Time) (bool, error) {
	res := r.db.Model(&entity.Scan{}).
		Where("id = ? AND status = ?", id, entity.ScanStatusQueued).
		Updates(map[string]interface{}{
			"status":     entity.ScanStatusRunning,
			"started_at": startedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ScanRepository) MarkSucceeded(id uuid.UUID, resultXML string, finishedAt time.Time) error {
	return r.db.Model(&entity.Scan{}).
		Where("id = ? AND status = ?", id, entity.ScanStatusRunning).
		Updates(map[string]interface{}{
			"status":      entity.ScanStatusSucceeded,
			"result_xml":  resultXML,
			"finished_at": finishedAt,
		}).Error
}

func (r *ScanRepository) MarkFailed(id uuid.UUID, finishedAt time.Time) error {
	return r.db.Model(&entity.Scan{}).
		Where("id = ? AND status IN ?", id, []string{entity.ScanStatusQueued, entity.ScanStatusRunning}).
		Updates(map[string]interface{}{
			"status":      entity.ScanStatusFailed,
			"finished_at": finishedAt,
		}).Error
}
