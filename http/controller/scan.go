package controller

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/autonmap/scan-orchestrator/entity"
	"github.com/autonmap/scan-orchestrator/http/controller/dto"
	"github.com/autonmap/scan-orchestrator/infra/produce"
	"github.com/autonmap/scan-orchestrator/utils"
	"github.com/autonmap/scan-orchestrator/xmltree"
)

func (ctrl *Controller) CreateScan(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := c.GetString("user_id")
	if ownerID == "" {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, nil, "[Scan] user_id not found in context")
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	var req dto.CreateScanRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Scan] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	if err := req.Validate(); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Scan] Rejected submission: %v", err)
		utils.JSON400(c, err.Error())
		return
	}

	scan := &entity.Scan{
		ID:             uuid.New(),
		Status:         entity.ScanStatusQueued,
		Profile:        req.Profile,
		Targets:        datatypes.NewJSONSlice(req.Targets),
		Ports:          req.Ports,
		TimingTemplate: req.Timing(),
		Notes:          req.Notes,
		Tags:           datatypes.NewJSONSlice(req.Tags),
		CallbackURL:    req.CallbackURL,
		CreatedAt:      time.Now().UTC(),
		OwnerID:        ownerID,
	}

	if err := ctrl.Repository.ScanRepo.Create(scan); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Scan] Failed to create scan in database: %v", err)
		utils.JSON500(c, "Failed to create scan")
		return
	}

	task := produce.ScanTaskMessage{
		ScanID:         scan.ID.String(),
		Targets:        req.Targets,
		Profile:        scan.Profile,
		Ports:          scan.Ports,
		TimingTemplate: scan.TimingTemplate,
		CallbackURL:    scan.CallbackURL,
	}

	if err := ctrl.Infra.Produce.ScanService.PublishScanTask(ctx, task); err != nil {
		// Submission is atomic with respect to store-write + enqueue: a
		// queued row with no task behind it must not survive.
		if delErr := ctrl.Repository.ScanRepo.Delete(scan.ID); delErr != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, delErr, "[Scan] Failed to roll back scan %s after enqueue failure", scan.ID)
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Scan] Failed to enqueue scan %s: %v", scan.ID, err)
		utils.JSON503(c, "Scan queue unavailable, please retry")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Scan] Scan %s queued by %s: profile=%s targets=%d",
		scan.ID, ownerID, scan.Profile, len(req.Targets))

	utils.JSON202(c, dto.ScanAcceptedDTO{
		ID:        scan.ID.String(),
		Status:    scan.Status,
		Profile:   scan.Profile,
		Targets:   req.Targets,
		CreatedAt: scan.CreatedAt,
	})
}

func (ctrl *Controller) ListScans(c *gin.Context) {
	ctx := c.Request.Context()

	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	scans, err := ctrl.scans.List(skip, limit)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Scan] Failed to list scans: %v", err)
		utils.JSON500(c, "Failed to list scans")
		return
	}

	utils.JSON200(c, scans)
}

func (ctrl *Controller) GetScan(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid scan id")
		return
	}

	scan, err := ctrl.scans.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.JSON404(c, "Scan not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Scan] Failed to load scan %s: %v", id, err)
		utils.JSON500(c, "Failed to load scan")
		return
	}

	utils.JSON200(c, scan)
}

func (ctrl *Controller) GetScanResult(c *gin.Context) {
	ctx := c.Request.Context()

	format := c.Param("format")
	if format != "json" && format != "xml" {
		utils.JSON400(c, "Invalid format. Use 'json' or 'xml'.")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid scan id")
		return
	}

	scan, err := ctrl.scans.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.JSON404(c, "Scan not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Scan] Failed to load scan %s: %v", id, err)
		utils.JSON500(c, "Failed to load scan")
		return
	}

	if scan.Status != entity.ScanStatusSucceeded {
		utils.JSON409(c, fmt.Sprintf("Scan result not available. Status is '%s'.", scan.Status))
		return
	}

	if scan.ResultXML == nil || *scan.ResultXML == "" {
		// Terminal success with no payload means the data was lost, which is
		// a different condition than "not finished yet".
		utils.JSON404(c, "Scan result data not found")
		return
	}

	if format == "xml" {
		c.Data(200, "application/xml", []byte(*scan.ResultXML))
		return
	}

	jsonTree, err := xmltree.JSON([]byte(*scan.ResultXML))
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Scan] Failed to convert result for scan %s: %v", id, err)
		utils.JSON500(c, "Failed to convert scan result")
		return
	}
	c.Data(200, "application/json", jsonTree)
}
