package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/autonmap/scan-orchestrator/entity"
	"github.com/autonmap/scan-orchestrator/utils"
)

// GetSupportedProfiles exposes the fixed scan profile catalogue. There is no
// dynamic registration.
func (ctrl *Controller) GetSupportedProfiles(c *gin.Context) {
	utils.JSON200(c, entity.Profiles())
}
