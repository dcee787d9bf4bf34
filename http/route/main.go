package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/autonmap/scan-orchestrator/http/controller"
	middlewares "github.com/autonmap/scan-orchestrator/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group("/api/v1")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		scanRoutes := apiRoutes.Group("/scans")
		{
			scanRoutes.POST("/", ctrl.CreateScan)
			scanRoutes.GET("/", ctrl.ListScans)
			scanRoutes.GET("/:id", ctrl.GetScan)
			scanRoutes.GET("/:id/result/:format", ctrl.GetScanResult)
		}

		apiRoutes.GET("/profiles", ctrl.GetSupportedProfiles)
	}
	return r
}
