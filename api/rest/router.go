package rest

import "github.com/gin-gonic/gin"

// Register mounts the world routes on g (normally the /api group).
func (h *WorldHandler) Register(g *gin.RouterGroup) {
	g.GET("/world", h.World)

	g.GET("/tiles", h.Region)
	g.GET("/tiles/:x/:y", h.Tile)
	g.PUT("/tiles/:x/:y", h.SetTile)

	g.GET("/furniture", h.ListFurniture)
	g.POST("/furniture", h.Place)
	g.GET("/furniture/prototypes", h.Prototypes)
	g.GET("/furniture/prototypes/:type", h.Prototype)
	g.GET("/furniture/valid", h.Valid)
	g.DELETE("/furniture/:x/:y", h.Uninstall)

	g.GET("/jobs", h.ListJobs)
	g.POST("/jobs", h.CreateJob)
	g.GET("/jobs/:id", h.GetJob)
	g.DELETE("/jobs/:id", h.CancelJob)

	g.GET("/characters", h.ListCharacters)
	g.POST("/characters", h.CreateCharacter)
	g.GET("/characters/:id", h.GetCharacter)

	g.GET("/inventory", h.Inventory)
	g.POST("/inventory", h.SpawnInventory)
}

// Register mounts the admin routes on g. The caller guards g.
func (h *AdminHandler) Register(g *gin.RouterGroup) {
	g.GET("/metrics", h.Metrics)
	g.POST("/pause", h.Pause)
	g.GET("/saves", h.ListSaves)
	g.POST("/saves/:name", h.Save)
	g.DELETE("/saves/:name", h.DeleteSave)
	g.POST("/saves/:name/load", h.Load)
	g.GET("/joblog", h.JobLog)
}
