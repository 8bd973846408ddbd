package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterRoutes configures all API routes on the given router
func (a *API) RegisterRoutes(router *gin.Engine) {
	// Root endpoint - API discovery
	router.GET("/", a.Base.HandleRoot)

	v1 := router.Group("/v1")
	{
		v1.GET("/health", a.Base.HandleHealth)
		v1.GET("/version", a.Base.HandleVersion)
	}

	api := router.Group("/api")
	{
		api.GET("/health", a.Base.HandleServiceHealth)
		api.GET("/distros", a.Base.HandleListDistros)
		api.GET("/test", a.Base.HandleSelfTest)
		api.POST("/validate-overlays", a.Overlays.HandleValidate)

		api.POST("/build", a.rateLimitCreate(), a.Builds.HandleCreateBuild)

		builds := api.Group("/build/:id")
		{
			builds.GET("", a.Builds.HandleGetBuild)
			builds.POST("/progress", a.Builds.HandleProgress)
			builds.GET("/stream", a.Builds.HandleStreamBuild)

			builds.GET("/download", a.Artifacts.HandleListArtifacts)
			builds.GET("/file/:filename", a.Artifacts.HandleDownloadFile)
			builds.GET("/bundle", a.Artifacts.HandleDownloadBundle)
			builds.PUT("/upload-iso", a.Artifacts.HandleUploadImage)
			builds.GET("/iso", a.Artifacts.HandleDownloadImage)
		}
	}

	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Router returns an engine with the middleware chain and every route
func (a *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(corsMiddleware())
	router.Use(ginLogger())
	router.Use(a.observe())
	a.RegisterRoutes(router)
	return router
}
