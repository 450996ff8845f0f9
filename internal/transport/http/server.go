package http

import (
	"github.com/gin-gonic/gin"

	"docuchat/internal/bootstrap"
	"docuchat/internal/transport/http/handler"
	"docuchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.AuthService)
	documentHandler := handler.NewDocumentHandler(app.DocumentService)
	chatHandler := handler.NewChatHandler(app.ChatService, app.QuotaService)
	accountHandler := handler.NewAccountHandler(app.AccountService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	docGroup.POST("", documentHandler.Upload)
	docGroup.GET("", documentHandler.List)
	docGroup.GET("/:id", documentHandler.Get)
	docGroup.GET("/:id/url", documentHandler.PresignURL)
	docGroup.POST("/:id/ingest", documentHandler.RequestIngest)
	docGroup.DELETE("/:id", documentHandler.Delete)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.GET("/sessions/:id", chatHandler.GetSession)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.GET("/quota", chatHandler.QuotaStatus)

	accountGroup := v1.Group("/account")
	accountGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	accountGroup.GET("/stats", accountHandler.Stats)
	accountGroup.DELETE("", accountHandler.Delete)

	return router
}
