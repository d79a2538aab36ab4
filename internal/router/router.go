package router

import (
	"log/slog"
	"net/http"

	"smart-coop/internal/handler"
	"smart-coop/internal/middleware"
	"smart-coop/internal/models"

	"github.com/gin-gonic/gin"
)

// Handlers groups the endpoint implementations mounted by SetupRouter.
type Handlers struct {
	Auth     *handler.AuthHandler
	Profile  *handler.ProfileHandler
	Reset    *handler.ResetHandler
	History  *handler.HistoryHandler
	Users    *handler.UserHandler
	Vaccines *handler.VaccineHandler
	Feedings *handler.FeedingHandler
}

// SetupRouter configures the gin engine and all API routes.
func SetupRouter(mode string, gate middleware.Authenticator, logger *slog.Logger, h Handlers) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	requireAuth := middleware.AuthMiddleware(gate, logger)

	// ====== auth (public) ======
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/code", h.Auth.LoginWithCode)
	authGroup.GET("/confirm-password-change/:token", h.Profile.ConfirmPasswordChange)
	authGroup.GET("/cancel-password-change/:token", h.Profile.CancelPasswordChange)
	authGroup.POST("/forgot-password", h.Reset.ForgotPassword)
	authGroup.GET("/reset-password/:token", h.Reset.CheckResetToken)
	authGroup.POST("/reset-password", h.Reset.ResetPassword)

	// ====== auth (session) ======
	session := authGroup.Group("", requireAuth)
	session.POST("/logout", h.Auth.Logout)
	session.GET("/me", handler.GetMe)
	session.PUT("/update-profile", h.Profile.UpdateProfile)
	session.PUT("/update-password", h.Profile.UpdatePassword)
	session.POST("/update-code", h.Auth.UpdateCode)

	// ====== history ======
	historyGroup := api.Group("/history", requireAuth)
	historyGroup.GET("", h.History.List)
	historyGroup.GET("/export", h.History.Export)

	// ====== vaccines ======
	vaccines := api.Group("/vaccines", requireAuth)
	vaccines.GET("", h.Vaccines.List)
	vaccines.POST("", h.Vaccines.Create)
	vaccines.POST("/generate-schedule", h.Vaccines.GenerateSchedule)
	vaccines.PUT("/:id", h.Vaccines.Update)
	vaccines.DELETE("/:id", h.Vaccines.Delete)
	vaccines.PUT("/:id/administered", h.Vaccines.MarkAdministered)
	vaccines.POST("/:id/reminder", h.Vaccines.SendReminder)

	// ====== feedings ======
	feedings := api.Group("/feedings", requireAuth)
	feedings.GET("", h.Feedings.List)
	feedings.GET("/stats", h.Feedings.Stats)
	feedings.POST("", h.Feedings.Create)
	feedings.PUT("/:id", h.Feedings.Update)
	feedings.PUT("/:id/archive", h.Feedings.Archive)
	feedings.PATCH("/:id/decrement", h.Feedings.Decrement)
	feedings.PUT("/:id/water-supply", h.Feedings.WaterSupply)

	// ====== user directory (admin) ======
	users := api.Group("/users", requireAuth, middleware.RequireRole(models.RoleAdmin))
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)

	return r
}
