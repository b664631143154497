package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/servehub/internal/handlers"
	"github.com/01moynul/servehub/internal/middleware"
	"github.com/01moynul/servehub/internal/models"
)

// CORSMiddleware tells the browser that it is safe for origin to call us.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Allow only the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)

		// 2. Allow standard security credentials
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 3. Allow the headers we actually use (specifically "Authorization" for JWT tokens)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")

		// 4. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// 5. Handle the "Preflight" OPTIONS request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SetupRouter wires every route. Roles are checked against the database on each request.
func SetupRouter(h *handlers.Handlers, corsOrigin string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// --- APPLY THE CORS GUARD ---
	router.Use(CORSMiddleware(corsOrigin))

	requireAuth := middleware.AuthMiddleware(h.Tokens)

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register", h.Register)
		v1.POST("/login", h.Login)

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(requireAuth)
		{
			// --- Notification Routes ---
			auth.GET("/notifications", h.GetMyNotifications)
			auth.GET("/notifications/unread-count", h.GetUnreadCount)
			auth.PUT("/notifications/mark-read", h.MarkNotificationsAsRead)
			auth.PUT("/notifications/mark-all-read", h.MarkAllNotificationsAsRead)
			auth.DELETE("/notifications/:id", h.DeleteNotification)

			// --- Participation Routes ---
			// Ownership of the event is enforced by the participation service.
			auth.POST("/events/:id/participation-requests",
				middleware.RequireRole(h.Users, models.RoleVolunteer), h.RequestParticipation)
			auth.GET("/events/:id/participation-requests",
				middleware.RequireRole(h.Users, models.RoleOrganizer, models.RoleAdmin), h.GetParticipationRequests)
			auth.PATCH("/participation-requests/:id/accept",
				middleware.RequireRole(h.Users, models.RoleOrganizer, models.RoleAdmin), h.AcceptParticipation)
			auth.PATCH("/participation-requests/:id/reject",
				middleware.RequireRole(h.Users, models.RoleOrganizer, models.RoleAdmin), h.RejectParticipation)
		}

		// --- Organizer-Only Routes ---
		organizer := v1.Group("/events")
		organizer.Use(requireAuth)
		organizer.Use(middleware.RequireRole(h.Users, models.RoleOrganizer, models.RoleAdmin))
		{
			organizer.POST("", h.SubmitEvent)
			organizer.POST("/:id/completion-request", h.RequestEventCompletion)
		}

		// --- Admin-Only Routes ---
		admin := v1.Group("/admin")
		admin.Use(requireAuth)
		admin.Use(middleware.RequireRole(h.Users, models.RoleAdmin))
		{
			admin.GET("/events/pending", h.GetPendingEvents)
			admin.PATCH("/events/:id/approve", h.ApproveEvent)
			admin.PATCH("/events/:id/reject", h.RejectEvent)
			admin.PATCH("/events/:id/completion/approve", h.ApproveEventCompletion)
			admin.PATCH("/events/:id/completion/reject", h.RejectEventCompletion)
		}
	}

	return router
}
