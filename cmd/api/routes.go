package main

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"finance-tower/internal/auth"
	"finance-tower/internal/finance"
	"finance-tower/internal/httpapi"
	"finance-tower/internal/rbac"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, authMW gin.HandlerFunc, svc *finance.Service, members rbac.MembershipResolver) {
	// public
	r.GET("/healthz", httpapi.Healthz(db))

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid})
		})

		httpapi.RegisterFinanceRoutes(v1, httpapi.Handlers{Finance: svc}, members)
	}
}
