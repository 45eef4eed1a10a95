package api

import (
	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"symposium/cmd/middleware"
	"symposium/internal/cache"
	"symposium/internal/service"
)

type Routers struct {
	Service      service.Service
	Store        cache.Store
	SharedSecret string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.Default())

	apiGroup := app.Group("/v1")

	apiGroup.POST("/otp/issue", r.Service.IssueOTP)
	apiGroup.POST("/otp/verify", r.Service.VerifyOTP)

	apiGroup.POST("/register", r.Service.Register)
	apiGroup.POST("/register/partner", r.Service.RegisterPartner)

	apiGroup.POST("/payments/verify", r.Service.VerifyPayment)

	apiGroup.GET("/events", r.Service.ListEvents)
	apiGroup.GET("/events/dates", r.Service.EventDates)
	apiGroup.GET("/announcements", r.Service.ListAnnouncements)
	apiGroup.GET("/track", r.Service.Track)

	apiGroup.POST("/admin/login", r.Service.AdminLogin)

	admin := apiGroup.Group("/admin")
	admin.Use(middleware.AdminAuth(r.Store, r.SharedSecret))
	admin.POST("/payments/reconcile", r.Service.ReconcilePayments)
	admin.POST("/payments/manual-verify", r.Service.ManualVerify)
	admin.POST("/attendance/scan", r.Service.ScanAttendance)
	admin.POST("/attendance/manual", r.Service.ManualAttendance)
	admin.GET("/participants/search", r.Service.SearchParticipants)
	admin.GET("/stats", r.Service.AdminStats)
	admin.GET("/export", r.Service.ExportCSV)
	admin.POST("/announcements", r.Service.CreateAnnouncement)
	admin.DELETE("/announcements/:id", r.Service.DeleteAnnouncement)

	return app
}
