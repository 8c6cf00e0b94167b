package routes

import (
	"equipment_loaner/app"
	"equipment_loaner/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(s)
	itemCtl := controllers.NewItemController(s)
	loanCtl := controllers.NewLoanController(s)
	lookupCtl := controllers.NewLookupController(s)
	reportCtl := controllers.NewReportController(s)

	// 复用的中间件；角色校验在 engine 里做
	authMW := app.AuthRequired(a.Sessions, a.Tokens, a.Repo)
	seenMW := app.TouchLastSeen(a.Repo, a.RDB, a.Config.SeenThrottle)

	r.GET("/healthz", s.Health)

	// ------------------------------
	// 登录（密码 / Passkey）
	// ------------------------------
	r.POST("/api/auth/login", s.Login)
	r.POST("/api/auth/logout", s.Logout)
	r.GET("/api/auth/me", authMW, seenMW, s.Me)

	wa := r.Group("/webauthn")
	{
		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	api := r.Group("/api", authMW, seenMW)

	// 已登录用户添加新凭据（绑定手机等）
	creds := api.Group("/credentials")
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// 分类 / 位置
	// ------------------------------
	api.GET("/categories", lookupCtl.ListCategories)
	api.POST("/categories", lookupCtl.CreateCategory)
	api.GET("/locations", lookupCtl.ListLocations)
	api.POST("/locations", lookupCtl.CreateLocation)

	// ------------------------------
	// 物品
	// ------------------------------
	items := api.Group("/items")
	{
		items.GET("", itemCtl.ListItems)
		items.POST("", itemCtl.CreateItem)
		items.GET("/:id", itemCtl.GetItem)
		items.PUT("/:id", itemCtl.UpdateItem)
		items.DELETE("/:id", itemCtl.DeleteItem)
		items.POST("/:id/maintenance", itemCtl.MarkMaintenance)
		items.POST("/:id/available", itemCtl.MarkAvailable)
		items.GET("/:id/maintenance-logs", itemCtl.MaintenanceLogs)
	}

	// ------------------------------
	// 借还
	// ------------------------------
	ln := api.Group("/loans")
	{
		ln.GET("", loanCtl.ListLoans)
		ln.POST("", loanCtl.RequestLoan)
		ln.POST("/staff-create", loanCtl.StaffCreateLoan)
		ln.GET("/:id", loanCtl.GetLoan)
		ln.POST("/:id/approve", loanCtl.Approve)
		ln.POST("/:id/deny", loanCtl.Deny)
		ln.POST("/:id/return", loanCtl.Return)
	}

	// ------------------------------
	// 用户管理
	// ------------------------------
	users := api.Group("/users")
	{
		users.GET("", uc.ListUsers) // ?q=&role=&active=&page=&size=
		users.POST("", uc.CreateUser)
		users.GET("/:id", uc.GetUser)
		users.PUT("/:id", uc.UpdateUser)
		users.DELETE("/:id", uc.DeleteUser)
	}

	// ------------------------------
	// 报表
	// ------------------------------
	api.GET("/dashboard/stats", reportCtl.DashboardStats)
	reports := api.Group("/reports")
	{
		reports.GET("/overdue", reportCtl.Overdue)
		reports.GET("/loans", reportCtl.Loans)
		reports.GET("/maintenance", reportCtl.Maintenance)
		reports.GET("/inventory", reportCtl.Inventory)
		reports.GET("/integrity", reportCtl.Integrity)
	}
}
