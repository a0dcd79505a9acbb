package app

import (
	"intellitest_backend/docs"
	"intellitest_backend/internal/config"
	"intellitest_backend/internal/middleware"
	"intellitest_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由，每次请求重新加载用户身份
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, a.services.auth))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/login", c.auth.Login)
		public.POST("/auth/login-json", c.auth.LoginJSON)
	}
}

// 所有已登录用户；学生的可见范围由 service 层按访问策略过滤
func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/users/me", c.user.Me)

	rg.GET("/tests", c.test.ListTests)
	rg.GET("/tests/:id", c.test.GetTest)
	rg.POST("/tests/:id/submit", c.test.Submit)

	rg.GET("/submissions/my", c.submission.ListMySubmissions)
	rg.GET("/submissions/:id", c.submission.GetSubmission)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	questions := rg.Group("/questions")
	questions.Use(middleware.RequireManager())
	{
		questions.GET("", c.question.ListQuestions)
		questions.POST("", c.question.CreateQuestion)
		questions.GET("/:id", c.question.GetQuestion)
		questions.PUT("/:id", c.question.UpdateQuestion)
		questions.PATCH("/:id", c.question.UpdateQuestion)
		questions.DELETE("/:id", c.question.DeleteQuestion)
		questions.POST("/:id/image", c.question.UploadImage)
	}

	tests := rg.Group("/tests")
	tests.Use(middleware.RequireManager())
	{
		tests.POST("", c.test.CreateTest)
		tests.PUT("/:id", c.test.UpdateTest)
		tests.PATCH("/:id", c.test.UpdateTest)
		tests.DELETE("/:id", c.test.DeleteTest)
		tests.GET("/:id/submissions", c.test.ListTestSubmissions)
	}

	monitor := rg.Group("/monitoring")
	monitor.Use(middleware.RequireManager())
	{
		monitor.GET("/live-tests", c.monitoring.LiveTests)
		monitor.GET("/test/:id/progress", c.monitoring.TestProgress)
		monitor.GET("/test/:id/analytics", c.monitoring.TestAnalytics)
		monitor.GET("/test/:id/ws", c.monitoring.ProgressWs)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	users := rg.Group("/users")
	users.Use(middleware.RequireAdmin())
	{
		users.GET("", c.user.ListUsers)
		users.POST("", c.user.CreateUser)
		users.GET("/:id", c.user.GetUser)
		users.PUT("/:id", c.user.UpdateUser)
		users.PATCH("/:id", c.user.UpdateUser)
		users.DELETE("/:id", c.user.DeleteUser)
	}
}
