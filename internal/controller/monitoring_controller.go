package controller

import (
	"intellitest_backend/internal/service"
	"intellitest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MonitoringController struct {
	MonitoringService *service.MonitoringService
	Hub               *service.ProgressHub
}

func NewMonitoringController(monitoringService *service.MonitoringService, hub *service.ProgressHub) *MonitoringController {
	return &MonitoringController{MonitoringService: monitoringService, Hub: hub}
}

// LiveTests godoc
// @Summary 进行中的试卷
// @Tags 监控
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.LiveTest}
// @Router /api/monitoring/live-tests [get]
func (c *MonitoringController) LiveTests(ctx *gin.Context) {
	tests, err := c.MonitoringService.LiveTests(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// TestProgress godoc
// @Summary 试卷答题进度
// @Tags 监控
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestProgress}
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/monitoring/test/{id}/progress [get]
func (c *MonitoringController) TestProgress(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	progress, err := c.MonitoringService.TestProgress(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// TestAnalytics godoc
// @Summary 试卷成绩分析
// @Tags 监控
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestAnalytics}
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/monitoring/test/{id}/analytics [get]
func (c *MonitoringController) TestAnalytics(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	analytics, err := c.MonitoringService.TestAnalytics(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, analytics)
}

// ProgressWs godoc
// @Summary 实时交卷推送
// @Description WebSocket，token 通过查询参数传递
// @Tags 监控
// @Param   id    path  int    true "试卷ID"
// @Param   token query string true "JWT"
// @Router /api/monitoring/test/{id}/ws [get]
func (c *MonitoringController) ProgressWs(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	if _, err := c.MonitoringService.TestRepo.FindByID(ctx.Request.Context(), id); err != nil {
		util.NotFound(ctx)
		return
	}
	identity, _ := util.GetIdentity(ctx)
	service.ServeProgressWs(c.Hub, ctx.Writer, ctx.Request, id, identity.ID)
}
