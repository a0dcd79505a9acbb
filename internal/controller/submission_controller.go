package controller

import (
	"intellitest_backend/internal/service"
	"intellitest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	SubmissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService}
}

// ListMySubmissions godoc
// @Summary 我的提交
// @Tags 提交
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Submission}
// @Router /api/submissions/my [get]
func (c *SubmissionController) ListMySubmissions(ctx *gin.Context) {
	identity, _ := util.GetIdentity(ctx)
	subs, err := c.SubmissionService.ListMySubmissions(ctx.Request.Context(), identity)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, subs)
}

// GetSubmission godoc
// @Summary 提交详情
// @Description 学生只能查看自己的提交
// @Tags 提交
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "提交ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Failure 403 {object} util.Response "无权查看"
// @Failure 404 {object} util.Response "提交不存在"
// @Router /api/submissions/{id} [get]
func (c *SubmissionController) GetSubmission(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid submission id")
		return
	}
	identity, _ := util.GetIdentity(ctx)
	sub, err := c.SubmissionService.GetSubmission(ctx.Request.Context(), identity, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}
