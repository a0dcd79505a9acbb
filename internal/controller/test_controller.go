package controller

import (
	"intellitest_backend/internal/service"
	"intellitest_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type TestController struct {
	TestService       *service.TestService
	SubmissionService *service.SubmissionService
}

func NewTestController(testService *service.TestService, submissionService *service.SubmissionService) *TestController {
	return &TestController{TestService: testService, SubmissionService: submissionService}
}

// ListTests godoc
// @Summary 试卷列表
// @Description 学生只返回未指定班级或分配给本班的试卷
// @Tags 试卷
// @Produce  json
// @Security ApiKeyAuth
// @Param   skip    query int  false "跳过条数"
// @Param   limit   query int  false "返回条数"
// @Param   is_live query bool false "是否进行中"
// @Success 200 {object} util.Response{data=[]model.Test}
// @Router /api/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	identity, _ := util.GetIdentity(ctx)
	skip, limit := util.SkipLimit(ctx)
	filter := service.TestListFilter{Skip: skip, Limit: limit}
	if raw := ctx.Query("is_live"); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			util.BadRequest(ctx, "invalid is_live")
			return
		}
		filter.IsLive = &live
	}

	tests, err := c.TestService.ListTests(ctx.Request.Context(), identity, filter)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, tests)
}

// CreateTest godoc
// @Summary 组卷
// @Description 题目顺序即 question_ids 的顺序；含不存在的题目时整体失败
// @Tags 试卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateTestReq true "试卷"
// @Success 201 {object} util.Response{data=model.Test}
// @Failure 400 {object} util.Response{data=object} "请求参数错误或题目不存在（data.missing_ids）"
// @Router /api/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	var req service.CreateTestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	identity, _ := util.GetIdentity(ctx)
	test, err := c.TestService.CreateTest(ctx.Request.Context(), req, identity.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, test)
}

// GetTest godoc
// @Summary 试卷详情
// @Description 学生视图不包含正确答案
// @Tags 试卷
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestDetail}
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	identity, _ := util.GetIdentity(ctx)
	detail, err := c.TestService.GetTest(ctx.Request.Context(), identity, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// UpdateTest godoc
// @Summary 更新试卷
// @Description 仅更新请求中出现的字段；question_ids 出现时整体替换题目
// @Tags 试卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int                   true "试卷ID"
// @Param   body body service.UpdateTestReq true "待更新字段"
// @Success 200 {object} util.Response{data=model.Test}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/tests/{id} [put]
func (c *TestController) UpdateTest(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	var req service.UpdateTestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	test, err := c.TestService.UpdateTest(ctx.Request.Context(), id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// DeleteTest godoc
// @Summary 删除试卷
// @Description 同时删除题目关联、提交与作答
// @Tags 试卷
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/tests/{id} [delete]
func (c *TestController) DeleteTest(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	if err := c.TestService.DeleteTest(ctx.Request.Context(), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "Test deleted successfully"})
}

// Submit godoc
// @Summary 交卷
// @Description 每名学生每张试卷只能提交一次
// @Tags 试卷
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int               true "试卷ID"
// @Param   body body service.SubmitReq true "作答"
// @Success 201 {object} util.Response{data=model.Submission}
// @Failure 400 {object} util.Response "试卷未开放"
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "试卷不存在"
// @Failure 409 {object} util.Response "已提交过"
// @Router /api/tests/{id}/submit [post]
func (c *TestController) Submit(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	var req service.SubmitReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	identity, _ := util.GetIdentity(ctx)
	sub, err := c.SubmissionService.Submit(ctx.Request.Context(), identity, id, req.Answers, req.IsAutoSubmitted)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, sub)
}

// ListTestSubmissions godoc
// @Summary 试卷的全部提交
// @Tags 试卷
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "试卷ID"
// @Success 200 {object} util.Response{data=[]model.Submission}
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/tests/{id}/submissions [get]
func (c *TestController) ListTestSubmissions(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid test id")
		return
	}
	subs, err := c.SubmissionService.ListTestSubmissions(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, subs)
}
