package controller

import (
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/service"
	"intellitest_backend/internal/util"
	"io"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// ListQuestions godoc
// @Summary 题库列表
// @Description 支持按知识点与题干关键字过滤（不区分大小写）
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Param   skip   query int    false "跳过条数"
// @Param   limit  query int    false "返回条数"
// @Param   topic  query string false "知识点"
// @Param   search query string false "题干关键字"
// @Success 200 {object} util.Response{data=[]model.Question}
// @Router /api/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	skip, limit := util.SkipLimit(ctx)
	qs, err := c.QuestionService.ListQuestions(ctx.Request.Context(), repository.QuestionFilter{
		Topic:  ctx.Query("topic"),
		Search: ctx.Query("search"),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, qs)
}

// CreateQuestion godoc
// @Summary 新建题目
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.QuestionReq true "题目"
// @Success 201 {object} util.Response{data=model.Question}
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/questions [post]
func (c *QuestionController) CreateQuestion(ctx *gin.Context) {
	var req service.QuestionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	identity, _ := util.GetIdentity(ctx)
	q, err := c.QuestionService.CreateQuestion(ctx.Request.Context(), identity.ID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// GetQuestion godoc
// @Summary 题目详情
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "题目ID"
// @Success 200 {object} util.Response{data=model.Question}
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id} [get]
func (c *QuestionController) GetQuestion(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid question id")
		return
	}
	q, err := c.QuestionService.GetQuestion(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Description 已有判分作答的题目不能修改题干、选项或答案
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path int                   true "题目ID"
// @Param   body body service.QuestionPatch true "待更新字段"
// @Success 200 {object} util.Response{data=model.Question}
// @Failure 404 {object} util.Response "题目不存在"
// @Failure 409 {object} util.Response "题目已被判分作答引用"
// @Router /api/questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid question id")
		return
	}
	var patch service.QuestionPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.QuestionService.UpdateQuestion(ctx.Request.Context(), id, patch)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "题目ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id} [delete]
func (c *QuestionController) DeleteQuestion(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid question id")
		return
	}
	if err := c.QuestionService.DeleteQuestion(ctx.Request.Context(), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "Question deleted successfully"})
}

// UploadImage godoc
// @Summary 上传题目配图
// @Tags 题库
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id   path     int  true "题目ID"
// @Param   file formData file true "图片文件"
// @Success 200 {object} util.Response{data=model.Question}
// @Failure 400 {object} util.Response "文件类型或大小不合法"
// @Failure 404 {object} util.Response "题目不存在"
// @Router /api/questions/{id}/image [post]
func (c *QuestionController) UploadImage(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "invalid question id")
		return
	}
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	if header.Size > util.MaxImageSize {
		util.BadRequest(ctx, "image too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	mimeType, err := util.ValidateMimeType(file, []string{util.MimeImage})
	if err != nil || !util.IsImage(mimeType) {
		util.BadRequest(ctx, "only image files are allowed")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	q, err := c.QuestionService.UploadImage(ctx.Request.Context(), id, header.Filename, file, header.Size, mimeType)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, q)
}
