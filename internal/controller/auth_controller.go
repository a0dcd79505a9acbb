package controller

import (
	"intellitest_backend/internal/service"
	"intellitest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// LoginRequest 登录凭据，表单与 JSON 两种提交方式共用
// swagger:model LoginRequest
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// Login godoc
// @Summary 表单登录
// @Description OAuth2 password 风格的表单登录，返回 bearer token
// @Tags 认证
// @Accept  x-www-form-urlencoded
// @Produce  json
// @Param   username formData string true "用户名"
// @Param   password formData string true "密码"
// @Success 200 {object} util.Response{data=service.LoginResult} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "用户名或密码错误 / 账号已停用"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBind(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	c.login(ctx, req)
}

// LoginJSON godoc
// @Summary JSON 登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录凭据"
// @Success 200 {object} util.Response{data=service.LoginResult} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "用户名或密码错误 / 账号已停用"
// @Router /api/auth/login-json [post]
func (c *AuthController) LoginJSON(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	c.login(ctx, req)
}

func (c *AuthController) login(ctx *gin.Context, req LoginRequest) {
	result, err := c.AuthService.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
