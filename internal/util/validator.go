package util

import (
	"intellitest_backend/internal/model"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 注册自定义 binding 标签，须在绑定请求前调用
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("answer_option", func(fl validator.FieldLevel) bool {
			return model.ValidOption(model.NormalizeOption(fl.Field().String()))
		})
	})
}
