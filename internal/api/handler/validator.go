package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

const (
	csvListMaxItems   = 30
	csvListMaxItemLen = 50
)

// RegisterValidators 向 gin 的校验引擎注册自定义规则（进程启动时调用一次）
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	return v.RegisterValidation("csvlist", validateCSVList)
}

// validateCSVList 逗号分隔列表：至少一项非空，项数与单项长度有上限
func validateCSVList(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	count := 0
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if len(item) > csvListMaxItemLen {
			return false
		}
		count++
	}
	return count > 0 && count <= csvListMaxItems
}

// badRequest 参数校验失败，details 中给出逐字段原因
func badRequest(c *gin.Context, err error) {
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", formatValidationErrors(err))
}

func formatValidationErrors(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required", "required_if":
			msgs = append(msgs, field+" 不能为空")
		case "email":
			msgs = append(msgs, field+" 必须是邮箱")
		case "min":
			msgs = append(msgs, field+" 不能小于 "+e.Param())
		case "max":
			msgs = append(msgs, field+" 不能大于 "+e.Param())
		case "oneof":
			msgs = append(msgs, field+" 必须是以下之一: "+e.Param())
		case "csvlist":
			msgs = append(msgs, field+" 必须是逗号分隔的非空列表")
		default:
			msgs = append(msgs, field+" 无效")
		}
	}
	return strings.Join(msgs, "; ")
}
