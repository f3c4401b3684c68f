package gee

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes 请求体上限 1MB
const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// 错误信息里使用 json 字段名
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// FieldErrors 字段名 -> 错误信息列表
type FieldErrors map[string][]string

// ValidationError 请求体结构合法但字段校验不通过
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, field+": "+strings.Join(msgs, ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ShouldBindJSON 只解析 json 并按 validate tag 校验，不写响应
func (c *Context) ShouldBindJSON(dst any) error {
	body := http.MaxBytesReader(c.Writer, c.Req.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON value")
	}
	return Validate(dst)
}

// BindJSON 解析+校验，失败时直接写错误响应：格式错误 400，字段错误 422
func (c *Context) BindJSON(dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		c.AbortWithErrors(http.StatusUnprocessableEntity, "Validation error", verr.Fields)
		return err
	}
	c.AbortWithError(http.StatusBadRequest, "Invalid json")
	return err
}

// Validate 对结构体执行 validate tag 校验
func Validate(dst any) error {
	err := getValidator().Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// 非结构体等调用方错误，不属于字段校验
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return err
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}
