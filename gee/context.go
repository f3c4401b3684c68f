package gee

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type H map[string]any

// abortIndex must be large enough to exceed any real handler index, but not so
// large that nested Next() loops can overflow when multiple stack frames
// increment c.index after Abort().
const abortIndex = math.MaxInt32

type Context struct {
	Writer *ResponseWriter
	Req    *http.Request
	//请求消息
	Path         string
	Method       string
	RoutePattern string
	wildcard     string
	//中间件
	handlers []HandlerFunc
	index    int
	engine   *Engine
}

func newContext(w http.ResponseWriter, req *http.Request, engine *Engine) *Context {
	return &Context{
		Writer: NewResponseWriter(w),
		Req:    req,
		Path:   req.URL.Path,
		Method: req.Method,
		index:  -1,
		engine: engine,
	}
}

// Param 返回路由参数，例如 /posts/:id 中的 id
func (c *Context) Param(key string) string {
	if key != "" && key == c.wildcard {
		key = "*"
	}
	return chi.URLParam(c.Req, key)
}

func (c *Context) Next() {
	c.index++
	s := len(c.handlers)
	for ; c.index < s && !c.IsAborted(); c.index++ {
		c.handlers[c.index](c)
	}
}

func (c *Context) PostForm(key string) string {
	return c.Req.FormValue(key)
}

// Query 返回 URL 查询参数的第一个值，不存在时为空串
func (c *Context) Query(key string) string {
	return c.Req.URL.Query().Get(key)
}

func (c *Context) Status(code int) {
	c.Writer.WriteHeader(code)
}

func (c *Context) SetHeader(key string, value string) {
	c.Writer.SetHeader(key, value)
}

func (c *Context) String(code int, format string, values ...any) {
	c.SetHeader("Content-Type", "text/plain; charset=utf-8")
	c.Status(code)
	c.Writer.Write([]byte(fmt.Sprintf(format, values...)))
}

func (c *Context) JSON(code int, obj any) {
	c.SetHeader("Content-Type", "application/json")
	c.Status(code)
	encoder := json.NewEncoder(c.Writer)
	if err := encoder.Encode(obj); err != nil {
		http.Error(c.Writer, err.Error(), 500)
	}
}

// RawJSON 直接写出已经序列化好的 JSON（例如缓存里取出的 payload）
func (c *Context) RawJSON(code int, body []byte) {
	c.SetHeader("Content-Type", "application/json")
	c.Status(code)
	c.Writer.Write(body)
}

func (c *Context) Data(code int, data []byte) {
	c.Status(code)
	c.Writer.Write(data)
}

// Success 统一成功响应：{"status":"success","message":...,"data":...}
func (c *Context) Success(code int, message string, data any) {
	c.JSON(code, SuccessResponse{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

func (c *Context) Fail(code int, message string) {
	c.AbortWithError(code, message)
}

func (c *Context) Abort() {
	c.index = abortIndex
}

func (c *Context) IsAborted() bool {
	return c.index >= abortIndex
}

func (c *Context) AbortWithStatus(code int) {
	c.Status(code)
	c.Abort()
}

func (c *Context) AbortWithStatusJSON(code int, obj any) {
	c.Abort()

	if c.Writer.Written() {
		return
	}

	bytes, err := json.Marshal(obj)
	if err != nil {
		code = http.StatusInternalServerError
		bytes = []byte(`{"status":"error","message":"Internal Server Error"}`)
	}
	c.SetHeader("Content-Type", "application/json")
	c.Status(code)
	c.Writer.Write(bytes)
}

func (c *Context) AbortWithError(code int, message string) {
	c.AbortWithStatusJSON(code, NewErrorResponse(c, message, nil))
}

// AbortWithErrors 带字段级错误详情，例如校验失败时的 {"email":["is required"]}
func (c *Context) AbortWithErrors(code int, message string, errors any) {
	c.AbortWithStatusJSON(code, NewErrorResponse(c, message, errors))
}
