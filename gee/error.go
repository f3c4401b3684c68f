package gee

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`              //错误信息
	Errors    any    `json:"errors,omitempty"`     //字段级错误
	RequestID string `json:"request_id,omitempty"` //请求序号
}

func NewErrorResponse(c *Context, message string, errors any) ErrorResponse {
	return ErrorResponse{
		Status:    StatusError,
		Message:   message,
		Errors:    errors,
		RequestID: c.Req.Header.Get("X-Request-ID"), //没有就空
	}
}
