package news

import "errors"

// 领域层统一错误，HTTP 层据此映射状态码
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrEmailTaken    = errors.New("email already used")
	ErrSlugTaken     = errors.New("slug already used")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidStatus = errors.New("invalid status")
)
