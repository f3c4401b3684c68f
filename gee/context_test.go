package gee

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestContext(method, target string) (*Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	return newContext(w, req, nil), w
}

// 测试 Abort 功能
func TestAbort(t *testing.T) {
	c := &Context{index: -1}
	if c.IsAborted() {
		t.Error("new context should not be aborted")
	}

	c.Abort()
	if !c.IsAborted() {
		t.Error("context should be aborted after Abort()")
	}
}

// 测试 Abort 后 Next 不再执行后续 handler
func TestAbortStopsHandlerChain(t *testing.T) {
	executed := make([]int, 0)

	c, _ := newTestContext("GET", "/")
	c.handlers = []HandlerFunc{
		func(c *Context) {
			executed = append(executed, 1)
			c.Next()
		},
		func(c *Context) {
			executed = append(executed, 2)
			c.Abort()
			c.Next() // 即使调用 Next，也不应继续
		},
		func(c *Context) {
			executed = append(executed, 3)
		},
	}

	c.Next()

	if len(executed) != 2 || executed[0] != 1 || executed[1] != 2 {
		t.Errorf("expected [1 2], got %v", executed)
	}
}

// 测试中间件链的洋葱顺序
func TestMiddlewareExecutionOrder(t *testing.T) {
	order := make([]string, 0)

	c, _ := newTestContext("GET", "/")
	c.handlers = []HandlerFunc{
		func(c *Context) {
			order = append(order, "m1-before")
			c.Next()
			order = append(order, "m1-after")
		},
		func(c *Context) {
			order = append(order, "m2-before")
			c.Next()
			order = append(order, "m2-after")
		},
		func(c *Context) {
			order = append(order, "handler")
		},
	}

	c.Next()

	expected := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("at index %d: expected %s, got %s", i, v, order[i])
		}
	}
}

func TestSuccessEnvelope(t *testing.T) {
	c, w := newTestContext("GET", "/")

	c.Success(http.StatusCreated, "News created", H{"id": "7"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	var body struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Status != "success" || body.Message != "News created" || body.Data["id"] != "7" {
		t.Errorf("unexpected envelope: %+v", body)
	}
}

func TestAbortWithErrorsEnvelope(t *testing.T) {
	c, w := newTestContext("POST", "/")
	c.Req.Header.Set("X-Request-ID", "req-1")

	c.AbortWithErrors(http.StatusConflict, "Email already used", H{"field": "email"})

	if !c.IsAborted() {
		t.Error("context should be aborted")
	}
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Status != "error" || body.Message != "Email already used" || body.RequestID != "req-1" {
		t.Errorf("unexpected envelope: %+v", body)
	}
	if body.Errors == nil {
		t.Error("expected errors detail")
	}
}

// 已经写过响应时不再覆盖状态码
func TestAbortWithStatusJSONAfterWrite(t *testing.T) {
	c, w := newTestContext("GET", "/")
	c.String(http.StatusOK, "partial")

	c.AbortWithStatusJSON(http.StatusInternalServerError, H{"status": "error"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status to stay %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "partial" {
		t.Errorf("body should not change, got %q", w.Body.String())
	}
}

func TestRawJSON(t *testing.T) {
	c, w := newTestContext("GET", "/")

	c.RawJSON(http.StatusOK, []byte(`{"status":"success"}`))

	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected application/json, got %s", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != `{"status":"success"}` {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}
