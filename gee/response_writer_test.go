package gee

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriterTracksStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	if rw.Written() {
		t.Error("fresh writer should not be written")
	}
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // 第二次调用被忽略
	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("write = (%d,%v)", n, err)
	}

	if rw.Status() != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("expected 418, got writer=%d recorder=%d", rw.Status(), rec.Code)
	}
	if rw.Size() != 5 {
		t.Errorf("expected size 5, got %d", rw.Size())
	}
}

func TestResponseWriterImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.Write([]byte("x"))
	if !rw.Written() || rw.Status() != http.StatusOK {
		t.Errorf("expected implicit 200, got %d", rw.Status())
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("recorder does not support hijack, expected error")
	}
}

func TestResponseWriterFlushAndUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.Flush()
	if !rec.Flushed {
		t.Error("expected recorder to be flushed")
	}
	if rw.Unwrap() != http.ResponseWriter(rec) {
		t.Error("Unwrap should return the original writer")
	}
}
