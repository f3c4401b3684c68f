// Package kvstore 是对远端 KV 服务（Redis）的尽力而为封装。
//
// 约定：任何错误对调用方而言都等价于“不存在”。缓存、去重、吊销等辅助功能
// 在 KV 不可用时退化为直通，主请求不能因此失败。
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable KV 未配置、连接失败或熔断打开
	ErrUnavailable = errors.New("kvstore: unavailable")
	// ErrPartialPurge 前缀删除在轮数或时长预算内没有扫完，剩余的 key 依赖 TTL 过期
	ErrPartialPurge = errors.New("kvstore: prefix purge incomplete")
)

type Store interface {
	// Get 未命中时返回 (nil, false, nil)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix 删除所有以 prefix 开头的 key，有扫描预算
	DeletePrefix(ctx context.Context, prefix string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// Nop 是 KV 未配置时使用的实现：读永远未命中，写永远成功（丢弃）。
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error                  { return nil }
func (Nop) DeletePrefix(context.Context, string) error               { return nil }
func (Nop) Exists(context.Context, string) (bool, error)             { return false, nil }
func (Nop) Ping(context.Context) error                               { return ErrUnavailable }
