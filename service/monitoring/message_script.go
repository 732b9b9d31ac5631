/*
 * @module service/monitoring/message_script
 * @description 告警消息脚本执行器，支持通过Go脚本自定义告警文案，脚本编译结果按内容哈希缓存
 * @architecture 分层架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 脚本文本 -> sha1缓存查找 -> 解释器编译 -> 调用Format入口 -> 返回告警文案
 * @rules 脚本必须导出 Format(params map[string]interface{}) (string, error)；执行失败时调用方回退到默认模板
 * @dependencies github.com/traefik/yaegi
 * @refs service/monitoring/alert_dispatcher.go
 */

package monitoring

import (
	"crypto/sha1"
	"fmt"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// FormatFunc 脚本入口函数签名
type FormatFunc func(params map[string]interface{}) (string, error)

// MessageScriptExecutor 告警消息脚本执行器
type MessageScriptExecutor struct {
	mu    sync.Mutex
	cache map[string]FormatFunc
}

// NewMessageScriptExecutor 创建脚本执行器实例
func NewMessageScriptExecutor() *MessageScriptExecutor {
	return &MessageScriptExecutor{
		cache: make(map[string]FormatFunc),
	}
}

// Execute 执行告警消息脚本，返回格式化后的文案
func (e *MessageScriptExecutor) Execute(script string, params map[string]interface{}) (string, error) {
	fn, err := e.compile(script)
	if err != nil {
		return "", err
	}
	return fn(params)
}

// compile 编译脚本并缓存，同一脚本内容只编译一次
func (e *MessageScriptExecutor) compile(script string) (FormatFunc, error) {
	key := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	e.mu.Lock()
	defer e.mu.Unlock()

	if fn, ok := e.cache[key]; ok {
		return fn, nil
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载脚本标准库失败: %w", err)
	}

	if _, err := i.Eval(script); err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	v, err := i.Eval("Format")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少Format入口函数: %w", err)
	}

	fn, ok := v.Interface().(func(map[string]interface{}) (string, error))
	if !ok {
		return nil, fmt.Errorf("脚本Format函数签名不正确，应为 func(map[string]interface{}) (string, error)")
	}

	e.cache[key] = fn
	return fn, nil
}
