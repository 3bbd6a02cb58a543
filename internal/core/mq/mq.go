package mq

import "context"

// Publisher 只需要发布能力；登记事件不在本服务内消费
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte, headers map[string]string) error
	Close() error
}

// Noop 未启用 MQ 时使用
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte, map[string]string) error { return nil }
func (Noop) Close() error                                                     { return nil }
