package assetcache

import (
	"context"
	"errors"
)

// gate 是一次性的就绪屏障：open 只执行一次，结果（包括失败）对所有等待者永久可见。
type gate struct {
	done chan struct{}
	err  error
}

func openGate(open func() error) *gate {
	g := &gate{done: make(chan struct{})}
	go func() {
		defer close(g.done)
		g.err = open()
	}()
	return g
}

// wait 阻塞直到 open 完成或 ctx 结束。
func (g *gate) wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.err
	default:
	}
	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settled 报告 open 是否已经结束。
func (g *gate) settled() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// errGateNotSettled 用于诊断接口区分"仍在初始化"与"初始化失败"。
var errGateNotSettled = errors.New("store is still opening")
