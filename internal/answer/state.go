package answer

import "sync/atomic"

// Breaker 进程内熔断开关，跳闸后不再恢复
type Breaker struct {
	tripped atomic.Bool
}

// Trip 只有真正完成跳闸的调用方拿到 true
func (b *Breaker) Trip() bool {
	return b.tripped.CompareAndSwap(false, true)
}

func (b *Breaker) Tripped() bool {
	return b.tripped.Load()
}

// State 跨请求共享的可变状态，归 Pipeline 实例所有
type State struct {
	Remote        Breaker
	ImageAnalysis Breaker
}

func NewState() *State {
	return &State{}
}
