package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liao/plantcare/internal/ai"
	"github.com/liao/plantcare/internal/chat"
	"github.com/liao/plantcare/internal/rag"
	"github.com/liao/plantcare/internal/sanitize"
	"github.com/liao/plantcare/internal/topic"
)

const (
	StrategyTopicGate = "topic_gate"
	StrategyRemote    = "remote"
	StrategyLocal     = "local"
	StrategyHeuristic = "heuristic"
	StrategyCanned    = "canned"

	BreakerRemote        = "remote"
	BreakerImageAnalysis = "image_analysis"
)

const (
	DefaultRemoteTimeout     = 20 * time.Second
	DefaultLocalTimeout      = 30 * time.Second
	DefaultLocalContextChars = 1500
)

// EmptyMessageResponse 空消息时的提示
const EmptyMessageResponse = "Escribe una pregunta sobre tus plantas y con gusto te ayudo."

// ImageAnalysisUnavailableMessage 图片分析熔断后展示给用户
const ImageAnalysisUnavailableMessage = "El análisis de imágenes no está disponible temporalmente. " +
	"Mientras tanto, describe tu planta y sus síntomas con palabras y te ayudo igual."

// Request 一次提问
type Request struct {
	Message  string
	History  chat.History
	Species  string
	Problems []string
}

// Attempt 一次策略尝试的记录
type Attempt struct {
	Strategy string `json:"strategy"`
	Success  bool   `json:"success"`
	Kind     string `json:"kind,omitempty"`
}

// Response 回答结果，success/response 与 HTTP 层约定一致
type Response struct {
	Success  bool      `json:"success"`
	Response string    `json:"response"`
	Strategy string    `json:"strategy,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Input 交给各策略的上下文；Trusted 是达到可信阈值的子集
type Input struct {
	Question  string
	History   chat.History
	Passages  []ai.Passage
	Trusted   []ai.Passage
	Confident bool
}

// Strategy 回退链中的一环
type Strategy interface {
	Name() string
	Generate(ctx context.Context, in Input) (string, error)
}

// Retriever rag.Retriever 的窄接口
type Retriever interface {
	Retrieve(ctx context.Context, q rag.Query, topK int) ([]rag.Result, error)
	Confident(results []rag.Result) []rag.Result
}

// Gate 领域过滤
type Gate interface {
	IsInDomain(message string) bool
}

type Options struct {
	TopK              int
	HistoryWindow     int
	RemoteTimeout     time.Duration
	LocalTimeout      time.Duration
	LocalContextChars int
}

// Config Remote/Local 为 nil 表示该策略不可用
type Config struct {
	Retriever Retriever
	Gate      Gate
	Remote    Generator
	Local     Generator
	Canned    *Canned
	State     *State
	Metrics   *Metrics
	Options   Options
}

type step struct {
	strategy Strategy
	timeout  time.Duration
}

type Pipeline struct {
	retriever Retriever
	gate      Gate
	state     *State
	metrics   *Metrics
	opts      Options
	steps     []step
	fallback  []step
}

func New(cfg Config) *Pipeline {
	opts := cfg.Options
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = chat.DefaultWindow
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = DefaultRemoteTimeout
	}
	if opts.LocalTimeout <= 0 {
		opts.LocalTimeout = DefaultLocalTimeout
	}
	if opts.LocalContextChars <= 0 {
		opts.LocalContextChars = DefaultLocalContextChars
	}
	state := cfg.State
	if state == nil {
		state = NewState()
	}
	table := cfg.Canned
	if table == nil {
		table = DefaultCanned()
	}

	p := &Pipeline{
		retriever: cfg.Retriever,
		gate:      cfg.Gate,
		state:     state,
		metrics:   cfg.Metrics,
		opts:      opts,
	}
	if cfg.Remote != nil {
		p.steps = append(p.steps, step{&remoteStrategy{gen: cfg.Remote, state: state, metrics: cfg.Metrics}, opts.RemoteTimeout})
	}
	if cfg.Local != nil {
		p.steps = append(p.steps, step{&localStrategy{gen: cfg.Local, contextChars: opts.LocalContextChars}, opts.LocalTimeout})
	}
	canned := step{strategy: &cannedStrategy{table: table}}
	p.steps = append(p.steps, step{strategy: heuristicStrategy{}}, canned)
	p.fallback = []step{canned}
	return p
}

// State 共享熔断状态
func (p *Pipeline) State() *State { return p.state }

// Strategies 按顺序返回回退链中的策略名
func (p *Pipeline) Strategies() []string {
	names := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		names = append(names, s.strategy.Name())
	}
	return names
}

// ImageAnalysisAvailable 外部图片识别服务是否可用
func (p *Pipeline) ImageAnalysisAvailable() bool {
	return !p.state.ImageAnalysis.Tripped()
}

// DisableImageAnalysis 图片识别配额耗尽时由调用方触发
func (p *Pipeline) DisableImageAnalysis() {
	if p.state.ImageAnalysis.Trip() {
		slog.Warn("image analysis disabled for the rest of the process")
		p.metrics.tripped(BreakerImageAnalysis)
	}
}

// Answer 跑完整条回退链，开始尝试策略后总是返回非空回答
func (p *Pipeline) Answer(ctx context.Context, req Request) Response {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return Response{Success: false, Response: EmptyMessageResponse}
	}

	if p.gate != nil && !p.gate.IsInDomain(msg) {
		slog.Info("question outside plant care, skipping retrieval", "message", msg)
		p.metrics.answered(StrategyTopicGate)
		return Response{Success: true, Response: topic.OutOfDomainMessage, Strategy: StrategyTopicGate}
	}

	in := Input{Question: msg, History: req.History.Window(p.opts.HistoryWindow)}
	steps := p.steps
	results := p.retrieve(ctx, rag.Query{Text: msg, Subject: req.Species, Problems: req.Problems})
	if len(results) == 0 {
		slog.Warn("no relevant context, using canned answers", "message", msg)
		steps = p.fallback
	} else {
		in.Passages = toPassages(results)
		in.Trusted = toPassages(p.retriever.Confident(results))
		in.Confident = len(in.Trusted) > 0
	}

	attempts := make([]Attempt, 0, len(steps))
	for _, st := range steps {
		text, err := p.run(ctx, st, in)
		a := Attempt{Strategy: st.strategy.Name(), Success: err == nil}
		if err != nil {
			a.Kind = kindOf(err).String()
			slog.Warn("answer strategy failed, falling back", "strategy", a.Strategy, "kind", a.Kind, "error", err)
		} else {
			slog.Info("answer strategy succeeded", "strategy", a.Strategy)
		}
		p.metrics.attempt(a)
		attempts = append(attempts, a)
		if err != nil {
			continue
		}
		p.metrics.answered(a.Strategy)
		return Response{Success: true, Response: sanitize.Sanitize(text), Strategy: a.Strategy, Attempts: attempts}
	}

	// 预置回答不会失败，走到这里说明回退链被改坏了
	slog.Error("every answer strategy failed", "attempts", len(attempts))
	return Response{Success: true, Response: CapabilityMessage, Strategy: StrategyCanned, Attempts: attempts}
}

func (p *Pipeline) retrieve(ctx context.Context, q rag.Query) []rag.Result {
	if p.retriever == nil {
		return nil
	}
	results, err := p.retriever.Retrieve(ctx, q, p.opts.TopK)
	if err != nil {
		slog.Warn("retrieval failed, answering without context", "error", err)
		return nil
	}
	return results
}

// run 单个策略：超时 + recover，panic 当作传输错误
func (p *Pipeline) run(ctx context.Context, st step, in Input) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ai.GenerationError{Provider: st.strategy.Name(), Kind: ai.KindTransport, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if st.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}
	return st.strategy.Generate(ctx, in)
}

func kindOf(err error) ai.Kind {
	if errors.Is(err, ErrNoMatch) {
		return ai.KindNoMatch
	}
	return ai.KindOf(err)
}

func toPassages(results []rag.Result) []ai.Passage {
	out := make([]ai.Passage, 0, len(results))
	for _, r := range results {
		out = append(out, ai.Passage{Text: r.Text, Source: r.Source, Score: r.Score})
	}
	return out
}
