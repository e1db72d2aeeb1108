package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/liao/plantcare/internal/ai"
	"github.com/liao/plantcare/internal/sanitize"
)

// 远程最多调用两次，第二次带纠正指令
const remoteAttempts = 2

// Generator 模型适配器，ai.Gemini 和 ai.Ollama 都满足
type Generator interface {
	Name() string
	Generate(ctx context.Context, req ai.Request) (string, error)
}

type remoteStrategy struct {
	gen     Generator
	state   *State
	metrics *Metrics
}

func (s *remoteStrategy) Name() string { return StrategyRemote }

func (s *remoteStrategy) Generate(ctx context.Context, in Input) (string, error) {
	if s.state.Remote.Tripped() {
		return "", &ai.GenerationError{Provider: s.gen.Name(), Kind: ai.KindUnavailable, Err: errors.New("remote breaker tripped")}
	}

	userPrompt := ai.BuildUserPrompt(in.Question, in.Passages, in.Confident)
	req := ai.Request{
		System:  ai.BuildSystemPrompt(),
		History: in.History,
		Prompt:  userPrompt,
	}

	var text string
	for attempt := 1; attempt <= remoteAttempts; attempt++ {
		out, err := s.gen.Generate(ctx, req)
		if err != nil {
			quota := ai.KindOf(err) == ai.KindQuota
			if quota && s.state.Remote.Trip() {
				slog.Warn("remote quota exhausted, disabling remote generation", "provider", s.gen.Name())
				s.metrics.tripped(BreakerRemote)
			}
			// 纠正重试失败时沿用第一次的输出，交给最终清洗
			if text != "" && !quota {
				slog.Warn("corrective retry failed, keeping first output", "provider", s.gen.Name(), "error", err)
				break
			}
			return "", err
		}
		text = out
		if !sanitize.HasMarkup(out) {
			break
		}
		slog.Debug("remote output still has markup, retrying with corrective instruction", "attempt", attempt)
		req.Prompt = userPrompt + "\n\n" + ai.CorrectiveInstruction
	}

	if strings.TrimSpace(sanitize.Light(text)) == "" {
		return "", &ai.GenerationError{Provider: s.gen.Name(), Kind: ai.KindEmpty, Err: errors.New("empty after sanitizing")}
	}
	return text, nil
}

type localStrategy struct {
	gen          Generator
	contextChars int
}

func (s *localStrategy) Name() string { return StrategyLocal }

func (s *localStrategy) Generate(ctx context.Context, in Input) (string, error) {
	prompt := ai.BuildLocalPrompt(in.Question, in.History, in.Passages, s.contextChars)
	out, err := s.gen.Generate(ctx, ai.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(sanitize.Light(out))
	if text == "" {
		return "", &ai.GenerationError{Provider: s.gen.Name(), Kind: ai.KindEmpty, Err: errors.New("empty after sanitizing")}
	}
	return text, nil
}
