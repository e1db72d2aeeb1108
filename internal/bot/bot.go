package bot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/liao/plantcare/internal/answer"
	"github.com/liao/plantcare/internal/chat"
)

const Greeting = "Hola, soy tu asistente de plantas. Escribe tu pregunta, /status, /reset o /quit."

// Answerer answer.Pipeline 的窄接口
type Answerer interface {
	Answer(ctx context.Context, req answer.Request) answer.Response
	Strategies() []string
	State() *answer.State
}

// Bot 控制台对话循环
type Bot struct {
	pipeline Answerer
	chat     *chat.Manager
	window   int
	in       io.Reader
	out      io.Writer
}

func New(p Answerer, chatMgr *chat.Manager, window int, in io.Reader, out io.Writer) *Bot {
	if window <= 0 {
		window = chat.DefaultWindow
	}
	return &Bot{pipeline: p, chat: chatMgr, window: window, in: in, out: out}
}

// Run 逐行读取输入，EOF、/quit 或 ctx 取消时结束并保存会话
func (b *Bot) Run(ctx context.Context) error {
	defer b.save()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(b.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintln(b.out, Greeting)
	for {
		fmt.Fprint(b.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(b.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(b.out)
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := b.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, line string) (quit bool) {
	switch strings.ToLower(line) {
	case "":
		return false
	case "/quit", "/salir":
		fmt.Fprintln(b.out, "¡Hasta pronto! Cuida bien tus plantas.")
		return true
	case "/reset":
		b.chat.Reset()
		fmt.Fprintln(b.out, "Conversación reiniciada.")
		return false
	case "/status":
		b.status()
		return false
	}

	slog.Info("received message", "text", line)
	history := b.chat.History().Window(b.window)
	resp := b.pipeline.Answer(ctx, answer.Request{Message: line, History: history})
	fmt.Fprintf(b.out, "%s\n\n", resp.Response)

	if resp.Success {
		b.chat.AddUser(line)
		b.chat.AddAssistant(resp.Response)
	}
	return false
}

func (b *Bot) status() {
	state := b.pipeline.State()
	remote := "activo"
	if state.Remote.Tripped() {
		remote = "desactivado (cuota agotada)"
	}
	images := "disponible"
	if state.ImageAnalysis.Tripped() {
		images = "no disponible"
	}
	fmt.Fprintf(b.out, "estrategias: %s\nmodelo remoto: %s\nanálisis de imágenes: %s\nturnos en memoria: %d\n\n",
		strings.Join(b.pipeline.Strategies(), " → "), remote, images, len(b.chat.History()))
}

func (b *Bot) save() {
	if err := b.chat.Save(); err != nil {
		slog.Error("save session failed", "error", err)
	}
}
