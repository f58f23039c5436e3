package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/client/api"
	"github.com/zhouzirui/poem-tavern/backend/internal/client/chat"
	"github.com/zhouzirui/poem-tavern/backend/internal/client/playback"
	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	"github.com/zhouzirui/poem-tavern/backend/internal/logging"
	chatmodel "github.com/zhouzirui/poem-tavern/backend/internal/model/chat"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	apiURL := flag.String("api", cfg.Client.APIURL, "poem server base URL")
	timeout := flag.Duration("timeout", cfg.Client.Timeout, "per-request timeout")
	flag.Parse()

	logger, flush, err := logging.Install(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer flush()
	// 聊天界面只输出警告以上的日志
	logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.New(*apiURL, *timeout)

	poet, err := client.Poet(ctx)
	if err != nil {
		logger.Warn("could not fetch poet, using built-in persona", zap.Error(err))
		poet = persona.Default()
	}

	opts := chat.Options{Welcome: poet.OpeningLine, Logger: logger}

	player, err := playback.NewExecPlayer(cfg.Client.PlayerCommand)
	if err != nil {
		logger.Warn("recitation disabled", zap.Error(err))
	} else {
		engine := playback.NewSpeechEngine(client, player, uuid.NewString(), poet.VoiceID, logger)
		opts.Reciter = playback.NewController(engine, logger)
	}

	session := chat.NewSession(client, opts)
	defer session.Close()

	view := &transcriptView{out: os.Stdout, session: session, poet: poet.Name}
	session.OnChange(view.render)
	if controller, ok := opts.Reciter.(*playback.Controller); ok {
		controller.OnChange(view.renderRecitation)
	}

	fmt.Fprintf(os.Stdout, "%s, %s. Type a topic, /read <id> to toggle recitation, /quit to leave.\n", poet.Name, poet.Title)
	view.render()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				session.Wait()
				return
			}
			if quit := handleLine(ctx, session, view, line); quit {
				return
			}
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func handleLine(ctx context.Context, session *chat.Session, view *transcriptView, line string) bool {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "/quit":
		return true
	case strings.HasPrefix(trimmed, "/read"):
		arg := strings.TrimSpace(strings.TrimPrefix(trimmed, "/read"))
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			view.notice("usage: /read <message id>")
			return false
		}
		switch err := session.ToggleRecitation(chatmodel.MessageID(id)); {
		case errors.Is(err, chat.ErrNotRecitable):
			view.notice(fmt.Sprintf("message %d cannot be recited", id))
		case errors.Is(err, chat.ErrRecitationUnavailable):
			view.notice("recitation is not available (no audio player configured)")
		case err != nil:
			view.notice("recitation failed to start")
		}
		return false
	}

	if !session.Submit(ctx, line) {
		if awaiting, topic := session.Awaiting(); awaiting {
			view.notice(fmt.Sprintf("still writing about %q, please wait", strings.TrimSpace(topic)))
		}
	}
	return false
}

// transcriptView 在新消息到达时打印到终端
type transcriptView struct {
	out     io.Writer
	session *chat.Session
	poet    string

	mu      sync.Mutex
	printed chatmodel.MessageID
}

func (v *transcriptView) render() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, m := range v.session.Messages() {
		if m.ID <= v.printed {
			continue
		}
		author := "You"
		if m.FromBot() {
			author = v.poet
		}
		fmt.Fprintf(v.out, "\n[%d] %s %s:\n%s\n", m.ID, m.Timestamp(), author, m.Text)
		v.printed = m.ID
	}

	if awaiting, topic := v.session.Awaiting(); awaiting {
		fmt.Fprintf(v.out, "… %s is writing a poem about %q\n", v.poet, strings.TrimSpace(topic))
	}
}

func (v *transcriptView) renderRecitation() {
	id, speaking := v.session.ActiveRecitation()
	if speaking {
		v.notice(fmt.Sprintf("reciting message %d (/read %d to stop)", id, id))
		return
	}
	v.notice("recitation stopped")
}

func (v *transcriptView) notice(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "(%s)\n", msg)
}
