package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/app"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/chat"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	sess := a.Sessions.Create()
	repl := &chatREPL{app: a, sess: sess, out: out}

	fmt.Fprintf(out, "deepseek-rag v%s (model: %s)\n", Version, cfg.FullModelName())
	fmt.Fprintln(out, `Type a question, or /help for commands.`)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := repl.command(ctx, line); done {
				return nil
			}
			continue
		}

		repl.turn(ctx, line)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// chatREPL holds the interactive loop state.
type chatREPL struct {
	app  *app.App
	sess *session.Session
	out  io.Writer
}

// turn runs one question through the engine, streaming output as it
// arrives.
func (r *chatREPL) turn(ctx context.Context, input string) {
	events := chat.Events{
		Notice: func(notice string) {
			fmt.Fprintf(r.out, "[notice] %s\n", notice)
		},
		Sources: func(sources []retrieval.Result) {
			fmt.Fprintf(r.out, "[sources] %d document(s)\n", len(sources))
		},
		Reasoning: func(reasoning string) {
			fmt.Fprintf(r.out, "--- thinking ---\n%s\n--- answer ---\n", reasoning)
		},
		Visible: func(delta string) {
			fmt.Fprint(r.out, delta)
		},
	}

	_, err := r.app.Engine.Run(ctx, r.sess, input, events)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out)
}

// command handles slash commands. Returns true when the loop should end.
func (r *chatREPL) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	settings := r.sess.Settings()

	switch fields[0] {
	case "/exit", "/quit":
		return true

	case "/help":
		fmt.Fprintln(r.out, `Commands:
  /rag on|off        toggle document retrieval
  /web on|off        toggle web search fallback
  /force on|off      always use web search
  /threshold <0..1>  similarity threshold (0 admits everything)
  /topk <n>          number of retrieval results
  /add <path|url>    ingest a file or web page
  /sources           list ingested sources
  /settings          show current settings
  /clear             clear conversation history
  /exit              quit`)

	case "/rag", "/web", "/force":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			fmt.Fprintf(r.out, "usage: %s on|off\n", fields[0])
			return false
		}
		on := fields[1] == "on"
		switch fields[0] {
		case "/rag":
			settings.RAGEnabled = on
		case "/web":
			settings.WebSearchEnabled = on
		case "/force":
			settings.ForceWebSearch = on
		}
		r.sess.UpdateSettings(settings)
		fmt.Fprintf(r.out, "%s %s\n", strings.TrimPrefix(fields[0], "/"), fields[1])

	case "/threshold":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: /threshold <0..1>")
			return false
		}
		v, err := strconv.ParseFloat(fields[1], 32)
		if err != nil || v < 0 || v > 1 {
			fmt.Fprintln(r.out, "threshold must be a number in [0, 1]")
			return false
		}
		settings.SimilarityThreshold = float32(v)
		r.sess.UpdateSettings(settings)
		fmt.Fprintf(r.out, "threshold set to %.2f\n", v)

	case "/topk":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: /topk <n>")
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			fmt.Fprintln(r.out, "top-k must be a positive integer")
			return false
		}
		settings.TopK = n
		r.sess.UpdateSettings(settings)
		fmt.Fprintf(r.out, "top-k set to %d\n", n)

	case "/add":
		if len(fields) != 2 {
			fmt.Fprintln(r.out, "usage: /add <path|url>")
			return false
		}
		r.add(ctx, fields[1])

	case "/sources":
		sources := r.sess.Sources()
		if len(sources) == 0 {
			fmt.Fprintln(r.out, "no sources ingested")
			return false
		}
		for _, s := range sources {
			fmt.Fprintf(r.out, "  %s\n", s)
		}

	case "/settings":
		fmt.Fprintf(r.out, "rag=%v web=%v force=%v threshold=%.2f topk=%d\n",
			settings.RAGEnabled, settings.WebSearchEnabled,
			settings.ForceWebSearch, settings.SimilarityThreshold, settings.TopK)

	case "/clear":
		r.sess.Clear()
		fmt.Fprintln(r.out, "history cleared")

	default:
		fmt.Fprintf(r.out, "unknown command %s, try /help\n", fields[0])
	}
	return false
}

// add ingests a local file or a URL into the knowledge base.
func (r *chatREPL) add(ctx context.Context, target string) {
	var chunks int
	var err error
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		chunks, err = r.app.Ingestor.IngestURL(ctx, target)
	} else {
		chunks, err = r.app.Ingestor.IngestFile(ctx, target)
	}
	if err != nil {
		fmt.Fprintf(r.out, "ingest failed: %v\n", err)
		return
	}
	r.sess.AddSource(target)
	fmt.Fprintf(r.out, "indexed %s (%d chunks)\n", target, chunks)
}
