package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/proteinchat/proteinchat-go/pkg/embedding"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
	"github.com/proteinchat/proteinchat-go/pkg/pathguard"
	"github.com/proteinchat/proteinchat-go/pkg/proteinchat"
	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var embeddingPath string
	cmd := &cobra.Command{
		Use:   "chat [key=value...]",
		Short: "Chat about proteins interactively",
		Args:  overrideArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, logger, err := opts.newApp(cmd.Context(), args)
			if err != nil {
				return err
			}
			guard, err := pathguard.New(app.Config().Server.EmbeddingRoot)
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), app, replOptions{
				Verbose: opts.verbose,
				Logger:  logger,
				Guard:   guard,
				Initial: embeddingPath,
			}, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&embeddingPath, "embedding", "", "protein embedding to upload before the first question")
	return cmd
}

// replOptions configures REPL behavior.
type replOptions struct {
	Verbose bool
	Logger  loggerpkg.Logger
	Guard   pathguard.Guard
	Initial string
}

// repl is the state of one interactive session.
type repl struct {
	ctx     context.Context
	app     *proteinchat.App
	opts    replOptions
	session *proteinchat.Session
	out     io.Writer
}

// runREPL starts an interactive REPL session for the given app.
func runREPL(ctx context.Context, app *proteinchat.App, opts replOptions, in io.Reader, out io.Writer) error {
	if app == nil {
		return fmt.Errorf("app is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loggerpkg.Debug(opts.Verbose, opts.Logger, "repl start", nil)

	r := &repl{ctx: ctx, app: app, opts: opts, session: app.NewSession(), out: out}
	printWelcome(out)
	if opts.Initial != "" {
		r.upload(opts.Initial)
	}

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.handleCommand(input); quit {
				break
			}
			continue
		}

		if err := app.Ask(r.session, input); err != nil {
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		answer, err := app.Answer(ctx, r.session, app.AnswerOptions())
		if err != nil {
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\n\n", answer)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func (r *repl) upload(path string) {
	resolved, err := r.opts.Guard.Resolve(path)
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "Error: %v\n\n", err)
		return
	}
	emb, err := embedding.Load(resolved)
	if err != nil {
		_, _ = fmt.Fprintf(r.out, "Error: %v\n\n", err)
		return
	}
	if err := r.app.Upload(r.session, emb); err != nil {
		_, _ = fmt.Fprintf(r.out, "Error: %v\n\n", err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "Received %s (%d residues x %d features).\n\n", emb.Name, emb.Rows(), emb.Dim())
}

// handleCommand runs a slash command and reports whether to quit.
func (r *repl) handleCommand(input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	switch strings.ToLower(cmd) {
	case "/help", "/h":
		printHelp(r.out)
	case "/reset", "/clear", "/c":
		r.app.Reset(r.session)
		_, _ = fmt.Fprintln(r.out, "Conversation and uploaded proteins cleared.")
		_, _ = fmt.Fprintln(r.out)
	case "/upload", "/u":
		if strings.TrimSpace(arg) == "" {
			_, _ = fmt.Fprintln(r.out, "Usage: /upload <path to .npy or .json embedding>")
			_, _ = fmt.Fprintln(r.out)
			return false
		}
		r.upload(strings.TrimSpace(arg))
	case "/history":
		conv := r.session.Conversation
		if len(conv.Messages) == 0 {
			_, _ = fmt.Fprintln(r.out, "(empty)")
		}
		for _, m := range conv.Messages {
			_, _ = fmt.Fprintf(r.out, "%s: %s\n", m.Role, m.Content)
		}
		_, _ = fmt.Fprintln(r.out)
	case "/quit", "/exit", "/q":
		_, _ = fmt.Fprintln(r.out, "Goodbye!")
		return true
	default:
		_, _ = fmt.Fprintf(r.out, "Unknown command: %s. Type /help for available commands.\n\n", input)
	}
	return false
}

func printWelcome(out io.Writer) {
	_, _ = fmt.Fprintln(out, "=== ProteinChat - Interactive Mode ===")
	_, _ = fmt.Fprintln(out, "Upload a protein embedding, then ask about it.")
	printHelp(out)
}

func printHelp(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  /upload <path> - Upload a protein embedding (.npy or .json)")
	_, _ = fmt.Fprintln(out, "  /reset         - Clear conversation and uploaded proteins")
	_, _ = fmt.Fprintln(out, "  /history       - Show the conversation so far")
	_, _ = fmt.Fprintln(out, "  /help          - Show this help message")
	_, _ = fmt.Fprintln(out, "  /quit          - Exit the program")
	_, _ = fmt.Fprintln(out)
}
