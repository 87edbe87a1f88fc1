package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"chatd/internal/session"
	"chatd/pkg/types"
)

// chatService is the part of the manager the REPL drives.
type chatService interface {
	Respond(ctx context.Context, input string) (*session.Stream, error)
	Stop()
	Clear() error
	History() []types.Turn
}

// lineReader reads one line of user input. *liner.State satisfies it.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

type repl struct {
	svc        chatService
	in         lineReader
	out        io.Writer
	interrupts <-chan os.Signal
	// onLine records accepted input, e.g. into the line editor history.
	onLine func(string)
}

const replHelp = `Commands:
  /clear    forget the conversation
  /history  print the conversation
  /quit     leave (Ctrl+D works too)
Ctrl+C while the model is answering stops the answer.`

// run reads lines until EOF, an aborted prompt or /quit.
func (r *repl) run(ctx context.Context) error {
	for {
		line, err := r.in.Prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r.onLine != nil {
			r.onLine(line)
		}
		if strings.HasPrefix(line, "/") {
			quit, err := r.command(line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}
		if err := r.turn(ctx, line); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) command(line string) (quit bool, err error) {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		if err := r.svc.Clear(); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "(conversation cleared)")
	case "/history":
		turns := r.svc.History()
		if len(turns) == 0 {
			fmt.Fprintln(r.out, "(empty)")
		}
		for _, t := range turns {
			fmt.Fprintf(r.out, "[%s] %s\n", t.Role, t.Content)
		}
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", line)
	}
	return false, nil
}

// turn streams one answer to out. An interrupt stops the generation; the
// stream still ends normally.
func (r *repl) turn(ctx context.Context, input string) error {
	// drop interrupts that arrived while idle
	for drained := false; !drained; {
		select {
		case <-r.interrupts:
		default:
			drained = true
		}
	}
	st, err := r.svc.Respond(ctx, input)
	if err != nil {
		return err
	}
	frags := st.Fragments()
	for frags != nil {
		select {
		case f, ok := <-frags:
			if !ok {
				frags = nil
				continue
			}
			fmt.Fprint(r.out, f)
		case <-r.interrupts:
			r.svc.Stop()
		}
	}
	res := st.Wait()
	switch res.FinishReason {
	case session.FinishCancelled:
		fmt.Fprintln(r.out, " [stopped]")
	case session.FinishLength:
		fmt.Fprintln(r.out, " [context full]")
	case session.FinishFull:
		fmt.Fprintln(r.out, " [input too long]")
	default:
		fmt.Fprintln(r.out)
	}
	return res.Err
}

func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chatd", "chat_history")
}

func newChatCmd(g *globalOpts) *cobra.Command {
	var mf modelFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a model in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			mf.apply(cmd, &cfg)
			if g.logLevel == "" {
				// keep the terminal for the conversation unless asked otherwise
				cfg.LogLevel = "warn"
			}
			log := newLogger(cfg.LogLevel)

			mgr, st, err := buildManager(cfg, log, nil)
			if err != nil {
				return err
			}
			defer func() {
				if st != nil {
					_ = st.Close()
				}
			}()
			defer func() { _ = mgr.Close() }()

			ctx := context.Background()
			if err := mgr.EnsureModel(ctx, cfg.Model); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if n := len(mgr.History()); n > 0 {
				fmt.Fprintf(out, "(restored %d turns; /history to show, /clear to forget)\n", n)
			}

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			hist := historyFile()
			if f, err := os.Open(hist); err == nil {
				_, _ = line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if err := os.MkdirAll(filepath.Dir(hist), 0o755); err != nil {
					return
				}
				if f, err := os.Create(hist); err == nil {
					_, _ = line.WriteHistory(f)
					f.Close()
				}
			}()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, os.Interrupt)
			defer signal.Stop(sigc)

			r := &repl{svc: mgr, in: line, out: out, interrupts: sigc, onLine: line.AppendHistory}
			return r.run(ctx)
		},
	}
	mf.register(cmd)
	return cmd
}
