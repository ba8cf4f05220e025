package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/spetersoncode/adkchat/cache"
	"github.com/spetersoncode/adkchat/stream"
)

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Chat with the agent in the terminal",
	Long: `Chat sends each line you type to the agent and renders its reply as it
streams. Without a session id a new session is created on the first message.
Press Ctrl-C during a reply to stop it. Type /quit or send EOF to leave.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newCache()
		defer c.Close()

		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return chat(cmd.Context(), c, id, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func chat(ctx context.Context, c *cache.Cache, id string, in io.Reader, out io.Writer) error {
	st := newStyles(lipgloss.NewRenderer(out))
	p := newPrinter(out, st, true)

	if id != "" {
		s, err := c.Load(ctx, id)
		if err != nil {
			return err
		}
		p.render(s)
		p.finish(s)
	}
	p.showUser = false

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, st.User.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		var run *stream.Run
		var err error
		if id == "" {
			id, run, err = c.StartConversation(ctx, line)
			if err == nil {
				fmt.Fprintln(out, st.Dim.Render("session "+id))
			}
		} else {
			run, err = c.SendMessage(ctx, id, line)
		}
		if err != nil {
			fmt.Fprintln(out, st.Error.Render("error: "+err.Error()))
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		follow(turnCtx, c, run, p)
		stop()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// follow renders the conversation of run until the run ends. When ctx is
// done first, the run is stopped.
func follow(ctx context.Context, c *cache.Cache, run *stream.Run, p *printer) {
	id := run.ConversationID()
	updates, cancel := c.Subscribe(id)
	defer cancel()

	for {
		select {
		case s, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			p.render(s)
		case <-run.Done():
			s := c.Get(id)
			p.render(s)
			p.finish(s)
			if run.Phase() == stream.PhaseFailed && run.InvocationID() != "" {
				fmt.Fprintln(p.w, p.st.Dim.Render(fmt.Sprintf("resume with: adkchat resume %s %s", id, run.InvocationID())))
			}
			return
		case <-ctx.Done():
			c.Stop(id)
			<-run.Done()
			p.finish(c.Get(id))
			fmt.Fprintln(p.w, p.st.Dim.Render("stopped"))
			return
		}
	}
}
