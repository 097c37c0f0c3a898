package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/docchat/docchat/ingest"
	"github.com/ZanzyTHEbar/docchat/docchat/session"
)

var chatUser string

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	replyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

const chatHelp = "commands: /upload <path>...  /reset  /history  /quit"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long: `Start an interactive chat. Lines are sent to the model; lines starting with
a slash are commands:

  /upload <path>...   add files to the conversation as context
  /reset              start the conversation over, keeping your name
  /history            print the visible conversation as YAML
  /quit               leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(os.Stderr)
		if err != nil {
			return err
		}
		sess := a.sessions.Create()
		return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), sess, chatUser, a.cfg.Ingest.MaxUploadBytes)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "", "Your name (asked for when omitted)")
	rootCmd.AddCommand(chatCmd)
}

// runChat drives one session from line-oriented input until /quit or EOF.
func runChat(ctx context.Context, in io.Reader, out io.Writer, sess *session.Session, username string, maxUpload int64) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sess.State() != session.StateActive {
		name := username
		username = ""
		if name == "" {
			fmt.Fprint(out, promptStyle.Render("Your name: "))
			if !scanner.Scan() {
				return scanner.Err()
			}
			name = scanner.Text()
		}
		if err := sess.SetUsername(name); err != nil {
			fmt.Fprintln(out, warningStyle.Render("A name is required."))
		}
	}

	fmt.Fprintln(out, successStyle.Render("Hi "+sess.Username()+"!"), hintStyle.Render(chatHelp))

	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			reply, err := sess.OnUserInput(ctx, line)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
				continue
			}
			style := replyStyle
			if session.IsErrorTurn(reply) {
				style = errorStyle
			}
			fmt.Fprintln(out, style.Render(reply.Content))
			continue
		}

		command, rest, _ := strings.Cut(line, " ")
		switch command {
		case "/quit", "/exit":
			return nil
		case "/reset":
			sess.OnReset()
			fmt.Fprintln(out, successStyle.Render("Conversation cleared."))
		case "/history":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(sess.Display()); err != nil {
				return fmt.Errorf("encode history: %w", err)
			}
			if err := enc.Close(); err != nil {
				return fmt.Errorf("encode history: %w", err)
			}
		case "/upload":
			uploadFiles(ctx, out, sess, strings.Fields(rest), maxUpload)
		default:
			fmt.Fprintln(out, warningStyle.Render("Unknown command "+command), hintStyle.Render(chatHelp))
		}
	}
}

func uploadFiles(ctx context.Context, out io.Writer, sess *session.Session, paths []string, maxUpload int64) {
	if len(paths) == 0 {
		fmt.Fprintln(out, warningStyle.Render("usage: /upload <path>..."))
		return
	}

	docs := make([]ingest.Document, 0, len(paths))
	for _, p := range paths {
		raw, err := readLimited(p, maxUpload)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			continue
		}
		docs = append(docs, ingest.Document{Name: filepath.Base(p), Raw: raw})
	}
	if len(docs) == 0 {
		return
	}

	outcomes, err := sess.OnUpload(ctx, docs...)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render(err.Error()))
		return
	}
	for _, o := range outcomes {
		switch o.Kind {
		case ingest.Appended:
			fmt.Fprintln(out, successStyle.Render("✓ "+o.Document+" added"))
		case ingest.Skipped:
			fmt.Fprintln(out, hintStyle.Render("- "+o.Document+": "+o.Reason))
		case ingest.Warned:
			fmt.Fprintln(out, warningStyle.Render("! "+o.Document+": "+o.Reason))
		}
	}
}

// readLimited reads up to limit+1 bytes so an oversized file is still reported by ingest.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
