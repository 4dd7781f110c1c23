package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/export"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	chatFormat    string
	chatOutputDir string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the twin and export transcripts",
}

var chatSendCmd = &cobra.Command{
	Use:   "send <session-id> <message...>",
	Short: "Send one chat message and print the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID("session_id", args[0])
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		reply, err := a.client.SendChat(cmd.Context(), sessionID, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if !reply.Success {
			return fmt.Errorf("the twin could not answer: %s", reply.Response)
		}
		return printReply(cmd.OutOrStdout(), reply.Response)
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Export a session's chat transcript",
	Long: `Export a session's chat transcript (jsonl, md, yaml, json).

Without --output-dir the transcript is written to stdout; with it, to
session-<id>.<ext> in that directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID("session_id", args[0])
		if err != nil {
			return err
		}
		exporter, err := export.NewExporter(chatFormat)
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		messages, err := a.client.ChatHistory(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		history := &internal.ChatHistory{
			SessionID:  sessionID,
			ExportedAt: time.Now().Format(time.RFC3339),
			Messages:   messages,
		}

		if chatOutputDir == "" {
			return exporter.Export(history, cmd.OutOrStdout())
		}
		if err := os.MkdirAll(chatOutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path := filepath.Join(chatOutputDir, "session-"+strconv.Itoa(sessionID)+"."+exporter.Extension())
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := exporter.Export(history, f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to export session %d: %w", sessionID, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("✓ Exported %d message(s) to %s", len(messages), path)))
		return nil
	},
}

// printReply renders markdown on a terminal and writes it verbatim elsewhere
func printReply(out io.Writer, text string) error {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		_, err := fmt.Fprintln(out, text)
		return err
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width-4))
	if err != nil {
		return err
	}
	rendered, err := r.Render(text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(chatSendCmd, chatHistoryCmd)

	chatHistoryCmd.Flags().StringVarP(&chatFormat, "format", "f", "md", "Export format: "+strings.Join(export.Formats, ", "))
	chatHistoryCmd.Flags().StringVarP(&chatOutputDir, "output-dir", "o", "", "Write to a file in this directory instead of stdout")
}
