package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/hdt-console/internal"
	"github.com/spf13/cobra"
)

var (
	taskProfileID int
	taskType      string
	taskPriority  int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Create and list AI tasks",
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <session-id> <command...>",
	Short: "Ask the twin to execute a task",
	Example: `  hdt-console tasks create 12 --profile 3 --type code_generation \
    "write a function that parses ISO dates"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseID("session_id", args[0])
		if err != nil {
			return err
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		task, err := a.client.CreateTask(cmd.Context(), internal.CreateTaskRequest{
			SessionID: sessionID,
			ProfileID: taskProfileID,
			TaskType:  taskType,
			Command:   strings.Join(args[1:], " "),
			Priority:  taskPriority,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✓ Task %d %s", task.TaskID, task.TaskStatus)))
		if task.ErrorMessage != "" {
			fmt.Fprintln(out, errorStyle.Render(task.ErrorMessage))
		}
		if resp, ok := task.ResultData["response"].(string); ok && resp != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, resp)
		}
		return nil
	},
}

var tasksListCmd = &cobra.Command{
	Use:   "list [session-id]",
	Short: "List recent tasks, optionally for one session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := 0
		if len(args) == 1 {
			id, err := parseID("session_id", args[0])
			if err != nil {
				return err
			}
			sessionID = id
		}
		a, err := newAuthedApp()
		if err != nil {
			return err
		}
		tasks, err := a.client.ListTasks(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		displayTasks(cmd.OutOrStdout(), tasks)
		return nil
	},
}

func displayTasks(out io.Writer, tasks []internal.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, headerStyle.Render("No tasks"))
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSESSION\tTYPE\tSTATUS\tPRIORITY\tCOMMAND")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%s\n",
			t.TaskID, t.SessionID, orDash(t.TaskType), t.TaskStatus, t.Priority, truncate(t.CommandText, 48))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksCreateCmd, tasksListCmd)

	tasksCreateCmd.Flags().IntVarP(&taskProfileID, "profile", "p", 0, "Profile the task runs as")
	tasksCreateCmd.Flags().StringVar(&taskType, "type", "general", "Task type, e.g. code_generation or document_creation")
	tasksCreateCmd.Flags().IntVar(&taskPriority, "priority", 5, "Priority from 1 (highest) to 10")
}
