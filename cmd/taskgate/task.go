package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/pkg/client"
	"github.com/taskgate/taskgate/pkg/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks on a running taskgate instance",
}

// apiClient builds a client from the shared connection flags
func apiClient(cmd *cobra.Command) (*client.Client, error) {
	base, _ := cmd.Flags().GetString("api-base")
	token, _ := cmd.Flags().GetString("token")

	if envBase := os.Getenv("TASKGATE_API_BASE"); base == "" && envBase != "" {
		base = envBase
	}
	if envToken := os.Getenv("TASKGATE_OPERATOR_TOKEN"); token == "" && envToken != "" {
		token = envToken
	}
	if base == "" {
		base = "http://localhost:8000"
	}

	return client.New(client.Options{BaseURL: base, Token: token})
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("api-base", "", "Taskgate base URL (or TASKGATE_API_BASE)")
	cmd.Flags().String("token", "", "Operator token (or TASKGATE_OPERATOR_TOKEN)")
}

func printTasks(tasks []*types.TaskRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK ID\tSERVICE\tUSER\tSTATUS\tUPDATED")
	for _, task := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			task.TaskID, task.Service, task.UserID, task.Status,
			task.UpdatedAt.Format(time.RFC3339))
	}
	w.Flush()
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks. With --service and --user the listing is scoped to that
user's tasks; with only --service it covers the whole service; with
neither it covers every live task (admin scope).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		service, _ := cmd.Flags().GetString("service")
		user, _ := cmd.Flags().GetString("user")
		ctx := context.Background()

		var tasks []*types.TaskRecord
		switch {
		case service != "" && user != "":
			tasks, err = c.ListUserTasks(ctx, service, user)
		case service != "":
			tasks, err = c.ListServiceTasks(ctx, service)
		default:
			tasks, err = c.ListAllTasks(ctx)
		}
		if err != nil {
			return err
		}

		printTasks(tasks)
		return nil
	},
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new task",
	Long: `Submit a task for a service and user. Parameters are passed as
repeatable --param key=value flags and forwarded to the scheduler
untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		service, _ := cmd.Flags().GetString("service")
		user, _ := cmd.Flags().GetString("user")
		params, _ := cmd.Flags().GetStringSlice("param")

		parameters := map[string]string{}
		for _, p := range params {
			key, value, found := strings.Cut(p, "=")
			if !found {
				return fmt.Errorf("invalid parameter %q, expected key=value", p)
			}
			parameters[key] = value
		}

		taskID, status, err := c.CreateTask(context.Background(), service, user, parameters)
		if err != nil {
			return err
		}

		fmt.Printf("Task %s submitted (status: %s)\n", taskID, status)
		return nil
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show a task with its logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		service, _ := cmd.Flags().GetString("service")
		user, _ := cmd.Flags().GetString("user")

		task, err := c.GetTask(context.Background(), service, user, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Task:    %s\nService: %s\nUser:    %s\nStatus:  %s\nCreated: %s\nUpdated: %s\n",
			task.TaskID, task.Service, task.UserID, task.Status,
			task.CreatedAt.Format(time.RFC3339), task.UpdatedAt.Format(time.RFC3339))
		if len(task.Logs) > 0 {
			fmt.Println("Logs:")
			for _, entry := range task.Logs {
				timestamp, message := types.SplitLogEntry(entry)
				fmt.Printf("  %s  %s\n", timestamp, message)
			}
		}
		return nil
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Request cancellation of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		service, _ := cmd.Flags().GetString("service")
		user, _ := cmd.Flags().GetString("user")

		task, err := c.CancelTask(context.Background(), service, user, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Task %s: %s\n", task.TaskID, task.Status)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Cancel and remove a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		service, _ := cmd.Flags().GetString("service")
		user, _ := cmd.Flags().GetString("user")

		task, err := c.DeleteTask(context.Background(), service, user, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Task %s deleted (last status: %s)\n", task.TaskID, task.Status)
		return nil
	},
}

var taskUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users with live tasks in a service",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		service, _ := cmd.Flags().GetString("service")

		users, err := c.ListUsers(context.Background(), service)
		if err != nil {
			return err
		}

		for _, user := range users {
			fmt.Println(user)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{
		taskListCmd, taskSubmitCmd, taskGetCmd, taskCancelCmd, taskDeleteCmd, taskUsersCmd,
	} {
		addConnectionFlags(cmd)
		cmd.Flags().String("service", "", "Service name")
		cmd.Flags().String("user", "", "User id")
		taskCmd.AddCommand(cmd)
	}

	_ = taskSubmitCmd.MarkFlagRequired("service")
	_ = taskSubmitCmd.MarkFlagRequired("user")
	_ = taskGetCmd.MarkFlagRequired("service")
	_ = taskCancelCmd.MarkFlagRequired("service")
	_ = taskDeleteCmd.MarkFlagRequired("service")
	_ = taskUsersCmd.MarkFlagRequired("service")

	taskSubmitCmd.Flags().StringSlice("param", nil, "Task parameter as key=value (repeatable)")
}
