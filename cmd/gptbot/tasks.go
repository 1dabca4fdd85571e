package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexeyavdey/gptbot/internal/config"
	"github.com/alexeyavdey/gptbot/internal/store"
	"github.com/alexeyavdey/gptbot/internal/types"
)

// openStore wires just config, logger and store for the direct task
// utilities, which never touch the LLM.
func openStore() (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	return store.Open(cfg.Storage.DatabasePath, logger)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tasks, err := st.ListTasks(userID, "")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return nil
	}
	for _, t := range tasks {
		fmt.Fprintf(out, "%s  [%s/%s]  %s\n", t.ID, t.Status, t.Priority, t.Title)
	}
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	priority := types.TaskPriority(taskPriority)
	if !priority.Valid() {
		return fmt.Errorf("invalid priority %q", taskPriority)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.EnsureUser(userID); err != nil {
		return err
	}
	title := strings.Join(args, " ")
	id, err := st.CreateTask(userID, title, "", priority, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s: %s\n", id, title)
	return nil
}
