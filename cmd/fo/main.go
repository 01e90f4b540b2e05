package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"fo-go/internal/app"
	"fo-go/internal/config"
	"fo-go/internal/fo"
	"fo-go/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "fo",
	Short: "File monitoring and organization engine",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Organize Root: %s\n", cfg.Organize.Root)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Organize Root: %s\n", cfg.Organize.Root)
		fmt.Printf("Store:         %s\n", cfg.Store.Type)
		fmt.Printf("Vault:         %s\n", cfg.Vault.Type)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate backup encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		enc := a.Encryptor()
		if enc == nil {
			return fmt.Errorf("encryption is not enabled in config")
		}
		if enc.IsConfigured() {
			return fmt.Errorf("encryption keys already exist")
		}

		passphrase, err := readPassphrase("Passphrase for private key: ")
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := a.Service()

		// Drain domain events so the bus never backs up; print them as a
		// simple activity feed.
		go func() {
			for ev := range svc.Events() {
				line := fmt.Sprintf("%s  %s  %s", ev.At.Format("15:04:05"), ev.Type, ev.Path)
				if ev.Reason != "" {
					line += "  (" + ev.Reason + ")"
				}
				fmt.Println(line)
			}
		}()

		fmt.Println("Engine running. Press Ctrl-C to stop.")
		svc.Run(ctx)
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched folders",
}

var watchAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Start watching a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		abs, err := a.Service().StartWatching(args[0])
		if err != nil {
			return fmt.Errorf("watching folder: %w", err)
		}

		fmt.Printf("Watching %s (active on next run)\n", abs)
		return nil
	},
}

var watchRmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Stop watching a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().StopWatching(args[0]); err != nil {
			return fmt.Errorf("unwatching folder: %w", err)
		}

		fmt.Printf("Stopped watching %s\n", args[0])
		return nil
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		folders, err := a.Service().ListWatchedFolders()
		if err != nil {
			return err
		}

		if len(folders) == 0 {
			fmt.Println("No watched folders.")
			return nil
		}
		for _, f := range folders {
			state := "inactive"
			if f.IsActive {
				state = "active"
			}
			fmt.Printf("%-8s  %s\n", state, f.Path)
		}
		return nil
	},
}

// organize command
var organizeCmd = &cobra.Command{
	Use:   "organize FILE",
	Short: "Organize a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		finalPath, err := a.Service().OrganizeFile(args[0], dest)
		if err != nil {
			return fmt.Errorf("organizing: %w", err)
		}

		fmt.Printf("-> %s\n", finalPath)
		return nil
	},
}

// tag command
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tags, err := a.Service().GetTags()
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Printf("%s  %-12s  %s\n", t.ID, t.Name, t.Color)
		}
		return nil
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		color, _ := cmd.Flags().GetString("color")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tag, err := a.Service().CreateTag(args[0], color)
		if err != nil {
			return err
		}
		fmt.Printf("Created tag %s (%s)\n", tag.Name, tag.ID)
		return nil
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm TAG_ID",
	Short: "Delete a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Service().DeleteTag(args[0])
	},
}

var tagAssignCmd = &cobra.Command{
	Use:   "assign FILE_ID TAG_ID",
	Short: "Assign a tag to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Service().AssignTag(args[0], args[1])
	},
}

// rule command
var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage organization rules",
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rules, err := a.Service().GetRules()
		if err != nil {
			return err
		}
		for _, r := range rules {
			fmt.Printf("%4d  %-20s  %-30s  -> %s\n", r.Priority, r.Name, r.Pattern, r.Destination)
		}
		return nil
	},
}

var ruleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		pattern, _ := cmd.Flags().GetString("pattern")
		dest, _ := cmd.Flags().GetString("dest")
		priority, _ := cmd.Flags().GetInt("priority")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rule, err := a.Service().CreateRule(name, pattern, dest, priority)
		if err != nil {
			return err
		}
		fmt.Printf("Created rule %s (%s)\n", rule.Name, rule.ID)
		return nil
	},
}

var ruleRmCmd = &cobra.Command{
	Use:   "rm RULE_ID",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Service().DeleteRule(args[0])
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search tracked files",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		ext, _ := cmd.Flags().GetString("ext")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Service().SearchFiles(fo.SearchQuery{
			Text:      query,
			Extension: ext,
			TagIDs:    tags,
		})
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, rec := range recs {
			marker := " "
			if rec.LastError != "" {
				marker = "!"
			}
			fmt.Printf("%s %s  %s\n", marker, rec.ID, rec.Path)
		}
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage file backups",
}

var backupAddCmd = &cobra.Command{
	Use:   "add FILE_ID",
	Short: "Enqueue a file for backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().EnqueueBackup(args[0]); err != nil {
			return fmt.Errorf("enqueueing backup: %w", err)
		}
		fmt.Println("Backup enqueued; runs on next 'fo run'.")
		return nil
	},
}

var backupStatusCmd = &cobra.Command{
	Use:   "status FILE_ID",
	Short: "Show a file's backup status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.Service().BackupStatus(args[0])
		if err != nil {
			return err
		}
		if task == nil {
			fmt.Println("No backup task for this file.")
			return nil
		}
		printTask(task)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.Service().ListBackupTasks(model.BackupStatus(status))
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No backup tasks.")
			return nil
		}
		for _, task := range tasks {
			printTask(task)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore FILE_ID DEST",
	Short: "Restore a backed-up file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if enc := a.Encryptor(); enc != nil && enc.IsConfigured() {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := a.Service().RestoreBackup(cmd.Context(), args[0], args[1], passphrase); err != nil {
			return fmt.Errorf("restoring: %w", err)
		}
		fmt.Printf("Restored to %s\n", args[1])
		return nil
	},
}

func printTask(task *model.BackupTask) {
	next := ""
	if task.NextAttemptAt != nil {
		next = "  next:" + task.NextAttemptAt.Format("2006-01-02 15:04:05")
	}
	reason := ""
	if task.Reason != "" {
		reason = "  (" + task.Reason + ")"
	}
	fmt.Printf("%s  %-9s  attempts:%d%s%s\n", task.FileID, task.Status, task.AttemptCount, next, reason)
}

// readPassphrase prompts on stderr and reads without echo when stdin is a
// terminal.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(data), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	// watch subcommands
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRmCmd)
	watchCmd.AddCommand(watchListCmd)

	// tag subcommands
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagAddCmd.Flags().String("color", "#808080", "Display color")
	tagCmd.AddCommand(tagRmCmd)
	tagCmd.AddCommand(tagAssignCmd)

	// rule subcommands
	ruleCmd.AddCommand(ruleListCmd)
	ruleCmd.AddCommand(ruleAddCmd)
	ruleAddCmd.Flags().String("name", "", "Rule name")
	ruleAddCmd.Flags().String("pattern", "", "Glob or comma-separated extension list")
	ruleAddCmd.Flags().String("dest", "", "Destination folder template")
	ruleAddCmd.Flags().Int("priority", 100, "Evaluation priority (lower first)")
	ruleCmd.AddCommand(ruleRmCmd)

	// backup subcommands
	backupCmd.AddCommand(backupAddCmd)
	backupCmd.AddCommand(backupStatusCmd)
	backupCmd.AddCommand(backupListCmd)
	backupListCmd.Flags().String("status", "", "Filter by status (pending, in_flight, done, failed)")
	backupCmd.AddCommand(backupRestoreCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(organizeCmd)
	organizeCmd.Flags().String("dest", "", "Explicit destination folder (bypasses rules)")
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(backupCmd)
}
