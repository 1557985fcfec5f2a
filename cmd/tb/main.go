package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"teamboard/internal/app"
	"teamboard/internal/config"
	"teamboard/internal/db"
	"teamboard/internal/domain"
	"teamboard/internal/events"
	"teamboard/internal/metrics"
	"teamboard/internal/migrate"
	"teamboard/internal/notify"
	"teamboard/internal/repo"
	"teamboard/internal/server"
	"teamboard/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Teamboard CLI",
	Long: `Teamboard tracks a team's tasks: who owns what, how far along it is,
and which due dates need attention.
- Tasks: work items with an owner, a due date, and a 0-100 progress value.
- Subtasks: a checklist on a task; when present, progress is derived from it.
- Dashboard: your tasks bucketed into urgent, pending, and completed.
- Team: per-member totals and average progress.
- Alerts: due-date alert thresholds, global and per task (delivery is external).
Run 'tb serve' for a local backend, then 'tb login' to start.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("TEAMBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(serveCmd())
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the Teamboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if email == "" {
					return fmt.Errorf("--email required")
				}
				if password == "" {
					fmt.Print("password: ")
					reader := bufio.NewReader(os.Stdin)
					line, err := reader.ReadString('\n')
					if err != nil {
						return err
					}
					password = strings.TrimSpace(line)
				}
				ok, err := a.Session.Login(ctx, email, password)
				if err != nil {
					if errors.Is(err, domain.ErrAuthenticationFailed) {
						return fmt.Errorf("login failed: invalid credentials")
					}
					return err
				}
				if !ok {
					return fmt.Errorf("login failed")
				}
				u, _ := a.Session.Current()
				fmt.Printf("Welcome, %s!\n", u.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Session.Logout()
				fmt.Println("Logged out.")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, ok := a.Session.Current()
				if !ok {
					fmt.Println("Not logged in.")
					return nil
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskProgressCmd())
	task.AddCommand(taskSubtasksCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskExportCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var mine bool
	var assignee string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks := a.Tasks.List()
				if mine {
					u, ok := a.Session.Current()
					if !ok {
						return fmt.Errorf("not logged in")
					}
					tasks = a.Tasks.ListForUser(u.ID)
				} else if assignee != "" {
					tasks = a.Tasks.ListForUser(assignee)
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				_ = a.Directory.Load(ctx)
				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Progress", "Due", "Status", "Assigned to", "By"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{
						t.ID, t.Title, fmt.Sprintf("%d%%", t.Progress), t.DueDate,
						metrics.Classify(t, now),
						a.Directory.DisplayName(t.AssignedTo),
						a.Directory.DisplayName(t.AssignedBy),
					})
				}
				tw.Render()
				fmt.Printf("Team progress: %d%%\n", a.Tasks.TeamProgress())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only tasks assigned to the current user")
	cmd.Flags().StringVar(&assignee, "assignee", "", "only tasks assigned to this user id")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, ok := a.Tasks.GetByID(args[0])
				if !ok {
					return domain.ErrNotFound
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskCreateCmd() *cobra.Command {
	var d store.Draft
	var subtasks []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if d.AssignedBy == "" {
					if u, ok := a.Session.Current(); ok {
						d.AssignedBy = u.ID
					}
				}
				d.Subtasks = parseSubtasks(subtasks)
				t, err := a.Tasks.Create(ctx, d)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&d.Title, "title", "", "title")
	cmd.Flags().StringVar(&d.Description, "description", "", "description / briefing")
	cmd.Flags().StringVar(&d.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.AssignedTo, "assign", "", "assignee user id")
	cmd.Flags().IntVar(&d.Progress, "progress", 0, "initial progress (0-100)")
	cmd.Flags().StringArrayVar(&subtasks, "subtask", nil, `subtask "title" or "title:done" (repeatable)`)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("due")
	_ = cmd.MarkFlagRequired("assign")
	return cmd
}

func taskProgressCmd() *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "progress <id> <value>",
		Short: "Set a task's progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("progress must be an integer: %w", err)
			}
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var duePtr *string
				if cmd.Flags().Changed("due") {
					duePtr = &due
				}
				if err := a.Tasks.UpdateProgress(ctx, args[0], value, duePtr); err != nil {
					return err
				}
				t, _ := a.Tasks.GetByID(args[0])
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "new due date (YYYY-MM-DD)")
	return cmd
}

func taskSubtasksCmd() *cobra.Command {
	var subtasks []string
	cmd := &cobra.Command{
		Use:   "subtasks <id>",
		Short: "Replace a task's checklist (progress is derived from it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Tasks.UpdateSubtasks(ctx, args[0], parseSubtasks(subtasks)); err != nil {
					return err
				}
				t, _ := a.Tasks.GetByID(args[0])
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringArrayVar(&subtasks, "item", nil, `subtask "title" or "title:done" (repeatable)`)
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Tasks.Delete(ctx, args[0])
			})
		},
	}
}

func taskExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export all tasks as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				_ = a.Directory.Load(ctx)
				w := csv.NewWriter(os.Stdout)
				if err := w.Write([]string{"id", "title", "progress", "due_date", "assigned_to", "assigned_by", "created_at"}); err != nil {
					return err
				}
				for _, t := range a.Tasks.List() {
					record := []string{
						t.ID, t.Title, strconv.Itoa(t.Progress), t.DueDate,
						a.Directory.DisplayName(t.AssignedTo),
						a.Directory.DisplayName(t.AssignedBy),
						t.CreatedAt,
					}
					if err := w.Write(record); err != nil {
						return err
					}
				}
				w.Flush()
				return w.Error()
			})
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Your tasks bucketed by urgency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, ok := a.Session.Current()
				if !ok {
					return fmt.Errorf("not logged in")
				}
				now := time.Now()
				buckets := map[metrics.Status][]domain.Task{}
				for _, t := range a.Tasks.ListForUser(u.ID) {
					s := metrics.Classify(t, now)
					buckets[s] = append(buckets[s], t)
				}
				if viper.GetBool("json") {
					return printJSON(buckets)
				}
				fmt.Printf("Dashboard for %s - team progress %d%%\n", u.Name, a.Tasks.TeamProgress())
				printBucket("Urgent (overdue or due soon)", append(buckets[metrics.StatusOverdue], buckets[metrics.StatusDueSoon]...), now)
				printBucket("In progress", buckets[metrics.StatusInProgress], now)
				printBucket("Completed", buckets[metrics.StatusCompleted], now)
				return nil
			})
		},
	}
}

func printBucket(title string, tasks []domain.Task, now time.Time) {
	fmt.Printf("\n%s:\n", title)
	if len(tasks) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, t := range tasks {
		fmt.Printf("  %s  %3d%%  due %s (%d day(s))\n", t.Title, t.Progress, t.DueDate, metrics.DaysRemaining(t.DueDate, now))
	}
}

func teamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "team",
		Short: "Per-member progress overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Directory.Load(ctx); err != nil {
					return err
				}
				now := time.Now()
				tasks := a.Tasks.List()
				var aggs []metrics.MemberAggregate
				for _, u := range a.Directory.Users() {
					aggs = append(aggs, metrics.Aggregate(u.ID, tasks, now))
				}
				if viper.GetBool("json") {
					return printJSON(aggs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Member", "Role", "Total", "Completed", "Pending", "Urgent", "Avg progress"})
				for _, agg := range aggs {
					u, _ := a.Directory.Lookup(agg.UserID)
					tw.AppendRow(table.Row{u.Name, u.Role, agg.Total, agg.Completed, agg.Pending, agg.Urgent, fmt.Sprintf("%d%%", agg.AvgProgress)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func alertsCmd() *cobra.Command {
	alert := &cobra.Command{
		Use:   "alerts",
		Short: "Due-date alert configuration",
	}
	alert.AddCommand(alertsShowCmd())
	alert.AddCommand(alertsToggleCmd())
	alert.AddCommand(alertsDaysCmd())
	alert.AddCommand(alertsDefaultCmd())
	alert.AddCommand(alertsTestCmd())
	alert.AddCommand(alertsSaveCmd())
	return alert
}

func alertsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Pending tasks sorted by days remaining, with alert settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				_ = a.Directory.Load(ctx)
				now := time.Now()
				var pending []domain.Task
				for _, t := range a.Tasks.List() {
					if t.Progress < 100 {
						pending = append(pending, t)
					}
				}
				sort.SliceStable(pending, func(i, j int) bool {
					return metrics.DaysRemaining(pending[i].DueDate, now) < metrics.DaysRemaining(pending[j].DueDate, now)
				})
				if viper.GetBool("json") {
					return printJSON(pending)
				}
				fmt.Printf("Defaults: %+v\n", a.Alerts.Settings())
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task", "Due", "Days left", "Assignee", "Alert", "Days before"})
				for _, t := range pending {
					al := a.Alerts.Get(t.ID)
					if t.Alert != nil {
						al = *t.Alert
					}
					tw.AppendRow(table.Row{
						t.Title, t.DueDate, metrics.DaysRemaining(t.DueDate, now),
						a.Directory.DisplayName(t.AssignedTo), al.Enabled, al.DaysBeforeDue,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func alertsToggleCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Enable or disable the alert for one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				al := a.Alerts.Toggle(args[0], !off)
				if err := a.Tasks.UpdateAlertSettings(args[0], al); err != nil {
					return err
				}
				return printJSONOrTable(al)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "disable instead of enable")
	return cmd
}

func alertsDaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "days <task-id> <days>",
		Short: "Set how many days before due the alert fires (1-30)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("days must be an integer: %w", err)
			}
			return withLoadedTasks(cmd.Context(), func(ctx context.Context, a *app.App) error {
				al := a.Alerts.SetDaysBeforeDue(args[0], days)
				if err := a.Tasks.UpdateAlertSettings(args[0], al); err != nil {
					return err
				}
				return printJSONOrTable(al)
			})
		},
	}
}

func alertsDefaultCmd() *cobra.Command {
	var email, noEmail bool
	cmd := &cobra.Command{
		Use:   "default <days>",
		Short: "Set the global default alert threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("days must be an integer: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Alerts.SetDefaultDaysBeforeDue(days)
				if email {
					a.Alerts.SetEmailAlertsEnabled(true)
				}
				if noEmail {
					a.Alerts.SetEmailAlertsEnabled(false)
				}
				return printJSONOrTable(a.Alerts.Settings())
			})
		},
	}
	cmd.Flags().BoolVar(&email, "email", false, "enable email alerts")
	cmd.Flags().BoolVar(&noEmail, "no-email", false, "disable email alerts")
	return cmd
}

func alertsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test alert to the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, ok := a.Session.Current()
				if !ok {
					return fmt.Errorf("not logged in")
				}
				if err := a.Alerts.SendTestAlert(ctx, u); err != nil {
					return err
				}
				fmt.Printf("Test alert sent to %s.\n", u.Email)
				return nil
			})
		},
	}
}

func alertsSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save alert settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Alerts.SaveSettings()
				fmt.Println("Alert settings saved.")
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath, seedPassword string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Teamboard API backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			if err := app.SeedUsers(cmd.Context(), r, seedPassword); err != nil {
				return err
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("TEAMBOARD_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Repo:     r,
				Events:   events.Writer{DB: conn},
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Teamboard API on http://%s%s\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().StringVar(&seedPassword, "seed-password", "senha123", "password for seeded demo users")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	notifier := notify.Notifier(notify.Discard{})
	if !viper.GetBool("json") {
		notifier = stdoutNotifier{}
	}
	a := app.New(cfg, workspace, notifier)
	return fn(ctx, a)
}

func withLoadedTasks(ctx context.Context, fn func(context.Context, *app.App) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if err := a.Tasks.Load(ctx); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}

type stdoutNotifier struct{}

func (stdoutNotifier) Notify(n notify.Notification) {
	if n.Detail != "" {
		fmt.Printf("%s - %s\n", n.Title, n.Detail)
		return
	}
	fmt.Println(n.Title)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseSubtasks turns "title" / "title:done" flag values into subtasks.
func parseSubtasks(items []string) []domain.Subtask {
	var subs []domain.Subtask
	for i, item := range items {
		title := item
		completed := false
		if idx := strings.LastIndex(item, ":"); idx >= 0 {
			switch strings.ToLower(item[idx+1:]) {
			case "done", "true":
				title = item[:idx]
				completed = true
			case "open", "false":
				title = item[:idx]
			}
		}
		subs = append(subs, domain.Subtask{
			ID:        strconv.Itoa(i + 1),
			Title:     title,
			Completed: completed,
		})
	}
	return subs
}
