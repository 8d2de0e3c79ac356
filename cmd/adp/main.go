package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/app"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/budget"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/config"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/db"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/engine/auth"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/repo"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/server"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/store"
	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "adp",
	Short: "ADP works approval portal",
	Long: `adp runs the 15th Finance Commission Annual Development Plan works portal.
- Engineers submit works against a budget ceiling, optionally in CR batches, and forward them.
- Works then move Commissioner -> EEPH -> SEPH -> ENCPH -> CDMA; any reviewer may reject with remarks.
- Rejected works go back to the engineer, who corrects and resubmits them to the Commissioner.
- Workspace: adp.yml plus the .adp directory holding the SQLite database and the audit log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ADP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "local-user", "user id acting from the CLI")
	rootCmd.PersistentFlags().String("role", string(domain.RoleCDMA), "role acting from the CLI")
	rootCmd.PersistentFlags().String("db", "", "database path (overrides the workspace default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(worksCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(storageCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage adp.yml",
		Long:  "adp.yml sets the budget ceiling, sectors, role matching, storage backends, logging and webhooks. Environment variables with the ADP_ prefix override flags.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default adp.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate adp.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func worksCmd() *cobra.Command {
	w := &cobra.Command{
		Use:   "works",
		Short: "Inspect and act on shared works",
	}
	w.AddCommand(worksListCmd())
	w.AddCommand(worksActCmd())
	w.AddCommand(worksStatsCmd())
	return w
}

func worksStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count persisted works by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPortal(cmd.Context(), func(ctx context.Context, p *app.Portal, _ domain.Principal) error {
				counts, err := p.Engine.Repo.CountWorkItemsByStatus(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Status", "Works"})
				for status, n := range counts {
					if status == "" {
						status = "(local draft)"
					}
					tw.AppendRow(table.Row{status, n})
				}
				tw.SortBy([]table.SortBy{{Name: "Status", Mode: table.Asc}})
				tw.Render()
				return nil
			})
		},
	}
}

func worksListCmd() *cobra.Command {
	var f engine.ListFilters
	var view string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shared works visible to --role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPortal(cmd.Context(), func(ctx context.Context, p *app.Portal, who domain.Principal) error {
				var (
					items []domain.WorkItem
					err   error
				)
				if view != "" {
					v, perr := engine.ParseView(view)
					if perr != nil {
						return perr
					}
					items, err = p.Engine.Dashboard(who, v)
				} else {
					items, err = p.Engine.List(who, f)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printWorks(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter, e.g. \"Pending Review\"")
	cmd.Flags().StringVar(&f.Section, "section", "", "section filter, e.g. EEPH")
	cmd.Flags().StringVar(&f.CRNumber, "cr", "", "CR number filter")
	cmd.Flags().StringVar(&f.Sector, "sector", "", "sector filter")
	cmd.Flags().StringVar(&view, "view", "", "dashboard view (pending, approved, forwarded, rejected, sent-back, all)")
	return cmd
}

func worksActCmd() *cobra.Command {
	var remarks string
	cmd := &cobra.Command{
		Use:   "act <approve|reject|forward|resubmit> <id>...",
		Short: "Apply one action to the given works as --role",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := workflow.ParseAction(args[0])
			if err != nil {
				return err
			}
			return withPortal(cmd.Context(), func(ctx context.Context, p *app.Portal, who domain.Principal) error {
				items, err := p.Engine.Act(ctx, who, action, args[1:], remarks)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printWorks(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks (required to reject)")
	return cmd
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "token",
		Short: "Bearer tokens for the HTTP API",
	}
	var username string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a token for --user and --role signed with ADP_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := auth.Principal(viper.GetString("user"), username, viper.GetString("role"))
			if err != nil {
				return err
			}
			token, exp, err := server.SignToken(jwtSecret(), who, ttl, time.Now())
			if err != nil {
				return fmt.Errorf("%w (set ADP_JWT_SECRET)", err)
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": token, "expiresAt": exp.Format(time.RFC3339)})
			}
			fmt.Println(token)
			return nil
		},
	}
	mint.Flags().StringVar(&username, "username", "", "username claim (defaults to --user)")
	mint.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	t.AddCommand(mint)
	return t
}

func storageCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "storage",
		Short: "Manage the shared works storage",
	}
	var yes bool
	clear := &cobra.Command{
		Use:   "clear",
		Short: "Delete every shared work from both backends (requires --role cdma)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear storage without --yes")
			}
			return withPortal(cmd.Context(), func(ctx context.Context, p *app.Portal, who domain.Principal) error {
				n, err := p.Engine.ClearWorks(ctx, who)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"cleared": n})
				}
				fmt.Printf("cleared %d works\n", n)
				return nil
			})
		},
	}
	clear.Flags().BoolVar(&yes, "yes", false, "confirm")
	s.AddCommand(clear)
	return s
}

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Audit log",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPortal(cmd.Context(), func(ctx context.Context, p *app.Portal, _ domain.Principal) error {
				events, err := p.Engine.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Work", "Actor", "Role", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityID, evt.ActorID, evt.Role, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityID, "work-id", "", "work id filter")
	cmd.Flags().StringVar(&f.ActorID, "actor-id", "", "actor filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := app.Open(ctx, portalOptions())
			if err != nil {
				return err
			}
			defer p.Close()
			secret := jwtSecret()
			if secret == "" {
				return fmt.Errorf("ADP_JWT_SECRET is required for bearer auth")
			}
			if addr == "" {
				addr = p.Config.Server.Addr
			}
			authCfg := server.AuthConfig{
				JWTSecret: secret,
				DevLogin:  p.Config.Server.DevLogin,
				LoginRate: p.Config.Server.LoginRate,
				TokenTTL:  p.Config.SessionTTL(),
				Logger:    p.Log.WithField("component", "auth"),
			}
			if authCfg.DevLogin {
				p.Log.Warn("dev login is enabled; do not expose this server publicly")
			}
			handler, err := server.New(server.Config{Engine: p.Engine, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			unsubscribe := p.Store.Subscribe(func(s store.Snapshot) {
				p.Log.WithFields(logrus.Fields{"version": s.Version, "works": len(s.Items)}).Debug("works changed")
			})
			defer unsubscribe()
			server.NewWebhookDispatcher(p.Engine.Repo, p.Config, p.Log).Start(ctx, 0)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			p.Log.WithFields(logrus.Fields{"addr": addr, "base_path": basePath, "backend": p.Backend.Active().Name()}).Info("serving ADP API")
			fmt.Printf("Serving ADP API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n", addr, basePath, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr in adp.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func portalOptions() app.Options {
	return app.Options{
		Workspace: viper.GetString("workspace"),
		DBPath:    viper.GetString("db"),
		Out:       os.Stderr,
	}
}

func jwtSecret() string {
	return strings.TrimSpace(viper.GetString("jwt_secret"))
}

func withPortal(ctx context.Context, fn func(context.Context, *app.Portal, domain.Principal) error) error {
	who, err := auth.Principal(viper.GetString("user"), "", viper.GetString("role"))
	if err != nil {
		return err
	}
	p, err := app.Open(ctx, portalOptions())
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(ctx, p, who)
}

func printWorks(items []domain.WorkItem) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Proposal", "Sector", "Cost", "Status", "Section", "CR", "Remarks"})
	for _, w := range items {
		tw.AppendRow(table.Row{w.ID, w.ProposalName, w.Sector, budget.FormatRupees(w.Cost), w.Status, w.ForwardedTo.Section, w.CRLabel(), w.Remarks})
	}
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d works", len(items))})
	tw.Render()
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
