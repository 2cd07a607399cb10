package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"plenum/internal/app"
	"plenum/internal/config"
	"plenum/internal/db"
	"plenum/internal/domain"
	"plenum/internal/engine"
	"plenum/internal/migrate"
	"plenum/internal/repo"
	"plenum/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Plenum CLI",
	Long: `Plenum runs parliamentary plenary meetings: participants offer procedural
motions that are queued, ordered, and resolved under rules of order.
- Workspace: your .plenum directory with the database; meeting configs live in the DB.
- Meeting: one plenary session; its moderate mode decides whether queued motions
  auto-promote (automatic) or wait for the chair (manual).
- Motions: resolve/amend/call/divide/second/speak/adjourn/nay/yea/order, each with
  its own in-order rule against the motion currently on the floor.
- Pending chain: the nested stack of questions on the floor; the last one is the
  immediately pending question.
- Event log: diary of every change, view with 'pl log tail'.`,
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLENUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("meeting", "", "meeting id (overrides config default)")
	rootCmd.PersistentFlags().Int64("group", 0, "breakout group id (0 = ungrouped)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("meeting", rootCmd.PersistentFlags().Lookup("meeting"))
	_ = viper.BindPFlag("group", rootCmd.PersistentFlags().Lookup("group"))
}

func registerCommands() {
	rootCmd.AddCommand(meetingCmd())
	rootCmd.AddCommand(motionCmd())
	rootCmd.AddCommand(roleCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(keyCmd())
	rootCmd.AddCommand(serveCmd())
}

func meetingCmd() *cobra.Command {
	m := &cobra.Command{Use: "meeting", Short: "Manage meetings"}
	m.AddCommand(meetingCreateCmd())
	m.AddCommand(meetingListCmd())
	m.AddCommand(meetingShowCmd())
	m.AddCommand(meetingUpdateCmd())
	m.AddCommand(meetingUseCmd())
	m.AddCommand(meetingGradeCmd())
	return m
}

func meetingCreateCmd() *cobra.Command {
	var name, moderate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, nil)
			m, err := e.CreateMeeting(cmd.Context(), name, moderate, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			if err := e.Repo.UpsertMeetingConfig(cmd.Context(), m.ID, config.Default(m.ID)); err != nil {
				return err
			}
			return printJSONOrTable(m)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "meeting name")
	cmd.Flags().StringVar(&moderate, "moderate", "automatic", "moderation mode (automatic, manual)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func meetingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				meetings, err := r.ListMeetings(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(meetings)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Moderate", "Status", "Created"})
				for _, m := range meetings {
					tw.AppendRow(table.Row{m.ID, m.Name, m.Moderate, m.Status, m.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func meetingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.Repo.GetMeeting(ctx, e.Config.Meeting.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func meetingUpdateCmd() *cobra.Command {
	var name, moderate, status string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.UpdateMeeting(ctx, e.Config.Meeting.ID, name, moderate, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "meeting name")
	cmd.Flags().StringVar(&moderate, "moderate", "", "moderation mode (automatic, manual)")
	cmd.Flags().StringVar(&status, "status", "", "status (active, closed)")
	return cmd
}

func meetingUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set current meeting for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meetingID := strings.TrimSpace(args[0])
			if meetingID == "" {
				return fmt.Errorf("meeting id is required")
			}
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "PLENUM_MEETING", meetingID); err != nil {
				return err
			}
			fmt.Printf("Set PLENUM_MEETING=%s in %s/.env\n", meetingID, workspace)
			return nil
		},
	}
}

func meetingGradeCmd() *cobra.Command {
	var data []string
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Record a grading sync point",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				payload, err := parsePayload(data)
				if err != nil {
					return err
				}
				return e.Grade(ctx, e.Config.Meeting.ID, viper.GetString("actor-id"), payload)
			})
		},
	}
	cmd.Flags().StringArrayVar(&data, "data", []string{}, "payload entry key=value (repeatable)")
	return cmd
}

func motionCmd() *cobra.Command {
	m := &cobra.Command{Use: "motion", Short: "Offer and decide motions"}
	m.AddCommand(motionOfferCmd())
	m.AddCommand(motionListCmd())
	m.AddCommand(motionShowCmd())
	m.AddCommand(motionDecideCmd())
	m.AddCommand(motionDeleteCmd())
	m.AddCommand(motionPendingCmd())
	m.AddCommand(motionAvailableCmd())
	m.AddCommand(motionOfferedCmd())
	return m
}

func motionOfferCmd() *cobra.Command {
	var typ string
	var data []string
	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Offer a motion",
		RunE: func(cmd *cobra.Command, args []string) error {
			if typ == "" {
				return fmt.Errorf("--type required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				payload, err := parsePayload(data)
				if err != nil {
					return err
				}
				m, err := e.Make(ctx, viper.GetString("actor-id"), e.Config.Meeting.ID, viper.GetInt64("group"), typ, payload)
				if err != nil {
					return err
				}
				if m == nil {
					fmt.Printf("motion type %s is disabled; nothing created\n", typ)
					return nil
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "motion type")
	cmd.Flags().StringArrayVar(&data, "data", []string{}, "payload entry key=value (repeatable)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func motionListCmd() *cobra.Command {
	var typ, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List motions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				motions, err := e.Repo.ListMotions(ctx, repo.MotionFilters{
					MeetingID: e.Config.Meeting.ID,
					Type:      typ,
					Status:    domain.Status(status),
				})
				if err != nil {
					return err
				}
				return printMotions(motions)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "type filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func motionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a motion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid motion id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.Repo.GetMotion(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func motionDecideCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "decide <id>",
		Short: "Change a motion's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--status required")
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid motion id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.Decide(ctx, id, domain.Status(status), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "target status (pending, open, closed, adopt, decline)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func motionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a motion and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid motion id %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Delete(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
}

func motionPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show the pending chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ch, err := e.GetPending(ctx, e.Config.Meeting.ID, viper.GetInt64("group"))
				if err != nil {
					return err
				}
				return printMotions(ch)
			})
		},
	}
}

func motionAvailableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "Motion types in order right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				avail, err := e.AvailableMotions(ctx, viper.GetString("actor-id"), e.Config.Meeting.ID, viper.GetInt64("group"))
				if err != nil {
					return err
				}
				return printJSONOrTable(avail)
			})
		},
	}
}

func motionOfferedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offered",
		Short: "Draft motions queued for the floor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				offered, err := e.OfferedMotions(ctx, viper.GetString("actor-id"), e.Config.Meeting.ID, viper.GetInt64("group"))
				if err != nil {
					return err
				}
				return printMotions(offered)
			})
		},
	}
}

func roleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "role", Short: "Meeting role management"}
	cmd.AddCommand(roleAssignCmd())
	cmd.AddCommand(roleRevokeCmd())
	cmd.AddCommand(roleListCmd())
	cmd.AddCommand(roleWhoamiCmd())
	return cmd
}

func roleAssignCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign role to actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.AssignRole(ctx, e.Config.Meeting.ID, target, role)
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func roleRevokeCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke role from actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.RevokeRole(ctx, e.Config.Meeting.ID, target, role)
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func roleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List role assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				roles, err := e.Repo.ListRoles(ctx, e.Config.Meeting.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(roles)
			})
		},
	}
}

func roleWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show current actor roles and capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				roles, err := e.Repo.ActorRoles(ctx, e.Config.Meeting.ID, actorID)
				if err != nil {
					return err
				}
				caps, err := e.Auth.Capabilities(ctx, nil, e.Config.Meeting.ID, actorID)
				if err != nil {
					return err
				}
				capList := make([]string, 0, len(caps))
				for c := range caps {
					capList = append(capList, c)
				}
				return printJSONOrTable(map[string]any{
					"actor_id":     actorID,
					"roles":        roles,
					"capabilities": capList,
				})
			})
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage meeting config"}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configImportCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective meeting config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
}

func configImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import meeting config from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cfg, err := config.FromFile(file)
				if err != nil {
					return err
				}
				return e.Repo.UpsertMeetingConfig(ctx, e.Config.Meeting.ID, cfg)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default plenum.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			meetingID := viper.GetString("meeting")
			if meetingID == "" {
				meetingID = "meeting-1"
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault(meetingID)), 0o644)
		},
	}
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.Repo.LatestEvents(ctx, n, e.Config.Meeting.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(evts)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "key", Short: "API key management"}
	cmd.AddCommand(keyCreateCmd())
	cmd.AddCommand(keyListCmd())
	cmd.AddCommand(keyDeleteCmd())
	return cmd
}

func keyCreateCmd() *cobra.Command {
	var actor, name, raw string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" || raw == "" {
				return fmt.Errorf("--actor and --key required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				k, err := r.InsertAPIKey(ctx, actor, name, raw)
				if err != nil {
					return err
				}
				return printJSONOrTable(k)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&raw, "key", "", "raw key value")
	return cmd
}

func keyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
}

func keyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveMeetingAndConfig(cmd.Context(), viper.GetString("meeting"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("PLENUM_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("PLENUM_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Plenum API on http://%s%s\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveMeetingAndConfig(ctx, viper.GetString("meeting"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printMotions(motions []domain.Motion) error {
	if viper.GetBool("json") {
		return printJSON(motions)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Type", "Parent", "Group", "Status", "By", "Created"})
	for _, m := range motions {
		parent := ""
		if m.Parent != nil {
			parent = strconv.FormatInt(*m.Parent, 10)
		}
		tw.AppendRow(table.Row{m.ID, m.Type, parent, m.GroupID, m.Status, m.CreatedBy, m.CreatedAt})
	}
	tw.Render()
	return nil
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

func parsePayload(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	payload := make(map[string]any, len(entries))
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --data entry %q (want key=value)", entry)
		}
		payload[k] = v
	}
	return payload, nil
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
