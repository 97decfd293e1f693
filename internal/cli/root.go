package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloudops/internal/cloudapi"
	"cloudops/internal/config"
	"cloudops/internal/output"
	"cloudops/internal/server"

	"github.com/spf13/cobra"
)

// app is the state shared by the command tree. Flags fill the first block,
// the root pre-run fills the rest.
type app struct {
	configPath   string
	outputFormat string

	cfg        *config.Config
	logger     *slog.Logger
	formatter  output.Formatter
	namespaces cloudapi.NamespaceService
	identity   cloudapi.IdentityService
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cloudops",
		Short: "Provision Temporal Cloud namespaces and rotate their client CAs",
		Long: `cloudops manages namespaces through the Temporal Cloud Ops API.
It creates namespaces in API key or mTLS mode, rotates and prunes the
accepted client CA bundle of mTLS namespaces, and administers users,
service accounts and API keys. The serve command keeps the namespaces
declared in the config file provisioned and rotated.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (defaults and environment only when unset)")
	root.PersistentFlags().StringVarP(&a.outputFormat, "output", "o", output.FormatTable, "output format: table, json, yaml")

	root.AddCommand(
		newNamespaceCmd(a),
		newUserCmd(a),
		newServiceAccountCmd(a),
		newAPIKeyCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg
	a.logger = server.SetupLogger(cfg)

	a.formatter, err = output.NewFormatter(a.outputFormat)
	if err != nil {
		return err
	}

	return a.connect()
}

// connect builds the API client for any service not already set.
func (a *app) connect() error {
	if a.namespaces != nil && a.identity != nil {
		return nil
	}

	client, err := cloudapi.NewClient(a.cfg.API, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}

	if a.namespaces == nil {
		a.namespaces = cloudapi.NewRetryingService(client, cloudapi.ReadPolicy(a.cfg.API.ReadRetries), a.logger)
	}
	if a.identity == nil {
		a.identity = client
	}
	return nil
}

// print renders v with the selected output format.
func (a *app) print(cmd *cobra.Command, v any) {
	fmt.Fprint(cmd.OutOrStdout(), a.formatter.Format(v))
}

// Execute runs the command tree until it returns or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
