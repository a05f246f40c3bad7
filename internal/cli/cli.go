// Package cli implements the eviscape command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	apexcli "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/jeffersonwarrior/eviscape/eviscape"
	"github.com/jeffersonwarrior/eviscape/internal/config"
	"github.com/jeffersonwarrior/eviscape/internal/logging"
	"github.com/jeffersonwarrior/eviscape/storage"
)

// CLI represents the command-line interface
type CLI struct {
	rootCmd *cobra.Command

	// flags
	configPath string
	format     string
	tokenName  string
	verbose    bool

	cfg    *config.Config
	client *eviscape.Client
	store  *storage.TokenStore
}

// New creates a new CLI instance
func New() *CLI {
	cli := &CLI{}

	cli.rootCmd = &cobra.Command{
		Use:   "eviscape",
		Short: "Eviscape API client",
		Long: `eviscape talks to the Eviscape REST API: it searches members, nodes and evis,
reads and posts comments, and authorizes access tokens with OAuth.`,
		SilenceUsage:      true,
		PersistentPreRunE: cli.setup,
	}

	cli.setupFlags()
	cli.registerCommands()

	return cli
}

// setupFlags sets up command line flags
func (cli *CLI) setupFlags() {
	flags := cli.rootCmd.PersistentFlags()
	flags.StringVarP(&cli.configPath, "config", "c", "eviscape.yaml", "Path to configuration file")
	flags.StringVar(&cli.format, "format", "", "Response format requested from the API (xml, json)")
	flags.StringVar(&cli.tokenName, "token", "", "Name of a stored access token to sign calls with")
	flags.BoolVarP(&cli.verbose, "verbose", "v", false, "Enable verbose log output")
}

// registerCommands registers all commands
func (cli *CLI) registerCommands() {
	cli.rootCmd.AddCommand(
		cli.authCommand(),
		cli.membersCommand(),
		cli.nodesCommand(),
		cli.evisCommand(),
		cli.commentsCommand(),
		cli.versionCommand(),
	)
}

// setup loads the configuration and installs the log handler. The API
// client and the token store are created on first use.
func (cli *CLI) setup(cmd *cobra.Command, args []string) error {
	log.SetHandler(apexcli.New(cmd.ErrOrStderr()))

	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cli.format != "" {
		cfg.API.Format = cli.format
	}
	level := cfg.Log.Level
	if cli.verbose {
		level = "debug"
	}
	logging.SetLevel(level)
	log.Debugf("Using config %s, server %s, format %s", cli.configPath, cfg.API.Server, cfg.API.Format)

	cli.cfg = cfg
	return nil
}

// teardown closes whatever the commands opened.
func (cli *CLI) teardown() error {
	if cli.client != nil {
		stats := cli.client.Stats()
		log.WithFields(log.Fields{
			"created":  stats.Created,
			"reused":   stats.Reused,
			"requests": stats.Requests,
			"idle":     stats.Idle,
			"dropped":  stats.Dropped,
			"broken":   stats.Broken,
		}).Debug("Connection pool")
		cli.client.Close()
		cli.client = nil
	}
	if cli.store != nil {
		err := cli.store.Close()
		cli.store = nil
		return err
	}
	return nil
}

// apiClient returns the API client, creating it on first use.
func (cli *CLI) apiClient() (*eviscape.Client, error) {
	if cli.client != nil {
		return cli.client, nil
	}
	client, err := eviscape.NewClient(eviscape.Config{
		Key:       cli.cfg.API.Key,
		Secret:    cli.cfg.API.Secret,
		Server:    cli.cfg.API.Server,
		Format:    cli.cfg.API.Format,
		Timeout:   cli.cfg.HTTP.Timeout,
		MaxConns:  cli.cfg.HTTP.MaxConns,
		Retries:   cli.cfg.HTTP.Retries,
		RateLimit: cli.cfg.HTTP.RateLimit,
		Logger:    logging.Apex(log.Fields{"server": cli.cfg.API.Server}),
	})
	if err != nil {
		return nil, err
	}
	cli.client = client
	return client, nil
}

// tokenStore returns the token store, opening it on first use.
func (cli *CLI) tokenStore() (*storage.TokenStore, error) {
	if cli.store != nil {
		return cli.store, nil
	}
	log.Debugf("Opening token store sqlite3://%s", cli.cfg.Storage.Path)
	store, err := storage.Open(cli.cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	cli.store = store
	return store, nil
}

// token returns the access token named by --token, or nil for public
// calls.
func (cli *CLI) token(ctx context.Context) (*eviscape.Token, error) {
	if cli.tokenName == "" {
		return nil, nil
	}
	if err := cli.cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := cli.tokenStore()
	if err != nil {
		return nil, err
	}
	return store.Load(ctx, cli.tokenName)
}

// Execute executes the CLI
func (cli *CLI) Execute() error {
	err := cli.rootCmd.Execute()
	if cerr := cli.teardown(); err == nil {
		err = cerr
	}
	return err
}

// ExecuteContext executes the CLI with args, writing to out.
func (cli *CLI) ExecuteContext(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cli.rootCmd.SetArgs(args)
	cli.rootCmd.SetIn(in)
	cli.rootCmd.SetOut(out)
	cli.rootCmd.SetErr(out)
	err := cli.rootCmd.ExecuteContext(ctx)
	if cerr := cli.teardown(); err == nil {
		err = cerr
	}
	return err
}

// Main runs the CLI and exits with a non-zero status on error.
func Main() {
	if err := New().Execute(); err != nil {
		log.WithError(err).Error("eviscape failed")
		os.Exit(1)
	}
}
