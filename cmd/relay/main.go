package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/relay/pkg/admin"
	"github.com/cuemby/relay/pkg/adminclient"
	"github.com/cuemby/relay/pkg/config"
	"github.com/cuemby/relay/pkg/log"
	"github.com/cuemby/relay/pkg/relay"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootCmd implements the CLI's block/allow contract directly: `relay -b
// domain` blocks a domain, `relay -a domain` allows one, and `-u` inverts
// both (spec.md §6). These flags talk to a running relay's admin API, so
// RELAY_ADDR and API_TOKEN must be set the same way they are for `serve`.
var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "An ActivityPub relay",
	Long: `relay fans Announce/Create activities out to every server that
follows it, and relays Delete/Update/Add/Remove verbatim.

Run with no flags to print this help. Run "relay serve" to start the
relay itself; use -b/-a/-u against a running relay to manage its block
and allow lists.`,
	Version: Version,
	RunE:    runRootFlags,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"relay version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().StringArrayP("block", "b", nil, "block a domain (repeatable)")
	rootCmd.Flags().StringArrayP("allow", "a", nil, "allow a domain (repeatable)")
	rootCmd.Flags().BoolP("undo", "u", false, "invert -b/-a: unblock or unallow instead")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listenersCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runRootFlags(cmd *cobra.Command, args []string) error {
	blocks, _ := cmd.Flags().GetStringArray("block")
	allows, _ := cmd.Flags().GetStringArray("allow")
	undo, _ := cmd.Flags().GetBool("undo")

	if len(blocks) == 0 && len(allows) == 0 {
		return cmd.Help()
	}

	c, err := adminClientFromEnv()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	for _, domain := range blocks {
		if undo {
			err = c.RemoveBlock(ctx, domain)
		} else {
			err = c.AddBlock(ctx, domain)
		}
		if err != nil {
			return fmt.Errorf("block %s: %w", domain, err)
		}
		fmt.Printf("✓ %s %s\n", verb(undo, "unblocked", "blocked"), domain)
	}

	for _, domain := range allows {
		if undo {
			err = c.RemoveAllow(ctx, domain)
		} else {
			err = c.AddAllow(ctx, domain)
		}
		if err != nil {
			return fmt.Errorf("allow %s: %w", domain, err)
		}
		fmt.Printf("✓ %s %s\n", verb(undo, "unallowed", "allowed"), domain)
	}

	return nil
}

func verb(undo bool, undone, done string) string {
	if undo {
		return undone
	}
	return done
}

// adminClientFromEnv builds an adminclient.Client against the same
// RELAY_ADDR / API_TOKEN a running relay was started with.
func adminClientFromEnv() (*adminclient.Client, error) {
	addr := os.Getenv("RELAY_ADDR")
	if addr == "" {
		return nil, fmt.Errorf("RELAY_ADDR must be set to the relay's base URL")
	}
	token := os.Getenv("API_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("API_TOKEN must be set")
	}
	return adminclient.New(addr, token), nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay",
	Long:  `serve loads configuration from the environment and runs the relay until interrupted.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	r, err := relay.New(cfg)
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("✓ relay starting for %s\n", cfg.Hostname)
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}
	fmt.Println("✓ shutdown complete")
	return nil
}

var listenersCmd = &cobra.Command{
	Use:   "listeners",
	Short: "List or remove connected servers",
}

var listenersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every server currently connected to the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := adminClientFromEnv()
		if err != nil {
			return err
		}
		listeners, err := c.ListListeners(cmd.Context())
		if err != nil {
			return err
		}
		for _, l := range listeners {
			fmt.Printf("%s\t%s\n", l.ActorIRI, l.InboxIRI)
		}
		return nil
	},
}

var listenersRemoveCmd = &cobra.Command{
	Use:   "remove [actor-iri]",
	Short: "Forcibly disconnect a server, bypassing the Follow/Undo handshake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := adminClientFromEnv()
		if err != nil {
			return err
		}
		if err := c.RemoveListener(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ removed %s\n", args[0])
		return nil
	},
}

func init() {
	listenersCmd.AddCommand(listenersListCmd)
	listenersCmd.AddCommand(listenersRemoveCmd)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a block or allow list from a YAML file",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringP("file", "f", "", "YAML file to import (required)")
	_ = importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	file, err := admin.LoadDomainListFile(path)
	if err != nil {
		return err
	}

	c, err := adminClientFromEnv()
	if err != nil {
		return err
	}

	for _, domain := range file.Domains {
		switch file.Kind {
		case admin.KindBlocks:
			err = c.AddBlock(cmd.Context(), domain)
		case admin.KindAllows:
			err = c.AddAllow(cmd.Context(), domain)
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", domain, err)
		}
	}
	fmt.Printf("✓ imported %d %s\n", len(file.Domains), file.Kind)
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the block or allow list to a YAML file",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringP("file", "f", "", "YAML file to write (required)")
	exportCmd.Flags().String("kind", admin.KindBlocks, `which list to export: "blocks" or "allows"`)
	_ = exportCmd.MarkFlagRequired("file")
}

func runExport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	kind, _ := cmd.Flags().GetString("kind")

	c, err := adminClientFromEnv()
	if err != nil {
		return err
	}

	var domains []string
	switch kind {
	case admin.KindBlocks:
		domains, err = c.ListBlocks(cmd.Context())
	case admin.KindAllows:
		domains, err = c.ListAllows(cmd.Context())
	default:
		return fmt.Errorf("kind must be %q or %q, got %q", admin.KindBlocks, admin.KindAllows, kind)
	}
	if err != nil {
		return err
	}

	if err := admin.WriteDomainListFile(path, kind, domains); err != nil {
		return err
	}
	fmt.Printf("✓ exported %d %s to %s\n", len(domains), kind, path)
	return nil
}
