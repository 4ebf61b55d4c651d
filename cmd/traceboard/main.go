package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/traceboard/traceboard/internal/config"
	"github.com/traceboard/traceboard/internal/index"
	"github.com/traceboard/traceboard/internal/provider"
	"github.com/traceboard/traceboard/internal/provider/claudecode"
	"github.com/traceboard/traceboard/internal/provider/codex"
	"github.com/traceboard/traceboard/internal/provider/geminicli"
	"github.com/traceboard/traceboard/internal/reactor"
	"github.com/traceboard/traceboard/internal/runtime"
	"github.com/traceboard/traceboard/internal/scan"
	"github.com/traceboard/traceboard/internal/stream"
	"github.com/traceboard/traceboard/internal/telemetry"
	"github.com/traceboard/traceboard/internal/tui"
)

// options holds the command-line flags: ConfigPath and Debug are global,
// Force belongs to the scan subcommand.
type options struct {
	ConfigPath string
	Debug      bool
	Force      bool
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "traceboard",
		Short: "Index and watch coding-agent transcripts from Claude Code, Codex, and Gemini CLI",
	}

	flags := rootCmd.PersistentFlags()
	applyGlobalFlags(flags, opts)

	rootCmd.AddCommand(scanCommand(opts))
	rootCmd.AddCommand(watchCommand(opts))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyGlobalFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.ConfigPath, "config", "", "Path to traceboard config JSON (default ~/.traceboard/config.json)")
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug-level logging")
}

// adapters builds every provider's Discovery/Parser/ToolMapper trio, keyed
// for scan.NewService and for picking a parser by provider name in the
// watch command.
func adapters() []provider.Adapter {
	claudeMapper := claudecode.ToolMapper{}
	codexMapper := codex.ToolMapper{}
	geminiMapper := geminicli.ToolMapper{}
	return []provider.Adapter{
		{
			Name:       provider.ClaudeCode,
			Discovery:  claudecode.Discovery{},
			Parser:     claudecode.Parser{Mapper: claudeMapper},
			ToolMapper: claudeMapper,
		},
		{
			Name:       provider.Codex,
			Discovery:  codex.Discovery{},
			Parser:     codex.Parser{Mapper: codexMapper},
			ToolMapper: codexMapper,
		},
		{
			Name:       provider.GeminiCLI,
			Discovery:  geminicli.Discovery{},
			Parser:     geminicli.Parser{Mapper: geminiMapper},
			ToolMapper: geminiMapper,
		},
	}
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*index.Store, error) {
	store, err := index.Open(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", cfg.IndexPath, err)
	}
	return store, nil
}

// scanCommand runs one Component E scan pass over every configured log
// root and prints a summary.
func scanCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan configured log roots and update the session index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := telemetry.New(telemetry.Options{Debug: opts.Debug, Pretty: true})

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			service := scan.NewService(store, adapters())

			roots := make([]scan.RootConfig, len(cfg.LogRoots))
			for i, r := range cfg.LogRoots {
				roots[i] = scan.RootConfig{Provider: r.Provider, LogRoot: r.Path}
			}

			err = service.ScanRoot(roots, scan.AllProjects(), opts.Force, func(evt scan.ProgressEvent) {
				switch evt.Type {
				case scan.ProgressRootSkipped:
					log.Warn().
						Str("provider", string(evt.RootSkipped.Provider)).
						Str("log_root", evt.RootSkipped.LogRoot).
						Msg("log root missing, skipped")
				case scan.ProgressCompleted:
					fmt.Fprintf(cmd.OutOrStdout(), "scanned %d files, %d sessions indexed\n",
						evt.Completed.ScannedFiles, evt.Completed.TotalSessions)
				}
			})
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Ignore stored fingerprints and re-index every matching file")
	return cmd
}

// watchCommand attaches Component F/G to one session and renders it live
// via internal/tui.
func watchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Attach to a session and render live turns and reactor warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := telemetry.New(telemetry.Options{Debug: opts.Debug})

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			record, err := store.GetSession(sessionID)
			if err != nil {
				return fmt.Errorf("look up session %s: %w", sessionID, err)
			}

			parser, ok := parserFor(provider.Name(record.Provider))
			if !ok {
				return fmt.Errorf("no parser registered for provider %q", record.Provider)
			}

			w, err := stream.AttachIndexed(store, sessionID, parser, log)
			if err != nil {
				return fmt.Errorf("attach to session %s: %w", sessionID, err)
			}
			defer w.Stop()

			reactors := []reactor.Reactor{
				reactor.NewSafetyGuard(),
				reactor.NewTokenUsageMonitor(cfg.Reactors.TokenWarningPct, cfg.Reactors.TokenCriticalPct),
			}
			coord := runtime.Start(w, reactors, log)

			return tui.Run(sessionID, coord.Updates())
		},
	}
}

func parserFor(name provider.Name) (provider.Parser, bool) {
	for _, a := range adapters() {
		if a.Name == name {
			return a.Parser, true
		}
	}
	return nil, false
}
