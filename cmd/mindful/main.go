package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ikmalsaid/mindful-client/internal/config"
	"github.com/ikmalsaid/mindful-client/internal/mindful"
	"github.com/ikmalsaid/mindful-client/internal/preset"
	"github.com/ikmalsaid/mindful-client/internal/transcript"
)

// version is the client build version.
const version = "25.1"

// flagValues collects CLI flag state before it is merged into settings.
type flagValues struct {
	// ConfigPath overrides the user config file location.
	ConfigPath string
	// Settings mirrors the flag-overridable session settings.
	Settings config.Settings
	// NoStream disables the live character echo.
	NoStream bool
	// Version prints the build version and exits.
	Version bool
}

// main wires Cobra and executes the CLI.
func main() {
	flags := &flagValues{Settings: config.Default()}
	rootCmd := &cobra.Command{
		Use:   "mindful",
		Short: "Mindful - multimodal chat client for the mindful gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.Version {
				fmt.Println(version)
				return nil
			}
			return runChatCommand(cmd, flags)
		},
	}
	rootCmd.Args = cobra.NoArgs
	rootCmd.SilenceUsage = true

	applyFlags(rootCmd.PersistentFlags(), flags)

	rootCmd.AddCommand(historyCommand(flags))
	rootCmd.AddCommand(exportCommand(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// applyFlags defines the session flags on the root command.
func applyFlags(flags *pflag.FlagSet, values *flagValues) {
	flags.StringVar(&values.ConfigPath, "config", "", "Path to the user config file")
	flags.StringVar(&values.Settings.Mode, "mode", values.Settings.Mode, "Startup mode (default, chat)")
	flags.StringVar(&values.Settings.Model, "model", values.Settings.Model, "Model name from the preset registry")
	flags.StringVar(&values.Settings.SaveDir, "save-to", values.Settings.SaveDir, "Directory to save chat history under")
	flags.BoolVar(&values.Settings.DisableSave, "no-save", false, "Disable chat history persistence")
	flags.StringVar(&values.Settings.SaveFormat, "save-as", values.Settings.SaveFormat, "History format (json, txt, md)")
	flags.IntVar(&values.Settings.TimeoutSeconds, "timeout", values.Settings.TimeoutSeconds, "Request timeout in seconds")
	flags.BoolVar(&values.NoStream, "no-stream", false, "Print full responses instead of streaming characters")
	flags.IntVar(&values.Settings.StreamDelayMS, "stream-delay", values.Settings.StreamDelayMS, "Per-character stream delay in milliseconds")
	flags.StringVar(&values.Settings.Agent, "agent", values.Settings.Agent, "Starting agent (default, custom)")
	flags.StringVar(&values.Settings.Instruction, "instruction", "", "Custom system instruction (switches to the custom agent)")
	flags.BoolVar(&values.Settings.Verbose, "verbose", false, "Enable debug logging")
	flags.StringVar(&values.Settings.LogFile, "log-file", "", "Tee log output to a file")
	flags.BoolVar(&values.Version, "version", false, "Print the version and exit")
}

// resolveSettings layers defaults, the user config file, and explicit flag
// overrides into the final session settings.
func resolveSettings(cmd *cobra.Command, flags *flagValues) (config.Settings, error) {
	settings := config.Default()

	configPath := flags.ConfigPath
	if configPath == "" {
		defaultPath, err := config.DefaultPath()
		if err != nil {
			return settings, err
		}
		configPath = defaultPath
	}
	settings, err := config.LoadFile(settings, configPath)
	if err != nil {
		return settings, err
	}

	// Flags only win when the user actually set them.
	set := cmd.Flags()
	if set.Changed("mode") {
		settings.Mode = flags.Settings.Mode
	}
	if set.Changed("model") {
		settings.Model = flags.Settings.Model
	}
	if set.Changed("save-to") {
		settings.SaveDir = flags.Settings.SaveDir
	}
	if set.Changed("no-save") {
		settings.DisableSave = flags.Settings.DisableSave
	}
	if set.Changed("save-as") {
		settings.SaveFormat = flags.Settings.SaveFormat
	}
	if set.Changed("timeout") {
		settings.TimeoutSeconds = flags.Settings.TimeoutSeconds
	}
	if set.Changed("no-stream") {
		settings.StreamOutput = !flags.NoStream
	}
	if set.Changed("stream-delay") {
		settings.StreamDelayMS = flags.Settings.StreamDelayMS
	}
	if set.Changed("agent") {
		settings.Agent = flags.Settings.Agent
	}
	if set.Changed("instruction") {
		settings.Instruction = flags.Settings.Instruction
	}
	if set.Changed("verbose") {
		settings.Verbose = flags.Settings.Verbose
	}
	if set.Changed("log-file") {
		settings.LogFile = flags.Settings.LogFile
	}
	return settings, nil
}

// runChatCommand builds the session and enters the interactive chat loop.
func runChatCommand(cmd *cobra.Command, flags *flagValues) error {
	settings, err := resolveSettings(cmd, flags)
	if err != nil {
		return err
	}

	logger, closeLog, err := config.NewLogger(settings.Verbose, settings.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := settings.Normalize(logger); err != nil {
		logger.Error("invalid settings", "error", err)
		return err
	}

	loaded, err := preset.Load()
	if err != nil {
		logger.Error("preset decode failed", "error", err)
		return err
	}
	model, err := loaded.Model(settings.Model)
	if err != nil {
		logger.Error("model resolution failed", "error", err, "available", loaded.ModelNames())
		return err
	}

	if err := mindful.CheckConnectivity(cmd.Context(), ""); err != nil {
		logger.Error("no internet, please check your network connection", "error", err)
		return err
	}

	client := mindful.NewClient(mindful.Options{
		ChatURL:   loaded.ChatURL,
		UploadURL: loaded.UploadURL,
		AuthValue: loaded.AuthValue,
		Timeout:   time.Duration(settings.TimeoutSeconds) * time.Second,
		Logger:    logger.With("component", "client"),
	})
	store := transcript.NewStore(settings.SaveDir, settings.SaveFormat, logger.With("component", "transcript"))

	logger.Info("mindful client is ready", "model", settings.Model, "version", version)

	session := newChatSession(settings, loaded, client, store, model, logger)
	return session.RunInteractive(cmd.Context())
}

// newSessionStore rebuilds a store for the non-chat subcommands, which need
// settings but no gateway client.
func newSessionStore(cmd *cobra.Command, flags *flagValues) (*transcript.Store, config.Settings, error) {
	settings, err := resolveSettings(cmd, flags)
	if err != nil {
		return nil, settings, err
	}
	logger, _, err := config.NewLogger(settings.Verbose, settings.LogFile)
	if err != nil {
		return nil, settings, err
	}
	if err := settings.Normalize(logger); err != nil {
		return nil, settings, err
	}
	store := transcript.NewStore(settings.SaveDir, settings.SaveFormat, logger.With("component", "transcript"))
	return store, settings, nil
}
