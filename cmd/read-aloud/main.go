// main package for the read-aloud command.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagConfig   = "config"
	flagEnv      = "env"
	flagOverride = "override"
	flagVoice    = "voice"
	flagPitch    = "pitch"
	flagSpeed    = "speed"
)

// Flag descriptions.
const (
	flagConfigDesc   = "Path to a TOML configuration file (defaults to project.toml discovery)"
	flagEnvDesc      = "Path to a .env file with READ_ALOUD_* overrides"
	flagOverrideDesc = "File with the text to speak instead of the article body"
	flagVoiceDesc    = "Voice id to select and remember"
	flagPitchDesc    = "Pitch to set and remember (1.0 is normal)"
	flagSpeedDesc    = "Speaking rate (1.0 is normal)"
)

// File names.
const (
	bootstrapLogFile = "read-aloud-bootstrap.log"
	logFile          = "read-aloud.log"
	defaultEnvFile   = ".env"
)

// app holds what every subcommand needs once the root command has run.
type app struct {
	configPath string
	envPath    string
	cfg        *config.Config
	log        *logger.Logger
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// setup loads the environment and the configuration, then opens the final
// logger in the configured directory.
func (a *app) setup() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := bootstrapLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing bootstrap logger: %v\n", closeErr)
		}
	}()

	// 2. Load READ_ALOUD_* variables from the .env file, if there is one
	err = godotenv.Load(a.envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		bootstrapLog.Error("Failed to load %s: %v", a.envPath, err)

		return fmt.Errorf("failed to load environment file: %w", err)
	}

	// 3. Load configuration from the explicit file or the central configurator
	var cfg *config.Config
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.Load(bootstrapLog)
	}

	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = config.ApplyEnv(cfg)
	if err != nil {
		bootstrapLog.Error("Invalid environment override: %v", err)

		return fmt.Errorf("failed to apply environment: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 4. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	a.cfg = cfg
	a.log = finalLog

	return nil
}

func (a *app) close() {
	if a.log == nil {
		return
	}

	closeErr := a.log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
	}

	a.log = nil
}

func newRootCmd() *cobra.Command {
	application := &app{}

	rootCmd := &cobra.Command{
		Use:          "read-aloud",
		Short:        "Read articles aloud through the platform speech engine",
		SilenceUsage: true,
		Long: `read-aloud turns Markdown articles into speakable text, expanding technical
terms phonetically, and speaks it through espeak-ng or the macOS say command.

It remembers the selected voice and pitch between runs, and can serve
read-aloud requests arriving over NATS.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return application.setup()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			application.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&application.configPath, flagConfig, "", flagConfigDesc)
	rootCmd.PersistentFlags().StringVar(&application.envPath, flagEnv, defaultEnvFile, flagEnvDesc)

	rootCmd.AddCommand(
		newNormalizeCmd(application),
		newSpeakCmd(application),
		newVoicesCmd(application),
		newPublishCmd(application),
		newServeCmd(application),
	)

	return rootCmd
}

func main() {
	rootCmd := newRootCmd()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
