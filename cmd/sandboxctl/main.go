package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/nova/internal/bridge"
	"github.com/oriys/nova/internal/config"
	"github.com/oriys/nova/internal/dispatcher"
	"github.com/oriys/nova/internal/logging"
	"github.com/oriys/nova/internal/shared"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "sandboxctl",
		Short: "sandboxctl - drive the sandbox execution controller",
		Long:  "A CLI front-end for the sandbox execution controller: submit source, inspect runtime status, and read performance metrics.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML controller config (optional, defaults are used otherwise)")

	rootCmd.AddCommand(
		runCmd(),
		statusCmd(),
		runtimesCmd(),
		metricsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.LoadFile(configFile)
}

func newController(ctx context.Context) (*bridge.Controller, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	c := bridge.New()
	if err := c.Initialize(ctx, cfg.ToBridgeConfig()); err != nil {
		return nil, fmt.Errorf("initialize controller: %w", err)
	}
	return c, nil
}

func runCmd() *cobra.Command {
	var (
		lang        string
		trust       string
		hintName    string
		timeoutSecs int
		codePath    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "compile, instantiate, and execute one piece of source against the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			code, err := os.ReadFile(codePath)
			if err != nil {
				return fmt.Errorf("read source file: %w", err)
			}

			language, err := parseLanguage(lang)
			if err != nil {
				return err
			}
			trustLevel, err := parseTrust(trust)
			if err != nil {
				return err
			}
			hint, err := parseHint(hintName)
			if err != nil {
				return err
			}

			c, err := newController(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			result, err := c.Submit(ctx, language, code, hint, shared.ExecutionConfig{
				Timeout:     time.Duration(timeoutSecs) * time.Second,
				Permissions: shared.NewPermissions(trustLevel),
			})
			if err != nil {
				return fmt.Errorf("execute: %w", err)
			}

			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "python", "source language: rust|javascript|typescript|python|go|c|cpp|wasm")
	cmd.Flags().StringVar(&trust, "trust", "medium", "trust level: low|medium|high")
	cmd.Flags().StringVar(&hintName, "hint", "auto", "runtime hint: auto|filter|bytecode|dynamic")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 30, "execution timeout in seconds")
	cmd.Flags().StringVar(&codePath, "file", "", "path to the source file to execute")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the controller's initialization status and active instance count",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newController(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			return printJSON(c.GetStatus())
		},
	}
}

func runtimesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runtimes",
		Short: "list the backends the controller constructed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newController(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			return printJSON(c.GetAvailableRuntimes())
		},
	}
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "print the per-backend performance metrics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := newController(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(ctx)

			return printJSON(c.GetPerformanceMetrics())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print sandboxctl's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("sandboxctl dev")
			return nil
		},
	}
}

func parseLanguage(s string) (shared.Language, error) {
	switch s {
	case "rust":
		return shared.LanguageRust, nil
	case "javascript":
		return shared.LanguageJavaScript, nil
	case "typescript":
		return shared.LanguageTypeScript, nil
	case "python":
		return shared.LanguagePython, nil
	case "go":
		return shared.LanguageGo, nil
	case "c":
		return shared.LanguageC, nil
	case "cpp":
		return shared.LanguageCpp, nil
	case "wasm":
		return shared.LanguageWasm, nil
	default:
		return 0, fmt.Errorf("unknown language %q", s)
	}
}

func parseTrust(s string) (shared.TrustLevel, error) {
	switch s {
	case "low":
		return shared.TrustLow, nil
	case "medium":
		return shared.TrustMedium, nil
	case "high":
		return shared.TrustHigh, nil
	default:
		return 0, fmt.Errorf("unknown trust level %q", s)
	}
}

func parseHint(s string) (dispatcher.Hint, error) {
	switch s {
	case "auto":
		return dispatcher.HintAuto, nil
	case "filter":
		return dispatcher.HintPacketFilter, nil
	case "bytecode":
		return dispatcher.HintPortableBytecode, nil
	case "dynamic":
		return dispatcher.HintDynamicLanguage, nil
	default:
		return 0, fmt.Errorf("unknown runtime hint %q", s)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func init() {
	logging.SetLevelFromString(os.Getenv("SANDBOXCTL_LOG_LEVEL"))
}
