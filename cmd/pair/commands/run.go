package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/internal/broker"
	"github.com/pair-run/pair/internal/config"
	"github.com/pair-run/pair/internal/loop"
	"github.com/pair-run/pair/internal/logging"
	"github.com/pair-run/pair/internal/tracker"
)

var (
	runDir              string
	runDriverMCP        string
	runNavigatorMCP     string
	runArchitectModel   string
	runDriverModel      string
	runNavigatorModel   string
	runArchitectBackend string
	runDriverBackend    string
	runNavigatorBackend string
)

var runCmd = &cobra.Command{
	Use:   "run [task description...]",
	Short: "Run a pairing session for the given task",
	Long: `Run starts an Architect planning pass followed by a Driver/Navigator
execution loop for the given task description.

Examples:
  pair run "Add a logout button to the header"
  pair run --directory ./myrepo "Fix the failing test in parser_test.go"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImplementation,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "directory", "", "Project directory (defaults to the current directory)")
	runCmd.Flags().StringVar(&runDriverMCP, "driver-mcp-endpoint", "", "MCP endpoint for the Driver's tool surface (passed to the provider config; no built-in backend reads it)")
	runCmd.Flags().StringVar(&runNavigatorMCP, "navigator-mcp-endpoint", "", "MCP endpoint for the Navigator's tool surface (passed to the provider config; no built-in backend reads it)")
	runCmd.Flags().StringVar(&runArchitectBackend, "architect-provider", "", "Override the configured Architect provider")
	runCmd.Flags().StringVar(&runDriverBackend, "driver-provider", "", "Override the configured Driver provider")
	runCmd.Flags().StringVar(&runNavigatorBackend, "navigator-provider", "", "Override the configured Navigator provider")
	runCmd.Flags().StringVar(&runArchitectModel, "architect-model", "", "Override the configured Architect model")
	runCmd.Flags().StringVar(&runDriverModel, "driver-model", "", "Override the configured Driver model")
	runCmd.Flags().StringVar(&runNavigatorModel, "navigator-model", "", "Override the configured Navigator model")
}

func runImplementation(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyRunOverrides(cfg)

	task := strings.Join(args, " ")

	registry := agentprovider.Default()
	tr := tracker.New()
	br := broker.New(time.Duration(cfg.PermissionTimeoutMS)*time.Millisecond, logging.Logger)
	l := loop.New(cfg, registry, tr, br, logging.Logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result := l.Run(ctx, loop.RunOptions{
		Task:                 task,
		ProjectPath:          workDir,
		DriverMCPEndpoint:    runDriverMCP,
		NavigatorMCPEndpoint: runNavigatorMCP,
	})

	return reportResult(result)
}

// applyRunOverrides layers CLI-provided provider/model overrides on top
// of the loaded config, mirroring the --model flag of the CLI this one
// was grown from.
func applyRunOverrides(cfg *config.Config) {
	if runArchitectBackend != "" {
		cfg.Architect.Provider = runArchitectBackend
	}
	if runDriverBackend != "" {
		cfg.Driver.Provider = runDriverBackend
	}
	if runNavigatorBackend != "" {
		cfg.Navigator.Provider = runNavigatorBackend
	}
	if runArchitectModel != "" {
		cfg.Architect.Model = runArchitectModel
	}
	if runDriverModel != "" {
		cfg.Driver.Model = runDriverModel
	}
	if runNavigatorModel != "" {
		cfg.Navigator.Model = runNavigatorModel
	}
}

// reportResult prints the run's outcome and translates it into the
// process exit status: 0 for COMPLETE, 1 otherwise.
func reportResult(result loop.Result) error {
	switch result.Outcome {
	case loop.OutcomeComplete:
		fmt.Println("Implementation complete.")
		if result.Summary != "" {
			fmt.Printf("Summary: %s\n", result.Summary)
		}
		return nil
	default:
		reason := result.Reason
		if reason == "" {
			reason = "unknown"
		}
		if result.Err != nil {
			return fmt.Errorf("run failed (%s): %w", reason, result.Err)
		}
		return fmt.Errorf("run failed (%s)", reason)
	}
}
