package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/demo"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/metrics"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/tracing"
	"github.com/Sentinel-Gate/Sentinelgate/internal/config"
	"github.com/Sentinel-Gate/Sentinelgate/internal/service"
)

var evaluateRequestName string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a sample request against the demo policy set",
	Long: `Evaluate compiles the bundled demo PolicySet and runs one of its sample
requests ("admin", "delete-critical", or "plain") through the evaluation
core, printing the resulting decision, its status, and any obligations or
advice it fulfilled.

This command exercises the evaluation engine end-to-end without a host
application: the demo providers in internal/adapter/outbound/demo stand in
for a real policy-administration/request-decoding layer, which stays out
of scope for this module.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateRequestName, "request", "admin", "sample request to evaluate: admin, delete-critical, or plain")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadEvaluateConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	root, err := demo.BuildRoot(cfg.MaxReferenceChainDepth)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	evalCtx, err := demo.SampleRequest(evaluateRequestName)
	if err != nil {
		return err
	}

	tp, shutdownTracer, err := tracing.New(cfg.DevMode)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	defer func() { _ = shutdownTracer(cmd.Context()) }()

	mp, shutdownMeter, err := tracing.NewMeterProvider(cfg.DevMode)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	defer func() { _ = shutdownMeter(cmd.Context()) }()

	svc, err := service.NewEvaluationService(root, cfg.MaxReferenceChainDepth, logger, metrics.New(nil), tracing.Tracer(tp, "sentinel-gate/evaluate"), mp)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	result, err := svc.Evaluate(context.Background(), evalCtx)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	fmt.Printf("request:  %s\n", evaluateRequestName)
	fmt.Printf("decision: %s\n", result.Decision.Type)
	if result.Decision.Status.Code != 0 {
		fmt.Printf("status:   %s\n", result.Decision.Status)
	}
	fmt.Printf("latency:  %s\n", result.Latency)
	if len(result.Decision.PepActions) > 0 {
		fmt.Println("pep actions:")
		for _, a := range result.Decision.PepActions {
			fmt.Printf("  - %s (mandatory=%v)\n", a.ID, a.IsMandatory)
			for _, asn := range a.Assignments {
				fmt.Printf("      %s = %v\n", asn.AttributeID, asn.Value.Value)
			}
		}
	}
	if len(result.Decision.ApplicablePolicies) > 0 {
		names := make([]string, 0, len(result.Decision.ApplicablePolicies))
		for _, p := range result.Decision.ApplicablePolicies {
			names = append(names, p.String())
		}
		fmt.Printf("applicable policies: %s\n", strings.Join(names, ", "))
	}
	return nil
}

func loadEvaluateConfig() (*config.PDPConfig, error) {
	config.InitViper(cfgFile)
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.PDPConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if f := config.ConfigFileUsed(); f != "" {
		logger.Debug("loaded config", "file", f)
	}
	return logger
}
