// Package cmd provides the CLI commands for the policy decision point.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/Sentinelgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentinel-gate",
	Short: "Sentinel Gate - XACML 3.0 policy decision point core",
	Long: `Sentinel Gate is a XACML 3.0 policy decision point evaluation engine.

It evaluates one access request against a tree of Policy/PolicySet/Rule
evaluators and produces a Permit/Deny/NotApplicable/Indeterminate decision,
the obligations and advice it fulfilled, and the set of policies that
contributed to the answer.

Quick start:
  1. Write a policy document: policy.yaml (see internal/adapter/outbound/yamlpolicy)
  2. Run: sentinel-gate validate-policy policy.yaml
  3. Run: sentinel-gate evaluate --request admin (a bundled sample request
     against the bundled demo policy set)

Configuration:
  Config is loaded from sentinel-gate.yaml in the current directory,
  $HOME/.sentinel-gate/, or /etc/sentinel-gate/.

  Environment variables can override config values with the SENTINEL_GATE_ prefix.
  Example: SENTINEL_GATE_LOG_LEVEL=debug

Commands:
  evaluate        Evaluate a sample request against the demo policy set
  validate-policy Compile a policy document and report syntax errors
  watch           Hot-reload a policy document on every change
  version         Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sentinel-gate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
