package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/missing-persons/internal/matching"
)

// mustFlag reads a flag registered in init(). A lookup error is a programming
// bug, not user input, so it panics.
func mustFlag[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(name, cmd.Flags().GetString)
}

func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	return mustFlag(name, cmd.Flags().GetFloat64)
}

// metricFlag parses --metric; an empty value selects the engine default.
func metricFlag(cmd *cobra.Command) (matching.Metric, error) {
	metric, err := matching.ParseMetric(mustGetString(cmd, "metric"))
	if err != nil {
		return matching.MetricUnset, fmt.Errorf("--metric: %w", err)
	}
	return metric, nil
}
