package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/missing-persons/internal/matching"
)

var compareCmd = &cobra.Command{
	Use:   "compare <photo-a> <photo-b>",
	Short: "Compare the faces in two photos",
	Long: `Compute the face embeddings of two photos and report their distance and
whether they are within the match threshold.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Float64("threshold", 0, "Maximum distance for a match (0 = model default)")
	compareCmd.Flags().String("metric", "", "Distance metric: euclidean or cosine (default from model)")
	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCompare(cmd *cobra.Command, args []string) error {
	metric, err := metricFlag(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	embeddings := make([][]float32, 0, 2)
	for _, path := range args {
		data, err := readPhotoFile(path)
		if err != nil {
			return err
		}
		emb, err := svc.embedder.Embed(ctx, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		embeddings = append(embeddings, emb)
	}

	cmp, err := svc.engine.Compare(embeddings[0], embeddings[1], mustGetFloat64(cmd, "threshold"), metric)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(map[string]any{
			"match":      cmp.Match,
			"distance":   matching.DisplayDistance(cmp.Distance),
			"confidence": matching.ConfidencePercent(cmp.Confidence),
		})
	}
	verdict := "different people"
	if cmp.Match {
		verdict = "same person"
	}
	fmt.Printf("Distance:   %.4f\n", cmp.Distance)
	fmt.Printf("Confidence: %.2f%%\n", cmp.Confidence*100)
	fmt.Printf("Verdict:    %s\n", verdict)
	return nil
}
