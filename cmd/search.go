package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/matching"
)

var searchCmd = &cobra.Command{
	Use:   "search <photo>",
	Short: "Search the registry for the person in a photo",
	Long: `Compute the face embedding of a photo and rank all registered persons whose
embedding lies within the distance threshold. Confidence is 100% for an identical
face and falls linearly to 0% at the threshold.

Use --nearest to list the k closest records regardless of the threshold, using
the approximate HNSW index.

Examples:
  missing-persons search unknown.jpg
  missing-persons search unknown.jpg --threshold 0.4 --top 5
  missing-persons search unknown.jpg --metric cosine --json
  missing-persons search unknown.jpg --nearest 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Float64("threshold", 0, "Maximum distance for a match (0 = model default)")
	searchCmd.Flags().String("metric", "", "Distance metric: euclidean or cosine (default from model)")
	searchCmd.Flags().Int("top", 0, "Show at most N matches (0 = all)")
	searchCmd.Flags().Int("nearest", 0, "List the N nearest records ignoring the threshold")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
}

// matchJSON is a search candidate joined with its record.
type matchJSON struct {
	PersonID    int64   `json:"person_id"`
	Name        string  `json:"name"`
	Age         string  `json:"age,omitempty"`
	DateMissing string  `json:"date_missing,omitempty"`
	Contact     string  `json:"contact,omitempty"`
	Distance    float64 `json:"distance"`
	Confidence  float64 `json:"confidence"` // percent
}

// SearchOutput represents the JSON output structure
type SearchOutput struct {
	Photo     string      `json:"photo"`
	Metric    string      `json:"metric"`
	Threshold float64     `json:"threshold"`
	Scanned   int         `json:"scanned"`
	Skipped   int         `json:"skipped"`
	Matches   []matchJSON `json:"matches"`
}

func joinMatches(ctx context.Context, svc *services, matches []matching.Match) ([]matchJSON, error) {
	out := make([]matchJSON, 0, len(matches))
	for _, m := range matches {
		rec, err := svc.store.Get(ctx, m.PersonID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, matchJSON{
			PersonID:    rec.ID,
			Name:        rec.Name,
			Age:         rec.AgeLabel,
			DateMissing: rec.DateMissing,
			Contact:     rec.Contact,
			Distance:    matching.DisplayDistance(m.Distance),
			Confidence:  matching.ConfidencePercent(m.Confidence),
		})
	}
	return out, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	metric, err := metricFlag(cmd)
	if err != nil {
		return err
	}
	threshold := mustGetFloat64(cmd, "threshold")
	nearest := mustGetInt(cmd, "nearest")

	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	data, err := readPhotoFile(args[0])
	if err != nil {
		return err
	}
	query, err := svc.embedder.Embed(ctx, data)
	if err != nil {
		if errors.Is(err, apperr.ErrNoFaceDetected) {
			return errors.New("no face detected in photo, use a clear photo with a visible face")
		}
		return err
	}

	out := SearchOutput{Photo: args[0]}
	var matches []matching.Match

	if nearest > 0 {
		matches, err = svc.engine.Nearest(ctx, query, nearest, matching.SearchOptions{
			Threshold: threshold,
			Metric:    metric,
			Model:     svc.model,
		})
		if err != nil {
			return err
		}
		if metric == matching.MetricUnset {
			metric = svc.engine.Metric()
		}
		if threshold == 0 {
			threshold = svc.engine.Threshold()
		}
		out.Metric = metric.String()
		out.Threshold = threshold
	} else {
		res, err := svc.engine.SearchWithReport(ctx, query, matching.SearchOptions{
			Threshold: threshold,
			Metric:    metric,
			Model:     svc.model,
		})
		if err != nil {
			return err
		}
		matches = res.Matches
		out.Metric = res.Metric.String()
		out.Threshold = res.Threshold
		out.Scanned = res.Scanned
		out.Skipped = res.Skipped.Total()
	}

	if top := mustGetInt(cmd, "top"); top > 0 && len(matches) > top {
		matches = matches[:top]
	}
	if out.Matches, err = joinMatches(ctx, svc, matches); err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(out)
	}

	if nearest > 0 {
		fmt.Printf("Metric: %s, %d nearest records (confidence against threshold %.3f)\n", out.Metric, nearest, out.Threshold)
	} else {
		fmt.Printf("Metric: %s, threshold: %.3f, scanned: %d, skipped: %d\n", out.Metric, out.Threshold, out.Scanned, out.Skipped)
	}
	if len(out.Matches) == 0 {
		fmt.Println("No matches found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tNAME\tAGE\tDATE MISSING\tDISTANCE\tCONFIDENCE")
	for i, m := range out.Matches {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%.4f\t%.2f%%\n",
			i+1, m.PersonID, m.Name, dash(m.Age), dash(m.DateMissing), m.Distance, m.Confidence)
	}
	return w.Flush()
}
