package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/constants"
	"github.com/kozaktomas/missing-persons/internal/database"
)

var importCmd = &cobra.Command{
	Use:   "import <manifest.csv>",
	Short: "Register many missing persons from a CSV manifest",
	Long: `Import missing persons in bulk. The manifest is a CSV file with a header row;
the columns name and photo are required, age, description, date_missing and
contact are optional. Photo paths are relative to the manifest's directory.

Rows whose photo has no detectable face or fails validation are reported and
skipped. A storage failure stops the import.

Example manifest:
  name,age,description,date_missing,contact,photo
  Jana Nováková,34,red jacket,2024-03-01,+420 123 456 789,photos/jana.jpg

Examples:
  missing-persons import manifest.csv
  missing-persons import manifest.csv --concurrency 8`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel workers")
}

// manifestRow is one person to import.
type manifestRow struct {
	Line  int
	Meta  database.PersonMetadata
	Photo string
}

// parseManifest reads a CSV manifest. Photo paths are resolved against baseDir.
func parseManifest(r io.Reader, baseDir string) ([]manifestRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"name", "photo"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("manifest is missing the %q column", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []manifestRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", line, err)
		}

		photo := field(record, "photo")
		if photo != "" && !filepath.IsAbs(photo) {
			photo = filepath.Join(baseDir, photo)
		}
		rows = append(rows, manifestRow{
			Line: line,
			Meta: database.PersonMetadata{
				Name:        field(record, "name"),
				AgeLabel:    field(record, "age"),
				Description: field(record, "description"),
				DateMissing: field(record, "date_missing"),
				Contact:     field(record, "contact"),
			},
			Photo: photo,
		})
	}
	return rows, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	f, err := os.Open(filepath.Clean(args[0]))
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	rows, err := parseManifest(f, filepath.Dir(args[0]))
	f.Close()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("Manifest has no rows")
		return nil
	}

	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	fmt.Printf("Importing %d persons with %d workers\n\n", len(rows), concurrency)

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetDescription("Importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("persons"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var mu sync.Mutex
	var imported int
	var failures []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, row := range rows {
		g.Go(func() error {
			defer bar.Add(1)

			id, err := addPerson(gctx, svc, row.Meta, row.Photo)
			if err != nil {
				if errors.Is(err, apperr.ErrStorage) || errors.Is(err, context.Canceled) {
					return fmt.Errorf("line %d: %w", row.Line, err)
				}
				mu.Lock()
				failures = append(failures, fmt.Sprintf("line %d (%s): %v", row.Line, row.Meta.Name, err))
				mu.Unlock()
				svc.logger.Debug("import row skipped", zap.Int("line", row.Line), zap.Error(err))
				return nil
			}

			mu.Lock()
			imported++
			mu.Unlock()
			svc.logger.Debug("person imported", zap.Int("line", row.Line), zap.Int64("person_id", id))
			return nil
		})
	}
	err = g.Wait()
	fmt.Println()

	for _, failure := range failures {
		fmt.Printf("Skipped %s\n", failure)
	}
	fmt.Printf("\nCompleted: %d imported, %d skipped\n", imported, len(failures))
	if err != nil {
		return fmt.Errorf("import stopped: %w", err)
	}
	return nil
}
