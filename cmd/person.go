package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/missing-persons/internal/database"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Manage missing person records",
}

var personAddCmd = &cobra.Command{
	Use:   "add <photo>",
	Short: "Register a missing person from a reference photo",
	Long: `Register a missing person. The face embedding of the photo is computed and
stored with the metadata; the photo is copied to UPLOAD_DIR.

Examples:
  missing-persons person add jana.jpg --name "Jana Nováková" --age 34 \
    --date-missing 2024-03-01 --contact "+420 123 456 789"`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonAdd,
}

var personListCmd = &cobra.Command{
	Use:   "list",
	Short: "List missing persons, newest first",
	Args:  cobra.NoArgs,
	RunE:  runPersonList,
}

var personShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a missing person record",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonShow,
}

func init() {
	rootCmd.AddCommand(personCmd)
	personCmd.AddCommand(personAddCmd, personListCmd, personShowCmd)

	personAddCmd.Flags().String("name", "", "Full name (required)")
	personAddCmd.Flags().String("age", "", "Age or age range")
	personAddCmd.Flags().String("description", "", "Physical description, clothing, circumstances")
	personAddCmd.Flags().String("date-missing", "", "Date last seen")
	personAddCmd.Flags().String("contact", "", "Contact for information")
	personAddCmd.Flags().Bool("json", false, "Output as JSON")

	personListCmd.Flags().String("name", "", "Filter by name (diacritics ignored)")
	personListCmd.Flags().Int("limit", 50, "Maximum number of records (0 = no limit)")
	personListCmd.Flags().Int("offset", 0, "Number of records to skip")
	personListCmd.Flags().Bool("json", false, "Output as JSON")

	personShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// addPerson embeds the photo, stores a copy and inserts the record.
func addPerson(ctx context.Context, svc *services, meta database.PersonMetadata, photoPath string) (int64, error) {
	meta = database.NormalizeMetadata(meta)
	if err := database.ValidateMetadata(meta); err != nil {
		return 0, err
	}

	data, err := readPhotoFile(photoPath)
	if err != nil {
		return 0, err
	}
	embedding, err := svc.embedder.Embed(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", photoPath, err)
	}

	name, err := svc.photos.Save(data, filepath.Base(photoPath))
	if err != nil {
		return 0, err
	}
	meta.PhotoPath = name

	id, err := svc.store.Put(ctx, meta, embedding, svc.model)
	if err != nil {
		_ = svc.photos.Remove(name)
		return 0, err
	}
	return id, nil
}

func runPersonAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	meta := database.PersonMetadata{
		Name:        mustGetString(cmd, "name"),
		AgeLabel:    mustGetString(cmd, "age"),
		Description: mustGetString(cmd, "description"),
		DateMissing: mustGetString(cmd, "date-missing"),
		Contact:     mustGetString(cmd, "contact"),
	}
	id, err := addPerson(ctx, svc, meta, args[0])
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(map[string]any{"success": true, "id": id})
	}
	fmt.Printf("Missing person added with id %d\n", id)
	return nil
}

func runPersonList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	records, err := svc.store.List(ctx, database.ListOptions{
		Name:   mustGetString(cmd, "name"),
		Limit:  mustGetInt(cmd, "limit"),
		Offset: mustGetInt(cmd, "offset"),
	})
	if err != nil {
		return fmt.Errorf("failed to list persons: %w", err)
	}

	if mustGetBool(cmd, "json") {
		out := make([]personJSON, 0, len(records))
		for i := range records {
			out = append(out, toPersonJSON(&records[i]))
		}
		return printJSON(out)
	}

	if len(records) == 0 {
		fmt.Println("No missing persons found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAGE\tDATE MISSING\tCONTACT\tADDED")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, dash(r.AgeLabel), dash(r.DateMissing), dash(r.Contact), r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runPersonShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}

	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	rec, err := svc.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(toPersonJSON(rec))
	}
	fmt.Printf("ID:           %d\n", rec.ID)
	fmt.Printf("Name:         %s\n", rec.Name)
	fmt.Printf("Age:          %s\n", dash(rec.AgeLabel))
	fmt.Printf("Description:  %s\n", dash(rec.Description))
	fmt.Printf("Date missing: %s\n", dash(rec.DateMissing))
	fmt.Printf("Contact:      %s\n", dash(rec.Contact))
	fmt.Printf("Photo:        %s\n", dash(rec.PhotoPath))
	fmt.Printf("Embedding:    %s, %d dimensions\n", dash(rec.Model), rec.Dim)
	fmt.Printf("Added:        %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
