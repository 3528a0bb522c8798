package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "missing-persons",
	Short: "Register missing persons and search them by face",
	Long: `Missing Persons keeps a registry of missing persons together with a face
embedding of their reference photo. A photo of an unknown person can then be
searched against the registry, returning candidates ranked by facial similarity.

Storage backends: sqlite (default), postgres (when DATABASE_URL is set), memory.
Embeddings come from the face embedding server at EMBEDDING_URL, or from a local
colour-histogram encoder when it is not set.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
