package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quickroll",
	Short: "Face recognition attendance backend",
	Long: `Quickroll enrolls students from face photos, recognises them in camera
frames and keeps a daily attendance log. It talks to an external face
embedding service and stores students and attendance in PostgreSQL,
MySQL or SQLite.`,
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
