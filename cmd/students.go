package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Manage enrolled students",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students",
	Long: `List enrolled students in enrollment order.

Examples:
  quickroll students list
  quickroll students list --query novak`,
	Args: cobra.NoArgs,
	RunE: runStudentsList,
}

var studentsGetCmd = &cobra.Command{
	Use:   "get <student-id>",
	Short: "Show one student",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentsGet,
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete <student-id>",
	Short: "Delete a student and its embeddings",
	Long: `Delete a student and all of its face embeddings.
Attendance records of the student are kept.

Example:
  quickroll students delete STU001 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentsDelete,
}

func init() {
	rootCmd.AddCommand(studentsCmd)
	studentsCmd.AddCommand(studentsListCmd)
	studentsCmd.AddCommand(studentsGetCmd)
	studentsCmd.AddCommand(studentsDeleteCmd)

	studentsListCmd.Flags().String("query", "", "Filter by id or name (case and diacritics insensitive)")
	studentsListCmd.Flags().Bool("json", false, "Output as JSON")
	studentsDeleteCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runStudentsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := mustGetString(cmd, "query")
	asJSON := mustGetBool(cmd, "json")

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	students, err := e.roster.List(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(students)
	}

	if len(students) == 0 {
		fmt.Println("No students found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENROLLED")
	fmt.Fprintln(w, "--\t----\t--------")
	for _, s := range students {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.StudentID, s.Name, s.CreatedAt.Format(time.DateTime))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d students\n", len(students))
	return nil
}

func runStudentsGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	student, err := e.roster.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get student: %w", err)
	}

	fmt.Printf("ID:       %s\n", student.StudentID)
	fmt.Printf("Name:     %s\n", student.Name)
	fmt.Printf("Enrolled: %s\n", student.CreatedAt.Format(time.RFC3339))
	return nil
}

func runStudentsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	skipConfirm := mustGetBool(cmd, "yes")

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	student, err := e.roster.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get student: %w", err)
	}

	if !skipConfirm && !confirmAction(fmt.Sprintf("Delete %s (%s)? [y/N]: ", student.Name, student.StudentID)) {
		fmt.Println("Aborted.")
		return nil
	}

	if err := e.roster.Delete(ctx, student.StudentID); err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	fmt.Printf("Deleted %s. Running servers pick this up on their next reload.\n", student.StudentID)
	return nil
}
