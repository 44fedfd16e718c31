package cmd

import (
	"os"
	"strings"

	"storrent/internal/app"
	"storrent/internal/logging"
	"storrent/internal/ui"

	"github.com/spf13/cobra"
)

type ListFlags struct {
	Filter string
}

var listFlags ListFlags

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [keywords...]",
	Short: "List the files of a server",
	Long: `List the files served by a storrent server as a table of id, name and size.

Keywords given with --filter or as arguments keep only the files whose name
and readable size contain every keyword, ignoring case.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := createContext("list")
		defer cancel()

		filter := strings.TrimSpace(listFlags.Filter + " " + strings.Join(args, " "))
		a := app.NewClientApp(cfg, *logging.FromContext(ctx), os.Stdout, ui.NewProgressUI())
		return a.List(ctx, &app.ListOptions{Filter: filter})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFlags.Filter, "filter", "f", "", "Keywords the listed files must match")
	addClientFlags(listCmd)
}
