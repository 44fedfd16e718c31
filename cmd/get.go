package cmd

import (
	"os"

	"storrent/internal/app"
	"storrent/internal/config"
	"storrent/internal/logging"
	"storrent/internal/ui"

	"github.com/spf13/cobra"
)

type GetFlags struct {
	ID      int
	DstPath string
}

var getFlags GetFlags

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Download a file from a server",
	Long: `Download one file from a storrent server. This will:

1. Connect to the server and fetch its listing
2. Check that the id exists and learn the file size
3. Stream the file to --dst, creating parent directories
4. Disconnect cleanly and print a summary

Ids come from the latest "storrent list" output and change when the
served directory changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := createContext("get")
		defer cancel()

		a := app.NewClientApp(cfg, *logging.FromContext(ctx), os.Stdout, ui.NewProgressUI())
		return a.Get(ctx, &app.GetOptions{ID: getFlags.ID, DstPath: getFlags.DstPath})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().IntVarP(&getFlags.ID, "id", "i", -1, "Id of the file to download (required)")
	getCmd.Flags().StringVarP(&getFlags.DstPath, "dst", "d", "", "Destination path to save the file (required)")
	_ = getCmd.MarkFlagRequired("id")
	_ = getCmd.MarkFlagRequired("dst")

	addClientFlags(getCmd)
}

// addClientFlags registers the connection flags shared by client commands
func addClientFlags(cmd *cobra.Command) {
	d := config.NewDefaultConfig().Client
	cmd.Flags().StringP("addr", "a", d.Addr, "Server address as host:port")
	cmd.Flags().Duration("dial-timeout", d.DialTimeout, "Give up connecting after this long")
}
