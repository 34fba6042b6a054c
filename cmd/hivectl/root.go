package main

import (
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type options struct {
	badgerPath string
	authSecret string
	tokenTTL   time.Duration
}

// newRootCmd builds the administration CLI. Commands that write open the badger
// directory exclusively, so the server must be stopped; inspect works alongside it.
func newRootCmd() *cobra.Command {
	_ = godotenv.Load()
	opts := &options{}
	root := &cobra.Command{
		Use:           "hivectl",
		Short:         "Administration tool for the hive chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&opts.badgerPath, "badger-path", envOr("BADGER_FILEPATH", "./data/badger"),
		"badger data directory")

	root.AddCommand(
		newUsersCmd(opts),
		newHistoryCmd(opts),
		newInspectCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func openBadger(path string, readOnly bool) (*badger.DB, error) {
	options := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if readOnly {
		options = options.WithReadOnly(true).WithBypassLockGuard(true)
	}
	return badger.Open(options)
}

func newTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
