package main

import (
	"hive-chat/repositories"
	"log/slog"
	"strconv"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history <user1> <user2>",
		Short: "Print the conversation between two users",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The message repository leases ids from a badger sequence, which needs write access.
			db, err := openBadger(opts.badgerPath, false)
			if err != nil {
				return err
			}
			defer db.Close()
			store, err := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn))
			if err != nil {
				return err
			}
			defer store.Close()

			messages, err := store.Query(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			table := newTable(cmd, "ID", "Timestamp", "From", "To", "Text")
			for _, m := range messages {
				table.Append([]string{
					strconv.FormatUint(uint64(m.ID), 10),
					m.Timestamp.Format(time.RFC3339),
					m.SenderID,
					m.RecipientID,
					m.Text,
				})
			}
			table.Render()
			return nil
		},
	}
}
