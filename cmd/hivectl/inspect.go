package main

import (
	"hive-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

func newInspectCmd(opts *options) *cobra.Command {
	var prefix string
	var limit int
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Dump raw badger records, readable while the server runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openBadger(opts.badgerPath, true)
			if err != nil {
				return err
			}
			defer db.Close()

			table := newTable(cmd, "Key", "Type", "Detail")
			err = db.View(func(txn *badger.Txn) error {
				it := txn.NewIterator(badger.DefaultIteratorOptions)
				defer it.Close()
				count := 0
				for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
					if limit > 0 && count >= limit {
						break
					}
					item := it.Item()
					key := string(item.Key())
					val, err := item.ValueCopy(nil)
					if err != nil {
						return err
					}
					row := repositories.InspectMapper(key, val)
					table.Append([]string{key, row.Type, row.Detail})
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
			table.Render()
			return nil
		},
	}
	inspect.Flags().StringVar(&prefix, "prefix", "", "only keys starting with this prefix (msg:, user:, idx:)")
	inspect.Flags().IntVar(&limit, "limit", 100, "maximum number of records, 0 for all")
	return inspect
}
