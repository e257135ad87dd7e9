package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"pick-roll/repositories"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Dumps stored documents as a table, optionally restricted to a path prefix.
//
//	go run ./cmd/inspect -db ./data/badger -prefix private-chats/
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "", "Document path prefix to scan")
	limit := flag.Int("limit", 0, "Maximum number of documents, 0 for all")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "ID", "Size", "Fields"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seek := []byte("doc/" + *prefix)
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			if *limit > 0 && count >= *limit {
				break
			}
			item := it.Item()
			key := string(item.Key())
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			count++
			doc, err := repositories.DecodeEntry(key, val)
			if err != nil {
				table.Append([]string{strings.TrimPrefix(key, "doc/"), "", fmt.Sprint(len(val)), err.Error()})
				continue
			}
			fields, err := json.Marshal(doc.Fields)
			if err != nil {
				return err
			}
			table.Append([]string{doc.Path, doc.ID, fmt.Sprint(len(val)), string(fields)})
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("%d document(s)\n", count)
}
