package internal

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

const defaultInspectLimit = 100

// InspectRow is one badger entry as shown by the inspector.
type InspectRow struct {
	Key    string         `json:"key"`
	Size   int            `json:"size"`
	Fields map[string]any `json:"fields,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type RowMapper func(key string, val []byte) InspectRow

// InspectHandler lists the entries under the "prefix" query parameter as JSON.
// "limit" caps the number of rows.
func InspectHandler(db *badger.DB, mapper RowMapper) http.Handler {
	if mapper == nil {
		mapper = DefaultMapper
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := []byte(r.URL.Query().Get("prefix"))
		limit := defaultInspectLimit
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
			limit = n
		}

		rows := make([]InspectRow, 0)
		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix) && len(rows) < limit; it.Next() {
				item := it.Item()
				key := string(item.Key())
				if err := item.Value(func(val []byte) error {
					rows = append(rows, mapper(key, val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(rows)
	})
}

func DefaultMapper(key string, val []byte) InspectRow {
	return InspectRow{Key: key, Size: len(val)}
}
