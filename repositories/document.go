package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"pick-roll/contract"
	"pick-roll/errors"
	"pick-roll/runtime"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	keyPrefix      = "doc/"
	timestampField = "timestampValue"
)

// DocumentRepository is a contract.DocumentStore backed by BadgerDB.
// Every document lives under "doc/{path}" and is encoded as a protobuf Struct.
// Writes notify the subscribers of the document's parent collection once committed.
type DocumentRepository struct {
	db      *badger.DB
	log     *slog.Logger
	changes *runtime.Hub[struct{}]
	now     func() time.Time
}

func NewDocumentRepository(db *badger.DB, log *slog.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:      db,
		log:     log,
		changes: runtime.NewHub[struct{}](),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *DocumentRepository) Get(ctx context.Context, path string) (contract.Document, bool, error) {
	if err := validateDocumentPath(path); err != nil {
		return contract.Document{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return contract.Document{}, false, err
	}

	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + path))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return contract.Document{}, false, nil
	}
	if err != nil {
		return contract.Document{}, false, fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}

	doc, err := decodeDocument(path, raw)
	if err != nil {
		return contract.Document{}, false, err
	}
	return doc, true, nil
}

// Set creates or replaces the document at path.
func (r *DocumentRepository) Set(ctx context.Context, path string, fields contract.Fields) error {
	if err := validateDocumentPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeFields(fields, r.now())
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+path), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}
	r.changes.Publish(parentCollection(path), struct{}{})
	return nil
}

// Create stores the document at path, failing with ErrAlreadyExists if one is there.
func (r *DocumentRepository) Create(ctx context.Context, path string, fields contract.Fields) error {
	if err := validateDocumentPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeFields(fields, r.now())
	if err != nil {
		return err
	}
	key := []byte(keyPrefix + path)
	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %s", errors.ErrAlreadyExists, path)
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if stderrors.Is(err, errors.ErrAlreadyExists) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}
	r.changes.Publish(parentCollection(path), struct{}{})
	return nil
}

// Update merges fields into an existing document.
func (r *DocumentRepository) Update(ctx context.Context, path string, fields contract.Fields) error {
	if err := validateDocumentPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(keyPrefix + path)
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrNotFound, path)
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		existing, err := decodeDocument(path, raw)
		if err != nil {
			return err
		}
		for k, v := range fields {
			existing.Fields[k] = v
		}
		data, err := encodeFields(existing.Fields, r.now())
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if stderrors.Is(err, errors.ErrNotFound) || stderrors.Is(err, errors.ErrInvalidArgument) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}
	r.changes.Publish(parentCollection(path), struct{}{})
	return nil
}

// Add stores fields as a new document with a generated id.
func (r *DocumentRepository) Add(ctx context.Context, collection string, fields contract.Fields) (string, error) {
	if err := validateCollectionPath(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := r.Set(ctx, collection+"/"+id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Query returns the direct children of collection, sorted by order.
// Documents missing the order field come after the others.
func (r *DocumentRepository) Query(ctx context.Context, collection string, order contract.Order) ([]contract.Document, error) {
	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(keyPrefix + collection + "/")
	var docs []contract.Document
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			// Skip documents of nested sub-collections
			if strings.Contains(id, "/") {
				continue
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			doc, err := decodeDocument(collection+"/"+id, raw)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err)
	}

	sortDocuments(docs, order)
	if order.Limit > 0 && len(docs) > order.Limit {
		docs = docs[:order.Limit]
	}
	return docs, nil
}

// Subscribe delivers the current ordered snapshot of collection, then a fresh
// snapshot after every committed write to it. Bursts of writes may be
// coalesced into a single delivery. A failing initial read is returned.
func (r *DocumentRepository) Subscribe(ctx context.Context, collection string, order contract.Order,
	onChange func([]contract.Document)) (contract.Unsubscribe, error) {
	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}
	// Listen before the first read so no commit falls between the two
	changed := make(chan struct{}, 1)
	stop := r.changes.Subscribe(collection, func(struct{}) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	initial, err := r.Query(ctx, collection, order)
	if err != nil {
		stop()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer stop()
		if subCtx.Err() != nil {
			return
		}
		onChange(initial)
		for {
			select {
			case <-subCtx.Done():
				return
			case <-changed:
				docs, err := r.Query(subCtx, collection, order)
				if subCtx.Err() != nil {
					return
				}
				if err != nil {
					r.log.Error("Snapshot refresh failed", "collection", collection, "error", err)
					continue
				}
				onChange(docs)
			}
		}
	}()

	return contract.Unsubscribe(cancel), nil
}

func sortDocuments(docs []contract.Document, order contract.Order) {
	if order.Field == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		vi, iok := docs[i].Fields[order.Field]
		vj, jok := docs[j].Fields[order.Field]
		switch {
		case !iok && !jok:
			return docs[i].ID < docs[j].ID
		case !iok:
			return false
		case !jok:
			return true
		}
		c := compareValues(vi, vj)
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if order.Direction == contract.Descending {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	switch va := a.(type) {
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb)
		}
	case float64:
		if vb, ok := b.(float64); ok {
			switch {
			case va < vb:
				return -1
			case va > vb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func encodeFields(fields contract.Fields, now time.Time) ([]byte, error) {
	plain := make(map[string]any, len(fields))
	for k, v := range fields {
		plain[k] = toPlainValue(v, now)
	}
	s, err := structpb.NewStruct(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	return proto.Marshal(s)
}

func toPlainValue(v any, now time.Time) any {
	switch value := v.(type) {
	case time.Time:
		return map[string]any{timestampField: value.UTC().Format(time.RFC3339Nano)}
	case []string:
		out := make([]any, len(value))
		for i, s := range value {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = toPlainValue(item, now)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = toPlainValue(item, now)
		}
		return out
	case contract.Fields:
		return toPlainValue(map[string]any(value), now)
	default:
		if v == contract.ServerTimestamp {
			return toPlainValue(now, now)
		}
		return v
	}
}

// DecodeEntry turns a raw badger entry written by the repository back into a document.
func DecodeEntry(key string, val []byte) (contract.Document, error) {
	path, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return contract.Document{}, fmt.Errorf("%w: %q is not a document key", errors.ErrInvalidArgument, key)
	}
	return decodeDocument(path, val)
}

func decodeDocument(path string, raw []byte) (contract.Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(raw, &s); err != nil {
		return contract.Document{}, fmt.Errorf("%w: corrupted document %s: %v", errors.ErrBackendUnavailable, path, err)
	}
	fields := make(contract.Fields, len(s.GetFields()))
	for k, v := range s.AsMap() {
		fields[k] = fromPlainValue(v)
	}
	return contract.Document{
		ID:     path[strings.LastIndex(path, "/")+1:],
		Path:   path,
		Fields: fields,
	}, nil
}

func fromPlainValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		if raw, ok := value[timestampField].(string); ok && len(value) == 1 {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return t
			}
		}
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = fromPlainValue(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = fromPlainValue(item)
		}
		return out
	default:
		return v
	}
}

func segments(path string) ([]string, error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return nil, fmt.Errorf("%w: malformed path %q", errors.ErrInvalidArgument, path)
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return nil, fmt.Errorf("%w: malformed path %q", errors.ErrInvalidArgument, path)
		}
	}
	return parts, nil
}

func validateDocumentPath(path string) error {
	parts, err := segments(path)
	if err != nil {
		return err
	}
	if len(parts)%2 != 0 {
		return fmt.Errorf("%w: %q is not a document path", errors.ErrInvalidArgument, path)
	}
	return nil
}

func validateCollectionPath(path string) error {
	parts, err := segments(path)
	if err != nil {
		return err
	}
	if len(parts)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", errors.ErrInvalidArgument, path)
	}
	return nil
}

func parentCollection(documentPath string) string {
	return documentPath[:strings.LastIndex(documentPath, "/")]
}
