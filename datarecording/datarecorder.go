// Package datarecording stores simulation output in SQLite tables.
//
// A table is created from a sample struct; each exported field becomes a
// column. Entries are buffered and written in one transaction per flush.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists. The
	// entry must have the type of the sample the table was created with.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all the tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 10000

// New creates a DataRecorder writing to path + ".sqlite3". A unique name is
// generated if path is empty. The buffered entries are flushed when the
// program exits through atexit.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "procsim_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	w := newSQLiteWriter(db)
	w.filename = filename

	atexit.Register(func() { w.Flush() })

	return w, nil
}

type table struct {
	structType reflect.Type
	insertSQL  string
	entries    []any
}

type sqliteWriter struct {
	lock sync.Mutex
	db   *sql.DB

	filename   string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

func newSQLiteWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		db:        db,
		tables:    make(map[string]*table),
		batchSize: defaultBatchSize,
	}
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("entry %T is not a struct", entry)
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !isAllowedKind(field.Type.Kind()) {
			return fmt.Errorf("field %s of %s has unsupported type %s",
				field.Name, t, field.Type)
		}
	}

	return nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	names := structs.Names(sampleEntry)

	createSQL := "CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(names, ",\n\t") + "\n);"
	w.mustExecute(createSQL)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		insertSQL: "INSERT INTO " + tableName +
			" VALUES (" + placeholders + ")",
	}
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	t, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("table %s expects %s, got %T",
			tableName, t.structType, entry))
	}

	t.entries = append(t.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.flush()
	}
}

func (w *sqliteWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (w *sqliteWriter) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.flush()
}

func (w *sqliteWriter) flush() {
	if w.entryCount == 0 || w.closed {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		if err := insertAll(tx, t); err != nil {
			_ = tx.Rollback()
			panic(err)
		}

		t.entries = nil
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.entryCount = 0
}

func insertAll(tx *sql.Tx, t *table) error {
	stmt, err := tx.Prepare(t.insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return err
		}
	}

	return nil
}

func (w *sqliteWriter) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return nil
	}

	w.flush()
	w.closed = true

	if err := w.db.Close(); err != nil {
		return err
	}

	if w.filename != "" {
		fmt.Fprintf(os.Stderr, "Data recorded in %s\n", w.filename)
	}

	return nil
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.db.Exec(query)
	if err != nil {
		panic(errors.Join(fmt.Errorf("failed to execute %q", query), err))
	}

	return res
}
