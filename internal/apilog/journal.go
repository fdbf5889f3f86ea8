// Package apilog persists API order logs to SQLite for audit. Writes are
// asynchronous: callers enqueue and a single writer goroutine persists, so
// logging never blocks the order placement path.
package apilog

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type entry struct {
	apiType  string
	request  any
	response any
	at       time.Time
}

// Journal is the async order-log sink backed by SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB

	ch   chan entry
	done chan struct{}

	// OnDrop is called when a record is dropped because the queue is full.
	// Optional; set before first Log call.
	OnDrop func()
}

// NewJournal opens (or creates) the order-log database and starts the
// writer goroutine. queueSize bounds how many records may be in flight.
func NewJournal(dbPath string, queueSize int) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS order_log (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		api_type      TEXT NOT NULL,
		request_data  TEXT NOT NULL,
		response_data TEXT NOT NULL,
		created_at    DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_log_api_type ON order_log(api_type);
	CREATE INDEX IF NOT EXISTS idx_order_log_created_at ON order_log(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if queueSize <= 0 {
		queueSize = 256
	}
	j := &Journal{
		db:   db,
		ch:   make(chan entry, queueSize),
		done: make(chan struct{}),
	}
	go j.writer()

	log.Printf("[apilog] opened order log at %s", dbPath)
	return j, nil
}

// Log enqueues a record without blocking. If the queue is full the record
// is dropped and OnDrop fires.
func (j *Journal) Log(apiType string, request, response any) {
	select {
	case j.ch <- entry{apiType: apiType, request: request, response: response, at: time.Now().UTC()}:
	default:
		log.Printf("[apilog] queue full, dropping %s record", apiType)
		if j.OnDrop != nil {
			j.OnDrop()
		}
	}
}

func (j *Journal) writer() {
	defer close(j.done)
	for e := range j.ch {
		reqJSON, err := json.Marshal(e.request)
		if err != nil {
			reqJSON = []byte(`{}`)
		}
		respJSON, err := json.Marshal(e.response)
		if err != nil {
			respJSON = []byte(`{}`)
		}

		j.mu.Lock()
		_, err = j.db.Exec(
			`INSERT INTO order_log (api_type, request_data, response_data, created_at) VALUES (?, ?, ?, ?)`,
			e.apiType, string(reqJSON), string(respJSON), e.at.Format(time.RFC3339Nano),
		)
		j.mu.Unlock()
		if err != nil {
			log.Printf("[apilog] insert failed: %v", err)
		}
	}
}

// Record is a row from the order_log table.
type Record struct {
	ID           int64           `json:"id"`
	APIType      string          `json:"api_type"`
	RequestData  json.RawMessage `json:"request_data"`
	ResponseData json.RawMessage `json:"response_data"`
	CreatedAt    string          `json:"created_at"`
}

// Recent returns the last N records, newest first.
func (j *Journal) Recent(limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, api_type, request_data, response_data, created_at
		 FROM order_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var reqStr, respStr string
		if err := rows.Scan(&rec.ID, &rec.APIType, &reqStr, &respStr, &rec.CreatedAt); err != nil {
			continue
		}
		rec.RequestData = json.RawMessage(reqStr)
		rec.ResponseData = json.RawMessage(respStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DB returns the underlying handle for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Close drains the queue, stops the writer, and closes the database.
func (j *Journal) Close() error {
	close(j.ch)
	<-j.done
	return j.db.Close()
}
