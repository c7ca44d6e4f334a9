package sqlog

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Session lifecycle events.
const (
	EventCreated   = "created"
	EventBound     = "bound"
	EventDestroyed = "destroyed"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id INT AUTO_INCREMENT PRIMARY KEY,
		session VARCHAR(36) NOT NULL,
		event VARCHAR(16) NOT NULL,
		remote VARCHAR(64) NOT NULL,
		system_id VARCHAR(16) NOT NULL,
		bind_type VARCHAR(32) NOT NULL,
		time DATETIME(3) NOT NULL,
		INDEX (session)
	) DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(64) PRIMARY KEY,
		session VARCHAR(36) NOT NULL,
		system_id VARCHAR(16) NOT NULL,
		calling VARCHAR(21) NOT NULL,
		called VARCHAR(21) NOT NULL,
		coding TINYINT UNSIGNED NOT NULL,
		parts INT NOT NULL,
		text TEXT NOT NULL,
		received DATETIME(3) NOT NULL,
		receipt VARCHAR(8) NOT NULL DEFAULT ''
	) DEFAULT CHARSET=utf8mb4`,
}

// DB is the MySQL audit log of sessions and submitted messages.
type DB struct {
	db *sql.DB
}

// Connect opens the database with a go-sql-driver/mysql DSN such as
// "root@/smppd?charset=utf8mb4&parseTime=true" and checks the connection.
func Connect(dsn string) (*DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Migrate creates the log tables if they are missing.
func (db *DB) Migrate(ctx context.Context) error {
	for _, query := range schema {
		if _, err := db.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// SessionEvent is one row of the sessions table.
type SessionEvent struct {
	Session  string
	Event    string
	Remote   string
	SystemID string
	BindType string
	Time     time.Time
}

func (db *DB) InsertSession(ctx context.Context, e SessionEvent) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT sessions SET session=?,event=?,remote=?,system_id=?,bind_type=?,time=?`,
		e.Session, e.Event, e.Remote, e.SystemID, e.BindType, e.Time)
	return err
}

// Message is one row of the messages table.
type Message struct {
	ID       string
	Session  string
	SystemID string
	From     string
	To       string
	Coding   uint8
	Parts    int
	Text     string
	Received time.Time
}

func (db *DB) InsertMessage(ctx context.Context, m Message) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT messages SET id=?,session=?,system_id=?,calling=?,called=?,coding=?,parts=?,text=?,received=?`,
		m.ID, m.Session, m.SystemID, m.From, m.To, m.Coding, m.Parts, m.Text, m.Received)
	return err
}

// SetReceipt stores the final stat reported for a message.
func (db *DB) SetReceipt(ctx context.Context, id, stat string) error {
	_, err := db.db.ExecContext(ctx, `UPDATE messages SET receipt=? WHERE id=?`, stat, id)
	return err
}

// Counts returns the number of logged messages per system id.
func (db *DB) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT system_id, COUNT(*) FROM messages GROUP BY system_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			systemID string
			n        int
		)
		if err := rows.Scan(&systemID, &n); err != nil {
			return nil, err
		}
		counts[systemID] = n
	}
	return counts, rows.Err()
}
