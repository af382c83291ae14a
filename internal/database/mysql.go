package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"docspace/internal/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

const tableSnapshots = "snapshots"

type MySql struct {
	db         *sql.DB
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(ctx context.Context, conf *config.Config) (*MySql, error) {
	if !conf.MySql.Enabled {
		return nil, fmt.Errorf("mysql client is disabled in configuration")
	}
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		conf.MySql.User, conf.MySql.Password, conf.MySql.Host, conf.MySql.Port, conf.MySql.Database)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// wait for the database to start: three pings, 10 seconds apart
	for i := 0; i < 3; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if i == 2 {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &MySql{
		db:         db,
		statements: make(map[string]*sql.Stmt),
	}
	if err = sdb.createTableIfNotExists(ctx); err != nil {
		sdb.Close()
		return nil, err
	}
	return sdb, nil
}

func (s *MySql) Close() {
	s.closeStmt()
	_ = s.db.Close()
}

func (s *MySql) createTableIfNotExists(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		body LONGTEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`, tableSnapshots)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", tableSnapshots, err)
	}
	return nil
}

func (s *MySql) Load(ctx context.Context, key string, value interface{}) error {
	stmt, err := s.stmtSelectSnapshot()
	if err != nil {
		return err
	}
	var body []byte
	if err = stmt.QueryRowContext(ctx, key).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select snapshot %s: %w", key, err)
	}
	if err = json.Unmarshal(body, value); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return nil
}

func (s *MySql) Save(ctx context.Context, key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	stmt, err := s.stmtUpsertSnapshot()
	if err != nil {
		return err
	}
	if _, err = stmt.ExecContext(ctx, key, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *MySql) prepareStmt(name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}
	s.statements[name] = stmt
	return stmt, nil
}

func (s *MySql) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
}

func (s *MySql) stmtSelectSnapshot() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE id = ?`, tableSnapshots)
	return s.prepareStmt("selectSnapshot", query)
}

func (s *MySql) stmtUpsertSnapshot() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, body, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)`,
		tableSnapshots,
	)
	return s.prepareStmt("upsertSnapshot", query)
}
