package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/unr-deaddrop/server/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			package_file TEXT NOT NULL,
			package_path TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, version)
		)`,
		`CREATE TABLE IF NOT EXISTS protocols (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			package_file TEXT NOT NULL,
			package_path TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, version)
		)`,
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			name TEXT,
			hostname TEXT,
			address TEXT,
			is_virtual INTEGER NOT NULL DEFAULT 0,
			agent_id INTEGER,
			agent_cfg TEXT,
			protocol_state TEXT,
			payload_file TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (agent_id) REFERENCES agents(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_agent ON endpoints(agent_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			destination_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			payload_type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id TEXT,
			user TEXT,
			task_id TEXT,
			category TEXT,
			level INTEGER,
			timestamp DATETIME NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_task ON logs(task_id)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			creator TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			result TEXT
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateAgent creates a new agent record.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (name, version, package_file, package_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		agent.Name, agent.Version, agent.PackageFile, agent.PackagePath, agent.CreatedAt)
	if err != nil {
		return err
	}
	agent.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) scanAgent(row *sql.Row) (*domain.Agent, error) {
	var agent domain.Agent
	err := row.Scan(&agent.ID, &agent.Name, &agent.Version, &agent.PackageFile, &agent.PackagePath, &agent.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetAgent retrieves an agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, id int64) (*domain.Agent, error) {
	return s.scanAgent(s.db.QueryRowContext(ctx,
		`SELECT id, name, version, package_file, package_path, created_at FROM agents WHERE id = ?`, id))
}

// GetAgentByNameVersion retrieves an agent by its (name, version) identity.
func (s *SQLiteStore) GetAgentByNameVersion(ctx context.Context, name, version string) (*domain.Agent, error) {
	return s.scanAgent(s.db.QueryRowContext(ctx,
		`SELECT id, name, version, package_file, package_path, created_at FROM agents WHERE name = ? AND version = ?`,
		name, version))
}

// GetAgentByPackagePath retrieves the agent claiming a package directory.
func (s *SQLiteStore) GetAgentByPackagePath(ctx context.Context, packagePath string) (*domain.Agent, error) {
	return s.scanAgent(s.db.QueryRowContext(ctx,
		`SELECT id, name, version, package_file, package_path, created_at FROM agents WHERE package_path = ?`,
		packagePath))
}

// ListAgents lists all agents.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, version, package_file, package_path, created_at FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Version, &agent.PackageFile, &agent.PackagePath, &agent.CreatedAt); err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// DeleteAgent deletes an agent record.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	return err
}

// AgentEndpointCount counts the endpoints referencing an agent.
func (s *SQLiteStore) AgentEndpointCount(ctx context.Context, agentID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM endpoints WHERE agent_id = ?`, agentID).Scan(&count)
	return count, err
}

// CreateProtocol creates a new protocol record.
func (s *SQLiteStore) CreateProtocol(ctx context.Context, protocol *domain.Protocol) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO protocols (name, version, package_file, package_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		protocol.Name, protocol.Version, protocol.PackageFile, protocol.PackagePath, protocol.CreatedAt)
	if err != nil {
		return err
	}
	protocol.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) scanProtocol(row *sql.Row) (*domain.Protocol, error) {
	var protocol domain.Protocol
	err := row.Scan(&protocol.ID, &protocol.Name, &protocol.Version, &protocol.PackageFile, &protocol.PackagePath, &protocol.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &protocol, nil
}

// GetProtocolByNameVersion retrieves a protocol by its (name, version) identity.
func (s *SQLiteStore) GetProtocolByNameVersion(ctx context.Context, name, version string) (*domain.Protocol, error) {
	return s.scanProtocol(s.db.QueryRowContext(ctx,
		`SELECT id, name, version, package_file, package_path, created_at FROM protocols WHERE name = ? AND version = ?`,
		name, version))
}

// GetProtocolByPackagePath retrieves the protocol claiming a package directory.
func (s *SQLiteStore) GetProtocolByPackagePath(ctx context.Context, packagePath string) (*domain.Protocol, error) {
	return s.scanProtocol(s.db.QueryRowContext(ctx,
		`SELECT id, name, version, package_file, package_path, created_at FROM protocols WHERE package_path = ?`,
		packagePath))
}

// ListProtocols lists all protocols.
func (s *SQLiteStore) ListProtocols(ctx context.Context) ([]domain.Protocol, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, version, package_file, package_path, created_at FROM protocols ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var protocols []domain.Protocol
	for rows.Next() {
		var protocol domain.Protocol
		if err := rows.Scan(&protocol.ID, &protocol.Name, &protocol.Version, &protocol.PackageFile, &protocol.PackagePath, &protocol.CreatedAt); err != nil {
			return nil, err
		}
		protocols = append(protocols, protocol)
	}
	return protocols, rows.Err()
}

// DeleteProtocol deletes a protocol record.
func (s *SQLiteStore) DeleteProtocol(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM protocols WHERE id = ?`, id)
	return err
}

// CreateEndpoint creates a new endpoint.
func (s *SQLiteStore) CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error {
	var agentID sql.NullInt64
	if endpoint.AgentID != 0 {
		agentID = sql.NullInt64{Int64: endpoint.AgentID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints (id, name, hostname, address, is_virtual, agent_id, agent_cfg, protocol_state, payload_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		endpoint.ID.String(), endpoint.Name, endpoint.Hostname, endpoint.Address, endpoint.IsVirtual,
		agentID, nullJSON(endpoint.AgentCfg), nullJSON(endpoint.ProtocolState), endpoint.PayloadFile, endpoint.CreatedAt)
	return err
}

func scanEndpoint(scan func(dest ...interface{}) error) (*domain.Endpoint, error) {
	var endpoint domain.Endpoint
	var id string
	var agentID sql.NullInt64
	var agentCfg, protocolState, payloadFile sql.NullString
	err := scan(&id, &endpoint.Name, &endpoint.Hostname, &endpoint.Address, &endpoint.IsVirtual,
		&agentID, &agentCfg, &protocolState, &payloadFile, &endpoint.CreatedAt)
	if err != nil {
		return nil, err
	}
	endpoint.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint id %q: %w", id, err)
	}
	if agentID.Valid {
		endpoint.AgentID = agentID.Int64
	}
	if agentCfg.Valid {
		endpoint.AgentCfg = []byte(agentCfg.String)
	}
	if protocolState.Valid {
		endpoint.ProtocolState = []byte(protocolState.String)
	}
	if payloadFile.Valid {
		endpoint.PayloadFile = payloadFile.String
	}
	return &endpoint, nil
}

// GetEndpoint retrieves an endpoint by ID.
func (s *SQLiteStore) GetEndpoint(ctx context.Context, id uuid.UUID) (*domain.Endpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, hostname, address, is_virtual, agent_id, agent_cfg, protocol_state, payload_file, created_at
		 FROM endpoints WHERE id = ?`, id.String())
	endpoint, err := scanEndpoint(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return endpoint, err
}

// ListEndpoints lists all endpoints.
func (s *SQLiteStore) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, hostname, address, is_virtual, agent_id, agent_cfg, protocol_state, payload_file, created_at
		 FROM endpoints ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []domain.Endpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows.Scan)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *endpoint)
	}
	return endpoints, rows.Err()
}

// UpdateEndpointProtocolState replaces an endpoint's protocol state. Last
// writer wins.
func (s *SQLiteStore) UpdateEndpointProtocolState(ctx context.Context, id uuid.UUID, state []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET protocol_state = ? WHERE id = ?`,
		nullJSON(state), id.String())
	return err
}

// DeleteEndpoint deletes an endpoint.
func (s *SQLiteStore) DeleteEndpoint(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ?`, id.String())
	return err
}

// CreateMessage records a message. Returns ErrDuplicateMessage if a message
// with the same ID has already been recorded, in either direction.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	payload := ""
	if msg.Payload != nil {
		payload = string(msg.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, source_id, destination_id, timestamp, payload_type, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.MessageID.String(), msg.SourceID.String(), msg.DestinationID.String(), msg.Timestamp, msg.PayloadType, payload)
	if isConstraintErr(err) {
		return ErrDuplicateMessage
	}
	return err
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT message_id, source_id, destination_id, timestamp, payload_type, payload FROM messages WHERE message_id = ?`,
		id.String())
	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

// ListMessages lists recorded messages, most recent first.
func (s *SQLiteStore) ListMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	query := `SELECT message_id, source_id, destination_id, timestamp, payload_type, payload FROM messages ORDER BY timestamp DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func scanMessage(scan func(dest ...interface{}) error) (*domain.Message, error) {
	var msg domain.Message
	var msgID, srcID, dstID string
	var payload sql.NullString
	if err := scan(&msgID, &srcID, &dstID, &msg.Timestamp, &msg.PayloadType, &payload); err != nil {
		return nil, err
	}
	var err error
	if msg.MessageID, err = uuid.Parse(msgID); err != nil {
		return nil, err
	}
	if msg.SourceID, err = uuid.Parse(srcID); err != nil {
		return nil, err
	}
	if msg.DestinationID, err = uuid.Parse(dstID); err != nil {
		return nil, err
	}
	if payload.Valid && payload.String != "" {
		msg.Payload = []byte(payload.String)
	}
	return &msg, nil
}

// CreateLog creates a new log entry.
func (s *SQLiteStore) CreateLog(ctx context.Context, entry *domain.Log) error {
	var sourceID sql.NullString
	if entry.SourceID != nil {
		sourceID = sql.NullString{String: entry.SourceID.String(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (source_id, user, task_id, category, level, timestamp, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sourceID, entry.User, entry.TaskID, entry.Category, entry.Level, entry.Timestamp, entry.Data)
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}

// ListLogs lists log entries, optionally filtered by task ID.
func (s *SQLiteStore) ListLogs(ctx context.Context, taskID string, limit int) ([]domain.Log, error) {
	query := `SELECT id, source_id, user, task_id, category, level, timestamp, data FROM logs`
	args := []interface{}{}
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.Log
	for rows.Next() {
		var entry domain.Log
		var sourceID, user, entryTaskID, category sql.NullString
		if err := rows.Scan(&entry.ID, &sourceID, &user, &entryTaskID, &category, &entry.Level, &entry.Timestamp, &entry.Data); err != nil {
			return nil, err
		}
		if sourceID.Valid {
			id, err := uuid.Parse(sourceID.String)
			if err != nil {
				return nil, err
			}
			entry.SourceID = &id
		}
		entry.User = user.String
		entry.TaskID = entryTaskID.String
		entry.Category = category.String
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// CreateTask creates a new task record.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *domain.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, name, status, creator, created_at) VALUES (?, ?, ?, ?, ?)`,
		task.TaskID, task.Name, task.Status, task.Creator, task.CreatedAt)
	return err
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	var creator, result sql.NullString
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, name, status, creator, created_at, ended_at, result FROM tasks WHERE task_id = ?`,
		taskID).Scan(&task.TaskID, &task.Name, &task.Status, &creator, &task.CreatedAt, &endedAt, &result)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	task.Creator = creator.String
	task.Result = result.String
	if endedAt.Valid {
		task.EndedAt = &endedAt.Time
	}
	return &task, nil
}

// ListTasks lists tasks, most recent first.
func (s *SQLiteStore) ListTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	query := `SELECT task_id, name, status, creator, created_at, ended_at, result FROM tasks ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var task domain.Task
		var creator, result sql.NullString
		var endedAt sql.NullTime
		if err := rows.Scan(&task.TaskID, &task.Name, &task.Status, &creator, &task.CreatedAt, &endedAt, &result); err != nil {
			return nil, err
		}
		task.Creator = creator.String
		task.Result = result.String
		if endedAt.Valid {
			task.EndedAt = &endedAt.Time
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTaskCompleted marks a task finished with its result.
func (s *SQLiteStore) UpdateTaskCompleted(ctx context.Context, taskID string, status domain.TaskStatus, result string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, ended_at = ?, result = ? WHERE task_id = ?`,
		status, time.Now(), result, taskID)
	return err
}

// EndpointCountsByAgent returns the number of endpoints per installed agent,
// keyed by "name-version".
func (s *SQLiteStore) EndpointCountsByAgent(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.name, a.version, COUNT(e.id) FROM agents a
		 LEFT JOIN endpoints e ON e.agent_id = a.id
		 GROUP BY a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name, version string
		var count int
		if err := rows.Scan(&name, &version, &count); err != nil {
			return nil, err
		}
		counts[name+"-"+version] = count
	}
	return counts, rows.Err()
}

// MessageCountsByEndpoint returns the number of messages each endpoint has
// sent or received, keyed by endpoint ID.
func (s *SQLiteStore) MessageCountsByEndpoint(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id,
		        (SELECT COUNT(*) FROM messages m WHERE m.source_id = e.id) +
		        (SELECT COUNT(*) FROM messages m WHERE m.destination_id = e.id)
		 FROM endpoints e`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// MessageCountsByHour bins messages since the given time into hours-ago
// buckets. Bucket 0 holds the most recent hour.
func (s *SQLiteStore) MessageCountsByHour(ctx context.Context, since time.Time) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST((julianday('now') - julianday(timestamp)) * 24 AS INTEGER), COUNT(*)
		 FROM messages WHERE timestamp >= ?
		 GROUP BY 1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var bucket, count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, err
		}
		counts[bucket] = count
	}
	return counts, rows.Err()
}

// TaskStatusCounts returns running/completed/total task counts.
func (s *SQLiteStore) TaskStatusCounts(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{"running": 0, "completed": 0, "total": 0}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts["total"] += count
		if status == string(domain.TaskStatusPending) {
			counts["running"] += count
		} else {
			counts["completed"] += count
		}
	}
	return counts, rows.Err()
}

func nullJSON(data []byte) sql.NullString {
	if len(data) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
