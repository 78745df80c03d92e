// Package tasks implements the Tasks ADI service: CRUD, a dependency
// graph with cycle detection, and create/update/delete subscription
// events, backed by a local sqlite database.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adi-family/cocoon/internal/adi"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

func validStatus(s string) bool {
	switch Status(s) {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked, StatusCancelled:
		return true
	}
	return false
}

type Task struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

// Service implements adi.Service over a sqlite-backed task store.
type Service struct {
	adi.BaseService
	id string

	db *sql.DB

	subMu sync.Mutex
	subs  map[string][]chan adi.SubscriptionEvent // event name (or "*") -> receivers
}

// NewService opens (and migrates) the sqlite database at dbPath. dbPath
// may be ":memory:" for an ephemeral, per-process store.
func NewService(serviceID, dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tasks db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tasks db: %w", err)
	}
	return &Service{id: serviceID, db: db, subs: make(map[string][]chan adi.SubscriptionEvent)}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS task_deps (
			from_id INTEGER NOT NULL,
			to_id INTEGER NOT NULL,
			PRIMARY KEY (from_id, to_id)
		);
	`)
	return err
}

func (s *Service) ServiceID() string   { return s.id }
func (s *Service) Name() string       { return "Tasks" }
func (s *Service) Version() string    { return "1.0.0" }
func (s *Service) Description() string { return "task tracking with dependencies" }

func (s *Service) Capabilities() adi.Capabilities {
	return adi.Capabilities{Subscriptions: true, Notifications: false, Streaming: false}
}

func (s *Service) Methods() []adi.MethodInfo {
	return []adi.MethodInfo{
		{Name: "list"}, {Name: "create"}, {Name: "get"}, {Name: "update"},
		{Name: "delete"}, {Name: "search"}, {Name: "ready"}, {Name: "blocked"},
		{Name: "stats"}, {Name: "add_dependency"}, {Name: "remove_dependency"},
		{Name: "detect_cycles"},
	}
}

func (s *Service) SubscriptionEvents() []adi.SubscriptionEventInfo {
	return []adi.SubscriptionEventInfo{
		{Name: "task_created"}, {Name: "task_updated"},
		{Name: "task_status_changed"}, {Name: "task_deleted"}, {Name: "*"},
	}
}

func (s *Service) Subscribe(ctx context.Context, event string, filter map[string]any) (<-chan adi.SubscriptionEvent, *adi.ServiceError) {
	ch := make(chan adi.SubscriptionEvent, 64)
	s.subMu.Lock()
	s.subs[event] = append(s.subs[event], ch)
	s.subMu.Unlock()
	return ch, nil
}

func (s *Service) emit(event string, data any) {
	payload := adi.SubscriptionEvent{Service: s.id, Event: event, Data: data}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range append(append([]chan adi.SubscriptionEvent{}, s.subs[event]...), s.subs["*"]...) {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (s *Service) Handle(ctx context.Context, method string, params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	switch method {
	case "list":
		return s.handleList(params)
	case "create":
		return s.handleCreate(params)
	case "get":
		return s.handleGet(params)
	case "update":
		return s.handleUpdate(params)
	case "delete":
		return s.handleDelete(params)
	case "search":
		return s.handleSearch(params)
	case "ready":
		return s.handleReady()
	case "blocked":
		return s.handleBlocked()
	case "stats":
		return s.handleStats()
	case "add_dependency":
		return s.handleAddDependency(params)
	case "remove_dependency":
		return s.handleRemoveDependency(params)
	case "detect_cycles":
		return s.handleDetectCycles()
	default:
		return adi.HandleResult{}, adi.MethodNotFoundErr("unknown method " + method)
	}
}

func paramString(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok
}

func paramInt64(params map[string]any, key string) (int64, bool) {
	switch v := params[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func (s *Service) handleCreate(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	title, ok := paramString(params, "title")
	if !ok || title == "" {
		return adi.HandleResult{}, adi.InvalidParams("title is required")
	}
	var desc *string
	if d, ok := paramString(params, "description"); ok {
		desc = &d
	}
	now := time.Now().Unix()

	res, err := s.db.Exec(`INSERT INTO tasks (title, description, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		title, desc, string(StatusTodo), now, now)
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	id, _ := res.LastInsertId()

	if depsRaw, ok := params["depends_on"].([]any); ok {
		for _, d := range depsRaw {
			if depID, ok := toInt64(d); ok {
				_, _ = s.db.Exec(`INSERT OR IGNORE INTO task_deps (from_id, to_id) VALUES (?, ?)`, id, depID)
			}
		}
	}

	task, ferr := s.fetchTask(id)
	if ferr != nil {
		return adi.HandleResult{}, ferr
	}
	s.emit("task_created", task)
	return adi.Success(map[string]any{"task_id": id}), nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func (s *Service) fetchTask(id int64) (*Task, *adi.ServiceError) {
	row := s.db.QueryRow(`SELECT id, title, description, status, created_at, updated_at FROM tasks WHERE id = ?`, id)
	var t Task
	var desc sql.NullString
	if err := row.Scan(&t.ID, &t.Title, &desc, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, adi.NotFound(fmt.Sprintf("task %d not found", id))
		}
		return nil, adi.Internal(err.Error())
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	return &t, nil
}

func (s *Service) handleGet(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	id, ok := paramInt64(params, "task_id")
	if !ok {
		return adi.HandleResult{}, adi.InvalidParams("task_id is required")
	}
	task, err := s.fetchTask(id)
	if err != nil {
		return adi.HandleResult{}, err
	}
	return adi.Success(task), nil
}

func (s *Service) handleList(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	status, hasStatus := paramString(params, "status")
	var rows *sql.Rows
	var err error
	if hasStatus {
		if !validStatus(status) {
			return adi.HandleResult{}, adi.InvalidParams("unknown status " + status)
		}
		rows, err = s.db.Query(`SELECT id, title, description, status, created_at, updated_at FROM tasks WHERE status = ? ORDER BY id`, status)
	} else {
		rows, err = s.db.Query(`SELECT id, title, description, status, created_at, updated_at FROM tasks ORDER BY id`)
	}
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	defer rows.Close()
	return adi.Success(scanTasks(rows)), nil
}

func scanTasks(rows *sql.Rows) []Task {
	var out []Task
	for rows.Next() {
		var t Task
		var desc sql.NullString
		if rows.Scan(&t.ID, &t.Title, &desc, &t.Status, &t.CreatedAt, &t.UpdatedAt) != nil {
			continue
		}
		if desc.Valid {
			t.Description = &desc.String
		}
		out = append(out, t)
	}
	return out
}

func (s *Service) handleUpdate(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	id, ok := paramInt64(params, "task_id")
	if !ok {
		return adi.HandleResult{}, adi.InvalidParams("task_id is required")
	}
	existing, err := s.fetchTask(id)
	if err != nil {
		return adi.HandleResult{}, err
	}

	title := existing.Title
	if v, ok := paramString(params, "title"); ok {
		title = v
	}
	desc := existing.Description
	if v, ok := paramString(params, "description"); ok {
		desc = &v
	}
	status := existing.Status
	statusChanged := false
	if v, ok := paramString(params, "status"); ok {
		if !validStatus(v) {
			return adi.HandleResult{}, adi.InvalidParams("unknown status " + v)
		}
		statusChanged = v != status
		status = v
	}
	now := time.Now().Unix()

	if _, err := s.db.Exec(`UPDATE tasks SET title = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		title, desc, status, now, id); err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}

	updated, ferr := s.fetchTask(id)
	if ferr != nil {
		return adi.HandleResult{}, ferr
	}
	s.emit("task_updated", updated)
	if statusChanged {
		s.emit("task_status_changed", map[string]any{"id": id, "old": existing.Status, "new": status})
	}
	return adi.Success(updated), nil
}

func (s *Service) handleDelete(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	id, ok := paramInt64(params, "task_id")
	if !ok {
		return adi.HandleResult{}, adi.InvalidParams("task_id is required")
	}
	if _, err := s.fetchTask(id); err != nil {
		return adi.HandleResult{}, err
	}
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	_, _ = s.db.Exec(`DELETE FROM task_deps WHERE from_id = ? OR to_id = ?`, id, id)
	s.emit("task_deleted", map[string]any{"id": id})
	return adi.Success(map[string]any{"deleted": true}), nil
}

func (s *Service) handleSearch(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	query, ok := paramString(params, "query")
	if !ok {
		return adi.HandleResult{}, adi.InvalidParams("query is required")
	}
	limit := int64(20)
	if l, ok := paramInt64(params, "limit"); ok {
		limit = l
	}
	rows, err := s.db.Query(`SELECT id, title, description, status, created_at, updated_at FROM tasks
		WHERE title LIKE ? OR description LIKE ? ORDER BY id LIMIT ?`,
		"%"+query+"%", "%"+query+"%", limit)
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	defer rows.Close()
	return adi.Success(scanTasks(rows)), nil
}

func (s *Service) dependencies() (map[int64][]int64, error) {
	rows, err := s.db.Query(`SELECT from_id, to_id FROM task_deps`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	graph := map[int64][]int64{}
	for rows.Next() {
		var from, to int64
		if rows.Scan(&from, &to) != nil {
			continue
		}
		graph[from] = append(graph[from], to)
	}
	return graph, nil
}

func (s *Service) handleReady() (adi.HandleResult, *adi.ServiceError) {
	graph, err := s.dependencies()
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	rows, err := s.db.Query(`SELECT id, title, description, status, created_at, updated_at FROM tasks WHERE status = ?`, string(StatusTodo))
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	defer rows.Close()
	var ready []Task
	for _, t := range scanTasks(rows) {
		if allDepsDone(s, graph[t.ID]) {
			ready = append(ready, t)
		}
	}
	return adi.Success(ready), nil
}

func allDepsDone(s *Service, deps []int64) bool {
	for _, depID := range deps {
		dep, err := s.fetchTask(depID)
		if err != nil || dep.Status != string(StatusDone) {
			return false
		}
	}
	return true
}

func (s *Service) handleBlocked() (adi.HandleResult, *adi.ServiceError) {
	graph, err := s.dependencies()
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	rows, err := s.db.Query(`SELECT id, title, description, status, created_at, updated_at FROM tasks WHERE status != ?`, string(StatusDone))
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	defer rows.Close()
	var blocked []Task
	for _, t := range scanTasks(rows) {
		if !allDepsDone(s, graph[t.ID]) {
			blocked = append(blocked, t)
		}
	}
	return adi.Success(blocked), nil
}

func (s *Service) handleStats() (adi.HandleResult, *adi.ServiceError) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	defer rows.Close()
	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if rows.Scan(&status, &count) == nil {
			stats[status] = count
		}
	}
	return adi.Success(stats), nil
}

func (s *Service) handleAddDependency(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	from, ok1 := paramInt64(params, "from")
	to, ok2 := paramInt64(params, "to")
	if !ok1 || !ok2 {
		return adi.HandleResult{}, adi.InvalidParams("from and to are required")
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO task_deps (from_id, to_id) VALUES (?, ?)`, from, to); err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	return adi.Success(map[string]any{"added": true}), nil
}

func (s *Service) handleRemoveDependency(params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	from, ok1 := paramInt64(params, "from")
	to, ok2 := paramInt64(params, "to")
	if !ok1 || !ok2 {
		return adi.HandleResult{}, adi.InvalidParams("from and to are required")
	}
	if _, err := s.db.Exec(`DELETE FROM task_deps WHERE from_id = ? AND to_id = ?`, from, to); err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	return adi.Success(map[string]any{"removed": true}), nil
}

// handleDetectCycles reports cycles without preventing their insertion;
// the dependency graph tolerates them until a caller asks.
func (s *Service) handleDetectCycles() (adi.HandleResult, *adi.ServiceError) {
	graph, err := s.dependencies()
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[int64]int{}
	var cycles [][]int64

	var nodes []int64
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	var path []int64
	var visit func(n int64)
	visit = func(n int64) {
		color[n] = gray
		path = append(path, n)
		for _, next := range graph[n] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				cycle := extractCycle(path, next)
				cycles = append(cycles, cycle)
			}
		}
		path = path[:len(path)-1]
		color[n] = black
	}
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}

	return adi.Success(map[string]any{"cycles": cycles}), nil
}

func extractCycle(path []int64, start int64) []int64 {
	for i, n := range path {
		if n == start {
			cycle := append([]int64{}, path[i:]...)
			return append(cycle, start)
		}
	}
	return nil
}
