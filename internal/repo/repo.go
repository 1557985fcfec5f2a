package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"

	"teamboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// HashPassword hashes a password for storage and comparison. The dev backend
// only ever checks equality; it is not a production credential store.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertUser(ctx context.Context, u domain.User, passwordHash string) error {
	prefs, err := marshalPrefs(u.Notifications)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO users(id,name,email,role,password_hash,prefs_json) VALUES (?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Role, passwordHash, prefs)
	return err
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, string, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,password_hash,prefs_json FROM users WHERE email=?`, email)
	var u domain.User
	var hash string
	var prefs sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &hash, &prefs)
	if err == sql.ErrNoRows {
		return u, "", ErrNotFound
	}
	if err != nil {
		return u, "", err
	}
	u.Notifications, err = unmarshalPrefs(prefs)
	return u, hash, err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,prefs_json FROM users WHERE id=?`, id)
	var u domain.User
	var prefs sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &prefs)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Notifications, err = unmarshalPrefs(prefs)
	return u, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,email,role,prefs_json FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var prefs sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &prefs); err != nil {
			return nil, err
		}
		if u.Notifications, err = unmarshalPrefs(prefs); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	subs, err := marshalSubtasks(t.Subtasks)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO tasks(id,title,description,progress,due_date,assigned_to,assigned_by,created_at,subtasks_json,seq)
VALUES (?,?,?,?,?,?,?,?,?,(SELECT COALESCE(MAX(seq),0)+1 FROM tasks))`,
		t.ID, t.Title, t.Description, t.Progress, t.DueDate, t.AssignedTo, t.AssignedBy, t.CreatedAt, subs)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,description,progress,due_date,assigned_to,assigned_by,created_at,subtasks_json FROM tasks WHERE id=?`, id)
	return scanTask(row)
}

func (r Repo) ListTasks(ctx context.Context, assignedTo string) ([]domain.Task, error) {
	query := `SELECT id,title,description,progress,due_date,assigned_to,assigned_by,created_at,subtasks_json FROM tasks`
	args := []any{}
	if assignedTo != "" {
		query += ` WHERE assigned_to=?`
		args = append(args, assignedTo)
	}
	query += ` ORDER BY seq`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// UpdateTask overwrites the mutable columns; id, created_at, and seq are
// never touched.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	subs, err := marshalSubtasks(t.Subtasks)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?,description=?,progress=?,due_date=?,assigned_to=?,assigned_by=?,subtasks_json=? WHERE id=?`,
		t.Title, t.Description, t.Progress, t.DueDate, t.AssignedTo, t.AssignedBy, subs, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row *sql.Row) (domain.Task, error) {
	t, err := scanTaskFrom(row)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func scanTaskRows(rows *sql.Rows) (domain.Task, error) {
	return scanTaskFrom(rows)
}

func scanTaskFrom(s rowScanner) (domain.Task, error) {
	var t domain.Task
	var subs sql.NullString
	err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Progress, &t.DueDate, &t.AssignedTo, &t.AssignedBy, &t.CreatedAt, &subs)
	if err != nil {
		return t, err
	}
	t.Subtasks, err = unmarshalSubtasks(subs)
	return t, err
}

func marshalSubtasks(subs []domain.Subtask) (any, error) {
	if len(subs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(subs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalSubtasks(v sql.NullString) ([]domain.Subtask, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var subs []domain.Subtask
	if err := json.Unmarshal([]byte(v.String), &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func marshalPrefs(p *domain.NotificationPreferences) (any, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalPrefs(v sql.NullString) (*domain.NotificationPreferences, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var p domain.NotificationPreferences
	if err := json.Unmarshal([]byte(v.String), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
