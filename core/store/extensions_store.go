package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

type ExtensionsStore interface {
	// Upsert inserts or replaces by name. An existing ID is kept; an empty
	// Status keeps the stored one (pending_review for new rows).
	Upsert(ctx context.Context, ext *Extension) (bool, error)
	Get(ctx context.Context, id string) (*Extension, error)
	GetByName(ctx context.Context, name string) (*Extension, error)
	List(ctx context.Context, status ExtensionStatus) ([]Extension, error)
	SetStatus(ctx context.Context, id string, status ExtensionStatus) (bool, error)
	CountByStatus(ctx context.Context) (map[ExtensionStatus]int, error)
}

type extensionsStore struct {
	db *sql.DB
}

func NewExtensionsStore(db *sql.DB) ExtensionsStore {
	return &extensionsStore{db: db}
}

const extensionColumns = `id, name, author, version, kind, status, surface_json, fingerprint, created_at, updated_at`

func (s *extensionsStore) Upsert(ctx context.Context, ext *Extension) (bool, error) {
	if ext == nil {
		return false, errors.New("nil extension")
	}
	surface, err := json.Marshal(ext.Surface)
	if err != nil {
		return false, err
	}
	newID, err := uuid.NewV4()
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	insertStatus := ext.Status
	if insertStatus == "" {
		insertStatus = StatusPendingReview
	}
	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO extensions(`+extensionColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET
			author=excluded.author,
			version=excluded.version,
			kind=excluded.kind,
			status=CASE WHEN ?<>'' THEN excluded.status ELSE extensions.status END,
			surface_json=excluded.surface_json,
			fingerprint=excluded.fingerprint,
			updated_at=excluded.updated_at
		RETURNING id
	`, newID.String(), ext.Name, ext.Author, ext.Version, string(ext.Kind), string(insertStatus), string(surface), ext.Fingerprint, now, now,
		string(ext.Status)).Scan(&id)
	if err != nil {
		return false, persistErr("upsert extension", err)
	}
	stored, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, ErrNotFound
	}
	ext.ID = stored.ID
	ext.Status = stored.Status
	ext.CreatedAt = stored.CreatedAt
	ext.UpdatedAt = stored.UpdatedAt
	return id == newID.String(), nil
}

func (s *extensionsStore) Get(ctx context.Context, id string) (*Extension, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+extensionColumns+` FROM extensions WHERE id=?`, id)
	return scanExtension(row)
}

func (s *extensionsStore) GetByName(ctx context.Context, name string) (*Extension, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+extensionColumns+` FROM extensions WHERE name=?`, name)
	return scanExtension(row)
}

func (s *extensionsStore) List(ctx context.Context, status ExtensionStatus) ([]Extension, error) {
	query := `SELECT ` + extensionColumns + ` FROM extensions`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Extension{}
	for rows.Next() {
		ext, err := scanExtension(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *ext)
	}
	return res, rows.Err()
}

func (s *extensionsStore) SetStatus(ctx context.Context, id string, status ExtensionStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE extensions SET status=?, updated_at=? WHERE id=?`, string(status), time.Now().UTC(), id)
	if err != nil {
		return false, persistErr("set extension status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *extensionsStore) CountByStatus(ctx context.Context) (map[ExtensionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM extensions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[ExtensionStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[ExtensionStatus(status)] = n
	}
	return out, rows.Err()
}

func scanExtension(row interface{ Scan(dest ...any) error }) (*Extension, error) {
	var (
		ext               Extension
		kind, status, raw string
	)
	err := row.Scan(&ext.ID, &ext.Name, &ext.Author, &ext.Version, &kind, &status, &raw, &ext.Fingerprint, &ext.CreatedAt, &ext.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ext.Kind = ExtensionKind(kind)
	ext.Status = ExtensionStatus(status)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &ext.Surface); err != nil {
			return nil, err
		}
	}
	return &ext, nil
}
