package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"osnova/go-core/internal/securestore"
	"osnova/go-core/pkg/models"
)

// RowStore is the SQL-backed encrypted storage primitive. Sensitive column
// values go through the same envelope as the file store, keyed per caller so
// different logical owners never share ciphertext context.
type RowStore struct {
	db *sql.DB
}

const rowStoreSchema = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS app_configurations (
    app_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    settings_encrypted BLOB NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    PRIMARY KEY (app_id, user_id),
    FOREIGN KEY (app_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS encrypted_blobs (
    key TEXT PRIMARY KEY,
    value_encrypted BLOB NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

-- Scaffolding for device revocation and pairing; not served by any service.
CREATE TABLE IF NOT EXISTS device_keys (
    device_id TEXT PRIMARY KEY,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pairing_sessions (
    session_id TEXT PRIMARY KEY,
    server_public_key BLOB NOT NULL,
    device_public_key BLOB NOT NULL,
    established_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('pending', 'established', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_pairing_sessions_status
    ON pairing_sessions(status);
`

// NewRowStore opens (or creates) the SQLite database at path and initializes
// the schema.
func NewRowStore(path string) (*RowStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(rowStoreSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &RowStore{db: db}, nil
}

func (s *RowStore) Close() error {
	return s.db.Close()
}

// UpsertApplication inserts or replaces the application document.
func (s *RowStore) UpsertApplication(app models.Application) error {
	doc, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("serialize application: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO applications (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		app.ID, string(doc),
	)
	return err
}

func (s *RowStore) GetApplication(appID string) (models.Application, bool, error) {
	var doc string
	err := s.db.QueryRow(`SELECT data FROM applications WHERE id = ?`, appID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Application{}, false, nil
	}
	if err != nil {
		return models.Application{}, false, err
	}
	var app models.Application
	if err := json.Unmarshal([]byte(doc), &app); err != nil {
		return models.Application{}, false, fmt.Errorf("decode application %s: %w", appID, err)
	}
	return app, true, nil
}

func (s *RowStore) ListApplications() ([]models.Application, error) {
	rows, err := s.db.Query(`SELECT data FROM applications ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var app models.Application
		if err := json.Unmarshal([]byte(doc), &app); err != nil {
			return nil, fmt.Errorf("decode application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *RowStore) DeleteApplication(appID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM applications WHERE id = ?`, appID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetAppConfig stores per-user settings for an application, encrypted under
// the caller's key.
func (s *RowStore) SetAppConfig(appID, userID string, settings, key []byte) error {
	encrypted, err := securestore.Encrypt(key, settings)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO app_configurations (app_id, user_id, settings_encrypted, updated_at)
		 VALUES (?, ?, ?, strftime('%s', 'now'))
		 ON CONFLICT(app_id, user_id) DO UPDATE SET
		     settings_encrypted = excluded.settings_encrypted,
		     updated_at = excluded.updated_at`,
		appID, userID, encrypted,
	)
	return err
}

func (s *RowStore) GetAppConfig(appID, userID string, key []byte) ([]byte, bool, error) {
	var encrypted []byte
	err := s.db.QueryRow(
		`SELECT settings_encrypted FROM app_configurations WHERE app_id = ? AND user_id = ?`,
		appID, userID,
	).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	settings, err := securestore.Decrypt(key, encrypted)
	if err != nil {
		return nil, false, err
	}
	return settings, true, nil
}

func (s *RowStore) DeleteAppConfig(appID, userID string) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM app_configurations WHERE app_id = ? AND user_id = ?`, appID, userID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PutBlob stores an arbitrary key→value pair with the value encrypted under
// the caller's key.
func (s *RowStore) PutBlob(blobKey string, value, key []byte) error {
	encrypted, err := securestore.Encrypt(key, value)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO encrypted_blobs (key, value_encrypted, updated_at)
		 VALUES (?, ?, strftime('%s', 'now'))
		 ON CONFLICT(key) DO UPDATE SET
		     value_encrypted = excluded.value_encrypted,
		     updated_at = excluded.updated_at`,
		blobKey, encrypted,
	)
	return err
}

func (s *RowStore) GetBlob(blobKey string, key []byte) ([]byte, bool, error) {
	var encrypted []byte
	err := s.db.QueryRow(
		`SELECT value_encrypted FROM encrypted_blobs WHERE key = ?`, blobKey,
	).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := securestore.Decrypt(key, encrypted)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RowStore) DeleteBlob(blobKey string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM encrypted_blobs WHERE key = ?`, blobKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
