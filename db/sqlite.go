package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

var ErrNotInitialized = errors.New("database not initialized")

// Prediction is one persisted pipeline result.
type Prediction struct {
	ID             int64     `json:"id"`
	Mode           string    `json:"mode"`
	Stage          string    `json:"stage"`
	Vector         []float64 `json:"vector"`
	AttackDetected bool      `json:"attack_detected"`
	Classified     bool      `json:"classified"`
	Class          int       `json:"class"`
	Category       string    `json:"category"`
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	ModelVersion   string    `json:"model_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	// SQLite allows a single writer.
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        mode TEXT NOT NULL,
        stage TEXT NOT NULL,
        vector TEXT NOT NULL,
        attack_detected INTEGER NOT NULL,
        classified INTEGER NOT NULL DEFAULT 0,
        class INTEGER,
        category TEXT,
        label TEXT,
        confidence REAL,
        model_version TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    `

	_, err = database.Exec(query)
	return err
}

// Enabled reports whether InitDB has been called.
func Enabled() bool {
	return database != nil
}

func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// SavePrediction stores p and returns its row id.
func SavePrediction(p Prediction) (int64, error) {
	if database == nil {
		return 0, ErrNotInitialized
	}
	vector, err := json.Marshal(p.Vector)
	if err != nil {
		return 0, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	res, err := database.Exec(`
        INSERT INTO predictions (
            mode, stage, vector, attack_detected, classified, class,
            category, label, confidence, model_version, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Mode, p.Stage, string(vector), p.AttackDetected, p.Classified, p.Class,
		p.Category, p.Label, p.Confidence, p.ModelVersion, p.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// QueryPredictions returns the most recent predictions, newest first.
func QueryPredictions(limit int) ([]Prediction, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := database.Query(`
        SELECT id, mode, stage, vector, attack_detected, classified, class,
               category, label, confidence, model_version, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var vector string
		var category, label, version sql.NullString
		var class sql.NullInt64
		var confidence sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Mode, &p.Stage, &vector, &p.AttackDetected, &p.Classified, &class,
			&category, &label, &confidence, &version, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vector), &p.Vector); err != nil {
			return nil, err
		}
		p.Class = int(class.Int64)
		p.Category = category.String
		p.Label = label.String
		p.Confidence = confidence.Float64
		p.ModelVersion = version.String
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// CountByCategory counts classified predictions per attack family.
func CountByCategory() (map[string]int, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	rows, err := database.Query(`
        SELECT category, COUNT(*)
        FROM predictions
        WHERE classified = 1
        GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}
