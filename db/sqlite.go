package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"agridash/soil"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT,
        bundle_id TEXT NOT NULL,
        n REAL,
        p REAL,
        k REAL,
        temperature REAL,
        humidity REAL,
        ph REAL,
        moisture REAL,
        crop TEXT,
        region TEXT,
        month TEXT,
        fertilizer TEXT NOT NULL,
        fertilizer_type TEXT NOT NULL,
        confidence REAL,
        created_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        bundle_id TEXT NOT NULL,
        model_name VARCHAR(50),
        accuracy REAL,
        train_rows INTEGER,
        val_rows INTEGER,
        artifact_dir TEXT,
        trained_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS soil_tests (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        farm_id TEXT NOT NULL,
        test_date TEXT NOT NULL,
        nitrogen_level TEXT,
        phosphorus_level TEXT,
        potassium_level TEXT,
        ph_level REAL,
        notes TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_soil_tests_farm ON soil_tests (farm_id, test_date);
    `

	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type PredictionRecord struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id,omitempty"`
	BundleID    string    `json:"bundle_id"`
	N           float64   `json:"N"`
	P           float64   `json:"P"`
	K           float64   `json:"K"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	PH          float64   `json:"ph"`
	Moisture    float64   `json:"moisture"`
	Crop        string    `json:"crop"`
	Region      string    `json:"region"`
	Month       string    `json:"month"`
	Fertilizer  string    `json:"fertilizer"`
	Category    string    `json:"fertilizer_type"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, rec PredictionRecord) (int64, error) {
	if rec.BundleID == "" {
		return 0, errors.New("bundle id required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            request_id, bundle_id, n, p, k, temperature, humidity, ph, moisture,
            crop, region, month, fertilizer, fertilizer_type, confidence, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		rec.RequestID,
		rec.BundleID,
		rec.N,
		rec.P,
		rec.K,
		rec.Temperature,
		rec.Humidity,
		rec.PH,
		rec.Moisture,
		rec.Crop,
		rec.Region,
		rec.Month,
		rec.Fertilizer,
		rec.Category,
		rec.Confidence,
		rec.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, request_id, bundle_id, n, p, k, temperature, humidity, ph, moisture,
               crop, region, month, fertilizer, fertilizer_type, confidence, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		var requestID sql.NullString
		err := rows.Scan(&r.ID, &requestID, &r.BundleID, &r.N, &r.P, &r.K, &r.Temperature, &r.Humidity,
			&r.PH, &r.Moisture, &r.Crop, &r.Region, &r.Month, &r.Fertilizer, &r.Category, &r.Confidence, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.RequestID = requestID.String
		records = append(records, r)
	}
	return records, rows.Err()
}

type TrainingLog struct {
	ID          int64     `json:"id"`
	BundleID    string    `json:"bundle_id"`
	ModelName   string    `json:"model_name"`
	Accuracy    float64   `json:"accuracy"`
	TrainRows   int       `json:"train_rows"`
	ValRows     int       `json:"val_rows"`
	ArtifactDir string    `json:"artifact_dir"`
	TrainedAt   time.Time `json:"trained_at"`
}

func (s *Store) SaveTrainingLog(ctx context.Context, log TrainingLog) (int64, error) {
	if log.BundleID == "" {
		return 0, errors.New("bundle id required")
	}
	if log.TrainedAt.IsZero() {
		log.TrainedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (bundle_id, model_name, accuracy, train_rows, val_rows, artifact_dir, trained_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.BundleID, log.ModelName, log.Accuracy, log.TrainRows, log.ValRows, log.ArtifactDir, log.TrainedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, bundle_id, model_name, accuracy, train_rows, val_rows, artifact_dir, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ID, &log.BundleID, &log.ModelName, &log.Accuracy, &log.TrainRows, &log.ValRows, &log.ArtifactDir, &log.TrainedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) SaveSoilTest(ctx context.Context, test soil.Test) (int64, error) {
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO soil_tests (farm_id, test_date, nitrogen_level, phosphorus_level, potassium_level, ph_level, notes, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		test.FarmID, test.TestDate, test.NitrogenLevel, test.PhosphorusLevel, test.PotassiumLevel, test.PH, test.Notes, test.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SoilTests returns the tests of a farm, newest first.
func (s *Store) SoilTests(ctx context.Context, farmID string) ([]soil.Test, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, farm_id, test_date, nitrogen_level, phosphorus_level, potassium_level, ph_level, notes, created_at
        FROM soil_tests
        WHERE farm_id = ?
        ORDER BY test_date DESC, id DESC`, farmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := make([]soil.Test, 0)
	for rows.Next() {
		var t soil.Test
		var notes sql.NullString
		if err := rows.Scan(&t.ID, &t.FarmID, &t.TestDate, &t.NitrogenLevel, &t.PhosphorusLevel, &t.PotassiumLevel, &t.PH, &notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Notes = notes.String
		tests = append(tests, t)
	}
	return tests, rows.Err()
}
