// SPDX-License-Identifier: Apache-2.0
package dissect

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jllopis/chimera/pkg/errors"
	"github.com/jllopis/chimera/pkg/signature"
)

// Store keeps run history in a sqlite database so past runs can be
// listed and their blueprints re-emitted.
type Store struct {
	db *sql.DB
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID             string
	Name           string
	StartedAt      time.Time
	FinishedAt     time.Time
	Discovered     int
	Dissected      int
	Status         string
	BlueprintPath  string
	DissectionPath string
}

// StoredArtifact is one artifact row of a stored run.
type StoredArtifact struct {
	RunID         string
	Index         int
	Name          string
	Path          string
	Architecture  string
	Parameters    int64
	Layers        int
	Heads         int
	VocabSize     int
	ContextLength int
	SizeBytes     int64
	Status        string
	Error         string
	Signature     *signature.ArtifactSignature
}

// OpenStore opens (creating if needed) the sqlite database at path.
// Call Initialize to create the schema.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New(errors.CodeStore, "store path is empty", nil)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeStore, "open run store", err).
			WithContext("path", path)
	}
	return &Store{db: db}, nil
}

// Initialize creates the schema if it does not exist.
func (s *Store) Initialize(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			started_ms INTEGER NOT NULL,
			finished_ms INTEGER NOT NULL,
			discovered INTEGER NOT NULL,
			dissected INTEGER NOT NULL,
			status TEXT NOT NULL,
			blueprint_path TEXT,
			dissection_path TEXT
		);

		CREATE TABLE IF NOT EXISTS run_artifacts (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			architecture TEXT,
			parameters INTEGER,
			layers INTEGER,
			heads INTEGER,
			vocab_size INTEGER,
			context_length INTEGER,
			size_bytes INTEGER,
			status TEXT NOT NULL,
			error TEXT,
			signature_json TEXT,
			PRIMARY KEY (run_id, idx)
		);

		CREATE INDEX IF NOT EXISTS idx_run_artifacts_run ON run_artifacts (run_id);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs (started_ms);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.New(errors.CodeStore, "initialize run store schema", err)
	}
	return nil
}

// SaveRun persists one finished run and its artifact rows in a single
// transaction. reportPath is where the dissection report landed on disk.
// A report without a run ID gets a fresh UUID.
func (s *Store) SaveRun(ctx context.Context, report *Report, reportPath string) error {
	if report == nil {
		return errors.New(errors.CodeStore, "nil report", nil)
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}

	status := StatusFailed
	if report.BlueprintPath != "" {
		status = "completed"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.CodeStore, "begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, started_ms, finished_ms, discovered, dissected, status, blueprint_path, dissection_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Name,
		report.StartedAt.UnixMilli(),
		report.FinishedAt.UnixMilli(),
		report.Discovered,
		report.Dissected,
		status,
		report.BlueprintPath,
		reportPath,
	)
	if err != nil {
		return errors.New(errors.CodeStore, "insert run", err).
			WithContext("run_id", report.RunID)
	}

	for _, artifact := range report.Artifacts {
		var signatureJSON []byte
		var arch string
		var params int64
		var layers, heads, vocab, contextLen int
		var sizeBytes int64
		if artifact.Signature != nil {
			signatureJSON, err = json.Marshal(artifact.Signature)
			if err != nil {
				return errors.New(errors.CodeStore, "marshal signature", err).
					WithContext("artifact", artifact.Name)
			}
			arch = artifact.Signature.Architecture
			params = int64(artifact.Signature.ParameterCount)
			layers = artifact.Signature.LayerCount
			heads = artifact.Signature.AttentionHeads
			vocab = artifact.Signature.VocabSize
			contextLen = artifact.Signature.ContextLength
			sizeBytes = artifact.Signature.SizeBytes
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_artifacts (run_id, idx, name, path, architecture, parameters, layers, heads, vocab_size, context_length, size_bytes, status, error, signature_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID,
			artifact.Index,
			artifact.Name,
			artifact.Path,
			arch,
			params,
			layers,
			heads,
			vocab,
			contextLen,
			sizeBytes,
			artifact.Status,
			sql.NullString{String: artifact.Error, Valid: artifact.Error != ""},
			signatureJSON,
		)
		if err != nil {
			return errors.New(errors.CodeStore, "insert run artifact", err).
				WithContext("run_id", report.RunID).
				WithContext("artifact", artifact.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.CodeStore, "commit run", err).
			WithContext("run_id", report.RunID)
	}
	return nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, started_ms, finished_ms, discovered, dissected, status, blueprint_path, dissection_path
		FROM runs
		ORDER BY started_ms DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.New(errors.CodeStore, "list runs", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, errors.New(errors.CodeStore, "scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeStore, "list runs", err)
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, started_ms, finished_ms, discovered, dissected, status, blueprint_path, dissection_path
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, "run not found", nil).
			WithContext("run_id", id)
	}
	if err != nil {
		return nil, errors.New(errors.CodeStore, "get run", err).
			WithContext("run_id", id)
	}
	return &run, nil
}

// ListArtifacts returns the artifact rows of a run in discovery order.
func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]StoredArtifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, idx, name, path, architecture, parameters, layers, heads, vocab_size, context_length, size_bytes, status, error, signature_json
		FROM run_artifacts
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, errors.New(errors.CodeStore, "list run artifacts", err).
			WithContext("run_id", runID)
	}
	defer rows.Close()

	var artifacts []StoredArtifact
	for rows.Next() {
		a, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, errors.New(errors.CodeStore, "scan run artifact", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeStore, "list run artifacts", err)
	}
	return artifacts, nil
}

// FindArtifact returns the most recently stored dissected row whose name
// or path matches artifact. Failed rows carry no signature and are not
// candidates.
func (s *Store) FindArtifact(ctx context.Context, artifact string) (*StoredArtifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.run_id, a.idx, a.name, a.path, a.architecture, a.parameters, a.layers, a.heads, a.vocab_size, a.context_length, a.size_bytes, a.status, a.error, a.signature_json
		FROM run_artifacts a
		JOIN runs r ON r.id = a.run_id
		WHERE (a.name = ? OR a.path = ?) AND a.status = ?
		ORDER BY r.started_ms DESC
		LIMIT 1
	`, artifact, artifact, StatusDissected)

	found, err := scanArtifact(row.Scan)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, "artifact not found in run history", nil).
			WithContext("artifact", artifact)
	}
	if err != nil {
		return nil, errors.New(errors.CodeStore, "find artifact", err).
			WithContext("artifact", artifact)
	}
	return &found, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanArtifact(scan func(...any) error) (StoredArtifact, error) {
	var a StoredArtifact
	var errMsg sql.NullString
	var signatureJSON []byte
	err := scan(
		&a.RunID,
		&a.Index,
		&a.Name,
		&a.Path,
		&a.Architecture,
		&a.Parameters,
		&a.Layers,
		&a.Heads,
		&a.VocabSize,
		&a.ContextLength,
		&a.SizeBytes,
		&a.Status,
		&errMsg,
		&signatureJSON,
	)
	if err != nil {
		return StoredArtifact{}, err
	}
	if errMsg.Valid {
		a.Error = errMsg.String
	}
	if len(signatureJSON) > 0 {
		var sig signature.ArtifactSignature
		if err := json.Unmarshal(signatureJSON, &sig); err == nil {
			a.Signature = &sig
		}
	}
	return a, nil
}

func scanRun(scan func(...any) error) (RunSummary, error) {
	var run RunSummary
	var startedMs, finishedMs int64
	var blueprintPath, dissectionPath sql.NullString
	err := scan(
		&run.ID,
		&run.Name,
		&startedMs,
		&finishedMs,
		&run.Discovered,
		&run.Dissected,
		&run.Status,
		&blueprintPath,
		&dissectionPath,
	)
	if err != nil {
		return RunSummary{}, err
	}
	run.StartedAt = time.UnixMilli(startedMs).UTC()
	run.FinishedAt = time.UnixMilli(finishedMs).UTC()
	if blueprintPath.Valid {
		run.BlueprintPath = blueprintPath.String
	}
	if dissectionPath.Valid {
		run.DissectionPath = dissectionPath.String
	}
	return run, nil
}
