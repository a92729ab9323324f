// Package history keeps a SQLite record of training runs and their episode outcomes.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qcar/environment"
	"qcar/reinforcement"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrUnknownRun = errors.New("unknown run")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	track       TEXT NOT NULL,
	episodes    INTEGER NOT NULL,
	params_json TEXT,
	started_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS episodes (
	run_id       TEXT NOT NULL REFERENCES runs(run_id),
	episode      INTEGER NOT NULL,
	reward       REAL NOT NULL,
	final_reward REAL NOT NULL,
	ticks        INTEGER NOT NULL,
	outcome      TEXT NOT NULL,
	finished     INTEGER NOT NULL,
	epsilon      REAL NOT NULL,
	alpha        REAL NOT NULL,
	PRIMARY KEY (run_id, episode)
);`

// Run is a stored training run.
type Run struct {
	RunID     string `json:"run_id"`
	Track     string `json:"track"`
	Episodes  int    `json:"episodes"`
	StartedAt int64  `json:"started_at"`
}

// Store persists runs and episodes. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at @path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("open history: %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new run for @cfg and returns its generated id.
func (s *Store) StartRun(cfg *reinforcement.TrainingConfig) (string, error) {
	params, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}

	runID := uuid.New().String()
	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, track, episodes, params_json, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		runID, cfg.Track.Path, cfg.Episodes, string(params), time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return runID, nil
}

// RecordEpisode appends one episode result to run @runID.
func (s *Store) RecordEpisode(runID string, r reinforcement.EpisodeResult) error {
	_, err := s.db.Exec(`
		INSERT INTO episodes (
			run_id, episode, reward, final_reward, ticks, outcome, finished, epsilon, alpha
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Episode, r.Reward, r.FinalReward, r.Ticks, r.Outcome.String(), r.Finished, r.Epsilon, r.Alpha,
	)
	if err != nil {
		return fmt.Errorf("record episode %d: %w", r.Episode, err)
	}
	return nil
}

// GetRun returns the run @runID, or ErrUnknownRun.
func (s *Store) GetRun(runID string) (*Run, error) {
	var run Run
	err := s.db.QueryRow(`
		SELECT run_id, track, episodes, started_at FROM runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.Track, &run.Episodes, &run.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// Runs returns every stored run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, track, episodes, started_at FROM runs ORDER BY started_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.RunID, &run.Track, &run.Episodes, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Episodes returns the recorded episodes of @runID in episode order.
func (s *Store) Episodes(runID string) ([]reinforcement.EpisodeResult, error) {
	rows, err := s.db.Query(`
		SELECT episode, reward, final_reward, ticks, outcome, finished, epsilon, alpha
		FROM episodes
		WHERE run_id = ?
		ORDER BY episode`, runID)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var results []reinforcement.EpisodeResult
	for rows.Next() {
		var r reinforcement.EpisodeResult
		var outcome string
		if err := rows.Scan(&r.Episode, &r.Reward, &r.FinalReward, &r.Ticks, &outcome, &r.Finished, &r.Epsilon, &r.Alpha); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		if r.Outcome, err = environment.ParseOutcome(outcome); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
