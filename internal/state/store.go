package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/formhawk/formhawk/internal/analyzer"
)

var bucketReports = []byte("reports")

// ReportStore persists per-target reports in BoltDB so an interrupted batch
// scan can be resumed without re-fetching completed targets.
type ReportStore struct {
	db   *bolt.DB
	path string
}

// NewReportStore opens (or creates) a report store at path.
func NewReportStore(path string) (*ReportStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReports)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &ReportStore{db: db, path: path}, nil
}

// Put saves a report keyed by its target.
func (s *ReportStore) Put(target string, report *analyzer.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(target), data)
	})
}

// Get loads the stored report for a target, or nil when none exists.
func (s *ReportStore) Get(target string) (*analyzer.Report, error) {
	var report *analyzer.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		data := b.Get([]byte(target))
		if data == nil {
			return nil
		}
		report = &analyzer.Report{}
		return json.Unmarshal(data, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Has reports whether a target already has a stored report.
func (s *ReportStore) Has(target string) bool {
	var found bool
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b != nil {
			found = b.Get([]byte(target)) != nil
		}
		return nil
	})
	return found
}

// Targets lists every target with a stored report.
func (s *ReportStore) Targets() ([]string, error) {
	targets := make([]string, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			targets = append(targets, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// Close closes the database.
func (s *ReportStore) Close() error {
	return s.db.Close()
}
