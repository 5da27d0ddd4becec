// Package attendance records per-day presence of recognized people. Each day
// gets its own CSV file; a cooldown window keeps one person from generating a
// record on every frame they stay in view.
package attendance

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const fileTimeLayout = "2006-01-02 15:04:05"

// Record is one attendance entry.
type Record struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// Logger appends attendance records to daily CSV files.
type Logger struct {
	mu       sync.Mutex
	dir      string
	cooldown time.Duration
	lastSeen map[string]time.Time

	now func() time.Time
}

// New creates a logger writing into dir with the given per-person cooldown.
func New(dir string, cooldown time.Duration) *Logger {
	return &Logger{
		dir:      dir,
		cooldown: cooldown,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Mark records that a person was seen now. Returns true when a record was
// written; false when the person is still inside the cooldown window.
func (l *Logger) Mark(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastSeen[name]; ok && now.Sub(last) < l.cooldown {
		return false, nil
	}

	if err := l.appendRecord(name, now); err != nil {
		return false, err
	}
	l.lastSeen[name] = now
	return true, nil
}

// Records reads all entries for the given day.
func (l *Logger) Records(day time.Time) ([]Record, error) {
	f, err := os.Open(l.filePath(day))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening attendance file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading attendance file: %w", err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue // header
		}
		t, err := time.ParseInLocation(fileTimeLayout, row[1], time.Local)
		if err != nil {
			continue
		}
		records = append(records, Record{Name: row[0], Time: t})
	}
	return records, nil
}

// Summary returns how many times each person was recorded on the given day.
func (l *Logger) Summary(day time.Time) (map[string]int, error) {
	records, err := l.Records(day)
	if err != nil {
		return nil, err
	}
	summary := make(map[string]int)
	for _, r := range records {
		summary[r.Name]++
	}
	return summary, nil
}

// Export writes the given day's records to w as CSV.
func (l *Logger) Export(day time.Time, w *csv.Writer) error {
	records, err := l.Records(day)
	if err != nil {
		return err
	}
	if err := w.Write([]string{"name", "time"}); err != nil {
		return fmt.Errorf("writing export header: %w", err)
	}
	sort.Slice(records, func(a, b int) bool { return records[a].Time.Before(records[b].Time) })
	for _, r := range records {
		if err := w.Write([]string{r.Name, r.Time.Format(fileTimeLayout)}); err != nil {
			return fmt.Errorf("writing export row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ClearCooldowns forgets all cooldown state, so every person is recordable
// again immediately.
func (l *Logger) ClearCooldowns() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSeen = make(map[string]time.Time)
}

// appendRecord writes one CSV row, creating the daily file with a header
// when needed. Callers must hold l.mu.
func (l *Logger) appendRecord(name string, at time.Time) error {
	path := l.filePath(at)
	_, statErr := os.Stat(path)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening attendance file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write([]string{"name", "time"}); err != nil {
			return fmt.Errorf("writing attendance header: %w", err)
		}
	}
	if err := w.Write([]string{name, at.Format(fileTimeLayout)}); err != nil {
		return fmt.Errorf("writing attendance record: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (l *Logger) filePath(day time.Time) string {
	return filepath.Join(l.dir, "attendance_"+day.Format("2006-01-02")+".csv")
}
