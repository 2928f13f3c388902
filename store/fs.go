package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
)

// FSStore persists partitions as CSV files, one per
// (stream subdirectory, parameter suffix, hour range), laid out as
// <dir>/<prefix>/<stream>/<hour-range>[_<paramKey>].csv. Timestamps are
// written as RFC3339Nano so sub-second precision round-trips.
type FSStore struct {
	dir    string
	prefix string
}

// NewFSStore creates a filesystem store rooted at dir. The index prefix
// becomes a subdirectory, dots replaced so e.g. "btcusd.bitmex" stays one
// path element.
func NewFSStore(dir, indexPrefix string) *FSStore {
	return &FSStore{
		dir:    dir,
		prefix: strings.ReplaceAll(indexPrefix, ".", "_"),
	}
}

func (s *FSStore) partitionPath(stream models.Stream, paramKey string, hourStart time.Time) string {
	return filepath.Join(s.dir, s.prefix, stream.String(), partitionName(hourStart, paramKey)+".csv")
}

// Get loads one partition. A missing file is a miss; a file that exists but
// cannot be parsed is a cache-integrity error, never an empty result.
func (s *FSStore) Get(stream models.Stream, paramKey string, hourStart time.Time) (models.Series, bool, error) {
	path := s.partitionPath(stream, paramKey, hourStart)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, common.NewCacheIntegrityError(fmt.Sprintf("cannot open partition %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, false, common.NewCacheIntegrityError(fmt.Sprintf("cannot parse partition %s", path), err)
	}
	if len(records) == 0 {
		return nil, false, common.NewCacheIntegrityError(fmt.Sprintf("partition %s has no header", path), nil)
	}

	header := records[0]
	if len(header) == 0 || header[0] != "timestamp" {
		return nil, false, common.NewCacheIntegrityError(fmt.Sprintf("partition %s has no timestamp column", path), nil)
	}

	rows := make(models.Series, 0, len(records)-1)
	for _, record := range records[1:] {
		ts, err := time.Parse(time.RFC3339Nano, record[0])
		if err != nil {
			return nil, false, common.NewCacheIntegrityError(fmt.Sprintf("bad timestamp in partition %s", path), err)
		}
		fields := make(map[string]float64, len(header)-1)
		for i, name := range header[1:] {
			cell := record[i+1]
			if cell == "" {
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, false, common.NewCacheIntegrityError(fmt.Sprintf("bad value in partition %s", path), err)
			}
			fields[name] = value
		}
		rows = append(rows, models.Row{Timestamp: ts.UTC(), Fields: fields})
	}
	return rows, true, nil
}

// Put writes one partition. The write goes to a temp file which is renamed
// into place, so a concurrent Get never observes a half-written partition
// and rewriting an existing partition is safe.
func (s *FSStore) Put(stream models.Stream, paramKey string, hourStart time.Time, rows models.Series) error {
	path := s.partitionPath(stream, paramKey, hourStart)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".partition-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	columns := rows.FieldNames()
	writer := csv.NewWriter(tmp)

	header := append([]string{"timestamp"}, columns...)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		record[0] = row.Timestamp.UTC().Format(time.RFC3339Nano)
		for i, name := range columns {
			if value, ok := row.Fields[name]; ok {
				record[i+1] = strconv.FormatFloat(value, 'g', -1, 64)
			} else {
				record[i+1] = ""
			}
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Wipe removes every cached partition under the store's prefix. This is the
// only staleness mechanism: partitions are immutable once written.
func (s *FSStore) Wipe() error {
	return os.RemoveAll(filepath.Join(s.dir, s.prefix))
}
