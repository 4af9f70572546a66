package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dailyverse/internal/schedule"
	logx "dailyverse/pkg/logx"
)

const fileFormatVersion = 1

// fileStore keeps every record in one JSON document.
//
// There is no in-memory cache: each call reads the file, and each mutation is a
// read-modify-write of the whole document under mu, written to <path>.tmp and
// renamed over <path>. A reader therefore sees either the old or the new file,
// never a partial one.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
}

type fileDoc struct {
	Version    int                        `json:"version"`
	Recipients map[string]schedule.Record `json:"recipients"`

	// Files written by the first release of the bot (persist.json) carried a
	// "users" map instead. They are imported on read and rewritten on the next write.
	LegacyUsers map[string]legacyUser `json:"users,omitempty"`
}

type legacyUser struct {
	BibleVersion  string `json:"bible_version"`
	ScheduledTime string `json:"scheduled_time"`
	Timezone      string `json:"timezone"`
}

func openFile(cfg Config, log logx.Logger) (schedule.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// A leftover temp file means a write was interrupted before rename; the
	// target still holds the previous complete document.
	if err := os.Remove(path + ".tmp"); err == nil {
		log.Warn("removed interrupted store write", logx.String("path", path+".tmp"))
	}

	s := &fileStore{log: log, path: path}
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	log.Info("schedule store loaded", logx.String("path", path), logx.Int("recipients", len(doc.Recipients)))
	return s, nil
}

func (s *fileStore) read() (fileDoc, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return fileDoc{Version: fileFormatVersion, Recipients: map[string]schedule.Record{}}, nil
	}
	if err != nil {
		return fileDoc{}, err
	}

	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return fileDoc{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if doc.Recipients == nil {
		doc.Recipients = map[string]schedule.Record{}
	}
	if len(doc.LegacyUsers) > 0 {
		importLegacyUsers(&doc, s.log)
	}
	for id, rec := range doc.Recipients {
		if rec.RecipientID == "" {
			rec.RecipientID = id
			doc.Recipients[id] = rec
		}
	}
	return doc, nil
}

func importLegacyUsers(doc *fileDoc, log logx.Logger) {
	for id, u := range doc.LegacyUsers {
		if _, ok := doc.Recipients[id]; ok {
			continue
		}
		tod, err := schedule.ParseTimeOfDay(u.ScheduledTime)
		if err != nil {
			log.Warn("legacy user skipped", logx.String("recipient", id), logx.Err(err))
			continue
		}
		tz := u.Timezone
		if tz == "" {
			tz = "America/New_York"
		}
		doc.Recipients[id] = schedule.Record{
			RecipientID:    id,
			ContentVersion: u.BibleVersion,
			TimeOfDay:      tod,
			Timezone:       tz,
		}
	}
	doc.LegacyUsers = nil
}

func (s *fileStore) write(doc fileDoc) error {
	doc.Version = fileFormatVersion
	doc.LegacyUsers = nil
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Persist the rename itself. Not supported on every platform; best-effort.
	if d, err := os.Open(filepath.Dir(s.path)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func (s *fileStore) begin(ctx context.Context) (fileDoc, error) {
	if err := ctx.Err(); err != nil {
		return fileDoc{}, err
	}
	if s.closed {
		return fileDoc{}, errClosed
	}
	return s.read()
}

func (s *fileStore) Get(ctx context.Context, recipientID string) (schedule.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.begin(ctx)
	if err != nil {
		return schedule.Record{}, false, err
	}
	rec, ok := doc.Recipients[recipientID]
	return rec, ok, nil
}

func (s *fileStore) List(ctx context.Context) ([]schedule.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schedule.Record, 0, len(doc.Recipients))
	for _, rec := range doc.Recipients {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

func (s *fileStore) Upsert(ctx context.Context, rec schedule.Record) error {
	if strings.TrimSpace(rec.RecipientID) == "" {
		return errors.New("recipient id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	doc.Recipients[rec.RecipientID] = rec
	return s.write(doc)
}

func (s *fileStore) Update(ctx context.Context, recipientID string, fn func(rec *schedule.Record, found bool) error) error {
	if strings.TrimSpace(recipientID) == "" {
		return errors.New("recipient id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.begin(ctx)
	if err != nil {
		return err
	}

	cur, found := doc.Recipients[recipientID]
	next := cur.Clone()
	if err := fn(&next, found); err != nil {
		if errors.Is(err, schedule.ErrNoChange) {
			return nil
		}
		return err
	}
	next.RecipientID = recipientID
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = next.CreatedAt
	}

	// Skip the write when fn left the record as it was.
	if found {
		a, _ := json.Marshal(cur)
		b, _ := json.Marshal(next)
		if bytes.Equal(a, b) {
			return nil
		}
	}
	doc.Recipients[recipientID] = next
	return s.write(doc)
}

func (s *fileStore) Delete(ctx context.Context, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.begin(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := doc.Recipients[recipientID]; !ok {
		return false, nil
	}
	delete(doc.Recipients, recipientID)
	return true, s.write(doc)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
