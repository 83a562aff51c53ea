package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"copydesk/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDatabasePath())
}

// OpenPath connects to the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// NewItem inserts a queue row. A zero status defaults to pending.
func (s *Store) NewItem(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if item.Title == "" {
		return nil, errors.New("item title is required")
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	query, args, err := builder.
		Insert("queue_items").
		SetMap(itemFieldMap(item, timestamp, timestamp)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	query, args, err := builder.
		Select(itemColumns...).
		From("queue_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Pending returns rows eligible for a batch run. Selection is a strict
// allow-list: the stored status must equal "pending" after trimming and
// lowercasing. Anything else, including empty and unrecognized custom
// strings, is excluded.
func (s *Store) Pending(ctx context.Context) ([]*Item, error) {
	query, args, err := builder.
		Select(itemColumns...).
		From("queue_items").
		Where(sq.Expr("LOWER(TRIM(status)) = ?", string(StatusPending))).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending select: %w", err)
	}
	return s.queryItems(ctx, query, args...)
}

// List returns queue items filtered by status set (or all items when no
// status is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	q := builder.Select(itemColumns...).From("queue_items").OrderBy("created_at")
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		q = q.Where(sq.Eq{"LOWER(TRIM(status))": values})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list select: %w", err)
	}
	return s.queryItems(ctx, query, args...)
}

// Update persists the full row for an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()

	fields := itemFieldMap(item, "", item.UpdatedAt.Format(time.RFC3339Nano))
	delete(fields, "created_at")

	query, args, err := builder.
		Update("queue_items").
		SetMap(fields).
		Where(sq.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// WriteFields writes a partial set of columns for one row, the narrow
// write-cell contract the pipeline relies on between stages.
func (s *Store) WriteFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		set[column] = value
	}
	set["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	query, args, err := builder.
		Update("queue_items").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build field update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write fields: %w", err)
	}
	return nil
}

// Transition advances an item through the pipeline state machine and persists
// the full row. Moves outside the closed transition table are rejected.
func (s *Store) Transition(ctx context.Context, item *Item, next Status) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if !CanAdvance(item.Status, next) {
		return fmt.Errorf("illegal status transition %s -> %s for item %d", item.Status, next, item.ID)
	}
	item.Status = next
	return s.Update(ctx, item)
}

// RetryErrored moves errored items back to pending. This is the human reset
// surface; the pipeline itself never performs error -> pending.
func (s *Store) RetryErrored(ctx context.Context, ids ...int64) (int64, error) {
	set := map[string]any{
		"status":     string(StatusPending),
		"error_log":  "",
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	q := builder.Update("queue_items").SetMap(set).Where(sq.Eq{"LOWER(TRIM(status))": string(StatusError)})
	if len(ids) > 0 {
		q = q.Where(sq.Eq{"id": ids})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build retry update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry errored items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[normalizeScannedStatus(status)] += count
	}
	return stats, rows.Err()
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

var itemColumns = []string{
	"id", "title", "post_url", "remote_id", "target_keyword", "secondary_keywords",
	"tier", "directive", "notes", "section", "post_type", "description",
	"google_impressions", "google_clicks", "google_ctr", "google_position",
	"bing_impressions", "bing_clicks", "bing_ctr", "bing_position",
	"status", "question_data", "keyword_data", "evidence_data",
	"draft_ref", "draft_link", "completed_at", "error_log",
	"created_at", "updated_at",
}

func itemFieldMap(item *Item, createdAt, updatedAt string) map[string]any {
	fields := map[string]any{
		"title":              item.Title,
		"post_url":           nullableString(item.PostURL),
		"remote_id":          nullableString(item.RemoteID),
		"target_keyword":     nullableString(item.TargetKeyword),
		"secondary_keywords": nullableString(item.SecondaryKeywords),
		"tier":               ClampTier(item.Tier),
		"directive":          nullableString(string(item.Directive)),
		"notes":              nullableString(item.Notes),
		"section":            nullableString(item.Section),
		"post_type":          nullableString(item.PostType),
		"description":        nullableString(item.Description),
		"google_impressions": nullableString(item.Metrics.Google.Impressions),
		"google_clicks":      nullableString(item.Metrics.Google.Clicks),
		"google_ctr":         nullableString(item.Metrics.Google.CTR),
		"google_position":    nullableString(item.Metrics.Google.Position),
		"bing_impressions":   nullableString(item.Metrics.Bing.Impressions),
		"bing_clicks":        nullableString(item.Metrics.Bing.Clicks),
		"bing_ctr":           nullableString(item.Metrics.Bing.CTR),
		"bing_position":      nullableString(item.Metrics.Bing.Position),
		"status":             string(item.Status),
		"question_data":      nullableString(item.QuestionData),
		"keyword_data":       nullableString(item.KeywordData),
		"evidence_data":      nullableString(item.EvidenceData),
		"draft_ref":          nullableString(item.DraftRef),
		"draft_link":         nullableString(item.DraftLink),
		"completed_at":       nullableString(item.CompletedAt),
		"error_log":          nullableString(item.ErrorLog),
		"updated_at":         updatedAt,
	}
	if createdAt != "" {
		fields["created_at"] = createdAt
	}
	return fields
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id                             int64
		title                          string
		postURL, remoteID              sql.NullString
		targetKeyword, secondaryKW     sql.NullString
		tier                           sql.NullInt64
		directive                      sql.NullString
		notes, section, postType, desc sql.NullString
		gImp, gClicks, gCTR, gPos      sql.NullString
		bImp, bClicks, bCTR, bPos      sql.NullString
		statusStr                      string
		questionData, keywordData      sql.NullString
		evidenceData                   sql.NullString
		draftRef, draftLink            sql.NullString
		completedAt, errorLog          sql.NullString
		createdRaw, updatedRaw         sql.NullString
	)

	if err := scanner.Scan(
		&id, &title, &postURL, &remoteID, &targetKeyword, &secondaryKW,
		&tier, &directive, &notes, &section, &postType, &desc,
		&gImp, &gClicks, &gCTR, &gPos,
		&bImp, &bClicks, &bCTR, &bPos,
		&statusStr, &questionData, &keywordData, &evidenceData,
		&draftRef, &draftLink, &completedAt, &errorLog,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                id,
		Title:             title,
		PostURL:           postURL.String,
		RemoteID:          remoteID.String,
		TargetKeyword:     targetKeyword.String,
		SecondaryKeywords: secondaryKW.String,
		Tier:              ClampTier(int(tier.Int64)),
		Directive:         Directive(directive.String),
		Notes:             notes.String,
		Section:           section.String,
		PostType:          postType.String,
		Description:       desc.String,
		Metrics: Metrics{
			Google: EngineMetrics{Impressions: gImp.String, Clicks: gClicks.String, CTR: gCTR.String, Position: gPos.String},
			Bing:   EngineMetrics{Impressions: bImp.String, Clicks: bClicks.String, CTR: bCTR.String, Position: bPos.String},
		},
		Status:       normalizeScannedStatus(statusStr),
		QuestionData: questionData.String,
		KeywordData:  keywordData.String,
		EvidenceData: evidenceData.String,
		DraftRef:     draftRef.String,
		DraftLink:    draftLink.String,
		CompletedAt:  completedAt.String,
		ErrorLog:     errorLog.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

// normalizeScannedStatus maps stored status text onto the known enum so rows
// written with stray casing or padding behave like their canonical status.
// Unknown values stay raw: the allow-list must keep excluding them.
func normalizeScannedStatus(raw string) Status {
	if status, ok := ParseStatus(raw); ok {
		return status
	}
	return Status(raw)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
