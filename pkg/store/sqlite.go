package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nearbybot/pkg/db"
	"nearbybot/pkg/model"
)

// sqliteTimeFormat matches SQLite's CURRENT_TIMESTAMP text representation so
// date comparisons work lexicographically. All stored dates are UTC.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Centres ---

const centreColumns = "id, name, address, phone, email, lat, lng, category"

func scanCentre(row interface{ Scan(...any) error }) (*model.Centre, error) {
	var c model.Centre
	var address, phone, email, category sql.NullString
	var lat, lng sql.NullFloat64

	err := row.Scan(&c.ID, &c.Name, &address, &phone, &email, &lat, &lng, &category)
	if err != nil {
		return nil, err
	}

	c.Address = address.String
	c.Phone = phone.String
	c.Email = email.String
	c.Category = model.Category(category.String)
	// Coordinates are all-or-nothing; a half-set pair is treated as absent.
	if lat.Valid && lng.Valid {
		latV, lngV := lat.Float64, lng.Float64
		c.Lat, c.Lng = &latV, &lngV
	}
	return &c, nil
}

func (s *SQLiteStore) GetCentre(ctx context.Context, id string) (*model.Centre, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+centreColumns+" FROM centres WHERE id = ?", id)
	c, err := scanCentre(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	return c, err
}

func (s *SQLiteStore) AllCentres(ctx context.Context) ([]*model.Centre, error) {
	return s.queryCentres(ctx, "SELECT "+centreColumns+" FROM centres ORDER BY name")
}

func (s *SQLiteStore) CentresByCategory(ctx context.Context, category model.Category) ([]*model.Centre, error) {
	return s.queryCentres(ctx,
		"SELECT "+centreColumns+" FROM centres WHERE category = ? ORDER BY name", string(category))
}

func (s *SQLiteStore) CentresByName(ctx context.Context, text string) ([]*model.Centre, error) {
	return s.queryCentres(ctx,
		"SELECT "+centreColumns+" FROM centres WHERE name LIKE ? ESCAPE '\\' ORDER BY name",
		likePattern(text))
}

func (s *SQLiteStore) queryCentres(ctx context.Context, query string, args ...any) ([]*model.Centre, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var centres []*model.Centre
	for rows.Next() {
		c, err := scanCentre(rows)
		if err != nil {
			return nil, err
		}
		centres = append(centres, c)
	}
	return centres, rows.Err()
}

func (s *SQLiteStore) SaveCentre(ctx context.Context, c *model.Centre) error {
	var lat, lng any
	if c.HasCoords() {
		lat, lng = *c.Lat, *c.Lng
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO centres (id, name, address, phone, email, lat, lng, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Address, c.Phone, c.Email, lat, lng, string(c.Category))
	return err
}

func (s *SQLiteStore) DeleteAllCentres(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM centres")
	return err
}

// --- Activities ---

const activityColumns = `id, name, centre, description, time_of_day,
	sign_up_instruction, recommended_audience, is_highlight, highlight_note, highlight_order`

func scanActivity(row interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	var description, timeOfDay, signUp, audience, note sql.NullString
	var order sql.NullInt64

	err := row.Scan(&a.ID, &a.Name, &a.Centre, &description, &timeOfDay,
		&signUp, &audience, &a.IsHighlight, &note, &order)
	if err != nil {
		return nil, err
	}

	a.Description = description.String
	a.TimeOfDay = timeOfDay.String
	a.SignUpInstruction = signUp.String
	a.RecommendedAudience = audience.String
	a.HighlightNote = note.String
	if order.Valid {
		v := int(order.Int64)
		a.HighlightOrder = &v
	}
	return &a, nil
}

func (s *SQLiteStore) ActivitiesByCentreName(ctx context.Context, name string) ([]*model.Activity, error) {
	return s.queryActivities(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE centre = ? ORDER BY name", name)
}

func (s *SQLiteStore) ActivitiesByKeyword(ctx context.Context, term string) ([]*model.Activity, error) {
	p := likePattern(term)
	return s.queryActivities(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'
		 ORDER BY name`, p, p)
}

func (s *SQLiteStore) HighlightedActivities(ctx context.Context, centreName string, start, end time.Time) ([]*model.Activity, error) {
	return s.queryActivities(ctx,
		`SELECT DISTINCT a.id, a.name, a.centre, a.description, a.time_of_day,
			a.sign_up_instruction, a.recommended_audience, a.is_highlight,
			a.highlight_note, a.highlight_order
		 FROM activities a
		 JOIN activity_dates d ON d.activity_id = a.id
		 WHERE a.centre = ? AND a.is_highlight = 1 AND d.date >= ? AND d.date <= ?
		 ORDER BY CASE WHEN a.highlight_order IS NULL THEN 1 ELSE 0 END,
			a.highlight_order, a.name`,
		centreName, formatTime(start), formatTime(end))
}

func (s *SQLiteStore) queryActivities(ctx context.Context, query string, args ...any) ([]*model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []*model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadDates(ctx, activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// loadDates attaches scheduled dates to each activity in one query.
func (s *SQLiteStore) loadDates(ctx context.Context, activities []*model.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	byID := make(map[string]*model.Activity, len(activities))
	query := "SELECT activity_id, date FROM activity_dates WHERE activity_id IN ("
	args := make([]any, len(activities))
	for i, a := range activities {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = a.ID
		byID[a.ID] = a
	}
	query += ") ORDER BY date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return err
		}
		t, err := time.ParseInLocation(sqliteTimeFormat, raw, time.UTC)
		if err != nil {
			// Malformed date rows are skipped, not surfaced.
			slog.Warn("skipping malformed activity date", "activity", id, "value", raw)
			continue
		}
		if a, ok := byID[id]; ok {
			a.Dates = append(a.Dates, t)
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) SaveActivity(ctx context.Context, a *model.Activity) error {
	// An activity always has at least one scheduled date; default to now.
	dates := a.Dates
	if len(dates) == 0 {
		dates = []time.Time{time.Now().UTC()}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var order any
	if a.HighlightOrder != nil {
		order = *a.HighlightOrder
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO activities (id, name, centre, description, time_of_day,
			sign_up_instruction, recommended_audience, is_highlight, highlight_note, highlight_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Centre, a.Description, a.TimeOfDay,
		a.SignUpInstruction, a.RecommendedAudience, a.IsHighlight, a.HighlightNote, order)
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM activity_dates WHERE activity_id = ?", a.ID); err != nil {
		return err
	}
	for _, d := range dates {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO activity_dates (activity_id, date) VALUES (?, ?)",
			a.ID, formatTime(d)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteAllActivities(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM activity_dates"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM activities")
	return err
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		key, val)
	return err
}

// --- helpers ---

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

// likePattern builds a case-insensitive substring LIKE pattern, escaping the
// LIKE metacharacters in the user's text.
func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(text) + "%"
}
