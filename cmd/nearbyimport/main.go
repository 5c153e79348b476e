// Command nearbyimport loads centre and activity data into the bot's
// database, replacing what is there. Sources are local JSON files or a
// published spreadsheet JSON feed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"nearbybot/pkg/cache"
	"nearbybot/pkg/config"
	"nearbybot/pkg/db"
	"nearbybot/pkg/model"
	"nearbybot/pkg/request"
	"nearbybot/pkg/store"
	"nearbybot/pkg/tracker"
)

var (
	configPath    = flag.String("config", "configs/nearbybot.yaml", "Path to config file")
	centresPath   = flag.String("centres", "", "JSON file with centres to import")
	activityPath  = flag.String("activities", "", "JSON file with activities to import")
	sheetURL      = flag.String("sheet", "", "Spreadsheet JSON feed URL with activities to import")
	importTimeout = flag.Duration("timeout", 2*time.Minute, "Overall import timeout")
)

// centreRecord mirrors the JSON shape of the curated centres file.
type centreRecord struct {
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Category string   `json:"category"`
}

// activityRecord mirrors the JSON shape of the activities file and the
// spreadsheet feed. Dates come as one comma-separated string.
type activityRecord struct {
	ActivityName        string `json:"activityName"`
	Centre              string `json:"centre"`
	Description         string `json:"description"`
	ActivityDate        string `json:"activityDate"`
	ActivityTime        string `json:"activityTime"`
	SignUpInstruction   string `json:"signUpInstruction"`
	RecommendedAudience string `json:"recommendedAudience"`
	IsHighlight         bool   `json:"isHighlight"`
	HighlightNote       string `json:"highlightNote"`
	HighlightOrder      *int   `json:"highlightOrder"`
}

func main() {
	flag.Parse()

	if *centresPath == "" && *activityPath == "" && *sheetURL == "" {
		fmt.Fprintln(os.Stderr, "Nothing to do: pass -centres, -activities or -sheet")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *importTimeout)
	defer cancel()

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	if *centresPath != "" {
		n, err := importCentres(ctx, st, *centresPath)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d centres\n", n)
	}

	var records []activityRecord
	switch {
	case *activityPath != "":
		if err := readJSONFile(*activityPath, &records); err != nil {
			return err
		}
	case *sheetURL != "":
		records, err = fetchSheet(ctx, cfg, *sheetURL)
		if err != nil {
			return err
		}
	}
	if records != nil {
		n, err := importActivities(ctx, st, records)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d activities\n", n)
	}

	return nil
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// fetchSheet pulls the activity rows from a published spreadsheet JSON feed.
// No cache key: imports always want fresh data.
func fetchSheet(ctx context.Context, cfg *config.Config, u string) ([]activityRecord, error) {
	client := request.New(cache.Null{}, tracker.New(), request.ClientConfig{
		Retries:   cfg.Request.Retries,
		Timeout:   time.Duration(cfg.Request.Timeout),
		BaseDelay: time.Duration(cfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(cfg.Request.Backoff.MaxDelay),
	})
	body, err := client.Get(ctx, u, "")
	if err != nil {
		return nil, fmt.Errorf("fetching sheet feed: %w", err)
	}
	var records []activityRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("parsing sheet feed: %w", err)
	}
	return records, nil
}

func importCentres(ctx context.Context, st store.Store, path string) (int, error) {
	var records []centreRecord
	if err := readJSONFile(path, &records); err != nil {
		return 0, err
	}

	if err := st.DeleteAllCentres(ctx); err != nil {
		return 0, fmt.Errorf("clearing centres: %w", err)
	}
	for i, r := range records {
		c := &model.Centre{
			ID:       uuid.NewString(),
			Name:     strings.TrimSpace(r.Name),
			Address:  strings.TrimSpace(r.Address),
			Phone:    strings.TrimSpace(r.Phone),
			Email:    strings.TrimSpace(r.Email),
			Lat:      r.Lat,
			Lng:      r.Lng,
			Category: model.Category(strings.TrimSpace(r.Category)),
		}
		if c.Name == "" {
			return i, fmt.Errorf("centre %d has no name", i)
		}
		if !c.Category.Valid() {
			return i, fmt.Errorf("centre %q has unknown category %q", c.Name, r.Category)
		}
		if err := st.SaveCentre(ctx, c); err != nil {
			return i, fmt.Errorf("saving centre %q: %w", c.Name, err)
		}
	}
	return len(records), nil
}

func importActivities(ctx context.Context, st store.Store, records []activityRecord) (int, error) {
	if err := st.DeleteAllActivities(ctx); err != nil {
		return 0, fmt.Errorf("clearing activities: %w", err)
	}
	for i, r := range records {
		a := toActivity(r)
		if err := st.SaveActivity(ctx, a); err != nil {
			return i, fmt.Errorf("saving activity %q: %w", a.Name, err)
		}
	}
	return len(records), nil
}

func toActivity(r activityRecord) *model.Activity {
	a := &model.Activity{
		ID:                  uuid.NewString(),
		Name:                strings.TrimSpace(r.ActivityName),
		Centre:              strings.TrimSpace(r.Centre),
		Description:         strings.TrimSpace(r.Description),
		Dates:               parseDates(r.ActivityDate),
		TimeOfDay:           strings.TrimSpace(r.ActivityTime),
		SignUpInstruction:   strings.TrimSpace(r.SignUpInstruction),
		RecommendedAudience: strings.TrimSpace(r.RecommendedAudience),
		IsHighlight:         r.IsHighlight,
		HighlightNote:       strings.TrimSpace(r.HighlightNote),
		HighlightOrder:      r.HighlightOrder,
	}
	if a.Name == "" {
		a.Name = "Untitled Activity"
	}
	if a.Centre == "" {
		a.Centre = "Unknown Centre"
	}
	if a.Description == "" {
		a.Description = "No description available."
	}
	return a
}

// dateLayouts are the formats seen in the curated sheets, day-first.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2 Jan 2006",
	"2006-01-02",
	time.RFC3339,
}

// parseDates splits a comma-separated date list, dropping entries that do
// not parse. An empty result is fine; the store defaults it.
func parseDates(s string) []time.Time {
	var dates []time.Time
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, part); err == nil {
				dates = append(dates, t.UTC())
				break
			}
		}
	}
	return dates
}
