// Package render converts centre and activity records into chat-ready text.
// Output uses the transport's HTML subset (bold, italic); all record values
// are escaped here, at the formatting boundary.
package render

import (
	"fmt"
	"strings"

	"nearbybot/pkg/model"
)

// Mode selects the activity block rendering.
type Mode int

const (
	// ModeFull includes the activity description (truncated).
	ModeFull Mode = iota
	// ModeCompact omits the description; used for highlight summaries.
	ModeCompact
)

const blockSeparator = "\n──────────\n"

// dateFormat is day-first without zero padding, the local convention.
const dateFormat = "2/1/2006"

// Formatter renders records under transport length constraints.
type Formatter struct {
	ChunkLimit       int // max characters per output unit
	DescriptionLimit int // max characters of an activity description
}

// New creates a Formatter with the given limits.
func New(chunkLimit, descriptionLimit int) *Formatter {
	return &Formatter{ChunkLimit: chunkLimit, DescriptionLimit: descriptionLimit}
}

// Escape escapes text for the HTML subset.
func Escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// ActivityBlock renders one activity as a formatted block.
func (f *Formatter) ActivityBlock(a *model.Activity, mode Mode) string {
	dates := make([]string, 0, len(a.Dates))
	for _, d := range a.Dates {
		dates = append(dates, d.Format(dateFormat))
	}

	timeOfDay := a.TimeOfDay
	if timeOfDay == "" {
		timeOfDay = "Time not specified"
	}
	audience := a.RecommendedAudience
	if audience == "" {
		audience = "All"
	}
	signup := a.SignUpInstruction
	if signup == "" {
		signup = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", Escape(a.Name))
	fmt.Fprintf(&b, "— <b>Date:</b> %s\n", Escape(strings.Join(dates, ", ")))
	fmt.Fprintf(&b, "— <b>Time:</b> %s\n", Escape(timeOfDay))
	fmt.Fprintf(&b, "— <b>Recommended For:</b> %s\n", Escape(audience))
	fmt.Fprintf(&b, "— <b>Sign-up:</b> %s\n", Escape(signup))

	if mode == ModeCompact && a.HighlightNote != "" {
		fmt.Fprintf(&b, "— <b>Note:</b> %s\n", Escape(a.HighlightNote))
	}

	if mode == ModeFull {
		desc := truncate(strings.TrimSpace(a.Description), f.DescriptionLimit)
		if desc != "" {
			fmt.Fprintf(&b, "\n<i>%s</i>\n", Escape(desc))
		}
	}

	b.WriteString(blockSeparator)
	return b.String()
}

// truncate caps s at limit characters, not bytes, so multibyte text keeps
// its full budget and is never cut mid-rune. limit <= 0 disables the cap.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// Chunk renders activities into one or more output units, each bounded by
// ChunkLimit. Blocks are never split: if appending a block would exceed the
// limit, the current buffer is flushed and a new one started, preserving
// activity order across units. header, if non-empty, leads the first unit.
func (f *Formatter) Chunk(activities []*model.Activity, header string, mode Mode) []string {
	var units []string
	var buffer string
	if header != "" {
		buffer = fmt.Sprintf("<b>%s</b>\n\n", Escape(header))
	}

	for _, a := range activities {
		block := f.ActivityBlock(a, mode)
		if buffer != "" && len(buffer)+len(block) > f.ChunkLimit {
			units = append(units, buffer)
			buffer = ""
		}
		buffer += block
	}

	if strings.TrimSpace(buffer) != "" {
		units = append(units, buffer)
	}
	return units
}

// Highlights renders the monthly highlight summary as a single compact text,
// or "" when there is nothing to show.
func (f *Formatter) Highlights(activities []*model.Activity) string {
	if len(activities) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<b>🌟 Highlights of the Month</b>\n\n")
	for _, a := range activities {
		b.WriteString(f.ActivityBlock(a, ModeCompact))
	}
	return strings.TrimSpace(b.String())
}

// CardOptions controls optional centre card fields.
type CardOptions struct {
	DistanceKm   float64 // rendered when > 0
	ShowCategory bool
}

// CentreCard renders a centre's contact card. Anti-violence centres omit the
// address; their locations are not published.
func CentreCard(c *model.Centre, opts CardOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", Escape(c.Name))

	if c.Category != model.CategoryAntiViolence && c.Address != "" {
		fmt.Fprintf(&b, "📍 %s\n", Escape(c.Address))
	}
	if c.Phone != "" {
		fmt.Fprintf(&b, "📞 %s\n", Escape(c.Phone))
	}
	if c.Email != "" {
		fmt.Fprintf(&b, "✉️ %s\n", Escape(c.Email))
	}
	if opts.DistanceKm > 0 {
		fmt.Fprintf(&b, "📏 ~%.1f km away\n", opts.DistanceKm)
	}
	if opts.ShowCategory && c.Category != "" {
		fmt.Fprintf(&b, "📂 Category: %s\n", Escape(c.Category.Display()))
	}
	return strings.TrimRight(b.String(), "\n")
}
