// Package flow routes inbound chat events through the conversation state
// machine: menus, category searches, postal-code flows, keyword searches and
// document downloads. Every session holds at most one active flow; the
// dispatcher reads the session state, handles the event, and writes the next
// state back.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"nearbybot/pkg/chat"
	"nearbybot/pkg/config"
	"nearbybot/pkg/geo"
	"nearbybot/pkg/geocode"
	"nearbybot/pkg/model"
	"nearbybot/pkg/pdfexport"
	"nearbybot/pkg/rank"
	"nearbybot/pkg/render"
	"nearbybot/pkg/session"
	"nearbybot/pkg/store"
)

var postalPattern = regexp.MustCompile(`^\d{6}$`)

const (
	msgInvalidPostal  = "❌ Invalid postal code. Please enter a valid 6-digit postal code."
	msgPostalNotFound = "❌ No results found. Please check your postal code."
	msgGeocodeFailed  = "❌ Error fetching location. Try again later."
	msgInternalError  = "❌ Something went wrong. Please try again later."
	msgWhatNext       = "What would you like to do next?"
)

// Options collects the dispatcher's dependencies.
type Options struct {
	Centres     store.CentreStore
	Activities  store.ActivityStore
	Geocoder    geocode.Resolver
	Sessions    *session.Store
	Sender      chat.Sender
	Formatter   *render.Formatter
	Exporter    *pdfexport.Exporter
	Flows       config.FlowsConfig
	Newsletters map[string]string
	Logger      *slog.Logger
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Dispatcher is the conversation engine. Safe for concurrent use.
type Dispatcher struct {
	centres     store.CentreStore
	activities  store.ActivityStore
	geocoder    geocode.Resolver
	sessions    *session.Store
	sender      chat.Sender
	fmtr        *render.Formatter
	exporter    *pdfexport.Exporter
	flows       config.FlowsConfig
	newsletters map[string]string
	log         *slog.Logger
	now         func() time.Time
}

// New creates a Dispatcher from opts.
func New(opts Options) *Dispatcher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		centres:     opts.Centres,
		activities:  opts.Activities,
		geocoder:    opts.Geocoder,
		sessions:    opts.Sessions,
		sender:      opts.Sender,
		fmtr:        opts.Formatter,
		exporter:    opts.Exporter,
		flows:       opts.Flows,
		newsletters: opts.Newsletters,
		log:         log,
		now:         now,
	}
}

// HandleEvent processes one inbound event. A failing handler never crosses
// this boundary: the error is logged, the user gets a generic apology, and
// the session state is left untouched so they can retry.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev chat.Event) {
	var err error
	switch ev.Kind {
	case chat.EventCommand:
		err = d.handleCommand(ctx, ev)
	case chat.EventCallback:
		err = d.handleCallback(ctx, ev)
	case chat.EventText:
		err = d.handleText(ctx, ev)
	case chat.EventLocation:
		err = d.handleLocation(ctx, ev)
	}
	if err != nil {
		d.log.Error("flow: handler failed", "chat", ev.ChatID, "kind", ev.Kind, "error", err)
		if sendErr := d.sender.SendMessage(ctx, ev.ChatID, msgInternalError); sendErr != nil {
			d.log.Error("flow: failed to report error to user", "chat", ev.ChatID, "error", sendErr)
		}
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev chat.Event) error {
	switch ev.Command {
	case "start", "menu":
		d.sessions.Clear(ev.ChatID)
		return d.sender.SendMessageWithKeyboard(ctx, ev.ChatID, welcomeText, mainMenuKeyboard())
	default:
		d.log.Debug("flow: ignoring unknown command", "chat", ev.ChatID, "command", ev.Command)
		return nil
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev chat.Event) error {
	if ev.CallbackID != "" {
		if err := d.sender.AckCallback(ctx, ev.CallbackID); err != nil {
			d.log.Warn("flow: callback ack failed", "chat", ev.ChatID, "error", err)
		}
	}

	switch ev.Callback {
	case tokenMainMenu:
		d.sessions.Clear(ev.ChatID)
		return d.sender.SendMessageWithKeyboard(ctx, ev.ChatID, welcomeText, mainMenuKeyboard())

	case tokenLocationMenu:
		d.sessions.Clear(ev.ChatID)
		return d.sender.SendMessageWithKeyboard(ctx, ev.ChatID,
			"📍 What kind of centre are you looking for?", locationMenuKeyboard())

	case tokenActivitiesMenu:
		d.sessions.Clear(ev.ChatID)
		return d.sender.SendMessageWithKeyboard(ctx, ev.ChatID,
			"📅 How would you like to find activities?", activitiesMenuKeyboard())

	case tokenSeniorsMenu:
		return d.sender.SendMessageWithKeyboard(ctx, ev.ChatID,
			"👵 Which senior service are you looking for?", seniorsMenuKeyboard())

	case tokenSearchCentre:
		d.sessions.Set(ev.ChatID, session.State{Kind: session.SearchCentreName})
		return d.sender.SendMessage(ctx, ev.ChatID,
			"🔍 Please type the name (or part of the name) of the centre you're looking for:")

	case tokenEnterPostal:
		return d.sender.SendMessageWithKeyboard(ctx, ev.ChatID,
			"📮 Choose a category first, then enter your postal code:", postalCategoryKeyboard())

	case tokenPostalSeniorsMenu:
		return d.sender.SendMessageWithKeyboard(ctx, ev.ChatID,
			"👵 Which senior service are you looking for?", postalSeniorsKeyboard())

	case tokenActNearMe:
		d.sessions.Clear(ev.ChatID)
		return d.sender.RequestLocation(ctx, ev.ChatID,
			"📍 Please share your location to see activities near you.", "📍 Share my location")

	case tokenActSearchType:
		d.sessions.Set(ev.ChatID, session.State{Kind: session.SearchKeyword})
		return d.sender.SendMessage(ctx, ev.ChatID,
			"🔎 What type of activity are you looking for? (e.g. yoga, art, cooking)")

	case tokenActByPostal:
		d.sessions.Set(ev.ChatID, session.State{Kind: session.ActivitiesAwaitingPostal})
		return d.sender.RequestLocation(ctx, ev.ChatID,
			"🏢 Please enter your 6-digit postal code, or share your location:", "📍 Share my location")
	}

	if payload, ok := cutPrefix(ev.Callback, prefixCategory); ok {
		return d.startCategoryFlow(ctx, ev.ChatID, payload, true)
	}
	if payload, ok := cutPrefix(ev.Callback, prefixPostal); ok {
		return d.startCategoryFlow(ctx, ev.ChatID, payload, false)
	}
	if id, ok := cutPrefix(ev.Callback, prefixSeeActivity); ok {
		return d.sendCentreActivities(ctx, ev.ChatID, id, false)
	}
	if id, ok := cutPrefix(ev.Callback, prefixChooseCentre); ok {
		return d.sendCentreActivities(ctx, ev.ChatID, id, true)
	}
	if id, ok := cutPrefix(ev.Callback, prefixDownloadPDF); ok {
		return d.sendCentrePDF(ctx, ev.ChatID, id)
	}

	d.log.Debug("flow: ignoring unknown callback", "chat", ev.ChatID, "token", ev.Callback)
	return nil
}

// startCategoryFlow arms the postal-code flow for a category. When
// allowLocation is set the prompt also offers device location sharing.
func (d *Dispatcher) startCategoryFlow(ctx context.Context, chatID int64, payload string, allowLocation bool) error {
	cat := model.Category(payload)
	if !cat.Valid() {
		d.log.Debug("flow: ignoring unknown category token", "chat", chatID, "payload", payload)
		return nil
	}
	d.sessions.Set(chatID, session.State{Kind: session.AwaitingPostalForCategory, Category: cat})
	prompt := fmt.Sprintf("📮 %s\n\nPlease enter your 6-digit postal code:", render.Escape(cat.Display()))
	if allowLocation {
		return d.sender.RequestLocation(ctx, chatID, prompt+"\n\nOr share your location instead:", "📍 Share my location")
	}
	return d.sender.SendMessage(ctx, chatID, prompt)
}

func (d *Dispatcher) handleText(ctx context.Context, ev chat.Event) error {
	st := d.sessions.Get(ev.ChatID)
	text := strings.TrimSpace(ev.Text)

	switch st.Kind {
	case session.SearchCentreName:
		return d.searchCentresByName(ctx, ev.ChatID, text)
	case session.SearchKeyword:
		return d.searchActivitiesByKeyword(ctx, ev.ChatID, text)
	case session.ActivitiesAwaitingPostal:
		origin, ok, err := d.resolvePostal(ctx, ev.ChatID, text)
		if err != nil || !ok {
			return err
		}
		return d.sendCentreChoices(ctx, ev.ChatID, origin)
	case session.AwaitingPostalForCategory:
		origin, ok, err := d.resolvePostal(ctx, ev.ChatID, text)
		if err != nil || !ok {
			return err
		}
		d.sessions.Clear(ev.ChatID)
		return d.sendCategoryResults(ctx, ev.ChatID, st.Category, origin, afterPostalKeyboard())
	default:
		// Free text outside any flow is ignored rather than guessed at.
		d.log.Debug("flow: ignoring text outside a flow", "chat", ev.ChatID)
		return nil
	}
}

func (d *Dispatcher) handleLocation(ctx context.Context, ev chat.Event) error {
	origin := geo.Point{Lat: ev.Lat, Lng: ev.Lng}
	st := d.sessions.Get(ev.ChatID)

	switch st.Kind {
	case session.ActivitiesAwaitingPostal:
		return d.sendCentreChoices(ctx, ev.ChatID, origin)
	case session.AwaitingPostalForCategory:
		d.sessions.Clear(ev.ChatID)
		return d.sendCategoryResults(ctx, ev.ChatID, st.Category, origin, backToCategoriesKeyboard())
	default:
		return d.sendNearbyActivities(ctx, ev.ChatID, origin)
	}
}

// resolvePostal validates and geocodes a postal code. A false result means
// the user has already been told what went wrong and the flow stays armed.
func (d *Dispatcher) resolvePostal(ctx context.Context, chatID int64, code string) (geo.Point, bool, error) {
	if !postalPattern.MatchString(code) {
		return geo.Point{}, false, d.sender.SendMessage(ctx, chatID, msgInvalidPostal)
	}
	origin, err := d.geocoder.Resolve(ctx, code)
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		return geo.Point{}, false, d.sender.SendMessage(ctx, chatID, msgPostalNotFound)
	case err != nil:
		d.log.Warn("flow: geocoding failed", "chat", chatID, "error", err)
		return geo.Point{}, false, d.sender.SendMessage(ctx, chatID, msgGeocodeFailed)
	}
	return origin, true, nil
}

func (d *Dispatcher) searchCentresByName(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return d.sender.SendMessage(ctx, chatID,
			"🔍 Please type the name (or part of the name) of the centre you're looking for:")
	}
	centres, err := d.centres.CentresByName(ctx, text)
	if err != nil {
		return fmt.Errorf("searching centres by name: %w", err)
	}
	if len(centres) == 0 {
		// Stay in the search flow so the user can just type again.
		return d.sender.SendMessage(ctx, chatID,
			fmt.Sprintf("❌ No centres found matching “%s”. Try another name.", render.Escape(text)))
	}

	d.sessions.Clear(chatID)
	for _, c := range centres {
		card := render.CentreCard(c, render.CardOptions{ShowCategory: true})
		kb := chat.Keyboard{chat.Row("📅 View Activities", prefixSeeActivity+c.ID)}
		if err := d.sender.SendMessageWithKeyboard(ctx, chatID, card, kb); err != nil {
			return err
		}
	}
	return d.sender.SendMessageWithKeyboard(ctx, chatID, msgWhatNext, afterCentreSearchKeyboard())
}

func (d *Dispatcher) searchActivitiesByKeyword(ctx context.Context, chatID int64, term string) error {
	if term == "" {
		return d.sender.SendMessage(ctx, chatID,
			"🔎 What type of activity are you looking for? (e.g. yoga, art, cooking)")
	}
	activities, err := d.activities.ActivitiesByKeyword(ctx, term)
	if err != nil {
		return fmt.Errorf("searching activities by keyword: %w", err)
	}
	if len(activities) == 0 {
		return d.sender.SendMessage(ctx, chatID,
			fmt.Sprintf("❌ No activities found matching “%s”. Try another type.", render.Escape(term)))
	}

	// Titles carry the hosting centre so results from different centres are
	// tellable apart.
	labelled := make([]*model.Activity, len(activities))
	for i, a := range activities {
		c := *a
		if c.Centre != "" {
			c.Name = c.Name + " — " + c.Centre
		}
		labelled[i] = &c
	}

	header := fmt.Sprintf("🔎 Results for “%s”", term)
	for _, chunk := range d.fmtr.Chunk(labelled, header, render.ModeFull) {
		if err := d.sender.SendMessage(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	// The flow stays armed: the next text is another keyword search.
	return d.sender.SendMessageWithKeyboard(ctx, chatID, msgWhatNext, afterKeywordSearchKeyboard())
}

// sendCentreChoices ranks all centres from origin and offers the nearest as
// a pick list for viewing or downloading activities.
func (d *Dispatcher) sendCentreChoices(ctx context.Context, chatID int64, origin geo.Point) error {
	centres, err := d.centres.AllCentres(ctx)
	if err != nil {
		return fmt.Errorf("loading centres: %w", err)
	}
	ranked := rank.Nearest(origin, centres, d.flows.CentreLimit)
	if len(ranked) == 0 {
		d.sessions.Clear(chatID)
		return d.sender.SendMessageWithKeyboard(ctx, chatID,
			"❌ No centres with location data found near you.", afterActivitiesPostalKeyboard())
	}

	d.sessions.Set(chatID, session.State{Kind: session.ActivitiesCentreList})
	return d.sender.SendMessageWithKeyboard(ctx, chatID,
		"🏢 Select a centre to view or download its activities:", centreListKeyboard(ranked))
}

func (d *Dispatcher) sendCategoryResults(ctx context.Context, chatID int64, cat model.Category, origin geo.Point, nav chat.Keyboard) error {
	centres, err := d.centres.CentresByCategory(ctx, cat)
	if err != nil {
		return fmt.Errorf("loading centres for category %s: %w", cat, err)
	}
	ranked := rank.Nearest(origin, centres, d.flows.CategoryLimit)
	if len(ranked) == 0 {
		return d.sender.SendMessageWithKeyboard(ctx, chatID,
			"❌ No centres with location data found for this category.", nav)
	}

	for _, rc := range ranked {
		// No map pin for anti-violence centres; their addresses stay private.
		if rc.Centre.Category != model.CategoryAntiViolence && rc.Centre.HasCoords() {
			if err := d.sender.SendLocation(ctx, chatID, *rc.Centre.Lat, *rc.Centre.Lng); err != nil {
				d.log.Warn("flow: sending location pin failed", "chat", chatID, "error", err)
			}
		}
		card := render.CentreCard(rc.Centre, render.CardOptions{DistanceKm: rc.DistanceKm})
		kb := chat.Keyboard{chat.Row("📅 View Activities", prefixSeeActivity+rc.Centre.ID)}
		if err := d.sender.SendMessageWithKeyboard(ctx, chatID, card, kb); err != nil {
			return err
		}
	}
	return d.sender.SendMessageWithKeyboard(ctx, chatID, msgWhatNext, nav)
}

// sendNearbyActivities is the default handler for a shared location outside
// any flow: the activity listings of the nearest centres.
func (d *Dispatcher) sendNearbyActivities(ctx context.Context, chatID int64, origin geo.Point) error {
	centres, err := d.centres.AllCentres(ctx)
	if err != nil {
		return fmt.Errorf("loading centres: %w", err)
	}
	ranked := rank.Nearest(origin, centres, d.flows.CategoryLimit)

	sent := false
	for _, rc := range ranked {
		activities, err := d.activities.ActivitiesByCentreName(ctx, rc.Centre.Name)
		if err != nil {
			return fmt.Errorf("loading activities for %s: %w", rc.Centre.Name, err)
		}
		if len(activities) == 0 {
			continue
		}
		header := fmt.Sprintf("📍 Activities at %s (~%.1f km away)", rc.Centre.Name, rc.DistanceKm)
		for _, chunk := range d.fmtr.Chunk(activities, header, render.ModeFull) {
			if err := d.sender.SendMessage(ctx, chatID, chunk); err != nil {
				return err
			}
		}
		sent = true
	}
	if !sent {
		return d.sender.SendMessageWithKeyboard(ctx, chatID,
			"❌ No upcoming activities found near your location.", afterNearMeKeyboard())
	}
	return d.sender.SendMessageWithKeyboard(ctx, chatID, msgWhatNext, afterNearMeKeyboard())
}

func (d *Dispatcher) sendCentreActivities(ctx context.Context, chatID int64, centreID string, withDownload bool) error {
	centre, err := d.centres.GetCentre(ctx, centreID)
	if err != nil {
		return fmt.Errorf("loading centre %s: %w", centreID, err)
	}
	if centre == nil {
		return d.sender.SendMessage(ctx, chatID, "❌ Centre not found.")
	}

	nav := afterCentreActivitiesKeyboard()
	if withDownload {
		nav = downloadKeyboard(centre.ID)
	}

	activities, err := d.activities.ActivitiesByCentreName(ctx, centre.Name)
	if err != nil {
		return fmt.Errorf("loading activities for %s: %w", centre.Name, err)
	}
	if len(activities) == 0 {
		return d.sender.SendMessageWithKeyboard(ctx, chatID,
			fmt.Sprintf("❌ No activities found for <b>%s</b>.", render.Escape(centre.Name)), nav)
	}

	header := "📅 Activities at " + centre.Name
	for _, chunk := range d.fmtr.Chunk(activities, header, render.ModeFull) {
		if err := d.sender.SendMessage(ctx, chatID, chunk); err != nil {
			return err
		}
	}

	if text, err := d.monthlyHighlights(ctx, centre.Name); err != nil {
		d.log.Warn("flow: loading highlights failed", "centre", centre.Name, "error", err)
	} else if text != "" {
		if err := d.sender.SendMessage(ctx, chatID, text); err != nil {
			return err
		}
	}

	return d.sender.SendMessageWithKeyboard(ctx, chatID, msgWhatNext, nav)
}

func (d *Dispatcher) monthlyHighlights(ctx context.Context, centreName string) (string, error) {
	start, end := monthRange(d.now())
	highlights, err := d.activities.HighlightedActivities(ctx, centreName, start, end)
	if err != nil {
		return "", err
	}
	return d.fmtr.Highlights(highlights), nil
}

// monthRange returns the UTC bounds of the calendar month containing t.
func monthRange(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

func (d *Dispatcher) sendCentrePDF(ctx context.Context, chatID int64, centreID string) error {
	centre, err := d.centres.GetCentre(ctx, centreID)
	if err != nil {
		return fmt.Errorf("loading centre %s: %w", centreID, err)
	}
	if centre == nil {
		return d.sender.SendMessage(ctx, chatID, "❌ Centre not found.")
	}

	data, err := d.centreDocument(ctx, centre)
	if err != nil {
		return err
	}
	caption := fmt.Sprintf("📄 Activities for %s", centre.Name)
	return d.sender.SendDocument(ctx, chatID, pdfexport.Filename(centre.Name), data, caption)
}

// centreDocument prefers a curated newsletter PDF configured for the centre,
// falling back to a generated listing of its upcoming activities.
func (d *Dispatcher) centreDocument(ctx context.Context, centre *model.Centre) ([]byte, error) {
	lower := strings.ToLower(centre.Name)
	for fragment, path := range d.newsletters {
		if fragment == "" || !strings.Contains(lower, strings.ToLower(fragment)) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			d.log.Warn("flow: configured newsletter unreadable, generating instead",
				"centre", centre.Name, "path", path, "error", err)
			break
		}
		return data, nil
	}

	activities, err := d.activities.ActivitiesByCentreName(ctx, centre.Name)
	if err != nil {
		return nil, fmt.Errorf("loading activities for %s: %w", centre.Name, err)
	}
	data, err := d.exporter.Render(centre, activities, d.now())
	if err != nil {
		return nil, fmt.Errorf("rendering activities document: %w", err)
	}
	return data, nil
}
