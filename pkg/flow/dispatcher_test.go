package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearbybot/pkg/chat"
	"nearbybot/pkg/config"
	"nearbybot/pkg/geo"
	"nearbybot/pkg/geocode"
	"nearbybot/pkg/model"
	"nearbybot/pkg/pdfexport"
	"nearbybot/pkg/render"
	"nearbybot/pkg/session"
)

// --- fakes ---

type sentMessage struct {
	text string
	kb   chat.Keyboard
}

type fakeSender struct {
	mu        sync.Mutex
	messages  []sentMessage
	locations [][2]float64
	documents []struct {
		filename string
		data     []byte
		caption  string
	}
	locationPrompts []string
	acks            []string
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{text: text})
	return nil
}

func (f *fakeSender) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb chat.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{text: text, kb: kb})
	return nil
}

func (f *fakeSender) SendLocation(ctx context.Context, chatID int64, lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, [2]float64{lat, lng})
	return nil
}

func (f *fakeSender) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, struct {
		filename string
		data     []byte
		caption  string
	}{filename, data, caption})
	return nil
}

func (f *fakeSender) RequestLocation(ctx context.Context, chatID int64, text, buttonLabel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationPrompts = append(f.locationPrompts, text)
	return nil
}

func (f *fakeSender) AckCallback(ctx context.Context, callbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, callbackID)
	return nil
}

func (f *fakeSender) allText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	for _, m := range f.messages {
		b.WriteString(m.text)
		b.WriteString("\n")
	}
	return b.String()
}

func (f *fakeSender) lastKeyboard() chat.Keyboard {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].kb != nil {
			return f.messages[i].kb
		}
	}
	return nil
}

type fakeResolver struct {
	points map[string]geo.Point
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, postalCode string) (geo.Point, error) {
	f.calls++
	if f.err != nil {
		return geo.Point{}, f.err
	}
	p, ok := f.points[postalCode]
	if !ok {
		return geo.Point{}, geocode.ErrNotFound
	}
	return p, nil
}

type fakeCentres struct {
	centres []*model.Centre
}

func (f *fakeCentres) GetCentre(ctx context.Context, id string) (*model.Centre, error) {
	for _, c := range f.centres {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCentres) AllCentres(ctx context.Context) ([]*model.Centre, error) {
	return f.centres, nil
}

func (f *fakeCentres) CentresByCategory(ctx context.Context, cat model.Category) ([]*model.Centre, error) {
	var out []*model.Centre
	for _, c := range f.centres {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCentres) CentresByName(ctx context.Context, text string) ([]*model.Centre, error) {
	var out []*model.Centre
	for _, c := range f.centres {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(text)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCentres) SaveCentre(ctx context.Context, c *model.Centre) error {
	f.centres = append(f.centres, c)
	return nil
}

func (f *fakeCentres) DeleteAllCentres(ctx context.Context) error {
	f.centres = nil
	return nil
}

type fakeActivities struct {
	activities []*model.Activity
}

func (f *fakeActivities) ActivitiesByCentreName(ctx context.Context, name string) ([]*model.Activity, error) {
	var out []*model.Activity
	for _, a := range f.activities {
		if a.Centre == name {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActivities) ActivitiesByKeyword(ctx context.Context, term string) ([]*model.Activity, error) {
	var out []*model.Activity
	term = strings.ToLower(term)
	for _, a := range f.activities {
		if strings.Contains(strings.ToLower(a.Name), term) ||
			strings.Contains(strings.ToLower(a.Description), term) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActivities) HighlightedActivities(ctx context.Context, centreName string, start, end time.Time) ([]*model.Activity, error) {
	var out []*model.Activity
	for _, a := range f.activities {
		if a.Centre != centreName || !a.IsHighlight {
			continue
		}
		for _, d := range a.Dates {
			if !d.Before(start) && !d.After(end) {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeActivities) SaveActivity(ctx context.Context, a *model.Activity) error {
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeActivities) DeleteAllActivities(ctx context.Context) error {
	f.activities = nil
	return nil
}

// --- fixtures ---

func coord(lat, lng float64) (*float64, *float64) { return &lat, &lng }

func testFixtures() (*fakeCentres, *fakeActivities) {
	bedokLat, bedokLng := coord(1.3240, 103.9302)
	tampLat, tampLng := coord(1.3536, 103.9455)
	hougLat, hougLng := coord(1.3612, 103.8863)
	jurongLat, jurongLng := coord(1.3400, 103.7050)
	safeLat, safeLng := coord(1.3300, 103.9000)
	childLat, childLng := coord(1.3250, 103.9310)

	centres := &fakeCentres{centres: []*model.Centre{
		{ID: "c-bedok", Name: "Bedok Family Centre", Address: "1 Bedok Rd",
			Lat: bedokLat, Lng: bedokLng, Category: model.CategoryFamilies},
		{ID: "c-tampines", Name: "Tampines Family Centre", Address: "2 Tampines Ave",
			Lat: tampLat, Lng: tampLng, Category: model.CategoryFamilies},
		{ID: "c-hougang", Name: "Hougang Family Centre", Address: "3 Hougang St",
			Lat: hougLat, Lng: hougLng, Category: model.CategoryFamilies},
		{ID: "c-jurong", Name: "Jurong Family Centre", Address: "4 Jurong West",
			Lat: jurongLat, Lng: jurongLng, Category: model.CategoryFamilies},
		{ID: "c-child", Name: "Bedok Children Hub", Address: "5 Bedok North",
			Lat: childLat, Lng: childLng, Category: model.CategoryChildren},
		{ID: "c-safe", Name: "Safe Space East", Address: "Confidential",
			Lat: safeLat, Lng: safeLng, Category: model.CategoryAntiViolence},
		{ID: "c-nocoords", Name: "Unmapped Centre", Category: model.CategoryFamilies},
	}}

	may := func(d int) time.Time { return time.Date(2026, 5, d, 9, 0, 0, 0, time.UTC) }
	activities := &fakeActivities{activities: []*model.Activity{
		{ID: "a-yoga", Name: "Morning Yoga", Centre: "Bedok Family Centre",
			Description: "Gentle stretching.", Dates: []time.Time{may(20)}, TimeOfDay: "9am"},
		{ID: "a-art", Name: "Art Jam", Centre: "Bedok Family Centre",
			Description: "Painting for all ages.", Dates: []time.Time{may(22)},
			IsHighlight: true, HighlightNote: "Registration Required"},
		{ID: "a-cook", Name: "Cooking Class", Centre: "Tampines Family Centre",
			Description: "Hawker favourites, includes yoga cooldown.", Dates: []time.Time{may(25)}},
	}}

	return centres, activities
}

type testEnv struct {
	d        *Dispatcher
	sender   *fakeSender
	resolver *fakeResolver
	sessions *session.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	centres, activities := testFixtures()
	sender := &fakeSender{}
	resolver := &fakeResolver{points: map[string]geo.Point{
		"469572": {Lat: 1.3245, Lng: 103.9300}, // next to Bedok Family Centre
	}}
	sessions := session.NewStore(time.Minute)

	d := New(Options{
		Centres:    centres,
		Activities: activities,
		Geocoder:   resolver,
		Sessions:   sessions,
		Sender:     sender,
		Formatter:  render.New(4000, 700),
		Exporter:   pdfexport.New(),
		Flows: config.FlowsConfig{
			CategoryLimit:    3,
			CentreLimit:      5,
			ChunkLimit:       4000,
			DescriptionLimit: 700,
		},
		Now: func() time.Time { return time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC) },
	})
	return &testEnv{d: d, sender: sender, resolver: resolver, sessions: sessions}
}

func (e *testEnv) handle(ev chat.Event) {
	if ev.ChatID == 0 {
		ev.ChatID = 1
	}
	e.d.HandleEvent(context.Background(), ev)
}

func callback(token string) chat.Event {
	return chat.Event{Kind: chat.EventCallback, ChatID: 1, Callback: token, CallbackID: "cb-" + token}
}

func text(s string) chat.Event {
	return chat.Event{Kind: chat.EventText, ChatID: 1, Text: s}
}

// --- tests ---

func TestStartCommand(t *testing.T) {
	e := newTestEnv(t)
	e.sessions.Set(1, session.State{Kind: session.SearchKeyword})

	e.handle(chat.Event{Kind: chat.EventCommand, ChatID: 1, Command: "start"})

	assert.Equal(t, session.Idle, e.sessions.Get(1).Kind, "start must reset the session")
	require.NotEmpty(t, e.sender.messages)
	assert.Contains(t, e.sender.messages[0].text, "Welcome")
	assert.Len(t, e.sender.messages[0].kb, 2)
}

func TestCallbackAcknowledged(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(tokenMainMenu))

	require.Len(t, e.sender.acks, 1)
	assert.Equal(t, "cb-menu", e.sender.acks[0])
}

func TestIdleTextIgnored(t *testing.T) {
	e := newTestEnv(t)

	e.handle(text("hello there"))

	assert.Empty(t, e.sender.messages, "free text outside a flow must be ignored")
}

func TestUnknownCallbackIgnored(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback("bogus_token"))

	assert.Empty(t, e.sender.messages)
}

func TestPostalValidation(t *testing.T) {
	for _, bad := range []string{"12345", "1234567", "12a456", "", "  "} {
		t.Run(fmt.Sprintf("reject %q", bad), func(t *testing.T) {
			e := newTestEnv(t)
			e.sessions.Set(1, session.State{Kind: session.ActivitiesAwaitingPostal})

			e.handle(text(bad))

			require.Len(t, e.sender.messages, 1)
			assert.Contains(t, e.sender.messages[0].text, "Invalid postal code")
			assert.Zero(t, e.resolver.calls, "invalid input must not reach the geocoder")
			assert.Equal(t, session.ActivitiesAwaitingPostal, e.sessions.Get(1).Kind,
				"flow stays armed for a retry")
		})
	}
}

func TestActivitiesPostalFlow(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(tokenActByPostal))
	require.Len(t, e.sender.locationPrompts, 1)
	assert.Equal(t, session.ActivitiesAwaitingPostal, e.sessions.Get(1).Kind)

	e.handle(text("469572"))

	assert.Equal(t, session.ActivitiesCentreList, e.sessions.Get(1).Kind)

	kb := e.sender.lastKeyboard()
	require.Len(t, kb, 5, "centre list is capped at five")
	assert.Equal(t, prefixChooseCentre+"c-bedok", kb[0][0].Token, "nearest first")
}

func TestPostalNotFound(t *testing.T) {
	e := newTestEnv(t)
	e.sessions.Set(1, session.State{Kind: session.ActivitiesAwaitingPostal})

	e.handle(text("999999"))

	assert.Contains(t, e.sender.allText(), "No results found")
	assert.Equal(t, session.ActivitiesAwaitingPostal, e.sessions.Get(1).Kind)
}

func TestGeocodeFailureKeepsState(t *testing.T) {
	e := newTestEnv(t)
	e.resolver.err = errors.New("upstream down")
	e.sessions.Set(1, session.State{Kind: session.AwaitingPostalForCategory, Category: model.CategoryFamilies})

	e.handle(text("469572"))

	assert.Contains(t, e.sender.allText(), "Error fetching location")
	assert.Equal(t, session.AwaitingPostalForCategory, e.sessions.Get(1).Kind)
}

func TestCategoryFlow(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(prefixCategory + "families"))
	st := e.sessions.Get(1)
	require.Equal(t, session.AwaitingPostalForCategory, st.Kind)
	assert.Equal(t, model.CategoryFamilies, st.Category)

	e.handle(text("469572"))

	assert.Equal(t, session.Idle, e.sessions.Get(1).Kind, "category flow completes")

	// Top three by distance: Bedok, Tampines, Hougang. Jurong is fourth and
	// the coordinate-less centre is excluded entirely.
	all := e.sender.allText()
	assert.Contains(t, all, "Bedok Family Centre")
	assert.Contains(t, all, "Tampines Family Centre")
	assert.Contains(t, all, "Hougang Family Centre")
	assert.NotContains(t, all, "Jurong Family Centre")
	assert.NotContains(t, all, "Unmapped Centre")
	assert.Contains(t, all, "km away")

	assert.Len(t, e.sender.locations, 3, "each result carries a map pin")
}

func TestCategoryFlowHidesAntiViolencePin(t *testing.T) {
	e := newTestEnv(t)
	e.sessions.Set(1, session.State{Kind: session.AwaitingPostalForCategory, Category: model.CategoryAntiViolence})

	e.handle(text("469572"))

	all := e.sender.allText()
	assert.Contains(t, all, "Safe Space East")
	assert.NotContains(t, all, "Confidential", "anti-violence address stays hidden")
	assert.Empty(t, e.sender.locations, "no map pin for anti-violence centres")
}

func TestSeniorsTokenOpensSubmenu(t *testing.T) {
	e := newTestEnv(t)

	// "category_seniors" is a submenu, not a category payload.
	e.handle(callback(tokenSeniorsMenu))

	assert.Equal(t, session.Idle, e.sessions.Get(1).Kind)
	kb := e.sender.lastKeyboard()
	require.NotEmpty(t, kb)
	assert.Equal(t, prefixCategory+"seniors_active", kb[0][0].Token)
}

func TestCentreNameSearch(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(tokenSearchCentre))
	require.Equal(t, session.SearchCentreName, e.sessions.Get(1).Kind)

	e.handle(text("bedok"))

	all := e.sender.allText()
	assert.Contains(t, all, "Bedok Family Centre")
	assert.Contains(t, all, "Bedok Children Hub")
	assert.Equal(t, session.Idle, e.sessions.Get(1).Kind, "name search completes")
}

func TestCentreNameSearchNoMatchKeepsFlow(t *testing.T) {
	e := newTestEnv(t)
	e.sessions.Set(1, session.State{Kind: session.SearchCentreName})

	e.handle(text("atlantis"))

	assert.Contains(t, e.sender.allText(), "No centres found")
	assert.Equal(t, session.SearchCentreName, e.sessions.Get(1).Kind)
}

func TestKeywordSearchRearms(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(tokenActSearchType))
	require.Equal(t, session.SearchKeyword, e.sessions.Get(1).Kind)

	e.handle(text("yoga"))

	all := e.sender.allText()
	assert.Contains(t, all, "Results for “yoga”")
	// Matched on name and on description, each title tagged with its centre.
	assert.Contains(t, all, "Morning Yoga — Bedok Family Centre")
	assert.Contains(t, all, "Cooking Class — Tampines Family Centre")
	assert.Equal(t, session.SearchKeyword, e.sessions.Get(1).Kind,
		"the next text is another keyword search")

	e.handle(text("durian"))
	assert.Contains(t, e.sender.allText(), "No activities found")
	assert.Equal(t, session.SearchKeyword, e.sessions.Get(1).Kind)
}

func TestChooseCentreShowsActivitiesAndHighlights(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(prefixChooseCentre + "c-bedok"))

	all := e.sender.allText()
	assert.Contains(t, all, "Activities at Bedok Family Centre")
	assert.Contains(t, all, "Morning Yoga")
	assert.Contains(t, all, "🌟 Highlights of the Month")
	assert.Contains(t, all, "Art Jam")

	kb := e.sender.lastKeyboard()
	require.NotEmpty(t, kb)
	assert.Equal(t, prefixDownloadPDF+"c-bedok", kb[0][0].Token)
}

func TestSeeActivityOmitsDownload(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(prefixSeeActivity + "c-bedok"))

	assert.Contains(t, e.sender.allText(), "Morning Yoga")
	for _, row := range e.sender.lastKeyboard() {
		for _, btn := range row {
			assert.NotContains(t, btn.Token, prefixDownloadPDF)
		}
	}
}

func TestChooseCentreUnknownID(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(prefixChooseCentre + "c-nope"))

	assert.Contains(t, e.sender.allText(), "Centre not found")
}

func TestDownloadPDF(t *testing.T) {
	e := newTestEnv(t)

	e.handle(callback(prefixDownloadPDF + "c-bedok"))

	require.Len(t, e.sender.documents, 1)
	doc := e.sender.documents[0]
	assert.Equal(t, "activities_Bedok_Family_Centre.pdf", doc.filename)
	assert.True(t, strings.HasPrefix(string(doc.data), "%PDF"))
	assert.Contains(t, doc.caption, "Bedok Family Centre")
}

func TestLocationDefaultsToNearbyActivities(t *testing.T) {
	e := newTestEnv(t)

	e.handle(chat.Event{Kind: chat.EventLocation, ChatID: 1, Lat: 1.3245, Lng: 103.9300})

	all := e.sender.allText()
	assert.Contains(t, all, "Activities at Bedok Family Centre")
	assert.Contains(t, all, "Morning Yoga")
}

func TestLocationResolvesArmedCategoryFlow(t *testing.T) {
	e := newTestEnv(t)
	e.sessions.Set(1, session.State{Kind: session.AwaitingPostalForCategory, Category: model.CategoryChildren})

	e.handle(chat.Event{Kind: chat.EventLocation, ChatID: 1, Lat: 1.3245, Lng: 103.9300})

	assert.Contains(t, e.sender.allText(), "Bedok Children Hub")
	assert.Equal(t, session.Idle, e.sessions.Get(1).Kind)
	assert.Zero(t, e.resolver.calls, "a shared location needs no geocoding")
}

func TestChunkedResultsStayWithinLimit(t *testing.T) {
	centres, activities := testFixtures()
	for i := 0; i < 40; i++ {
		activities.activities = append(activities.activities, &model.Activity{
			ID:          fmt.Sprintf("bulk-%d", i),
			Name:        fmt.Sprintf("Programme %02d", i),
			Centre:      "Bedok Family Centre",
			Description: strings.Repeat("long description ", 10),
			Dates:       []time.Time{time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)},
		})
	}

	sender := &fakeSender{}
	d := New(Options{
		Centres:    centres,
		Activities: activities,
		Geocoder:   &fakeResolver{},
		Sessions:   session.NewStore(time.Minute),
		Sender:     sender,
		Formatter:  render.New(4000, 700),
		Exporter:   pdfexport.New(),
		Flows:      config.FlowsConfig{CategoryLimit: 3, CentreLimit: 5, ChunkLimit: 4000, DescriptionLimit: 700},
		Now:        func() time.Time { return time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC) },
	})

	d.HandleEvent(context.Background(), chat.Event{
		Kind: chat.EventCallback, ChatID: 1, Callback: prefixChooseCentre + "c-bedok",
	})

	require.Greater(t, len(sender.messages), 2, "expected the listing to be split")
	for i, m := range sender.messages {
		assert.LessOrEqual(t, len(m.text), 4000, "message %d over limit", i)
	}
}
