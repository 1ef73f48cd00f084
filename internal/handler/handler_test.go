package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/go-chi/chi/v5"
	"google.golang.org/protobuf/proto"

	"paradero/internal/arrivals"
	"paradero/internal/config"
	"paradero/internal/paradero"
	"paradero/internal/prefs"
	"paradero/internal/realtime"
)

type fakeStops map[string]paradero.Stop

func (f fakeStops) FetchOne(_ context.Context, id string) (paradero.Stop, bool) {
	s, ok := f[id]
	return s, ok
}

func (f fakeStops) Subscribed() bool { return true }

func testStop(id int64, count int, address, commune string) paradero.Stop {
	return paradero.Stop{
		StopID:             paradero.StopID(id),
		PersonCount:        count,
		Status:             paradero.Classify(count),
		AvgWaitTimeMinutes: 5,
		Location:           paradero.Location{Address: address, Commune: commune, Lat: -33.45, Lng: -70.6},
		Cameras: []paradero.Camera{
			{CameraID: "cam-" + paradero.StopID(id)[5:] + "-1", Status: paradero.CameraOnline, URL: "https://picsum.photos/640/480?random=1"},
		},
	}
}

func newTestHandler(t *testing.T) (*Handler, *prefs.Memory) {
	t.Helper()
	stops := []paradero.Stop{
		testStop(1, 10, "Av. Libertador 1500", "Santiago"),
		testStop(2, 80, "Providencia 2124", "Providencia"),
	}
	rt := realtime.NewStore()
	rt.Replace(stops, time.Millisecond)

	remote := fakeStops{}
	for _, s := range stops {
		remote[s.StopID] = s
	}
	remote["stop-9"] = testStop(9, 30, "Apoquindo 3478", "Las Condes")

	themes := prefs.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Port: 8080, DBPath: "test.db", LogLevel: "info"}
	h := New(remote, rt, realtime.NewHub(), themes, cfg, logger, WithSimulatorOptions(arrivals.WithInterval(10*time.Millisecond)))
	return h, themes
}

func apiRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/stops", h.APIStops)
	r.Get("/api/stops/{id}", h.APIStop)
	r.Get("/api/stops/{id}/arrivals.pb", h.APIArrivalsFeed)
	r.Get("/api/stats", h.APIStats)
	r.Get("/api/theme", h.APITheme)
	r.Post("/api/theme/toggle", h.APIToggleTheme)
	return r
}

func withClient(r *http.Request, id string) *http.Request {
	return r.WithContext(WithClientID(r.Context(), id))
}

func TestHome(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest("GET", "/?commune=Providencia", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Home status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Providencia 2124") || strings.Contains(body, "<strong>Av. Libertador 1500</strong>") {
		t.Error("Home did not apply the commune filter to the stop list")
	}

	rec = httptest.NewRecorder()
	h.Home(rec, httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Home(/nope) status = %d, want 404", rec.Code)
	}
}

func TestStopDetail(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantText string
	}{
		{"ok", "?stopId=stop-9&cameraId=cam-9-1", http.StatusOK, "Apoquindo 3478"},
		{"missing camera param", "?stopId=stop-9", http.StatusBadRequest, "Faltan"},
		{"missing stop param", "?cameraId=cam-9-1", http.StatusBadRequest, "Faltan"},
		{"unknown stop", "?stopId=stop-42&cameraId=cam-42-1", http.StatusNotFound, "stop-42"},
		{"unknown camera", "?stopId=stop-9&cameraId=cam-9-3", http.StatusNotFound, "cam-9-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.StopDetail(rec, httptest.NewRequest("GET", "/paradero"+tt.query, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantText) {
				t.Errorf("body missing %q", tt.wantText)
			}
			if tt.wantCode != http.StatusOK && strings.Contains(rec.Body.String(), `id="arrivals"`) {
				t.Error("error response rendered the detail page")
			}
		})
	}
}

func TestAPIStops(t *testing.T) {
	h, _ := newTestHandler(t)
	router := apiRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stops?status=critical", nil))
	var resp StopsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Stops[0].StopID != "stop-2" {
		t.Errorf("GET /api/stops?status=critical = %+v", resp)
	}

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/api/stops/stop-1", http.StatusOK},
		{"/api/stops/stop-9", http.StatusOK}, // not in the collection, found remotely
		{"/api/stops/stop-42", http.StatusNotFound},
		{"/api/stops/bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
	}
}

func TestAPIStats(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	apiRouter(h).ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))

	var v struct {
		TotalStops  int `json:"totalStops"`
		TotalPeople int `json:"totalPeople"`
		System      struct {
			Source string `json:"source"`
			Live   bool   `json:"live"`
		} `json:"system"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.TotalStops != 2 || v.TotalPeople != 90 || v.System.Source != "sqlite" || !v.System.Live {
		t.Errorf("GET /api/stats = %+v", v)
	}
}

func TestAPIArrivalsFeed(t *testing.T) {
	h, _ := newTestHandler(t)
	router := apiRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stops/stop-1/arrivals.pb", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/x-protobuf" {
		t.Fatalf("status %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var msg gtfs.FeedMessage
	if err := proto.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("proto.Unmarshal: %v", err)
	}
	if len(msg.GetEntity()) != 6 {
		t.Errorf("entities = %d, want 6 (3 seeded vehicles x 2)", len(msg.GetEntity()))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stops/stop-1/arrivals.pb?format=json", nil))
	if !json.Valid(rec.Body.Bytes()) {
		t.Error("format=json returned invalid JSON")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stops/stop-42/arrivals.pb", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown stop = %d, want 404", rec.Code)
	}
}

func TestAPITheme(t *testing.T) {
	h, _ := newTestHandler(t)
	router := apiRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/theme", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET /api/theme without client = %d, want 400", rec.Code)
	}

	themeOf := func(rec *httptest.ResponseRecorder) string {
		var resp ThemeResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		return resp.Theme
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withClient(httptest.NewRequest("GET", "/api/theme", nil), "c1"))
	if got := themeOf(rec); got != "" {
		t.Errorf("initial theme = %q, want unset", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withClient(httptest.NewRequest("POST", "/api/theme/toggle", nil), "c1"))
	if got := themeOf(rec); got != "dark" {
		t.Errorf("toggled theme = %q, want dark", got)
	}

	rec = httptest.NewRecorder()
	h.Home(rec, withClient(httptest.NewRequest("GET", "/", nil), "c1"))
	if !strings.Contains(rec.Body.String(), `data-theme="dark"`) {
		t.Error("page does not carry the stored theme")
	}
}

func TestSSEDashboard_Initial(t *testing.T) {
	h, _ := newTestHandler(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // the initial events are still written before the loop exits
	rec := httptest.NewRecorder()
	h.SSEDashboard(rec, httptest.NewRequest("GET", "/sse/dashboard?q=providencia", nil).WithContext(ctx))

	body := rec.Body.String()
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "event: dashboard\ndata: {") || !strings.Contains(body, "event: stops\n") {
		t.Errorf("missing initial events:\n%s", body)
	}
	if !strings.Contains(body, `"filtered":1`) {
		t.Error("dashboard event does not reflect the filter")
	}
}

// readEvents collects event names from a live SSE response until want has
// been seen n times or the deadline passes.
func readEvents(t *testing.T, url string, want string, n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var events []string
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			events = append(events, name)
			if name == want {
				if n--; n == 0 {
					return events
				}
			}
		}
	}
	return events
}

func TestSSEArrivals(t *testing.T) {
	h, _ := newTestHandler(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse/arrivals/{id}", h.SSEArrivals)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	events := readEvents(t, srv.URL+"/sse/arrivals/stop-1", "vehicles", 1)
	if len(events) < 2 || events[0] != "arrivals" || events[len(events)-1] != "vehicles" {
		t.Errorf("events = %v, want arrivals then vehicles", events)
	}

	resp, err := http.Get(srv.URL + "/sse/arrivals/stop-42")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown stop = %d, want 404", resp.StatusCode)
	}
}

func TestSSETheme(t *testing.T) {
	h, themes := newTestHandler(t)
	mux := http.NewServeMux()
	mux.Handle("GET /sse/theme", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.SSETheme(w, withClient(r, "tab-client"))
	}))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		themes.Toggle(context.Background(), "tab-client")
	}()

	events := readEvents(t, srv.URL+"/sse/theme", "theme", 2)
	if len(events) < 2 {
		t.Errorf("events = %v, want the current theme and one change", events)
	}
}

func TestEnsureClient(t *testing.T) {
	rec := httptest.NewRecorder()
	id := EnsureClient(rec, httptest.NewRequest("GET", "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ClientCookie || cookies[0].Value != id {
		t.Fatalf("new client cookies = %v, id %q", cookies, id)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: id})
	rec = httptest.NewRecorder()
	if got := EnsureClient(rec, req); got != id {
		t.Errorf("existing cookie: id = %q, want %q", got, id)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("existing cookie was reissued")
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: "not-a-uuid"})
	rec = httptest.NewRecorder()
	if got := EnsureClient(rec, req); got == "not-a-uuid" {
		t.Error("malformed cookie accepted")
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stops":2`) {
		t.Errorf("Healthz = %d %s", rec.Code, rec.Body.String())
	}
}
