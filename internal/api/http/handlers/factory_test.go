package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tour-booking-service/internal/query"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

type note struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	TourID string `json:"tour_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// fakeStore records the inputs each operation received so tests can assert
// on the factory's side of the contract.
type fakeStore struct {
	notes map[string]*note

	lastSpec          query.Spec
	lastCreatePayload map[string]any
	lastUpdatePayload map[string]any
	deletedIDs        []string
}

func newFakeStore(notes ...*note) *fakeStore {
	byID := make(map[string]*note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	return &fakeStore{notes: byID}
}

func (f *fakeStore) Find(_ context.Context, spec query.Spec) ([]note, error) {
	f.lastSpec = spec
	out := make([]note, 0, len(f.notes))
	for _, n := range f.notes {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*note, error) {
	n, ok := f.notes[id]
	if !ok {
		return nil, apperrors.NewNotFound("note", map[string]any{"id": id})
	}
	copied := *n
	return &copied, nil
}

func (f *fakeStore) Create(_ context.Context, fields map[string]any) (*note, error) {
	f.lastCreatePayload = fields
	n := &note{ID: "generated"}
	if text, ok := fields["text"].(string); ok {
		n.Text = text
	}
	if tourID, ok := fields["tour_id"].(string); ok {
		n.TourID = tourID
	}
	if userID, ok := fields["user_id"].(string); ok {
		n.UserID = userID
	}
	f.notes[n.ID] = n
	return n, nil
}

func (f *fakeStore) FindByIDAndUpdate(_ context.Context, id string, fields map[string]any) (*note, error) {
	f.lastUpdatePayload = fields
	n, ok := f.notes[id]
	if !ok {
		return nil, apperrors.NewNotFound("note", map[string]any{"id": id})
	}
	if text, ok := fields["text"].(string); ok {
		n.Text = text
	}
	copied := *n
	return &copied, nil
}

func (f *fakeStore) FindByIDAndDelete(_ context.Context, id string) error {
	if _, ok := f.notes[id]; !ok {
		return apperrors.NewNotFound("note", map[string]any{"id": id})
	}
	delete(f.notes, id)
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"message": domainErr.Message})
		},
	})
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := make(map[string]any)
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return body
}

func TestCreateReturns201WithEnvelope(t *testing.T) {
	store := newFakeStore()
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: store})

	app := newTestApp()
	app.Post("/notes", resource.Create)

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	if body["status"] != "success" {
		t.Fatalf("status field = %v", body["status"])
	}
	data := body["data"].(map[string]any)
	if data["note"].(map[string]any)["text"] != "hello" {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestCreateRejectsMalformedJSON(t *testing.T) {
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: newFakeStore()})

	app := newTestApp()
	app.Post("/notes", resource.Create)

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{nope"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetOneMissingRecordIs404(t *testing.T) {
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: newFakeStore()})

	app := newTestApp()
	app.Get("/notes/:id", resource.GetOne())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/notes/missing", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetOnePopulateRunsOnlyWhenConfigured(t *testing.T) {
	store := newFakeStore(&note{ID: "n1", Text: "plain"})
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: store})

	populated := false
	app := newTestApp()
	app.Get("/plain/:id", resource.GetOne())
	app.Get("/rich/:id", resource.GetOne(WithPopulate(func(_ context.Context, n *note) error {
		populated = true
		n.Text = "expanded"
		return nil
	})))

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/plain/n1", nil)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if populated {
		t.Fatal("populate must not run on the plain route")
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rich/n1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !populated {
		t.Fatal("populate did not run on the rich route")
	}
	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	if data["note"].(map[string]any)["text"] != "expanded" {
		t.Fatalf("populate result not serialized: %v", data)
	}
}

func TestGetAllEmptyResultIsSuccess(t *testing.T) {
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: newFakeStore()})

	app := newTestApp()
	app.Get("/notes", resource.GetAll)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/notes", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["results"].(float64) != 0 {
		t.Fatalf("results = %v, want 0", body["results"])
	}
}

func TestGetAllInjectsAncestorFilterOnNestedRoute(t *testing.T) {
	store := newFakeStore()
	resource := NewResource(ResourceConfig[note]{
		Name:        "note",
		Store:       store,
		ParentParam: "tourId",
		ParentField: "tour_id",
	})

	app := newTestApp()
	app.Get("/tours/:tourId/notes", resource.GetAll)
	app.Get("/notes", resource.GetAll)

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/tours/t42/notes?rating[gte]=4", nil)); err != nil {
		t.Fatalf("request: %v", err)
	}
	conds := store.lastSpec.Conditions
	if len(conds) != 2 {
		t.Fatalf("conditions = %+v, want ancestor + user filter", conds)
	}
	// The ancestor filter composes ahead of user filters.
	if conds[0].Field != "tour_id" || conds[0].Value != "t42" {
		t.Fatalf("first condition = %+v, want tour_id=t42", conds[0])
	}

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/notes", nil)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(store.lastSpec.Conditions) != 0 {
		t.Fatalf("flat route leaked ancestor filter: %+v", store.lastSpec.Conditions)
	}
}

func TestPreHookDefaultsLoseToBodyValues(t *testing.T) {
	store := newFakeStore()
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: store})

	stamp := func(c *fiber.Ctx) error {
		SetPayloadDefault(c, "tour_id", "from-route")
		SetPayloadDefault(c, "user_id", "from-principal")
		return c.Next()
	}

	app := newTestApp()
	app.Post("/notes", stamp, resource.Create)

	req := httptest.NewRequest(http.MethodPost, "/notes",
		strings.NewReader(`{"text":"hi","tour_id":"explicit"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if _, err := app.Test(req); err != nil {
		t.Fatalf("request: %v", err)
	}

	payload := store.lastCreatePayload
	if payload["tour_id"] != "explicit" {
		t.Fatalf("body value lost to default: %v", payload["tour_id"])
	}
	if payload["user_id"] != "from-principal" {
		t.Fatalf("default not merged: %v", payload["user_id"])
	}
}

func TestDeleteAnswers204AndRunsHookWithRecord(t *testing.T) {
	store := newFakeStore(&note{ID: "n1", Text: "bye", TourID: "t1"})

	var hookSaw *note
	resource := NewResource(ResourceConfig[note]{
		Name:  "note",
		Store: store,
		AfterDelete: func(_ context.Context, n *note) error {
			hookSaw = n
			return nil
		},
	})

	app := newTestApp()
	app.Delete("/notes/:id", resource.Delete)
	app.Get("/notes/:id", resource.GetOne())

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/notes/n1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if hookSaw == nil || hookSaw.TourID != "t1" {
		t.Fatalf("delete hook record = %+v", hookSaw)
	}

	// A subsequent retrieval of the deleted record is a not-found.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/notes/n1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	store := newFakeStore()
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: store})

	app := newTestApp()
	app.Post("/notes", resource.Create)
	app.Get("/notes/:id", resource.GetOne())

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"text":"round trip"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	created := decodeBody(t, resp)["data"].(map[string]any)["note"].(map[string]any)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("no server-assigned id in %v", created)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/notes/"+id, nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	fetched := decodeBody(t, resp)["data"].(map[string]any)["note"].(map[string]any)
	if fetched["text"] != "round trip" || fetched["id"] != id {
		t.Fatalf("round trip mismatch: %v", fetched)
	}
}

func TestDeleteMissingRecordIs404(t *testing.T) {
	resource := NewResource(ResourceConfig[note]{Name: "note", Store: newFakeStore()})

	app := newTestApp()
	app.Delete("/notes/:id", resource.Delete)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/notes/ghost", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateRunsAfterUpdateHook(t *testing.T) {
	store := newFakeStore(&note{ID: "n1", Text: "old"})

	hookRan := false
	resource := NewResource(ResourceConfig[note]{
		Name:  "note",
		Store: store,
		AfterUpdate: func(_ context.Context, n *note) error {
			hookRan = true
			return nil
		},
	})

	app := newTestApp()
	app.Patch("/notes/:id", resource.Update)

	req := httptest.NewRequest(http.MethodPatch, "/notes/n1", strings.NewReader(`{"text":"new"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !hookRan {
		t.Fatal("after-update hook did not run")
	}
	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	if data["note"].(map[string]any)["text"] != "new" {
		t.Fatalf("update not reflected: %v", data)
	}
}
