package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"

	c "github.com/Jobsidney/FinanceFormFlows/controllers"
	"github.com/Jobsidney/FinanceFormFlows/models"
	"github.com/Jobsidney/FinanceFormFlows/notify"
	"github.com/Jobsidney/FinanceFormFlows/store"
	"github.com/Jobsidney/FinanceFormFlows/submit"
)

const admin = "ops@example.com"

// --- in-memory collaborators wired through Setup ---

type fakeForms struct {
	forms map[string]*models.FormTemplate
}

func (f *fakeForms) Get(_ context.Context, id string) (*models.FormTemplate, error) {
	t, ok := f.forms[id]
	if !ok {
		return nil, submit.ErrSchemaNotFound
	}
	return t, nil
}

func (f *fakeForms) Create(_ context.Context, t *models.FormTemplate) error {
	f.forms[t.ID] = t
	return nil
}

func (f *fakeForms) Replace(_ context.Context, t *models.FormTemplate, creator string) error {
	old, ok := f.forms[t.ID]
	if !ok || old.Creator != creator {
		return submit.ErrSchemaNotFound
	}
	t.Creator = creator
	f.forms[t.ID] = t
	return nil
}

func (f *fakeForms) List(_ context.Context, _ string) ([]models.FormTemplate, error) {
	out := []models.FormTemplate{}
	for _, t := range f.forms {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeForms) Delete(_ context.Context, id string) error {
	delete(f.forms, id)
	return nil
}

type fakeSubmissions struct {
	byForm    map[string][]models.Submission
	processed []string
}

func (f *fakeSubmissions) ListByForm(_ context.Context, formID string) ([]models.Submission, error) {
	return f.byForm[formID], nil
}

func (f *fakeSubmissions) MarkProcessed(_ context.Context, id string, _ time.Time) error {
	for _, subs := range f.byForm {
		for _, s := range subs {
			if s.ID == id {
				f.processed = append(f.processed, id)
				return nil
			}
		}
	}
	return store.ErrSubmissionNotFound
}

func (f *fakeSubmissions) DeleteByForm(_ context.Context, formID string) error {
	delete(f.byForm, formID)
	return nil
}

type fakeHistory struct {
	recs map[string][]models.NotificationRecord
}

func (f *fakeHistory) ListBySubmission(_ context.Context, id string) ([]models.NotificationRecord, error) {
	return f.recs[id], nil
}

type fakeSubmitter struct {
	id     string
	result *models.ValidationResult
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, _ string, _ models.Payload) (string, *models.ValidationResult, error) {
	return f.id, f.result, f.err
}

type fakeCanceller struct {
	err       error
	cancelled []string
	purged    []string
}

func (f *fakeCanceller) Cancel(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeCanceller) PurgeSubmission(_ context.Context, submissionID string) error {
	f.purged = append(f.purged, submissionID)
	return nil
}

var (
	forms       *fakeForms
	submissions *fakeSubmissions
	history     *fakeHistory
	submitter   *fakeSubmitter
	canceller   *fakeCanceller
)

func reset() {
	forms = &fakeForms{forms: map[string]*models.FormTemplate{}}
	submissions = &fakeSubmissions{byForm: map[string][]models.Submission{}}
	history = &fakeHistory{recs: map[string][]models.NotificationRecord{}}
	submitter = &fakeSubmitter{id: "sub1", result: &models.ValidationResult{}}
	canceller = &fakeCanceller{}
	c.Setup(forms, submissions, history, submitter, canceller)
}

func TestMain(m *testing.M) {
	os.Setenv("JWT_KEY", "test-signing-key")
	os.Exit(m.Run())
}

func router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/form", c.CreateForm).Methods("POST")
	r.HandleFunc("/api/form/{id}", c.CreateForm).Methods("PUT")
	r.HandleFunc("/api/form/{id}", c.GetForm).Methods("GET")
	r.HandleFunc("/api/form/{id}", c.DeleteForm).Methods("DELETE")
	r.HandleFunc("/api/forms", c.GetAllForms).Methods("GET")
	r.HandleFunc("/api/submit/{formid}", c.CreateSubmission).Methods("POST")
	r.HandleFunc("/api/submissions/{formid}", c.GetSubmissions).Methods("GET")
	r.HandleFunc("/api/submission/{id}/processed", c.MarkProcessed).Methods("POST")
	r.HandleFunc("/api/notifications/{submissionid}", c.GetNotifications).Methods("GET")
	r.HandleFunc("/api/job/{id}/cancel", c.CancelJob).Methods("POST")
	return r
}

func requestAPI(method, api string, body []byte, authed bool) *http.Request {
	request, _ := http.NewRequest(method, api, bytes.NewBuffer(body))
	request.Header.Set("Content-Type", "application/json")
	if authed {
		tempR := httptest.NewRecorder()
		c.SetCookie(tempR, admin)
		request.Header.Add("Cookie", tempR.Header().Get("Set-Cookie"))
	}
	return request
}

func fire(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router().ServeHTTP(rr, req)
	return rr
}

func dummyTemplate() models.FormTemplate {
	return models.FormTemplate{
		Name:   "Loan Intake",
		Active: true,
		Fields: []models.FieldDefinition{
			{Name: "name", Type: models.FieldText, Label: "Name", Required: true, Visible: true, Order: 1},
		},
	}
}

// Tests creation of a new template by an authenticated admin
func TestCreateForm(t *testing.T) {
	reset()
	body, _ := json.Marshal(dummyTemplate())

	rr := fire(requestAPI("POST", "/api/form", body, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	stored, ok := forms.forms[resp["id"]]
	if !ok {
		t.Fatalf("form %q not stored", resp["id"])
	}
	if stored.Name != "Loan Intake" || stored.Creator != admin {
		t.Errorf("stored form differs: %+v", stored)
	}
}

func TestCreateFormUnauthorized(t *testing.T) {
	reset()
	body, _ := json.Marshal(dummyTemplate())

	rr := fire(requestAPI("POST", "/api/form", body, false))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Status code differs. Expected %d Got %d instead", http.StatusUnauthorized, rr.Code)
	}
	if len(forms.forms) != 0 {
		t.Error("unauthenticated request stored a form")
	}
}

// Malformed templates are rejected with the full defect list
func TestCreateFormSchemaErrors(t *testing.T) {
	reset()
	bad := dummyTemplate()
	bad.Fields = append(bad.Fields, models.FieldDefinition{
		Name: "name", Type: "hologram", Order: 2,
	})
	body, _ := json.Marshal(bad)

	rr := fire(requestAPI("POST", "/api/form", body, true))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusBadRequest, rr.Code)
	}

	var resp struct {
		Status bool              `json:"status"`
		Errors []json.RawMessage `json:"errors"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Status || len(resp.Errors) < 2 {
		t.Errorf("expected duplicate-name and unknown-type defects, got %s", rr.Body.String())
	}
}

func TestEditForm(t *testing.T) {
	reset()
	existing := dummyTemplate()
	existing.ID = "f1"
	existing.Creator = admin
	forms.forms["f1"] = &existing

	edited := dummyTemplate()
	edited.Name = "Loan Intake v2"
	body, _ := json.Marshal(edited)

	rr := fire(requestAPI("PUT", "/api/form/f1", body, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusOK, rr.Code)
	}
	if forms.forms["f1"].Name != "Loan Intake v2" {
		t.Errorf("form not updated: %+v", forms.forms["f1"])
	}
}

// Updating a template keeps its creation stamp; only updated_at moves.
func TestEditFormPreservesCreatedAt(t *testing.T) {
	reset()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := dummyTemplate()
	existing.ID = "f1"
	existing.Creator = admin
	existing.CreatedAt = created
	forms.forms["f1"] = &existing

	body, _ := json.Marshal(dummyTemplate())
	rr := fire(requestAPI("PUT", "/api/form/f1", body, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusOK, rr.Code)
	}

	stored := forms.forms["f1"]
	if !stored.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", stored.CreatedAt, created)
	}
	if !stored.UpdatedAt.After(created) {
		t.Errorf("UpdatedAt = %v, want after %v", stored.UpdatedAt, created)
	}
}

func TestEditUnknownForm(t *testing.T) {
	reset()
	body, _ := json.Marshal(dummyTemplate())

	rr := fire(requestAPI("PUT", "/api/form/nope", body, true))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code differs. Expected %d Got %d instead", http.StatusNotFound, rr.Code)
	}
}

// Inactive templates 404 for anonymous clients but stay visible to admins
func TestInactiveFormHiddenFromClients(t *testing.T) {
	reset()
	tmpl := dummyTemplate()
	tmpl.ID = "f1"
	tmpl.Active = false
	forms.forms["f1"] = &tmpl

	rr := fire(requestAPI("GET", "/api/form/f1", nil, false))
	if rr.Code != http.StatusNotFound {
		t.Errorf("client: Expected %d Got %d instead", http.StatusNotFound, rr.Code)
	}

	rr = fire(requestAPI("GET", "/api/form/f1", nil, true))
	if rr.Code != http.StatusOK {
		t.Errorf("admin: Expected %d Got %d instead", http.StatusOK, rr.Code)
	}
}

func TestDeleteFormCreatorOnly(t *testing.T) {
	reset()
	tmpl := dummyTemplate()
	tmpl.ID = "f1"
	tmpl.Creator = "someone-else@example.com"
	forms.forms["f1"] = &tmpl

	rr := fire(requestAPI("DELETE", "/api/form/f1", nil, true))
	if rr.Code != http.StatusForbidden {
		t.Errorf("Status code differs. Expected %d Got %d instead", http.StatusForbidden, rr.Code)
	}
	if _, ok := forms.forms["f1"]; !ok {
		t.Error("form deleted by non-creator")
	}
}

func TestDeleteFormCascades(t *testing.T) {
	reset()
	tmpl := dummyTemplate()
	tmpl.ID = "f1"
	tmpl.Creator = admin
	forms.forms["f1"] = &tmpl
	submissions.byForm["f1"] = []models.Submission{
		{ID: "s1", FormID: "f1"},
		{ID: "s2", FormID: "f1"},
	}

	rr := fire(requestAPI("DELETE", "/api/form/f1", nil, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusOK, rr.Code)
	}
	if _, ok := forms.forms["f1"]; ok {
		t.Error("form survived delete")
	}
	if len(submissions.byForm["f1"]) != 0 {
		t.Error("submissions survived form delete")
	}
	if len(canceller.purged) != 2 || canceller.purged[0] != "s1" || canceller.purged[1] != "s2" {
		t.Errorf("delivery artifacts not purged per submission: %v", canceller.purged)
	}
}

// Accepted submissions confirm with the new submission id
func TestSubmitAccepted(t *testing.T) {
	reset()
	body, _ := json.Marshal(map[string]interface{}{
		"form_data": map[string]interface{}{"name": "Ada"},
	})

	rr := fire(requestAPI("POST", "/api/submit/f1", body, false))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusCreated, rr.Code)
	}

	var resp map[string]interface{}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["submission_id"] != "sub1" {
		t.Errorf("response missing submission id: %s", rr.Body.String())
	}
}

// Rejections carry the complete error list in one response
func TestSubmitRejected(t *testing.T) {
	reset()
	submitter.result = &models.ValidationResult{Errors: []models.FieldError{
		{Field: "name", Kind: models.RuleRequired, Message: "Name is required"},
		{Field: "age", Kind: models.RuleMinValue, Message: "Age must be at least 18"},
	}}
	body, _ := json.Marshal(map[string]interface{}{"form_data": map[string]interface{}{}})

	rr := fire(requestAPI("POST", "/api/submit/f1", body, false))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusBadRequest, rr.Code)
	}

	var resp struct {
		Errors []models.FieldError `json:"errors"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Errors) != 2 {
		t.Errorf("expected both field errors, got %s", rr.Body.String())
	}
}

func TestSubmitUnknownForm(t *testing.T) {
	reset()
	submitter.err = submit.ErrSchemaNotFound
	body := []byte(`{"form_data":{}}`)

	rr := fire(requestAPI("POST", "/api/submit/nope", body, false))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Status code differs. Expected %d Got %d instead", http.StatusNotFound, rr.Code)
	}
}

func TestSubmitInactiveForm(t *testing.T) {
	reset()
	submitter.err = submit.ErrSchemaInactive
	body := []byte(`{"form_data":{}}`)

	rr := fire(requestAPI("POST", "/api/submit/f1", body, false))
	if rr.Code != http.StatusGone {
		t.Errorf("Status code differs. Expected %d Got %d instead", http.StatusGone, rr.Code)
	}
}

func TestMarkProcessed(t *testing.T) {
	reset()
	submissions.byForm["f1"] = []models.Submission{{ID: "s1", FormID: "f1"}}

	rr := fire(requestAPI("POST", "/api/submission/s1/processed", nil, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusOK, rr.Code)
	}
	if len(submissions.processed) != 1 || submissions.processed[0] != "s1" {
		t.Errorf("submission not marked: %v", submissions.processed)
	}

	rr = fire(requestAPI("POST", "/api/submission/missing/processed", nil, true))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown submission: Expected %d Got %d instead", http.StatusNotFound, rr.Code)
	}
}

func TestGetNotifications(t *testing.T) {
	reset()
	history.recs["s1"] = []models.NotificationRecord{
		{SubmissionID: "s1", JobID: "j1", Attempt: 1, Status: models.JobInFlight},
		{SubmissionID: "s1", JobID: "j1", Attempt: 1, Status: models.JobSent},
	}

	rr := fire(requestAPI("GET", "/api/notifications/s1", nil, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusOK, rr.Code)
	}

	var recs []models.NotificationRecord
	json.Unmarshal(rr.Body.Bytes(), &recs)
	if len(recs) != 2 {
		t.Errorf("expected 2 records, got %s", rr.Body.String())
	}
}

func TestCancelJob(t *testing.T) {
	reset()

	rr := fire(requestAPI("POST", "/api/job/j1/cancel", nil, true))
	if rr.Code != http.StatusOK {
		t.Fatalf("Status code differs. Expected %d Got %d instead", http.StatusOK, rr.Code)
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != "j1" {
		t.Errorf("cancel not forwarded: %v", canceller.cancelled)
	}

	canceller.err = notify.ErrNotCancellable
	rr = fire(requestAPI("POST", "/api/job/j2/cancel", nil, true))
	if rr.Code != http.StatusConflict {
		t.Errorf("in-flight job: Expected %d Got %d instead", http.StatusConflict, rr.Code)
	}

	canceller.err = store.ErrJobNotFound
	rr = fire(requestAPI("POST", "/api/job/j3/cancel", nil, true))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown job: Expected %d Got %d instead", http.StatusNotFound, rr.Code)
	}
}
