package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/Jobsidney/FinanceFormFlows/models"
	"github.com/Jobsidney/FinanceFormFlows/store"
	"github.com/Jobsidney/FinanceFormFlows/submit"
	u "github.com/Jobsidney/FinanceFormFlows/utils"
)

// CreateSubmission handles POST /api/submit/{formid}, the public
// submission endpoint. A rejection returns the complete field error
// list in one response; an acceptance confirms immediately, regardless
// of eventual notification delivery.
var CreateSubmission = func(w http.ResponseWriter, r *http.Request) {
	formID := mux.Vars(r)["formid"]

	payload := models.Payload{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		u.Respond(w, u.Message(false, err.Error()), 400)
		return
	}

	id, result, err := Processor.Submit(r.Context(), formID, payload)
	switch {
	case errors.Is(err, submit.ErrSchemaNotFound):
		u.Respond(w, u.Message(false, "Form not found"), 404)
	case errors.Is(err, submit.ErrSchemaInactive):
		u.Respond(w, u.Message(false, "Form is no longer accepting submissions"), 410)
	case err != nil:
		log.WithField("form", formID).WithError(err).Error("submission failed")
		u.Respond(w, u.Message(false, "Internal error"), 500)
	case !result.Accepted():
		u.Respond(w, map[string]interface{}{"status": false, "errors": result.Errors}, 400)
	default:
		u.Respond(w, map[string]interface{}{
			"message":       "Form submitted successfully",
			"submission_id": id,
		}, 201)
	}
}

// GetSubmissions handles GET /api/submissions/{formid} (admin).
var GetSubmissions = func(w http.ResponseWriter, r *http.Request) {
	admin := GetAdmin(w, r, true)
	if admin == "" {
		return
	}
	formID := mux.Vars(r)["formid"]

	subs, err := Submissions.ListByForm(r.Context(), formID)
	if err != nil {
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}
	u.Respond(w, subs, 200)
}

// MarkProcessed handles POST /api/submission/{id}/processed (admin
// manual override; the pipeline marks submissions automatically once
// their notification is sent).
var MarkProcessed = func(w http.ResponseWriter, r *http.Request) {
	admin := GetAdmin(w, r, true)
	if admin == "" {
		return
	}
	id := mux.Vars(r)["id"]

	err := Submissions.MarkProcessed(r.Context(), id, time.Now().UTC())
	if errors.Is(err, store.ErrSubmissionNotFound) {
		u.Respond(w, u.Message(false, "Not Found"), 404)
		return
	}
	if err != nil {
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}
	u.Respond(w, map[string]interface{}{"status": "processed"}, 200)
}
