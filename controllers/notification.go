package controllers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Jobsidney/FinanceFormFlows/notify"
	"github.com/Jobsidney/FinanceFormFlows/store"
	u "github.com/Jobsidney/FinanceFormFlows/utils"
)

// GetNotifications handles GET /api/notifications/{submissionid}: the
// append-only delivery history an operator audits.
var GetNotifications = func(w http.ResponseWriter, r *http.Request) {
	admin := GetAdmin(w, r, true)
	if admin == "" {
		return
	}
	submissionID := mux.Vars(r)["submissionid"]

	recs, err := History.ListBySubmission(r.Context(), submissionID)
	if err != nil {
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}
	u.Respond(w, recs, 200)
}

// CancelJob handles POST /api/job/{id}/cancel. A job being attempted
// right now cannot be cancelled; the caller retries after the attempt
// resolves.
var CancelJob = func(w http.ResponseWriter, r *http.Request) {
	admin := GetAdmin(w, r, true)
	if admin == "" {
		return
	}
	id := mux.Vars(r)["id"]

	err := Jobs.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		u.Respond(w, u.Message(false, "Not Found"), 404)
	case errors.Is(err, notify.ErrNotCancellable):
		u.Respond(w, u.Message(false, "Job is in flight or already finished"), 409)
	case err != nil:
		u.Respond(w, u.Message(false, err.Error()), 500)
	default:
		u.Respond(w, u.Message(true, "Job cancelled"), 200)
	}
}
