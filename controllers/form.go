package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/Jobsidney/FinanceFormFlows/models"
	"github.com/Jobsidney/FinanceFormFlows/schema"
	"github.com/Jobsidney/FinanceFormFlows/submit"
	u "github.com/Jobsidney/FinanceFormFlows/utils"
)

// CreateForm handles POST /api/form and PUT /api/form/{id}. Templates
// are checked at authoring time; anything schema.Check rejects never
// reaches the validation engine.
var CreateForm = func(w http.ResponseWriter, r *http.Request) {
	admin := GetAdmin(w, r, true)
	if admin == "" {
		return
	}

	tmpl := &models.FormTemplate{}
	if err := json.NewDecoder(r.Body).Decode(tmpl); err != nil {
		log.WithError(err).Debug("bad template payload")
		u.Respond(w, u.Message(false, err.Error()), 400)
		return
	}

	if errs := schema.Check(tmpl); len(errs) > 0 {
		u.Respond(w, map[string]interface{}{"status": false, "errors": errs}, 400)
		return
	}

	now := time.Now().UTC()
	if r.Method == "PUT" {
		tmpl.ID = mux.Vars(r)["id"]
		existing, err := Forms.Get(r.Context(), tmpl.ID)
		if errors.Is(err, submit.ErrSchemaNotFound) {
			u.Respond(w, u.Message(false, "Not Found"), 404)
			return
		}
		if err != nil {
			u.Respond(w, u.Message(false, err.Error()), 500)
			return
		}
		// Replace swaps the whole document; the creation stamp carries
		// over from the stored template.
		tmpl.CreatedAt = existing.CreatedAt
		tmpl.UpdatedAt = now
		err = Forms.Replace(r.Context(), tmpl, admin)
		if errors.Is(err, submit.ErrSchemaNotFound) {
			u.Respond(w, u.Message(false, "Not Found"), 404)
			return
		}
		if err != nil {
			log.WithError(err).Error("form update failed")
			u.Respond(w, u.Message(false, err.Error()), 500)
			return
		}
	} else {
		tmpl.ID = uuid.NewString()
		tmpl.Creator = admin
		tmpl.CreatedAt = now
		tmpl.UpdatedAt = now
		if err := Forms.Create(r.Context(), tmpl); err != nil {
			log.WithError(err).Error("form create failed")
			u.Respond(w, u.Message(false, err.Error()), 500)
			return
		}
	}

	log.WithFields(log.Fields{"admin": admin, "form": tmpl.ID}).Info("form template saved")
	u.Respond(w, map[string]interface{}{"id": tmpl.ID}, 200)
}

// GetForm handles GET /api/form/{id}. Inactive templates are visible
// only to the admin session; clients get a 404 so the form simply
// disappears for them.
var GetForm = func(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tmpl, err := Forms.Get(r.Context(), id)
	if errors.Is(err, submit.ErrSchemaNotFound) {
		u.Respond(w, u.Message(false, "Not Found"), 404)
		return
	}
	if err != nil {
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}

	if !tmpl.Active && GetAdmin(w, r, false) == "" {
		u.Respond(w, u.Message(false, "Not Found"), 404)
		return
	}

	u.Respond(w, tmpl, 200)
}

// GetAllForms handles GET /api/forms (admin listing).
var GetAllForms = func(w http.ResponseWriter, r *http.Request) {
	admin := GetAdmin(w, r, true)
	if admin == "" {
		return
	}

	forms, err := Forms.List(r.Context(), "")
	if err != nil {
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}
	u.Respond(w, forms, 200)
}

// DeleteForm handles DELETE /api/form/{id}. Only the creator may delete
// a template; its submissions are removed with it.
var DeleteForm = func(w http.ResponseWriter, r *http.Request) {
	admin := GetAdmin(w, r, true)
	if admin == "" {
		return
	}
	id := mux.Vars(r)["id"]

	tmpl, err := Forms.Get(r.Context(), id)
	if errors.Is(err, submit.ErrSchemaNotFound) {
		u.Respond(w, u.Message(false, "Not Found"), 404)
		return
	}
	if err != nil {
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}

	if tmpl.Creator != admin {
		u.Respond(w, u.Message(false, "Only form creator can delete form. Unauthorized access"), 403)
		return
	}

	// Collect the submission ids before the cascade removes them; their
	// delivery jobs and history go too, so no job is left to churn
	// against a submission that no longer exists.
	subs, err := Submissions.ListByForm(r.Context(), id)
	if err != nil {
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}

	if err := Forms.Delete(r.Context(), id); err != nil {
		log.WithError(err).Error("form delete failed")
		u.Respond(w, u.Message(false, err.Error()), 500)
		return
	}
	if err := Submissions.DeleteByForm(r.Context(), id); err != nil {
		log.WithError(err).Error("submission cascade delete failed")
	}
	for _, sub := range subs {
		if err := Jobs.PurgeSubmission(r.Context(), sub.ID); err != nil {
			log.WithField("submission", sub.ID).WithError(err).Error("delivery cascade delete failed")
		}
	}

	log.WithFields(log.Fields{"admin": admin, "form": id}).Info("form template and submissions deleted")
	u.Respond(w, u.Message(true, "Form deleted"), 200)
}
