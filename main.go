package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/Jobsidney/FinanceFormFlows/controllers"
	"github.com/Jobsidney/FinanceFormFlows/notify"
	"github.com/Jobsidney/FinanceFormFlows/store"
	"github.com/Jobsidney/FinanceFormFlows/submit"
	"github.com/Jobsidney/FinanceFormFlows/utils"
	"github.com/Jobsidney/FinanceFormFlows/validate"
)

// spaHandler implements the http.Handler interface, so we can use it
// to respond to HTTP requests. The path to the static directory and
// path to the index file within that static directory are used to
// serve the SPA in the given static directory.
type spaHandler struct {
	staticPath string
	indexPath  string
}

// ServeHTTP inspects the URL path to locate a file within the static dir
// on the SPA handler. If a file is found, it will be served. If not, the
// file located at the index path on the SPA handler will be served. This
// is suitable behavior for serving an SPA (single page application).
func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// get the absolute path to prevent directory traversal
	path, err := filepath.Abs(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// prepend the path with the path to the static directory
	path = filepath.Join(h.staticPath, path)

	// check whether a file exists at the given path
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		// file does not exist, serve index.html
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// otherwise, use http.FileServer to serve the static dir
	http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
}

func main() {
	// Load configuration
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using environment as-is")
	}

	// Logging options
	customFormatter := new(log.TextFormatter)
	customFormatter.FullTimestamp = true
	log.SetFormatter(customFormatter)
	logLevel, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = log.InfoLevel
	}
	log.SetLevel(logLevel)

	// Storage
	db := utils.Database()
	forms := store.NewFormStore(db)
	submissions := store.NewSubmissionStore(db)
	jobs := store.NewJobStore(db)
	history := store.NewHistoryStore(db)

	// Core
	engine := validate.NewEngine(nil)
	processor := submit.NewProcessor(forms, submissions, jobs, engine)

	dispatcher := notify.NewEmailDispatcher(notify.EmailConfig{
		Host:       os.Getenv("SMTP_HOST"),
		Port:       os.Getenv("SMTP_PORT"),
		Username:   os.Getenv("SMTP_USER"),
		Password:   os.Getenv("SMTP_PASSWORD"),
		From:       os.Getenv("SMTP_FROM"),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),
	})
	pipeline := notify.New(jobs, history, submissions, dispatcher, pipelineConfig())
	go pipeline.Run(context.Background())

	controllers.Setup(forms, submissions, history, processor, pipeline)

	// Create new router
	router := mux.NewRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	// Handle API calls
	router.HandleFunc("/api/form", controllers.CreateForm).Methods("POST")
	router.HandleFunc("/api/forms", controllers.GetAllForms).Methods("GET")
	router.HandleFunc("/api/form/{id}", controllers.CreateForm).Methods("PUT")
	router.HandleFunc("/api/form/{id}", controllers.GetForm).Methods("GET")
	router.HandleFunc("/api/form/{id}", controllers.DeleteForm).Methods("DELETE")
	router.HandleFunc("/api/submit/{formid}", controllers.CreateSubmission).Methods("POST")
	router.HandleFunc("/api/submissions/{formid}", controllers.GetSubmissions).Methods("GET")
	router.HandleFunc("/api/submission/{id}/processed", controllers.MarkProcessed).Methods("POST")
	router.HandleFunc("/api/notifications/{submissionid}", controllers.GetNotifications).Methods("GET")
	router.HandleFunc("/api/job/{id}/cancel", controllers.CancelJob).Methods("POST")

	// Handle auth API calls
	router.HandleFunc("/api/login", controllers.Login).Methods("POST", "GET")
	router.HandleFunc("/api/logout", controllers.Logout).Methods("GET")

	// Handle SPA
	spa := spaHandler{staticPath: "dist/formflows", indexPath: "index.html"}
	router.PathPrefix("/").Handler(spa)

	// Start listening
	log.Info("Started server on port ", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

// pipelineConfig builds the delivery pipeline configuration from the
// environment, falling back to the defaults for anything unset.
func pipelineConfig() notify.Config {
	cfg := notify.DefaultConfig()
	if n, err := strconv.Atoi(os.Getenv("NOTIFY_MAX_ATTEMPTS")); err == nil && n > 0 {
		cfg.MaxAttempts = n
	}
	if n, err := strconv.Atoi(os.Getenv("NOTIFY_BASE_DELAY_SECONDS")); err == nil && n > 0 {
		cfg.BaseDelay = time.Duration(n) * time.Second
	}
	if n, err := strconv.Atoi(os.Getenv("NOTIFY_RETENTION_DAYS")); err == nil && n > 0 {
		cfg.RetentionWindow = time.Duration(n) * 24 * time.Hour
	}
	if n, err := strconv.Atoi(os.Getenv("NOTIFY_WORKERS")); err == nil && n > 0 {
		cfg.Workers = n
	}
	if n, err := strconv.Atoi(os.Getenv("NOTIFY_LEASE_SECONDS")); err == nil && n > 0 {
		cfg.LeaseTimeout = time.Duration(n) * time.Second
	}
	return cfg
}
