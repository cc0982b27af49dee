package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func Message(status bool, message string) map[string]interface{} {
	return map[string]interface{}{"status": status, "message": message}
}

func Respond(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

var (
	clientOnce sync.Once
	client     *mongo.Client
)

// Database returns a handle on the configured database, connecting on
// first use. MONGO_URI and MONGO_DB come from the environment.
func Database() *mongo.Database {
	clientOnce.Do(func() {
		uri := os.Getenv("MONGO_URI")
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var err error
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			log.WithError(err).Fatal("could not connect to mongodb")
		}
	})

	name := os.Getenv("MONGO_DB")
	if name == "" {
		name = "formflows"
	}
	return client.Database(name)
}

