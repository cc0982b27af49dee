// Package store holds the MongoDB implementations of the collaborator
// interfaces the core consumes: form templates, submissions, delivery
// jobs and the notification history.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Jobsidney/FinanceFormFlows/models"
	"github.com/Jobsidney/FinanceFormFlows/submit"
)

// FormStore persists form templates in the "forms" collection.
type FormStore struct {
	col *mongo.Collection
}

func NewFormStore(db *mongo.Database) *FormStore {
	return &FormStore{col: db.Collection("forms")}
}

// Get implements submit.SchemaStore.
func (s *FormStore) Get(ctx context.Context, id string) (*models.FormTemplate, error) {
	var t models.FormTemplate
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, submit.ErrSchemaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load form %s: %w", id, err)
	}
	return &t, nil
}

func (s *FormStore) Create(ctx context.Context, t *models.FormTemplate) error {
	if _, err := s.col.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

// Replace overwrites an existing template owned by creator. It reports
// submit.ErrSchemaNotFound when no such template exists.
func (s *FormStore) Replace(ctx context.Context, t *models.FormTemplate, creator string) error {
	filter := bson.M{"_id": t.ID, "created_by": creator}
	t.Creator = creator
	res, err := s.col.ReplaceOne(ctx, filter, t)
	if err != nil {
		return fmt.Errorf("replace form %s: %w", t.ID, err)
	}
	if res.MatchedCount == 0 {
		return submit.ErrSchemaNotFound
	}
	return nil
}

// List returns templates newest first, optionally filtered by creator.
func (s *FormStore) List(ctx context.Context, creator string) ([]models.FormTemplate, error) {
	filter := bson.M{}
	if creator != "" {
		filter["created_by"] = creator
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer cur.Close(ctx)

	templates := []models.FormTemplate{}
	if err := cur.All(ctx, &templates); err != nil {
		return nil, fmt.Errorf("decode forms: %w", err)
	}
	return templates, nil
}

func (s *FormStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete form %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return submit.ErrSchemaNotFound
	}
	return nil
}
