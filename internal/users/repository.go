package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signflow/signflow-server/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines persistence operations for users. Lookups return
// (nil, nil) when no user matches.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateProfile(ctx context.Context, id string, name, signature *string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

// EnsureIndexes creates the unique email index.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// idFilter matches ObjectID keys written by older deployments, string keys,
// and the legacy "id" field.
func idFilter(id string) bson.M {
	key := interface{}(id)
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		key = bson.M{"$in": bson.A{oid, id}}
	}
	return bson.M{"$or": bson.A{bson.M{"_id": key}, bson.M{"id": id}}}
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, nil
	}
	return r.findOne(ctx, idFilter(id))
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) List(ctx context.Context) ([]*models.User, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoUserRepository) update(ctx context.Context, id string, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, bson.M{"active": active})
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, name, signature *string) error {
	set := bson.M{}
	if name != nil {
		set["name"] = *name
	}
	if signature != nil {
		set["signature"] = *signature
	}
	return r.update(ctx, id, set)
}

func (r *MongoUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
