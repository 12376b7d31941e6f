package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// UserStore defines the interface for user database operations
type UserStore interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// GormUserStore implements UserStore on a relational database.
type GormUserStore struct {
	DB *gorm.DB
}

// InsertUser inserts a new active user.
func (s *GormUserStore) InsertUser(ctx context.Context, user *models.User) error {
	user.IsActive = true
	return translate(s.DB.WithContext(ctx).Create(user).Error)
}

// FindUserByID finds a user by their ID
func (s *GormUserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByEmail finds a user by their email
func (s *GormUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last login time for a user
func (s *GormUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_login": now, "updated_at": now})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoUserStore implements UserStore for MongoDB
type MongoUserStore struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new user into the database
func (c *MongoUserStore) InsertUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = models.NewID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	_, err := c.Collection.InsertOne(ctx, user)
	return mongoError(err)
}

// FindUserByID finds a user by their ID
func (c *MongoUserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

// FindUserByEmail finds a user by their email
func (c *MongoUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.findOne(ctx, bson.M{"email": email})
}

func (c *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := c.Collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mongoError(err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last login time for a user
func (c *MongoUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_login": now, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// mongoError maps driver errors onto the store's sentinel errors.
func mongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Join(ErrDuplicate, err)
	default:
		return err
	}
}
