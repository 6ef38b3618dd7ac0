package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/didmybit/didmybit_server/internal/model"
)

// MongoCommentRepository 评论文档存储
type MongoCommentRepository struct {
	coll *mongo.Collection
}

func NewMongoCommentRepository(coll *mongo.Collection) *MongoCommentRepository {
	return &MongoCommentRepository{coll: coll}
}

// EnsureIndexes 创建评论集合索引
func (r *MongoCommentRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "postId", Value: 1},
				{Key: "parentId", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "postId", Value: 1},
				{Key: "createdAt", Value: 1},
			},
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create comment indexes: %w", err)
	}
	return nil
}

func (r *MongoCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if comment.LikedBy == nil {
		comment.LikedBy = []string{}
	}
	if comment.DislikedBy == nil {
		comment.DislikedBy = []string{}
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if comment.UpdatedAt.IsZero() {
		comment.UpdatedAt = comment.CreatedAt
	}

	if _, err := r.coll.InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (r *MongoCommentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var comment model.Comment
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&comment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment %s: %w", id, err)
	}
	return &comment, nil
}

func (r *MongoCommentRepository) ListByPostID(ctx context.Context, postID string) ([]*model.Comment, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := r.coll.Find(ctx, bson.M{"postId": postID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list comments of post %s: %w", postID, err)
	}
	defer cursor.Close(ctx)

	comments := make([]*model.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decode comments of post %s: %w", postID, err)
	}
	return comments, nil
}

// SaveReactions 单文档条件更新：只有版本号未变时才写入
func (r *MongoCommentRepository) SaveReactions(ctx context.Context, comment *model.Comment, expectedVersion int64) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": comment.ID, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{
			"likes":      comment.Likes,
			"dislikes":   comment.Dislikes,
			"likedBy":    nonNil(comment.LikedBy),
			"dislikedBy": nonNil(comment.DislikedBy),
			"updatedAt":  now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("save reactions of %s: %w", comment.ID, err)
	}

	if result.MatchedCount == 0 {
		count, err := r.coll.CountDocuments(ctx, bson.M{"_id": comment.ID})
		if err != nil {
			return fmt.Errorf("save reactions of %s: %w", comment.ID, err)
		}
		if count == 0 {
			return ErrCommentNotFound
		}
		return ErrVersionConflict
	}

	comment.Version = expectedVersion + 1
	comment.UpdatedAt = now
	return nil
}

func (r *MongoCommentRepository) ListAfter(ctx context.Context, afterID string, limit int) ([]*model.Comment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$gt": afterID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list comments after %q: %w", afterID, err)
	}
	defer cursor.Close(ctx)

	comments := make([]*model.Comment, 0, limit)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decode comments after %q: %w", afterID, err)
	}
	return comments, nil
}

func (r *MongoCommentRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func nonNil(set []string) []string {
	if set == nil {
		return []string{}
	}
	return set
}
