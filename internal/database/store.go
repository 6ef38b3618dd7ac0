package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/didmybit/didmybit_server/config"
	"github.com/didmybit/didmybit_server/internal/model"
	"github.com/didmybit/didmybit_server/internal/repository"
)

// OpenCommentStore 按 storage.driver 打开评论存储，返回的 close 函数释放连接
func OpenCommentStore(ctx context.Context, cfg *config.Config) (repository.CommentStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		db, err := NewMySQL(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return openGormStore(db)

	case config.StorageSQLite, "":
		db, err := NewSQLite(&cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return openGormStore(db)

	case config.StorageMongo:
		mdb, err := NewMongo(&cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoCommentRepository(mdb.Comments)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = mdb.Close(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repo, func() { _ = mdb.Close(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openGormStore(db *gorm.DB) (repository.CommentStore, func(), error) {
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	if err := db.AutoMigrate(&model.Comment{}); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate comments: %w", err)
	}

	return repository.NewCommentRepository(db), closeDB, nil
}
