package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/ragchat/internal/model"
)

// SqliteEmbeddingCacheRepo keeps vectors as JSON blobs in a local sqlite file.
type SqliteEmbeddingCacheRepo struct {
	db *sql.DB
}

func NewSqliteEmbeddingCacheRepo(db *sql.DB) *SqliteEmbeddingCacheRepo {
	return &SqliteEmbeddingCacheRepo{db: db}
}

func (r *SqliteEmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	where := map[string]interface{}{
		"model_name":   modelName,
		"task_type":    taskType,
		"content_hash": contentHash,
	}
	sqlStr, args, err := builder.BuildSelect(embeddingCacheTable, where, []string{"embedding"})
	if err != nil {
		return nil, false, err
	}
	var raw []byte
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var values []float32
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (r *SqliteEmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	raw, err := json.Marshal(item.Embedding)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"model_name":   item.ModelName,
		"task_type":    item.TaskType,
		"content_hash": item.ContentHash,
		"dimension":    item.Dimension,
		"embedding":    raw,
		"ctime":        item.Ctime,
	}
	sqlStr, args, err := builder.BuildReplaceInsert(embeddingCacheTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SqliteEmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	return deleteBefore(ctx, r.db, DriverSqlite, cutoff)
}
