package repositories

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"laundry-delivery/pkg/scheduler"
)

const schedulerJobsKey = "scheduler:jobs"

// RedisJobStore хранит отложенные задачи планировщика в хеше Redis,
// чтобы они пережили перезапуск процесса.
type RedisJobStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisJobStore(client *redis.Client, logger *zap.Logger) scheduler.JobStore {
	return &RedisJobStore{client: client, logger: logger}
}

func (s *RedisJobStore) Save(ctx context.Context, job scheduler.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, schedulerJobsKey, job.Key, data).Err()
}

func (s *RedisJobStore) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, schedulerJobsKey, key).Err()
}

func (s *RedisJobStore) LoadAll(ctx context.Context) ([]scheduler.Job, error) {
	raw, err := s.client.HGetAll(ctx, schedulerJobsKey).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]scheduler.Job, 0, len(raw))
	for key, value := range raw {
		var job scheduler.Job
		if err := json.Unmarshal([]byte(value), &job); err != nil {
			// битая запись не должна блокировать остальные задачи
			s.logger.Warn("пропущена повреждённая задача планировщика", zap.String("key", key), zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
