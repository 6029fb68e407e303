package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/KotFed0t/paper_trading_bot/config"
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/utils"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

const sessionKeyPrefix = "session:"

type RedisSession struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisSession(redisClient *redis.Client, cfg *config.Config) *RedisSession {
	return &RedisSession{redis: redisClient, cfg: cfg}
}

func (r *RedisSession) GetSession(ctx context.Context, key string) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, sessionKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return model.Session{}, err
	}

	session := model.Session{}
	err = json.Unmarshal([]byte(res), &session)
	if err != nil {
		slog.Error(
			"can't unmarshal session",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Session{}, errors.New("can't unmarshal session")
	}

	return session, nil
}

func (r *RedisSession) SetSession(ctx context.Context, key string, session model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	sessionJson, err := json.Marshal(session)
	if err != nil {
		slog.Error("can't marshal session", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.Any("session", session))
		return errors.New("can't marshal session")
	}

	err = r.redis.Set(ctx, sessionKeyPrefix+key, sessionJson, r.cfg.SessionExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	return nil
}
