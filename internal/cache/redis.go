package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/snippet-vault/internal/classifier"
	"github.com/sakif/snippet-vault/internal/model"
)

// Connect returns a client that has answered PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

type Redis struct {
	client      redis.Cmdable
	listTTL     time.Duration
	classifyTTL time.Duration
	logger      *slog.Logger
}

var (
	_ SnippetLists           = (*Redis)(nil)
	_ classifier.ResultCache = (*Redis)(nil)
)

// NewRedis uses 5 minutes and 24 hours for non-positive TTLs.
func NewRedis(client redis.Cmdable, listTTL, classifyTTL time.Duration, logger *slog.Logger) *Redis {
	if listTTL <= 0 {
		listTTL = 5 * time.Minute
	}
	if classifyTTL <= 0 {
		classifyTTL = 24 * time.Hour
	}
	return &Redis{
		client:      client,
		listTTL:     listTTL,
		classifyTTL: classifyTTL,
		logger:      logger,
	}
}

func generationKey(userID string) string {
	return "snippets:gen:" + userID
}

func snippetsKey(userID string, generation int64) string {
	return "snippets:list:" + userID + ":" + strconv.FormatInt(generation, 10)
}

func classificationKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return "classify:" + hex.EncodeToString(sum[:])
}

// generation reads the user's list generation. A user that was never
// invalidated is at generation 0. The generation key has no TTL.
func (c *Redis) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *Redis) GetSnippets(ctx context.Context, userID string) ([]model.Snippet, int64, bool) {
	gen, err := c.generation(ctx, userID)
	if err != nil {
		c.logger.Warn("redis get list generation failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return nil, -1, false
	}

	key := snippetsKey(userID, gen)
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false
	}
	if err != nil {
		c.logger.Warn("redis get snippets failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return nil, -1, false
	}

	var snippets []model.Snippet
	if err := json.Unmarshal([]byte(raw), &snippets); err != nil {
		c.logger.Warn("corrupt snippet list in cache", slog.String("user_id", userID), slog.String("error", err.Error()))
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("redis delete snippets failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
		return nil, gen, false
	}
	return snippets, gen, true
}

func (c *Redis) SetSnippets(ctx context.Context, userID string, generation int64, snippets []model.Snippet) {
	if generation < 0 {
		return
	}
	payload, err := json.Marshal(snippets)
	if err != nil {
		c.logger.Warn("marshal snippet list failed", slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, snippetsKey(userID, generation), string(payload), c.listTTL).Err(); err != nil {
		c.logger.Warn("redis set snippets failed", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}

// InvalidateSnippets bumps the user's generation. Lists stored under older
// generations are never read again and expire with their TTL.
func (c *Redis) InvalidateSnippets(ctx context.Context, userID string) {
	if err := c.client.Incr(ctx, generationKey(userID)).Err(); err != nil {
		c.logger.Warn("redis bump list generation failed", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}

func (c *Redis) GetClassification(ctx context.Context, code string) (model.Category, bool) {
	raw, err := c.client.Get(ctx, classificationKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.Warn("redis get classification failed", slog.String("error", err.Error()))
		return "", false
	}

	category, ok := model.MatchClassifiable(raw)
	return category, ok
}

func (c *Redis) SetClassification(ctx context.Context, code string, category model.Category) {
	if err := c.client.Set(ctx, classificationKey(code), string(category), c.classifyTTL).Err(); err != nil {
		c.logger.Warn("redis set classification failed", slog.String("error", err.Error()))
	}
}
