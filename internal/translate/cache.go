package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// cachedTranslator puts a Redis cache in front of another translator.
// Cache errors are soft: the request falls through to the backend and the
// error is only logged.
type cachedTranslator struct {
	next   Translator
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewCachedTranslator(next Translator, client *redis.Client, ttl time.Duration, log *slog.Logger) Translator {
	return &cachedTranslator{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log.With(slog.String("component", "translation-cache")),
	}
}

func (c *cachedTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	key := cacheKey(text, sourceLang, targetLang)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return Result{TranslatedText: cached, SourceLang: sourceLang, TargetLang: targetLang}, nil
	}
	if err != redis.Nil && ctx.Err() == nil {
		c.log.Warn("cache lookup failed", slog.String("error", err.Error()))
	}

	result, err := c.next.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return Result{}, err
	}

	if err := c.client.Set(ctx, key, result.TranslatedText, c.ttl).Err(); err != nil && ctx.Err() == nil {
		c.log.Warn("cache store failed", slog.String("error", err.Error()))
	}
	return result, nil
}

func cacheKey(text, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("translation:%s:%s:%s", sourceLang, targetLang, hex.EncodeToString(sum[:]))
}
