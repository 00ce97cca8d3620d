package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"constitution-quest-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ContentLoader fetches quiz content from a backing store (e.g., Postgres).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ContentRepository caches the answer key in Redis (hash per quiz) and falls
// back to a loader on cache miss. Only what answer validation needs is
// cached: HSET quiz:{quizID}:answers  {questionIndex} {correctOptionIndex}
//         HSET quiz:{quizID}:options  {questionIndex} {optionCount}
// Prompts and option text stay in the backing store.
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	answerKey := r.answersKey(quizID)
	optionKey := r.optionsKey(quizID)

	answers, err := r.client.HGetAll(ctx, answerKey).Result()
	if err == nil && len(answers) > 0 {
		options, _ := r.client.HGetAll(ctx, optionKey).Result()
		return buildQuizFromCache(quizID, answers, options), nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := r.client.HGetAll(ctx, answerKey).Result()
		if err == nil && len(answers) > 0 {
			options, _ := r.client.HGetAll(ctx, optionKey).Result()
			return buildQuizFromCache(quizID, answers, options), nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for i, q := range quiz.Questions {
			field := strconv.Itoa(i)
			pipe.HSet(ctx, answerKey, field, q.Answer)
			pipe.HSet(ctx, optionKey, field, len(q.Options))
		}
		if ttl > 0 {
			pipe.Expire(ctx, answerKey, ttl)
			pipe.Expire(ctx, optionKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *ContentRepository) answersKey(quizID string) string {
	return "quiz:" + quizID + ":answers"
}

func (r *ContentRepository) optionsKey(quizID string) string {
	return "quiz:" + quizID + ":options"
}

// buildQuizFromCache reconstructs the validation-relevant shape of a quiz:
// ordered questions with their correct index and option count, no prompts.
func buildQuizFromCache(quizID string, answers, options map[string]string) domain.Quiz {
	questions := make([]domain.Question, len(answers))
	for field, answer := range answers {
		i, err := strconv.Atoi(field)
		if err != nil || i < 0 || i >= len(questions) {
			continue
		}
		correct, _ := strconv.Atoi(answer)
		count := correct + 1
		if cStr, ok := options[field]; ok {
			if c, err := strconv.Atoi(cStr); err == nil && c > count {
				count = c
			}
		}
		questions[i] = domain.Question{
			Options: make([]string, count),
			Answer:  correct,
		}
	}
	return domain.Quiz{ID: quizID, Questions: questions}
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
