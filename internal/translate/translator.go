package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sublingo/internal/config"
	"sublingo/internal/language"
	"sublingo/internal/logging"
	"sublingo/internal/services"
)

// completionClient is the slice of Client the translator needs.
type completionClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Translator turns transcript lines into a target language in fixed-size
// batches. A batch whose response cannot be paired one-to-one with its
// inputs is retried with exponential backoff; once attempts are exhausted
// the whole translation fails and any partial output is discarded.
type Translator struct {
	client      completionClient
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleeper     func(time.Duration)
	logger      *slog.Logger
}

// TranslatorOption customizes the translator.
type TranslatorOption func(*Translator)

// WithBatchRetryBackoff overrides the batch retry delays.
func WithBatchRetryBackoff(baseDelay, maxDelay time.Duration) TranslatorOption {
	return func(t *Translator) {
		t.baseDelay = baseDelay
		t.maxDelay = maxDelay
	}
}

// WithBatchSleeper overrides how batch retry sleeps are performed.
func WithBatchSleeper(sleeper func(time.Duration)) TranslatorOption {
	return func(t *Translator) {
		t.sleeper = sleeper
	}
}

// NewTranslator constructs a translator over the given completion client.
func NewTranslator(client completionClient, cfg *config.Config, logger *slog.Logger, opts ...TranslatorOption) *Translator {
	t := &Translator{
		client:      client,
		batchSize:   cfg.Translator.BatchSize,
		maxAttempts: cfg.Translator.MaxAttempts,
		baseDelay:   1 * time.Second,
		maxDelay:    30 * time.Second,
		logger:      logging.NewComponentLogger(logger, "translator"),
	}
	if t.batchSize <= 0 {
		t.batchSize = 10
	}
	if t.maxAttempts <= 0 {
		t.maxAttempts = 3
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate renders every line into the target language, preserving order
// and count. The returned slice always has exactly len(texts) entries on
// success.
func (t *Translator) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += t.batchSize {
		end := start + t.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		translated, err := t.translateBatch(ctx, batch, sourceLang, targetLang)
		if err != nil {
			return nil, err
		}
		result = append(result, translated...)
	}
	return result, nil
}

func (t *Translator) translateBatch(ctx context.Context, batch []string, sourceLang, targetLang string) ([]string, error) {
	userPrompt, err := json.Marshal(batch)
	if err != nil {
		return nil, services.Wrap(services.ErrTranslation, "translate", "encode batch", "encode batch payload", err)
	}
	systemPrompt := buildSystemPrompt(sourceLang, targetLang)

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		content, err := t.client.CompleteJSON(ctx, systemPrompt, string(userPrompt))
		if err == nil {
			translated, parseErr := extractTranslations(content)
			if parseErr == nil && len(translated) == len(batch) {
				return translated, nil
			}
			if parseErr != nil {
				err = fmt.Errorf("parse batch response: %w", parseErr)
			} else {
				err = fmt.Errorf("batch size mismatch: sent %d lines, received %d translations", len(batch), len(translated))
			}
		}
		lastErr = err

		if attempt == t.maxAttempts {
			break
		}
		if t.logger != nil {
			t.logger.Warn("translation batch retry",
				logging.Int("attempt", attempt),
				logging.Int("batch_size", len(batch)),
				logging.String("target", targetLang),
				logging.Error(err),
			)
		}
		if err := t.sleep(ctx, t.backoffDelay(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, services.Wrap(
		services.ErrTranslation,
		"translate",
		"translate batch",
		fmt.Sprintf("batch failed after %d attempts (target %s)", t.maxAttempts, targetLang),
		lastErr,
	)
}

func (t *Translator) backoffDelay(attempt int) time.Duration {
	// attempt 1 -> 2*base, attempt 2 -> 4*base, attempt 3 -> 8*base, ...
	delay := t.baseDelay
	for i := 0; i < attempt; i++ {
		if delay > t.maxDelay/2 {
			return t.maxDelay
		}
		delay *= 2
	}
	return delay
}

func (t *Translator) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if t.sleeper != nil {
		t.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func buildSystemPrompt(sourceLang, targetLang string) string {
	source := language.DisplayName(sourceLang)
	target := language.DisplayName(targetLang)
	var b strings.Builder
	b.WriteString("You are a professional subtitle translator. ")
	if source != "Unknown" {
		fmt.Fprintf(&b, "Translate each subtitle line from %s to %s. ", source, target)
	} else {
		fmt.Fprintf(&b, "Translate each subtitle line to %s. ", target)
	}
	b.WriteString("Keep translations concise and natural for on-screen subtitles. ")
	b.WriteString(`Respond with a JSON object of the form {"translations": ["..."]} `)
	b.WriteString("containing exactly one translation per input line, in the same order.")
	return b.String()
}

// translationKeys lists the payload keys models have been observed to use
// for the translated array, in preference order.
var translationKeys = []string{"translations", "result", "results", "data", "texts", "output"}

func extractTranslations(content string) ([]string, error) {
	// Bare array first.
	var direct []string
	if err := DecodeModelJSON(content, &direct); err == nil {
		return direct, nil
	}

	var envelope map[string]json.RawMessage
	if err := DecodeModelJSON(content, &envelope); err != nil {
		return nil, err
	}
	for _, key := range translationKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if translated, err := decodeStringList(raw); err == nil {
			return translated, nil
		}
	}
	// Fall back to any key holding a string array.
	for _, raw := range envelope {
		if translated, err := decodeStringList(raw); err == nil {
			return translated, nil
		}
	}
	return nil, fmt.Errorf("no translation array in payload (snippet: %s)", summarizePayloadSnippet(content))
}

func decodeStringList(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var loose []any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, err
	}
	list = make([]string, 0, len(loose))
	for _, item := range loose {
		switch v := item.(type) {
		case string:
			list = append(list, v)
		default:
			list = append(list, fmt.Sprint(v))
		}
	}
	return list, nil
}
