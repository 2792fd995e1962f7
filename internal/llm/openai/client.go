package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
	"github.com/joseph-ayodele/idverify/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (entity.FieldSet, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"language", string(req.Language),
	)

	if strings.TrimSpace(req.Text) == "" {
		return entity.FieldSet{}, nil, common.NewAppError("LLM_EMPTY_INPUT", "no text to extract from", common.ErrInvalidInput)
	}

	schema := llm.BuildIdentityJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"X-Title":       c.cfg.AppTitle,
	}
	raw, status, httpErr := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, raw, fmt.Errorf("chat completion: %w", httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, raw, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.FieldSet{}, raw, fmt.Errorf("no choices in chat response")
	}

	content := llm.StripCodeFence(cc.Choices[0].Message.Content)
	rawContent, _, err := llm.NormalizeAndSanitizeJSON([]byte(content), c.log)
	if err != nil {
		c.log.Error("llm.extract.sanitize_failed", "req_id", rid, "error", err)
		return entity.FieldSet{}, []byte(content), err
	}

	if err := common.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if !c.cfg.LenientOptional {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds(),
			)
			return entity.FieldSet{}, rawContent, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		cleaned, dropped, sErr := llm.SanitizeOptionalFields(rawContent)
		if sErr != nil {
			return entity.FieldSet{}, rawContent, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := common.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "elapsed_ms", time.Since(start).Milliseconds(),
			)
			return entity.FieldSet{}, rawContent, fmt.Errorf("%w: %v", common.ErrValidation, vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied", "req_id", rid, "dropped", dropped)
		rawContent = cleaned
	}

	var out llm.IdentityFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		return entity.FieldSet{}, rawContent, fmt.Errorf("unmarshal fields: %w", err)
	}

	fs, rejected := llm.ToFieldSet(out, req.Language, c.scorer)
	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"fields", len(fs.Fields),
		"rejected", rejected,
		"document_confidence", fs.DocumentConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fs, rawContent, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
