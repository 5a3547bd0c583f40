package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const streamDoneMarker = "[DONE]"

// Event is one emission of generated text attributed to a named producer.
// Partial events carry the text accumulated so far; each partial supersedes
// the previous one rather than appending to it. The final event carries the
// complete text.
type Event struct {
	Producer string
	Content  string
	Final    bool
}

// Stream issues a streaming chat completion attributed to the named producer.
// emit is invoked for each partial accumulation and once more with the final
// text; the final text is also returned. A nil emit streams silently.
func (c *Client) Stream(ctx context.Context, producer, systemPrompt, userPrompt string, emit func(Event)) (string, error) {
	producer = strings.TrimSpace(producer)
	if producer == "" {
		return "", fmt.Errorf("llm stream: producer name required")
	}
	payload, err := c.buildRequest(systemPrompt, userPrompt, true)
	if err != nil {
		return "", err
	}

	attempts := c.retryAttempts()
	for attempt := 1; ; attempt++ {
		text, received, err := c.streamOnce(ctx, payload, producer, emit)
		if err == nil {
			if emit != nil {
				emit(Event{Producer: producer, Content: text, Final: true})
			}
			return text, nil
		}
		// Once partial content has gone out, a silent retry could emit a
		// shorter accumulation than the consumer already saw.
		if received {
			return "", err
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (c *Client) streamOnce(ctx context.Context, payload chatCompletionRequest, producer string, emit func(Event)) (string, bool, error) {
	resp, err := c.postChatRequest(ctx, payload)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", false, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var accumulated strings.Builder
	received := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 512*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == streamDoneMarker {
			break
		}

		var chunk chatCompletionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return accumulated.String(), received, fmt.Errorf("llm stream: decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return accumulated.String(), received, fmt.Errorf("llm stream: api error: %s", strings.TrimSpace(chunk.Error.Message))
		}
		for _, choice := range chunk.Choices {
			delta := choice.Delta.Content
			if delta == "" {
				delta = choice.Message.Content
			}
			if delta == "" {
				continue
			}
			accumulated.WriteString(delta)
			received = true
			if emit != nil {
				emit(Event{Producer: producer, Content: accumulated.String()})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return accumulated.String(), received, fmt.Errorf("llm stream: read stream: %w", err)
	}

	text := strings.TrimSpace(accumulated.String())
	if text == "" {
		return "", received, &emptyContentError{Op: "llm stream"}
	}
	return text, received, nil
}
