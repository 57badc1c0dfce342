package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/pkg/auth"
	"github.com/rotaworks/rotachat/pkg/llm"
	"github.com/rotaworks/rotachat/pkg/sse"
	"github.com/rotaworks/rotachat/pkg/storage"
	"github.com/rotaworks/rotachat/proxy/worker"
)

// Error codes recorded on usage log rows and surfaced in metrics.
const (
	outcomeSuccess           = "success"
	outcomeError             = "error"
	outcomeCancelled         = "cancelled"
	outcomeUnauthorized      = "unauthorized"
	outcomeModelNotAvailable = "model_not_available"
	outcomeSecretMissing     = "secret_missing"
)

// handleChat drives one generation attempt through its states:
// authenticate, resolve config, stream, and exactly one usage log insert
// for every request that reaches the streaming state.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	// Authenticate. Terminal on failure: there is no identity to attribute
	// a usage log row to.
	if p.config.AnonKey != "" && c.Get("apikey") != p.config.AnonKey {
		p.metrics.RequestsTotal.WithLabelValues(outcomeUnauthorized).Inc()
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "unauthorized"})
	}

	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	userID, err := p.verifier.Verify(c.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthorized) {
			p.logger.Error("identity verification failed", zap.Error(err))
		}
		p.metrics.RequestsTotal.WithLabelValues(outcomeUnauthorized).Inc()
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "unauthorized"})
	}

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.ModelIdentifier == "" || req.ClientMessageID == "" || len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "model_identifier, client_message_id and messages are required"})
	}

	// Resolve config.
	configs, err := p.driver.ActiveModelConfigs(c.Context())
	if err != nil {
		p.logger.Error("loading model configs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	modelCfg, err := storage.FindActiveModel(configs, req.ModelIdentifier)
	if err != nil {
		p.metrics.RequestsTotal.WithLabelValues(outcomeModelNotAvailable).Inc()
		p.logResolveFailure(userID, &req, outcomeModelNotAvailable, startTime)
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "model not available"})
	}

	secret := p.secrets(modelCfg.SecretRef)
	if secret == "" {
		p.logger.Error("provider secret missing",
			zap.String("model", modelCfg.ModelIdentifier),
			zap.String("secret_ref", modelCfg.SecretRef),
		)
		p.metrics.RequestsTotal.WithLabelValues(outcomeSecretMissing).Inc()
		p.logResolveFailure(userID, &req, outcomeSecretMissing, startTime)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "service misconfigured"})
	}

	// Stream. From here on, exactly one usage log row is written whatever
	// the outcome.
	httpResp, err := p.openUpstreamStream(modelCfg, &req, secret)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		p.metrics.RequestsTotal.WithLabelValues(outcomeError).Inc()
		p.recordUsage(usageEntry(userID, &req, storage.StatusError, nil, startTime, "upstream_unreachable", err.Error()))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(respBody)),
		)
		p.metrics.RequestsTotal.WithLabelValues(outcomeError).Inc()
		p.recordUsage(usageEntry(userID, &req, storage.StatusError, nil, startTime, "upstream_status", string(respBody)))
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream returned an error"})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe + SetBodyStream gives direct backpressure: pw.Write blocks
	// until fasthttp flushes the chunk to the TCP socket, so the client
	// sees each provider chunk as it arrives instead of a buffered burst.
	pr, pw := io.Pipe()
	p.metrics.StreamsInFlight.Inc()
	go p.pumpStream(httpResp, pw, userID, &req, startTime)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// openUpstreamStream sends the streaming chat-completion request to the
// resolved provider, with the config's system prompt prepended.
func (p *Proxy) openUpstreamStream(modelCfg *storage.ModelConfig, req *llm.ChatRequest, secret string) (*http.Response, error) {
	messages := req.Messages
	if modelCfg.SystemPrompt != "" {
		messages = append([]llm.Message{llm.NewTextMessage(llm.RoleSystem, modelCfg.SystemPrompt)}, messages...)
	}

	payload, err := json.Marshal(llm.UpstreamRequest{
		Model:         modelCfg.ModelIdentifier,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &llm.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, err
	}

	upstreamURL := strings.TrimSuffix(modelCfg.BaseURL, "/") + "/chat/completions"

	// context.Background() rather than the fiber context: fasthttp recycles
	// its RequestCtx after the handler returns, but the pump goroutine
	// needs the upstream connection to stay open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+secret)

	return p.httpClient.Do(httpReq)
}

// pumpStream forwards the upstream SSE stream verbatim to the pipe writer
// while tracking the most recently seen usage object, then records the
// terminal usage log entry. Runs once per generation attempt.
func (p *Proxy) pumpStream(httpResp *http.Response, pw *io.PipeWriter, userID string, req *llm.ChatRequest, startTime time.Time) {
	defer p.metrics.StreamsInFlight.Dec()
	defer httpResp.Body.Close()
	defer pw.Close()

	var lastUsage *llm.Usage
	var sawDone bool

	tr := sse.NewTeeReader(httpResp.Body, pw)

	for {
		ev, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				// The client went away; the tee write failed. No partial
				// usage numbers are available on this path.
				p.logger.Debug("client disconnected mid-stream")
				p.metrics.RequestsTotal.WithLabelValues(outcomeCancelled).Inc()
				p.recordUsage(usageEntry(userID, req, storage.StatusCancelled, nil, startTime, "", ""))
				return
			}

			// Upstream read failure. Headers are already sent, so the only
			// signal left is abnormal stream termination.
			p.logger.Error("error reading upstream stream", zap.Error(err))
			pw.CloseWithError(err)
			p.metrics.RequestsTotal.WithLabelValues(outcomeError).Inc()
			p.recordUsage(usageEntry(userID, req, storage.StatusError, lastUsage, startTime, "stream_error", err.Error()))
			return
		}
		if ev == nil {
			break
		}

		p.metrics.ChunksForwarded.Inc()

		if ev.Data == sse.DoneSentinel {
			sawDone = true
			continue
		}
		if ev.Data == "" {
			continue
		}

		// Best-effort usage extraction; forwarding stays verbatim either way.
		if chunk, err := llm.ParseChunk([]byte(ev.Data)); err == nil && chunk.Usage != nil {
			lastUsage = chunk.Usage
		}
	}

	// Clean upstream completion. Guarantee the sentinel even if the
	// provider omitted it.
	if !sawDone {
		if _, err := io.WriteString(pw, "data: "+sse.DoneSentinel+"\n\n"); err != nil {
			p.metrics.RequestsTotal.WithLabelValues(outcomeCancelled).Inc()
			p.recordUsage(usageEntry(userID, req, storage.StatusCancelled, nil, startTime, "", ""))
			return
		}
	}

	p.metrics.RequestsTotal.WithLabelValues(outcomeSuccess).Inc()
	p.recordUsage(usageEntry(userID, req, storage.StatusSuccess, lastUsage, startTime, "", ""))
}

// logResolveFailure optionally records config-resolution failures. The
// source system skips these, leaving unknown-model and missing-secret
// failures invisible to audit; the knob restores visibility for operators
// who want it.
func (p *Proxy) logResolveFailure(userID string, req *llm.ChatRequest, code string, startTime time.Time) {
	if !p.config.LogResolveFailures {
		return
	}
	p.recordUsage(usageEntry(userID, req, storage.StatusError, nil, startTime, code, ""))
}

func (p *Proxy) recordUsage(entry *storage.UsageLogEntry) {
	p.workerPool.Enqueue(worker.Job{Entry: entry})
}

func usageEntry(userID string, req *llm.ChatRequest, status string, usage *llm.Usage, startTime time.Time, errCode, errMsg string) *storage.UsageLogEntry {
	entry := &storage.UsageLogEntry{
		UserID:          userID,
		ModelIdentifier: req.ModelIdentifier,
		ClientMessageID: req.ClientMessageID,
		Status:          status,
		ErrorCode:       errCode,
		ErrorMessage:    errMsg,
		LatencyMS:       time.Since(startTime).Milliseconds(),
	}

	if usage != nil {
		prompt, completion, total := usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens
		entry.PromptTokens = &prompt
		entry.CompletionTokens = &completion
		entry.TotalTokens = &total
	}

	return entry
}
