package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/rotaworks/rotachat/pkg/auth"
	"github.com/rotaworks/rotachat/pkg/llm"
	"github.com/rotaworks/rotachat/pkg/storage"
	"github.com/rotaworks/rotachat/pkg/storage/inmemory"
	testutils "github.com/rotaworks/rotachat/pkg/utils/test"
)

const (
	testAnonKey = "anon-key"
	testToken   = "token-1"
	testUserID  = "user-1"
	testSecret  = "sk-test"
)

// newTestProxy creates a relay backed by an in-memory driver seeded with one
// active model config pointed at the given upstream URL.
func newTestProxy(upstreamURL string, mutate ...func(*Config)) (*Proxy, *inmemory.Driver) {
	driver := inmemory.NewDriver()
	Expect(driver.InsertModelConfig(context.Background(), storage.ModelConfig{
		ID:              "cfg-1",
		DisplayName:     "Test Model",
		ModelIdentifier: "test-model",
		BaseURL:         upstreamURL,
		SystemPrompt:    "You are a helpful assistant.",
		SecretRef:       "TEST_PROVIDER_KEY",
		IsActive:        true,
		Ordering:        1,
	})).To(Succeed())

	cfg := Config{
		ListenAddr: ":0",
		AnonKey:    testAnonKey,
		SecretLookup: func(ref string) string {
			if ref == "TEST_PROVIDER_KEY" {
				return testSecret
			}
			return ""
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	verifier := auth.NewStaticVerifier(map[string]string{testToken: testUserID})
	p, err := New(cfg, driver, verifier, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return p, driver
}

// chatRequest builds an authenticated POST /v1/chat request for the given
// model identifier with a single user message.
func chatRequest(model string) *http.Request {
	body, err := json.Marshal(llm.ChatRequest{
		ModelIdentifier: model,
		ClientMessageID: "11111111-1111-1111-1111-111111111111",
		Messages:        []llm.Message{llm.NewTextMessage(llm.RoleUser, "hello")},
	})
	Expect(err).NotTo(HaveOccurred())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", testAnonKey)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

// drainUsage shuts the relay down so the worker pool finishes all enqueued
// usage inserts, then returns the recorded rows newest first. Close is
// idempotent, so the AfterEach close that follows is a no-op.
func drainUsage(p *Proxy, driver *inmemory.Driver) []storage.UsageLogEntry {
	Expect(p.Close()).To(Succeed())
	rows, err := driver.RecentUsage(context.Background(), 10)
	Expect(err).NotTo(HaveOccurred())
	return rows
}

var _ = Describe("Relay", func() {
	var (
		p        *Proxy
		driver   *inmemory.Driver
		upstream *httptest.Server
	)

	AfterEach(func() {
		if p != nil {
			p.Close()
			p = nil
		}
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Describe("ping", func() {
		It("responds ok without authentication", func() {
			p, driver = newTestProxy("http://localhost:0")

			resp, err := p.App().Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("CORS", func() {
		It("answers OPTIONS preflights with 200 and the allow headers", func() {
			p, driver = newTestProxy("http://localhost:0")

			resp, err := p.App().Test(httptest.NewRequest(http.MethodOptions, "/v1/chat", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(ContainSubstring("apikey"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(BeEmpty())
		})
	})

	Describe("GET /v1/models", func() {
		It("serves active configs by ordering without server-side fields", func() {
			p, driver = newTestProxy("http://localhost:0")
			Expect(driver.InsertModelConfig(context.Background(), storage.ModelConfig{
				ID:              "cfg-0",
				DisplayName:     "First Model",
				ModelIdentifier: "first-model",
				BaseURL:         "http://localhost:0",
				SecretRef:       "OTHER_KEY",
				IsActive:        true,
				Ordering:        0,
			})).To(Succeed())
			Expect(driver.InsertModelConfig(context.Background(), storage.ModelConfig{
				ID:              "cfg-2",
				DisplayName:     "Retired Model",
				ModelIdentifier: "retired-model",
				IsActive:        false,
				Ordering:        2,
			})).To(Succeed())

			resp, err := p.App().Test(httptest.NewRequest(http.MethodGet, "/v1/models", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			var options []llm.ModelOption
			Expect(json.Unmarshal(raw, &options)).To(Succeed())
			Expect(options).To(HaveLen(2))
			Expect(options[0].ModelIdentifier).To(Equal("first-model"))
			Expect(options[1].ModelIdentifier).To(Equal("test-model"))

			Expect(string(raw)).NotTo(ContainSubstring("secret"))
			Expect(string(raw)).NotTo(ContainSubstring("system"))
		})
	})

	Describe("POST /v1/chat authentication", func() {
		BeforeEach(func() {
			p, driver = newTestProxy("http://localhost:0")
		})

		It("rejects a missing anon key", func() {
			req := chatRequest("test-model")
			req.Header.Del("apikey")

			resp, err := p.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects an unknown bearer token", func() {
			req := chatRequest("test-model")
			req.Header.Set("Authorization", "Bearer nope")

			resp, err := p.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("POST /v1/chat validation", func() {
		BeforeEach(func() {
			p, driver = newTestProxy("http://localhost:0")
		})

		It("rejects a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{"))
			req.Header.Set("apikey", testAnonKey)
			req.Header.Set("Authorization", "Bearer "+testToken)

			resp, err := p.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a body without messages", func() {
			body, err := json.Marshal(llm.ChatRequest{
				ModelIdentifier: "test-model",
				ClientMessageID: "22222222-2222-2222-2222-222222222222",
			})
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
			req.Header.Set("apikey", testAnonKey)
			req.Header.Set("Authorization", "Bearer "+testToken)

			resp, err := p.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for a model with no active config", func() {
			resp, err := p.App().Test(chatRequest("unknown-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns 500 when the secret reference resolves to nothing", func() {
			secretless, _ := newTestProxy("http://localhost:0", func(c *Config) {
				c.SecretLookup = func(string) string { return "" }
			})
			defer secretless.Close()

			resp, err := secretless.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("writes no usage rows for resolve failures by default", func() {
			resp, err := p.App().Test(chatRequest("unknown-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			rows := drainUsage(p, driver)
			Expect(rows).To(BeEmpty())
		})

		It("writes usage rows for resolve failures when enabled", func() {
			audited, auditedDriver := newTestProxy("http://localhost:0", func(c *Config) {
				c.LogResolveFailures = true
			})

			resp, err := audited.App().Test(chatRequest("unknown-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			rows := drainUsage(audited, auditedDriver)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal(storage.StatusError))
			Expect(rows[0].ErrorCode).To(Equal("model_not_available"))
			Expect(rows[0].PromptTokens).To(BeNil())
		})
	})

	Describe("POST /v1/chat streaming", func() {
		It("forwards the upstream events verbatim", func() {
			events := []string{
				testutils.ChunkEvent("Hello"),
				testutils.ChunkEvent(" world"),
				testutils.UsageEvent(12, 7),
				testutils.DoneEvent(),
			}
			upstream = testutils.NewScriptedUpstream(events)
			p, driver = newTestProxy(upstream.URL)

			resp, err := p.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(strings.Join(events, "")))
		})

		It("appends the terminal sentinel when the provider omits it", func() {
			upstream = testutils.NewScriptedUpstream([]string{
				testutils.ChunkEvent("partial"),
			})
			p, driver = newTestProxy(upstream.URL)

			resp, err := p.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(HaveSuffix("data: [DONE]\n\n"))
		})

		It("prepends the config's system prompt to the upstream request", func() {
			var captured [][]byte
			upstream = testutils.NewScriptedUpstream(
				[]string{testutils.DoneEvent()},
				testutils.WithRequestCapture(&captured),
			)
			p, driver = newTestProxy(upstream.URL)

			resp, err := p.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			Expect(captured).To(HaveLen(1))

			var sent llm.UpstreamRequest
			Expect(json.Unmarshal(captured[0], &sent)).To(Succeed())
			Expect(sent.Model).To(Equal("test-model"))
			Expect(sent.Stream).To(BeTrue())
			Expect(sent.StreamOptions).NotTo(BeNil())
			Expect(sent.StreamOptions.IncludeUsage).To(BeTrue())
			Expect(sent.Messages).To(HaveLen(2))
			Expect(sent.Messages[0].Role).To(Equal(llm.RoleSystem))
			Expect(sent.Messages[0].GetText()).To(Equal("You are a helpful assistant."))
			Expect(sent.Messages[1].Role).To(Equal(llm.RoleUser))
		})

		It("records a success usage row with the provider's token counts", func() {
			upstream = testutils.NewScriptedUpstream([]string{
				testutils.ChunkEvent("hi"),
				testutils.UsageEvent(40, 9),
				testutils.DoneEvent(),
			})
			p, driver = newTestProxy(upstream.URL)

			resp, err := p.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			rows := drainUsage(p, driver)
			Expect(rows).To(HaveLen(1))

			row := rows[0]
			Expect(row.UserID).To(Equal(testUserID))
			Expect(row.ModelIdentifier).To(Equal("test-model"))
			Expect(row.ClientMessageID).To(Equal("11111111-1111-1111-1111-111111111111"))
			Expect(row.Status).To(Equal(storage.StatusSuccess))
			Expect(row.PromptTokens).To(HaveValue(Equal(40)))
			Expect(row.CompletionTokens).To(HaveValue(Equal(9)))
			Expect(row.TotalTokens).To(HaveValue(Equal(49)))
		})

		It("records a success row without token pointers when usage is absent", func() {
			upstream = testutils.NewScriptedUpstream([]string{
				testutils.ChunkEvent("hi"),
				testutils.DoneEvent(),
			})
			p, driver = newTestProxy(upstream.URL)

			resp, err := p.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			rows := drainUsage(p, driver)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal(storage.StatusSuccess))
			Expect(rows[0].PromptTokens).To(BeNil())
			Expect(rows[0].TotalTokens).To(BeNil())
		})

		It("returns 502 and records an error row when the upstream rejects the request", func() {
			upstream = testutils.NewScriptedUpstream(nil, testutils.WithStatus(http.StatusTooManyRequests))
			p, driver = newTestProxy(upstream.URL)

			resp, err := p.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			rows := drainUsage(p, driver)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal(storage.StatusError))
			Expect(rows[0].ErrorCode).To(Equal("upstream_status"))
		})

		It("returns 502 and records an error row when the upstream is unreachable", func() {
			p, driver = newTestProxy("http://127.0.0.1:1")

			resp, err := p.App().Test(chatRequest("test-model"), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

			rows := drainUsage(p, driver)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal(storage.StatusError))
			Expect(rows[0].ErrorCode).To(Equal("upstream_unreachable"))
		})
	})

	Describe("pumpStream", func() {
		// The pump is exercised directly here: app.Test always drains the
		// whole response, so client-abort paths need a pipe we can close.
		var req llm.ChatRequest

		BeforeEach(func() {
			p, driver = newTestProxy("http://localhost:0")
			req = llm.ChatRequest{
				ModelIdentifier: "test-model",
				ClientMessageID: "33333333-3333-3333-3333-333333333333",
				Messages:        []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			}
		})

		It("records a cancelled row when the client side of the pipe closes", func() {
			upstreamBody := io.NopCloser(strings.NewReader(
				testutils.ChunkEvent("never") + testutils.DoneEvent(),
			))
			httpResp := &http.Response{StatusCode: http.StatusOK, Body: upstreamBody}

			pr, pw := io.Pipe()
			pr.Close()

			p.metrics.StreamsInFlight.Inc()
			p.pumpStream(httpResp, pw, testUserID, &req, time.Now())

			rows := drainUsage(p, driver)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal(storage.StatusCancelled))
			Expect(rows[0].PromptTokens).To(BeNil())
		})

		It("records an error row when the upstream read fails mid-stream", func() {
			upstreamBody := io.NopCloser(io.MultiReader(
				strings.NewReader(testutils.ChunkEvent("part")),
				failingReader{},
			))
			httpResp := &http.Response{StatusCode: http.StatusOK, Body: upstreamBody}

			pr, pw := io.Pipe()
			go io.Copy(io.Discard, pr)

			p.metrics.StreamsInFlight.Inc()
			p.pumpStream(httpResp, pw, testUserID, &req, time.Now())

			rows := drainUsage(p, driver)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal(storage.StatusError))
			Expect(rows[0].ErrorCode).To(Equal("stream_error"))
		})
	})
})

// failingReader always fails, standing in for a dropped upstream connection.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
