package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rotaworks/rotachat/pkg/logger"
)

// lastJSONLine parses the final non-empty line of buf as a JSON object.
func lastJSONLine(buf *bytes.Buffer) map[string]any {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var parsed map[string]any
	Expect(json.Unmarshal([]byte(lines[len(lines)-1]), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("New", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
	})

	It("defaults to a text handler at info level", func() {
		l := logger.New(logger.WithWriter(&buf))
		l.Info("relay started", "listen", ":8787")
		l.Debug("suppressed")

		out := buf.String()
		Expect(out).To(ContainSubstring("relay started"))
		Expect(out).To(ContainSubstring(":8787"))
		Expect(out).NotTo(ContainSubstring("suppressed"))
	})

	It("passes debug records through with WithDebug", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
		l.Debug("chunk forwarded")

		Expect(buf.String()).To(ContainSubstring("chunk forwarded"))
	})

	It("emits one JSON object per record with WithJSON", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.Info("usage recorded", "tokens", 49)

		parsed := lastJSONLine(&buf)
		Expect(parsed["msg"]).To(Equal("usage recorded"))
		Expect(parsed["tokens"]).To(BeNumerically("==", 49))
	})

	It("writes through the pretty handler with WithPretty", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
		l.Info("session restored")

		Expect(buf.String()).To(ContainSubstring("session restored"))
	})

	It("fans output out to every writer with WithWriters", func() {
		var second bytes.Buffer
		l := logger.New(logger.WithWriters(&buf, &second))
		l.Info("both")

		Expect(buf.String()).To(ContainSubstring("both"))
		Expect(second.String()).To(ContainSubstring("both"))
	})

	It("nests grouped attributes in JSON output", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.WithGroup("request").Info("handled", "method", "POST")

		parsed := lastJSONLine(&buf)
		group, ok := parsed["request"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(group["method"]).To(Equal("POST"))
	})

	It("carries With attributes onto child records", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.With("component", "registry").Info("models fetched")

		parsed := lastJSONLine(&buf)
		Expect(parsed["component"]).To(Equal("registry"))
	})
})

var _ = Describe("Multi", func() {
	It("delivers each record to every wrapped logger", func() {
		var pretty, jsonBuf bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&pretty), logger.WithPretty(true)),
			logger.New(logger.WithWriter(&jsonBuf), logger.WithJSON(true)),
		)

		l.Info("broadcast", "key", "val")

		Expect(pretty.String()).To(ContainSubstring("broadcast"))
		Expect(lastJSONLine(&jsonBuf)["msg"]).To(Equal("broadcast"))
	})

	It("respects each handler's level independently", func() {
		var info, debug bytes.Buffer
		l := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)

		l.Debug("verbose detail")

		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("verbose detail"))
	})

	It("propagates With through the fan-out", func() {
		var buf bytes.Buffer
		l := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
		l.With("component", "chat").Info("hello")

		Expect(lastJSONLine(&buf)["component"]).To(Equal("chat"))
	})
})

var _ = Describe("NewLoggerWithWriters", func() {
	It("writes service logs to the given writer", func() {
		var buf bytes.Buffer
		l := logger.NewLoggerWithWriters(false, &buf)
		l.Info("api server started")
		Expect(buf.String()).To(ContainSubstring("api server started"))
	})

	It("filters debug records unless enabled", func() {
		var quiet, chatty bytes.Buffer
		logger.NewLoggerWithWriters(false, &quiet).Debug("hidden")
		logger.NewLoggerWithWriters(true, &chatty).Debug("visible")

		Expect(quiet.String()).To(BeEmpty())
		Expect(chatty.String()).To(ContainSubstring("visible"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		h := logger.Nop().Handler()
		Expect(h.Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})

	It("absorbs all logging calls", func() {
		l := logger.Nop()
		Expect(func() {
			l.Debug("msg")
			l.Info("msg")
			l.Warn("msg")
			l.Error("msg")
			l.With("key", "value").WithGroup("group").Info("msg")
		}).NotTo(Panic())
	})
})
