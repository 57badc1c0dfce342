package chat_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rotaworks/rotachat/pkg/chat"
	"github.com/rotaworks/rotachat/pkg/llm"
)

func userMsg(text string) chat.Message {
	return chat.NewUserMessage(text, nil)
}

func assistantMsg(text string, state chat.MessageState) chat.Message {
	m := chat.NewUserMessage(text, nil)
	m.Role = llm.RoleAssistant
	m.State = state
	return m
}

var _ = Describe("ContextBuilder", func() {
	Describe("Build", func() {
		It("includes the full history when under the window", func() {
			history := []chat.Message{
				userMsg("one"),
				assistantMsg("reply one", chat.StateNormal),
			}
			latest := userMsg("two")

			req := chat.ContextBuilder{}.Build(history, latest, "gpt-test")

			Expect(req.ModelIdentifier).To(Equal("gpt-test"))
			Expect(req.Messages).To(HaveLen(3))
			Expect(req.Messages[0].GetText()).To(Equal("one"))
			Expect(req.Messages[2].GetText()).To(Equal("two"))
		})

		It("bounds the payload to the configured number of user turns", func() {
			var history []chat.Message
			for i := 1; i <= 10; i++ {
				history = append(history, userMsg(fmt.Sprintf("q%d", i)))
				history = append(history, assistantMsg(fmt.Sprintf("a%d", i), chat.StateNormal))
			}
			latest := userMsg("q11")

			req := chat.ContextBuilder{}.Build(history, latest, "gpt-test")

			users := 0
			for _, m := range req.Messages {
				if m.Role == llm.RoleUser {
					users++
				}
			}
			Expect(users).To(Equal(chat.DefaultWindow))
			// The oldest surviving user turn is q6: latest plus five before it.
			Expect(req.Messages[0].GetText()).To(Equal("q6"))
		})

		It("honors a custom window", func() {
			history := []chat.Message{
				userMsg("q1"), assistantMsg("a1", chat.StateNormal),
				userMsg("q2"), assistantMsg("a2", chat.StateNormal),
			}
			latest := userMsg("q3")

			req := chat.ContextBuilder{Window: 2}.Build(history, latest, "gpt-test")

			Expect(req.Messages[0].GetText()).To(Equal("q2"))
			Expect(req.Messages).To(HaveLen(3))
		})

		It("includes the latest turn exactly once when it is already in history", func() {
			latest := userMsg("already appended")
			history := []chat.Message{
				userMsg("earlier"),
				assistantMsg("reply", chat.StateNormal),
				latest,
			}

			req := chat.ContextBuilder{}.Build(history, latest, "gpt-test")

			count := 0
			for _, m := range req.Messages {
				if m.GetText() == "already appended" {
					count++
				}
			}
			Expect(count).To(Equal(1))
		})

		It("excludes failed, stopped, and streaming messages", func() {
			history := []chat.Message{
				userMsg("q1"),
				assistantMsg("broken", chat.StateFailed),
				assistantMsg("halted", chat.StateStopped),
				assistantMsg("inflight", chat.StateStreaming),
				assistantMsg("fine", chat.StateNormal),
			}
			latest := userMsg("q2")

			req := chat.ContextBuilder{}.Build(history, latest, "gpt-test")

			texts := make([]string, 0, len(req.Messages))
			for _, m := range req.Messages {
				texts = append(texts, m.GetText())
			}
			Expect(texts).To(Equal([]string{"q1", "fine", "q2"}))
		})

		It("stamps the client message ID from the latest turn", func() {
			latest := userMsg("hello")
			req := chat.ContextBuilder{}.Build(nil, latest, "gpt-test")
			Expect(req.ClientMessageID).To(Equal(latest.ID))
		})

		It("renders attachments as image parts and surfaces them on the request", func() {
			att := llm.Attachment{
				Type:        llm.AttachmentImage,
				URL:         "https://example.com/pic.png",
				ContentType: "image/png",
			}
			latest := chat.NewUserMessage("look", []llm.Attachment{att})

			req := chat.ContextBuilder{}.Build(nil, latest, "gpt-test")

			Expect(req.Attachments).To(Equal([]llm.Attachment{att}))
			last := req.Messages[len(req.Messages)-1]
			Expect(last.Content).To(HaveLen(2))
			Expect(last.Content[0].Type).To(Equal(llm.PartText))
			Expect(last.Content[1].Type).To(Equal(llm.PartImageURL))
			Expect(last.Content[1].ImageURL.URL).To(Equal("https://example.com/pic.png"))
		})

		It("omits the text part for an attachment-only message", func() {
			att := llm.Attachment{Type: llm.AttachmentImage, URL: "https://example.com/pic.png"}
			latest := chat.NewUserMessage("", []llm.Attachment{att})

			req := chat.ContextBuilder{}.Build(nil, latest, "gpt-test")

			last := req.Messages[len(req.Messages)-1]
			Expect(last.Content).To(HaveLen(1))
			Expect(last.Content[0].Type).To(Equal(llm.PartImageURL))
		})
	})
})
