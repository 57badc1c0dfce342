package history_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rotaworks/rotachat/pkg/chat"
	"github.com/rotaworks/rotachat/pkg/history"
	"github.com/rotaworks/rotachat/pkg/llm"
)

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *history.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = history.Open(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		store.Close()
	})

	newMessage := func(role, content string, at time.Time) chat.Message {
		m := chat.NewUserMessage(content, nil)
		m.Role = role
		m.CreatedAt = at
		return m
	}

	It("round-trips a message", func() {
		base := time.Now().UTC().Truncate(time.Second)
		msg := newMessage(llm.RoleUser, "hello", base)
		Expect(store.Append(ctx, "model-a", msg)).To(Succeed())

		loaded, err := store.Load(ctx, "model-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].ID).To(Equal(msg.ID))
		Expect(loaded[0].Content).To(Equal("hello"))
		Expect(loaded[0].State).To(Equal(chat.StateNormal))
	})

	It("loads messages in creation order", func() {
		base := time.Now().UTC().Truncate(time.Second)
		Expect(store.Append(ctx, "model-a", newMessage(llm.RoleUser, "first", base))).To(Succeed())
		Expect(store.Append(ctx, "model-a", newMessage(llm.RoleAssistant, "second", base.Add(time.Second)))).To(Succeed())
		Expect(store.Append(ctx, "model-a", newMessage(llm.RoleUser, "third", base.Add(2*time.Second)))).To(Succeed())

		loaded, err := store.Load(ctx, "model-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(3))
		Expect(loaded[0].Content).To(Equal("first"))
		Expect(loaded[1].Content).To(Equal("second"))
		Expect(loaded[2].Content).To(Equal("third"))
	})

	It("keeps conversations separate per model", func() {
		base := time.Now().UTC()
		Expect(store.Append(ctx, "model-a", newMessage(llm.RoleUser, "for a", base))).To(Succeed())
		Expect(store.Append(ctx, "model-b", newMessage(llm.RoleUser, "for b", base))).To(Succeed())

		loaded, err := store.Load(ctx, "model-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].Content).To(Equal("for a"))
	})

	It("round-trips attachments", func() {
		msg := chat.NewUserMessage("look", []llm.Attachment{
			{Type: llm.AttachmentImage, URL: "https://example.com/a.png", ContentType: "image/png"},
		})
		Expect(store.Append(ctx, "model-a", msg)).To(Succeed())

		loaded, err := store.Load(ctx, "model-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded[0].Attachments).To(HaveLen(1))
		Expect(loaded[0].Attachments[0].URL).To(Equal("https://example.com/a.png"))
	})

	It("persists terminal states and fail reasons", func() {
		msg := newMessage(llm.RoleAssistant, "", time.Now().UTC())
		msg.State = chat.StateFailed
		msg.FailReason = chat.EmptyOutputReason
		Expect(store.Append(ctx, "model-a", msg)).To(Succeed())

		loaded, err := store.Load(ctx, "model-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded[0].State).To(Equal(chat.StateFailed))
		Expect(loaded[0].FailReason).To(Equal(chat.EmptyOutputReason))
	})

	It("removes a message by ID within a model", func() {
		base := time.Now().UTC()
		keep := newMessage(llm.RoleUser, "keep", base)
		drop := newMessage(llm.RoleUser, "drop", base.Add(time.Second))
		Expect(store.Append(ctx, "model-a", keep)).To(Succeed())
		Expect(store.Append(ctx, "model-a", drop)).To(Succeed())

		Expect(store.Remove(ctx, "model-a", drop.ID)).To(Succeed())

		loaded, err := store.Load(ctx, "model-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].ID).To(Equal(keep.ID))
	})

	It("clears one model's conversation", func() {
		base := time.Now().UTC()
		Expect(store.Append(ctx, "model-a", newMessage(llm.RoleUser, "a", base))).To(Succeed())
		Expect(store.Append(ctx, "model-b", newMessage(llm.RoleUser, "b", base))).To(Succeed())

		Expect(store.Clear(ctx, "model-a")).To(Succeed())

		loaded, err := store.Load(ctx, "model-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeEmpty())

		loaded, err = store.Load(ctx, "model-b")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
	})

	It("clears everything across models", func() {
		base := time.Now().UTC()
		Expect(store.Append(ctx, "model-a", newMessage(llm.RoleUser, "a", base))).To(Succeed())
		Expect(store.Append(ctx, "model-b", newMessage(llm.RoleUser, "b", base))).To(Succeed())

		Expect(store.ClearAll(ctx)).To(Succeed())

		for _, model := range []string{"model-a", "model-b"} {
			loaded, err := store.Load(ctx, model)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())
		}
	})
})
