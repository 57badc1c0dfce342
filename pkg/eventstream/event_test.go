package eventstream_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rotaworks/rotachat/pkg/eventstream"
	"github.com/rotaworks/rotachat/pkg/eventstream/nop"
	"github.com/rotaworks/rotachat/pkg/storage"
)

var _ = Describe("NewUsageRecordedEvent", func() {
	It("copies the usage log entry into a v1 event", func() {
		tokens := 15
		entry := &storage.UsageLogEntry{
			UserID:          "user-1",
			ModelIdentifier: "gpt-test",
			ClientMessageID: "msg-1",
			Status:          storage.StatusSuccess,
			TotalTokens:     &tokens,
			LatencyMS:       230,
		}

		ev := eventstream.NewUsageRecordedEvent("evt-1", entry)

		Expect(ev.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(ev.EventType).To(Equal(eventstream.EventTypeUsageRecorded))
		Expect(ev.EventID).To(Equal("evt-1"))
		Expect(ev.UserID).To(Equal("user-1"))
		Expect(ev.Status).To(Equal(storage.StatusSuccess))
		Expect(*ev.TotalTokens).To(Equal(15))
		Expect(ev.EmittedAt).To(BeTemporally("~", time.Now(), time.Minute))
	})

	It("marshals with omitted token counts when absent", func() {
		entry := &storage.UsageLogEntry{
			UserID: "user-1",
			Status: storage.StatusError,
		}

		raw, err := json.Marshal(eventstream.NewUsageRecordedEvent("evt-2", entry))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).NotTo(ContainSubstring("total_tokens"))
		Expect(string(raw)).To(ContainSubstring(`"event_type":"rotachat.usage.recorded"`))
	})
})

var _ = Describe("nop Publisher", func() {
	It("accepts events without error", func() {
		p := nop.NewPublisher()
		defer p.Close()

		err := p.PublishUsage(context.Background(), eventstream.NewUsageRecordedEvent("evt", &storage.UsageLogEntry{}))
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a nil event", func() {
		p := nop.NewPublisher()
		defer p.Close()

		err := p.PublishUsage(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilUsageEvent))
	})
})
