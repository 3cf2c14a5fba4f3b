package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reveriehq/engram/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("stamps new events with schema version, ID and time", func() {
		event := eventstream.NewEvent(eventstream.EventTypeMemoryWritten, "u1|elena")
		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.EmittedAt).NotTo(BeZero())
		Expect(event.OwnerKey).To(Equal("u1|elena"))
	})

	It("gives every event a distinct ID", func() {
		a := eventstream.NewEvent(eventstream.EventTypeMemoryWritten, "u1|elena")
		b := eventstream.NewEvent(eventstream.EventTypeMemoryWritten, "u1|elena")
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("omits unset optional fields from the wire form", func() {
		event := eventstream.NewEvent(eventstream.EventTypeMemoryWritten, "u1|elena")
		event.RecordID = "01REC000000000000000000001"

		data, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKey("record_id"))
		Expect(decoded).NotTo(HaveKey("superseded_id"))
		Expect(decoded).NotTo(HaveKey("from_tier"))
		Expect(decoded).NotTo(HaveKey("window_start"))
	})
})
