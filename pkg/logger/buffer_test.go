//go:build !integration

package logger

import (
	"bytes"
	"log/slog"

	"github.com/entra-mcp/entra-mcp/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RingBuffer", func() {
	It("keeps the most recent lines once full", func() {
		buffer := NewRingBuffer(3)
		for _, line := range []string{"a", "b", "c", "d", "e"} {
			buffer.Append(line)
		}

		Expect(buffer.Size()).To(Equal(3))
		Expect(buffer.Capacity()).To(Equal(3))
		Expect(buffer.GetLast(0)).To(Equal([]string{"c", "d", "e"}))
		Expect(buffer.GetLast(2)).To(Equal([]string{"d", "e"}))
	})

	It("filters lines by substring", func() {
		buffer := NewRingBuffer(5)
		for _, line := range []string{"run_id=a one", "run_id=b two", "run_id=a three", "run_id=a four"} {
			buffer.Append(line)
		}

		Expect(buffer.GetMatching(0, "run_id=a")).To(Equal([]string{"run_id=a one", "run_id=a three", "run_id=a four"}))
		Expect(buffer.GetMatching(2, "run_id=a")).To(Equal([]string{"run_id=a three", "run_id=a four"}))
		Expect(buffer.GetMatching(0, "run_id=c")).To(BeEmpty())
	})

	It("returns an empty slice when nothing was logged", func() {
		Expect(NewRingBuffer(2).GetLast(5)).To(BeEmpty())
	})

	It("falls back to the default capacity", func() {
		Expect(NewRingBuffer(0).Capacity()).To(Equal(1000))
	})
})

var _ = Describe("newLogger", func() {
	It("tees records into the ring buffer", func() {
		cfg := config.DefaultConfig()
		cfg.LogFormat = "text"
		buffer := NewRingBuffer(10)
		var out bytes.Buffer

		log := newLogger(&out, cfg, buffer).With("run_id", "r-1")
		log.Info("Command processed", "success", true)
		log.Debug("hidden at info level")

		Expect(out.String()).To(ContainSubstring("Command processed"))
		lines := buffer.GetLast(0)
		Expect(lines).To(HaveLen(1))
		Expect(lines[0]).To(ContainSubstring("INFO Command processed"))
		Expect(lines[0]).To(ContainSubstring("success=true"))
		Expect(lines[0]).To(ContainSubstring("run_id=r-1"))
	})

	It("qualifies grouped attributes", func() {
		buffer := NewRingBuffer(10)
		var out bytes.Buffer

		log := newLogger(&out, config.DefaultConfig(), buffer).WithGroup("audit").With("action", "create")
		log.Info("event", slog.Group("tenant", slog.String("id", "contoso")))

		line := buffer.GetLast(1)[0]
		Expect(line).To(ContainSubstring("audit.action=create"))
		Expect(line).To(ContainSubstring("audit.tenant.id=contoso"))
	})
})
