//go:build !integration

package usecases

import (
	"context"
	"errors"
	"time"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Extractor", func() {
	var (
		interpreter *fakeInterpreter
		extractor   *Extractor
	)

	BeforeEach(func() {
		interpreter = &fakeInterpreter{}
		extractor = NewExtractor(interpreter, domain.NewDefaultPermissionCatalog(""),
			PromptSettings{Temperature: 0, MaxTokens: 800}, time.Second, discardLogger())
	})

	It("extracts a create intent", func() {
		interpreter.reply = `{"action":"create_app_registration","appName":"HR Portal","description":"Portal","permissions":["User.Read.All","Mail.Send"]}`

		intent, err := extractor.Extract(context.Background(), "Create an app called HR Portal")

		Expect(err).ToNot(HaveOccurred())
		Expect(intent.Kind).To(Equal(domain.OperationCreateAppRegistration))
		Expect(intent.Name).To(Equal("HR Portal"))
		Expect(intent.RequestedPermissions).To(Equal([]domain.PermissionName{"User.Read.All", "Mail.Send"}))
		Expect(interpreter.calls).To(Equal(1))
		Expect(interpreter.prompt.MaxTokens).To(Equal(800))
		Expect(interpreter.prompt.SystemPrompt).To(ContainSubstring("Sites.Read.All"))
	})

	It("rejects empty commands without calling the model", func() {
		_, err := extractor.Extract(context.Background(), "   ")
		Expect(err).To(MatchError(domain.ErrEmptyCommand))
		Expect(interpreter.calls).To(BeZero())
	})

	It("reports transport failures as upstream unavailable", func() {
		interpreter.err = errors.New("connection refused")
		_, err := extractor.Extract(context.Background(), "create something")

		var ee *domain.ExtractionError
		Expect(errors.As(err, &ee)).To(BeTrue())
		Expect(ee.Kind).To(Equal(domain.ExtractionUpstreamUnavailable))
	})

	It("reports an empty reply as upstream unavailable", func() {
		interpreter.reply = "  "
		_, err := extractor.Extract(context.Background(), "create something")

		var ee *domain.ExtractionError
		Expect(errors.As(err, &ee)).To(BeTrue())
		Expect(ee.Kind).To(Equal(domain.ExtractionUpstreamUnavailable))
	})

	It("times out a slow model", func() {
		interpreter.block = true
		extractor = NewExtractor(interpreter, domain.NewDefaultPermissionCatalog(""),
			PromptSettings{}, 20*time.Millisecond, discardLogger())

		_, err := extractor.Extract(context.Background(), "create something")

		var ee *domain.ExtractionError
		Expect(errors.As(err, &ee)).To(BeTrue())
		Expect(ee.Kind).To(Equal(domain.ExtractionUpstreamUnavailable))
		Expect(ee.Reason).To(ContainSubstring("in time"))
	})

	It("makes no retries on malformed replies", func() {
		interpreter.reply = "sorry, I cannot help"
		_, err := extractor.Extract(context.Background(), "create something")

		var ee *domain.ExtractionError
		Expect(errors.As(err, &ee)).To(BeTrue())
		Expect(ee.Kind).To(Equal(domain.ExtractionMalformedResponse))
		Expect(interpreter.calls).To(Equal(1))
	})
})

var _ = Describe("ParseIntentReply", func() {
	It("strips code fences and surrounding prose", func() {
		intent, err := ParseIntentReply("Here you go:\n```json\n{\"action\": \"create_app_registration\", \"appName\": \"X\", \"permissions\": [\"User.Read\"]}\n```")
		Expect(err).ToNot(HaveOccurred())
		Expect(intent.Name).To(Equal("X"))
	})

	It("accepts a comma separated permission string", func() {
		intent, err := ParseIntentReply(`{"action":"create_app_registration","appName":"X","permissions":"User.Read, Mail.Send"}`)
		Expect(err).ToNot(HaveOccurred())
		Expect(intent.RequestedPermissions).To(Equal([]domain.PermissionName{"User.Read", "Mail.Send"}))
	})

	It("maps update and delete actions to unknown", func() {
		intent, err := ParseIntentReply(`{"action":"delete_app_registration","appName":"X","permissions":["User.Read"]}`)
		Expect(err).ToNot(HaveOccurred())
		Expect(intent).To(Equal(domain.CommandIntent{Kind: domain.OperationUnknown, RawAction: "delete_app_registration"}))
	})

	It("maps an unknown action to unknown", func() {
		intent, err := ParseIntentReply(`{"action":"unknown"}`)
		Expect(err).ToNot(HaveOccurred())
		Expect(intent.Kind).To(Equal(domain.OperationUnknown))
	})

	DescribeTable("malformed replies",
		func(reply string) {
			_, err := ParseIntentReply(reply)
			var ee *domain.ExtractionError
			Expect(errors.As(err, &ee)).To(BeTrue())
			Expect(ee.Kind).To(Equal(domain.ExtractionMalformedResponse))
		},
		Entry("no object", "no json here"),
		Entry("broken json", `{"action": "create_app_registration",`),
		Entry("missing action", `{"appName":"X"}`),
		Entry("blank action", `{"action":" "}`),
		Entry("wrong field type", `{"action":"create_app_registration","appName":42}`),
		Entry("permissions object", `{"action":"create_app_registration","permissions":{"a":1}}`),
		Entry("permissions of numbers", `{"action":"create_app_registration","permissions":[1,2]}`),
	)
})
