//go:build !integration

package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CommandResult", func() {
	It("does not expose its internals to mutation", func() {
		data := map[string]string{"applicationId": "app-1"}
		result := NewSuccessResult("done", data, []string{"store it"}, nil)
		data["applicationId"] = "changed"

		got := result.Data()
		Expect(got["applicationId"]).To(Equal("app-1"))
		got["applicationId"] = "changed again"
		Expect(result.Data()["applicationId"]).To(Equal("app-1"))

		next := result.NextSteps()
		next[0] = "mutated"
		Expect(result.NextSteps()).To(Equal([]string{"store it"}))
	})

	It("serialises the external result shape", func() {
		detail := &ErrorDetail{Stage: StageValidation, Kind: string(ValidationUnknownPermission), Reason: "nope"}
		result := NewFailureResult("failed", detail, nil, nil, []StepResult{{
			StepID: StepIDApplication, Kind: StepCreateApplication, Succeeded: true, Duration: 1500 * time.Millisecond,
		}}).WithRun("run-1", time.Second)

		raw, err := json.Marshal(result)
		Expect(err).ToNot(HaveOccurred())

		var decoded map[string]interface{}
		Expect(json.Unmarshal(raw, &decoded)).To(Succeed())
		Expect(decoded["success"]).To(BeFalse())
		Expect(decoded["message"]).To(Equal("failed"))
		Expect(decoded["data"]).To(Equal(map[string]interface{}{}))
		Expect(decoded["nextSteps"]).To(Equal([]interface{}{}))
		Expect(decoded["runId"]).To(Equal("run-1"))
		Expect(decoded["error"]).To(HaveKeyWithValue("kind", "UnknownPermission"))
		steps := decoded["steps"].([]interface{})
		Expect(steps[0]).To(HaveKeyWithValue("durationMs", float64(1500)))
	})

	It("keeps the original when stamped with a run", func() {
		result := NewSuccessResult("done", nil, nil, nil)
		stamped := result.WithRun("r", time.Second)
		Expect(result.RunID()).To(BeEmpty())
		Expect(stamped.RunID()).To(Equal("r"))
		Expect(stamped.Duration()).To(Equal(time.Second))
	})
})

var _ = Describe("ErrorDetailFromError", func() {
	DescribeTable("classification",
		func(stage Stage, err error, kind string) {
			Expect(ErrorDetailFromError(stage, err).Kind).To(Equal(kind))
		},
		Entry("empty command", StageExtraction, ErrEmptyCommand, "MalformedResponse"),
		Entry("extraction", StageExtraction, NewUpstreamUnavailableError("timeout", errors.New("x")), "UpstreamUnavailable"),
		Entry("wrapped validation", StageValidation, fmt.Errorf("ctx: %w", &ValidationError{Kind: ValidationInvalidName}), "InvalidName"),
		Entry("directory", StageDirectory, &DirectoryStepError{Kind: DirectoryRemoteRejected, Step: StepCreateApplication}, "RemoteRejected"),
		Entry("plan", StagePlanning, fmt.Errorf("%w: bad", ErrInvalidPlan), "InvalidPlan"),
		Entry("other", StageDirectory, errors.New("boom"), "Internal"),
	)

	It("carries the failing step", func() {
		detail := ErrorDetailFromError(StageDirectory, &DirectoryStepError{
			Kind: DirectoryRequiresAdminConsent, Step: StepAssignPermissions, Reason: "Insufficient privileges",
		})
		Expect(detail.Step).To(Equal(StepAssignPermissions))
		Expect(detail.Reason).To(Equal("Insufficient privileges"))
	})
})

var _ = Describe("Ledger", func() {
	It("resolves captured references", func() {
		ledger := NewLedger()
		ledger.Capture(StepIDApplication, OutputApplicationID, "app-1")
		ledger.Capture(StepIDApplication, OutputObjectID, "obj-1")

		v, err := ledger.Resolve(Ref{Step: StepIDApplication, Output: OutputObjectID})
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal("obj-1"))
		Expect(ledger.Data()).To(Equal(map[string]string{"applicationId": "app-1", "objectId": "obj-1"}))

		_, err = ledger.Resolve(Ref{Step: StepIDServicePrincipal, Output: OutputServicePrincipalID})
		Expect(err).To(MatchError(ContainSubstring("unresolved reference")))
	})
})
