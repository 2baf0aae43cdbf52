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

func validatedPlan(perms ...string) domain.Plan {
	validator := domain.NewIntentValidator(domain.NewDefaultPermissionCatalog(""), domain.ValidationRules{RequirePermissions: true})
	validated, err := validator.Validate(domain.NewCommandIntent(domain.OperationCreateAppRegistration,
		"create_app_registration", "HR Portal", "Portal for HR", perms, ""))
	Expect(err).ToNot(HaveOccurred())
	return domain.NewPlanner(domain.PlannerConfig{}).Plan(validated)
}

var _ = Describe("Orchestrator", func() {
	var (
		directory    *fakeDirectory
		orchestrator *Orchestrator
		ctx          context.Context
	)

	BeforeEach(func() {
		directory = newFakeDirectory()
		orchestrator = NewOrchestrator(directory, nil, time.Second, discardLogger())
		ctx = context.Background()
	})

	It("executes all four steps and reports every identifier", func() {
		result := orchestrator.Run(ctx, validatedPlan("User.Read.All", "Mail.Send"))

		Expect(result.Success()).To(BeTrue())
		Expect(result.Message()).To(ContainSubstring("HR Portal"))
		Expect(directory.calls).To(Equal([]domain.StepKind{
			domain.StepCreateApplication,
			domain.StepCreateServicePrincipal,
			domain.StepAssignPermissions,
			domain.StepCreateSecret,
		}))
		Expect(result.Data()).To(Equal(map[string]string{
			"applicationId":      "app-client-id",
			"objectId":           "app-object-id",
			"servicePrincipalId": "sp-id",
			"clientSecret":       "s3cr3t-value-1234",
		}))
		Expect(result.NextSteps()).To(Equal([]string{adviceStoreSecret, adviceAdminConsent}))
		Expect(directory.spAppIDs).To(Equal([]string{"app-client-id"}))
		Expect(directory.assignments[0].ServicePrincipalID).To(Equal("sp-id"))
		Expect(directory.assignments[0].ApplicationObjectID).To(Equal("app-object-id"))
		Expect(directory.assignments[0].Permissions).To(HaveLen(2))
		Expect(directory.secretSpecs[0].Lifetime).To(Equal(365 * 24 * time.Hour))
	})

	It("never puts the secret value into step results", func() {
		result := orchestrator.Run(ctx, validatedPlan("User.Read"))

		steps := result.Steps()
		Expect(steps).To(HaveLen(4))
		for _, step := range steps {
			Expect(step.Succeeded).To(BeTrue())
			Expect(step.RemoteID).ToNot(ContainSubstring("s3cr3t"))
		}
		Expect(steps[3].RemoteID).To(Equal("key-id"))
	})

	DescribeTable("stops at the first failing step",
		func(failing domain.StepKind, callCount int, expectedData map[string]string) {
			directory.failures[failing] = domain.NewDirectoryStepError(domain.DirectoryRemoteRejected, 400, "Bad request", nil)

			result := orchestrator.Run(ctx, validatedPlan("User.Read"))

			Expect(result.Success()).To(BeFalse())
			Expect(directory.calls).To(HaveLen(callCount))
			Expect(directory.calls[callCount-1]).To(Equal(failing))
			Expect(result.Data()).To(Equal(expectedData))
			Expect(result.ErrorDetail().Stage).To(Equal(domain.StageDirectory))
			Expect(result.ErrorDetail().Step).To(Equal(failing))
			Expect(result.ErrorDetail().Kind).To(Equal("RemoteRejected"))
			Expect(result.Message()).To(ContainSubstring("Bad request"))
			Expect(result.Steps()).To(HaveLen(callCount))
			Expect(result.Steps()[callCount-1].Succeeded).To(BeFalse())
		},
		Entry("create application", domain.StepCreateApplication, 1, map[string]string{}),
		Entry("service principal", domain.StepCreateServicePrincipal, 2, map[string]string{
			"applicationId": "app-client-id", "objectId": "app-object-id",
		}),
		Entry("assign permissions", domain.StepAssignPermissions, 3, map[string]string{
			"applicationId": "app-client-id", "objectId": "app-object-id", "servicePrincipalId": "sp-id",
		}),
		Entry("create secret", domain.StepCreateSecret, 4, map[string]string{
			"applicationId": "app-client-id", "objectId": "app-object-id", "servicePrincipalId": "sp-id",
		}),
	)

	It("explains admin consent failures and names the created objects", func() {
		directory.failures[domain.StepAssignPermissions] = domain.NewDirectoryStepError(
			domain.DirectoryRequiresAdminConsent, 403, "Insufficient privileges to complete the operation.", nil)

		result := orchestrator.Run(ctx, validatedPlan("Mail.Send"))

		Expect(result.Success()).To(BeFalse())
		Expect(result.Message()).To(ContainSubstring("admin consent"))
		Expect(result.Message()).To(ContainSubstring("assign permissions"))
		Expect(result.ErrorDetail().Kind).To(Equal(string(domain.DirectoryRequiresAdminConsent)))
		Expect(result.NextSteps()).To(ContainElement(ContainSubstring("app-object-id")))
		Expect(result.NextSteps()).To(ContainElement(ContainSubstring("sp-id")))
		Expect(result.Data()).ToNot(HaveKey("clientSecret"))
	})

	It("classifies unexpected adapter errors as rejections", func() {
		directory.failures[domain.StepCreateApplication] = errBoom
		result := orchestrator.Run(ctx, validatedPlan("User.Read"))
		Expect(result.ErrorDetail().Kind).To(Equal("RemoteRejected"))
		Expect(result.NextSteps()).To(ConsistOf(ContainSubstring("No directory objects were created")))
	})

	It("classifies timeouts as unavailable", func() {
		directory.failures[domain.StepCreateServicePrincipal] = context.DeadlineExceeded
		result := orchestrator.Run(ctx, validatedPlan("User.Read"))
		Expect(result.ErrorDetail().Kind).To(Equal("RemoteUnavailable"))
		Expect(result.NextSteps()).To(ContainElement(ContainSubstring("retry later")))
	})

	It("makes no calls when the context is already cancelled", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		result := orchestrator.Run(cancelled, validatedPlan("User.Read"))

		Expect(result.Success()).To(BeFalse())
		Expect(directory.calls).To(BeEmpty())
		Expect(result.ErrorDetail().Step).To(Equal(domain.StepCreateApplication))
	})

	It("refuses an invalid plan without remote calls", func() {
		result := orchestrator.Run(ctx, domain.Plan{})
		Expect(result.Success()).To(BeFalse())
		Expect(result.ErrorDetail().Stage).To(Equal(domain.StagePlanning))
		Expect(directory.calls).To(BeEmpty())
	})

	Describe("with a secret sink", func() {
		It("stores the secret and adds an advisory", func() {
			sink := &fakeSink{}
			orchestrator = NewOrchestrator(directory, sink, time.Second, discardLogger())

			result := orchestrator.Run(ctx, validatedPlan("User.Read"))

			Expect(result.Success()).To(BeTrue())
			Expect(sink.stored).To(HaveKeyWithValue("HR Portal", "s3cr3t-value-1234"))
			Expect(result.NextSteps()).To(HaveLen(3))
			Expect(result.NextSteps()[2]).To(ContainSubstring("stored in the vault"))
			Expect(result.Data()).To(HaveLen(4))
		})

		It("keeps the run successful when the sink fails", func() {
			orchestrator = NewOrchestrator(directory, &fakeSink{err: errors.New("vault down")}, time.Second, discardLogger())

			result := orchestrator.Run(ctx, validatedPlan("User.Read"))

			Expect(result.Success()).To(BeTrue())
			Expect(result.Data()).To(HaveKeyWithValue("clientSecret", "s3cr3t-value-1234"))
			Expect(result.NextSteps()[2]).To(ContainSubstring("vault down"))
		})
	})
})
