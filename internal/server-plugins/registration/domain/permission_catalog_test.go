//go:build !integration

package registration

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PermissionCatalog", func() {
	It("looks names up case-insensitively", func() {
		catalog := NewDefaultPermissionCatalog("")
		p, ok := catalog.Lookup("SITES.read.all")
		Expect(ok).To(BeTrue())
		Expect(p.Name).To(Equal("Sites.Read.All"))
		Expect(p.ID).To(Equal("332a536c-c7ef-4017-ab91-336970924f0d"))
	})

	It("infers types and fills the resource app", func() {
		catalog, err := NewPermissionCatalog([]Permission{
			{Name: "Reports.Read.All"},
			{Name: "Tasks.Read"},
		}, "resource-1")
		Expect(err).ToNot(HaveOccurred())

		role, _ := catalog.Lookup("Reports.Read.All")
		Expect(role.Type).To(Equal(PermissionTypeRole))
		Expect(role.ResourceAppID).To(Equal("resource-1"))
		scope, _ := catalog.Lookup("tasks.read")
		Expect(scope.Type).To(Equal(PermissionTypeScope))
		Expect(catalog.Names()).To(Equal([]string{"Reports.Read.All", "Tasks.Read"}))
	})

	It("rejects duplicates and bad types", func() {
		_, err := NewPermissionCatalog([]Permission{{Name: "A"}, {Name: "a"}}, "r")
		Expect(err).To(MatchError(ContainSubstring("duplicate")))

		_, err = NewPermissionCatalog([]Permission{{Name: "A", Type: "Admin"}}, "r")
		Expect(err).To(MatchError(ContainSubstring("invalid type")))

		_, err = NewPermissionCatalog([]Permission{{Name: " "}}, "r")
		Expect(err).To(HaveOccurred())
	})

	It("returns sorted entries", func() {
		catalog := NewDefaultPermissionCatalog(MicrosoftGraphAppID)
		entries := catalog.Entries()
		Expect(entries).To(HaveLen(catalog.Len()))
		Expect(entries[0].Name).To(Equal("Application.Read.All"))
	})
})
