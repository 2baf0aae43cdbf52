//go:build !integration

package infrastructure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type graphCall struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]interface{}
}

type fakeGraph struct {
	mu       sync.Mutex
	calls    []graphCall
	handlers map[string]func(w http.ResponseWriter)
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.calls = append(f.calls, graphCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	handler, ok := f.handlers[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"Request_ResourceNotFound","message":"no such route"}}`))
		return
	}
	handler(w)
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

var _ = Describe("GraphDirectory", func() {
	var (
		graph     *fakeGraph
		server    *httptest.Server
		cred      *staticCredential
		directory *GraphDirectory
		cfg       config.DirectoryConfig
		fixedNow  time.Time
		ctx       context.Context
	)

	newDirectory := func() *GraphDirectory {
		return NewGraphDirectory(cfg, cred, GraphOptions{
			Transport: server.Client(),
			Now:       func() time.Time { return fixedNow },
		}, discardLogger())
	}

	BeforeEach(func() {
		graph = &fakeGraph{handlers: map[string]func(http.ResponseWriter){}}
		server = httptest.NewTLSServer(graph)
		DeferCleanup(server.Close)
		cred = &staticCredential{}
		fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		ctx = context.Background()
		cfg = config.DirectoryConfig{
			GraphBaseURL:   server.URL + "/v1.0",
			SignInAudience: "AzureADMyOrg",
			RedirectURIs:   []string{"https://localhost:44321"},
		}
		directory = newDirectory()
	})

	Describe("CreateApplication", func() {
		It("posts the application and returns both identifiers", func() {
			graph.handlers["POST /v1.0/applications"] = respond(http.StatusCreated, `{"id":"obj-1","appId":"app-1"}`)

			ref, err := directory.CreateApplication(ctx, "HR Portal", "Portal for HR")

			Expect(err).ToNot(HaveOccurred())
			Expect(ref).To(Equal(domain.ApplicationRef{ApplicationID: "app-1", ObjectID: "obj-1"}))
			call := graph.calls[0]
			Expect(call.Auth).To(Equal("Bearer test-token"))
			Expect(call.Body).To(HaveKeyWithValue("displayName", "HR Portal"))
			Expect(call.Body).To(HaveKeyWithValue("signInAudience", "AzureADMyOrg"))
			Expect(call.Body).To(HaveKeyWithValue("notes", "Portal for HR"))
			web := call.Body["web"].(map[string]interface{})
			Expect(web["redirectUris"]).To(Equal([]interface{}{"https://localhost:44321"}))
			Expect(cred.scopes).To(HaveLen(1))
			Expect(cred.scopes[0]).To(HaveSuffix("/.default"))
		})

		It("reports Graph rejections with the Graph message", func() {
			graph.handlers["POST /v1.0/applications"] = respond(http.StatusBadRequest,
				`{"error":{"code":"Request_BadRequest","message":"Invalid value specified for property 'displayName'."}}`)

			_, err := directory.CreateApplication(ctx, "", "")

			var stepErr *domain.DirectoryStepError
			Expect(err).To(BeAssignableToTypeOf(stepErr))
			stepErr = err.(*domain.DirectoryStepError)
			Expect(stepErr.Kind).To(Equal(domain.DirectoryRemoteRejected))
			Expect(stepErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(stepErr.Reason).To(ContainSubstring("displayName"))
		})

		It("reports throttling as unavailable without retrying", func() {
			graph.handlers["POST /v1.0/applications"] = respond(http.StatusTooManyRequests, `{}`)

			_, err := directory.CreateApplication(ctx, "x", "")

			Expect(err.(*domain.DirectoryStepError).Kind).To(Equal(domain.DirectoryRemoteUnavailable))
			Expect(graph.calls).To(HaveLen(1))
		})
	})

	It("creates the service principal for the application id", func() {
		graph.handlers["POST /v1.0/servicePrincipals"] = respond(http.StatusCreated, `{"id":"sp-1"}`)

		ref, err := directory.CreateServicePrincipal(ctx, "app-1")

		Expect(err).ToNot(HaveOccurred())
		Expect(ref.ServicePrincipalID).To(Equal("sp-1"))
		Expect(graph.calls[0].Body).To(Equal(map[string]interface{}{"appId": "app-1"}))
	})

	It("adds a password credential with the configured lifetime", func() {
		graph.handlers["POST /v1.0/applications/obj-1/addPassword"] = respond(http.StatusOK, `{"keyId":"key-1","secretText":"abcd1234efgh"}`)

		cred, err := directory.CreateSecret(ctx, "obj-1", domain.SecretSpec{DisplayName: "Default Secret", Lifetime: 365 * 24 * time.Hour})

		Expect(err).ToNot(HaveOccurred())
		Expect(cred).To(Equal(domain.SecretCredential{KeyID: "key-1", Value: "abcd1234efgh"}))
		password := graph.calls[0].Body["passwordCredential"].(map[string]interface{})
		Expect(password["displayName"]).To(Equal("Default Secret"))
		Expect(password["endDateTime"]).To(Equal("2027-01-02T03:04:05Z"))
	})

	Describe("AssignPermissions", func() {
		var assignment domain.PermissionAssignment

		BeforeEach(func() {
			catalog := domain.NewDefaultPermissionCatalog("")
			userReadAll, _ := catalog.Lookup("User.Read.All")
			userRead, _ := catalog.Lookup("User.Read")
			assignment = domain.PermissionAssignment{
				ServicePrincipalID:  "sp-1",
				ApplicationObjectID: "obj-1",
				Permissions:         []domain.Permission{userReadAll, userRead},
			}
		})

		It("declares required resource access with roles and scopes", func() {
			graph.handlers["PATCH /v1.0/applications/obj-1"] = respond(http.StatusNoContent, ``)

			Expect(directory.AssignPermissions(ctx, assignment)).To(Succeed())

			Expect(graph.calls).To(HaveLen(1))
			required := graph.calls[0].Body["requiredResourceAccess"].([]interface{})
			Expect(required).To(HaveLen(1))
			entry := required[0].(map[string]interface{})
			Expect(entry["resourceAppId"]).To(Equal(domain.MicrosoftGraphAppID))
			Expect(entry["resourceAccess"]).To(ConsistOf(
				map[string]interface{}{"id": "df021288-bdef-4463-88db-98f22de89214", "type": "Role"},
				map[string]interface{}{"id": "e1fe6dd8-ba31-4d61-89e7-88639da4683d", "type": "Scope"},
			))
		})

		It("resolves missing ids from the resource service principal", func() {
			assignment.Permissions = []domain.Permission{{
				Name: "Reports.Read.All", Type: domain.PermissionTypeRole, ResourceAppID: domain.MicrosoftGraphAppID,
			}}
			graph.handlers["GET /v1.0/servicePrincipals"] = respond(http.StatusOK,
				`{"value":[{"id":"graph-sp","appRoles":[{"id":"role-42","value":"Reports.Read.All"}],"oauth2PermissionScopes":[]}]}`)
			graph.handlers["PATCH /v1.0/applications/obj-1"] = respond(http.StatusNoContent, ``)

			Expect(directory.AssignPermissions(ctx, assignment)).To(Succeed())

			Expect(graph.calls[0].Query).To(ContainSubstring("appId+eq+%27" + domain.MicrosoftGraphAppID + "%27"))
			entry := graph.calls[1].Body["requiredResourceAccess"].([]interface{})[0].(map[string]interface{})
			Expect(entry["resourceAccess"]).To(ConsistOf(map[string]interface{}{"id": "role-42", "type": "Role"}))
		})

		It("maps a denied assignment to the admin consent error", func() {
			graph.handlers["PATCH /v1.0/applications/obj-1"] = respond(http.StatusForbidden,
				`{"error":{"code":"Authorization_RequestDenied","message":"Insufficient privileges to complete the operation."}}`)

			err := directory.AssignPermissions(ctx, assignment)

			Expect(domain.IsAdminConsentRequired(err)).To(BeTrue())
		})

		It("grants consent when configured", func() {
			cfg.GrantAdminConsent = true
			directory = newDirectory()
			graph.handlers["GET /v1.0/servicePrincipals"] = respond(http.StatusOK, `{"value":[{"id":"graph-sp"}]}`)
			graph.handlers["PATCH /v1.0/applications/obj-1"] = respond(http.StatusNoContent, ``)
			graph.handlers["POST /v1.0/servicePrincipals/graph-sp/appRoleAssignedTo"] = respond(http.StatusCreated, `{}`)
			graph.handlers["POST /v1.0/oauth2PermissionGrants"] = respond(http.StatusCreated, `{}`)

			Expect(directory.AssignPermissions(ctx, assignment)).To(Succeed())

			Expect(graph.calls).To(HaveLen(4))
			Expect(graph.calls[2].Body).To(HaveKeyWithValue("appRoleId", "df021288-bdef-4463-88db-98f22de89214"))
			Expect(graph.calls[2].Body).To(HaveKeyWithValue("principalId", "sp-1"))
			Expect(graph.calls[3].Body).To(HaveKeyWithValue("scope", "User.Read"))
			Expect(graph.calls[3].Body).To(HaveKeyWithValue("consentType", "AllPrincipals"))
		})

		It("reports a refused consent grant as requiring admin consent", func() {
			cfg.GrantAdminConsent = true
			directory = newDirectory()
			graph.handlers["GET /v1.0/servicePrincipals"] = respond(http.StatusOK, `{"value":[{"id":"graph-sp"}]}`)
			graph.handlers["PATCH /v1.0/applications/obj-1"] = respond(http.StatusNoContent, ``)
			graph.handlers["POST /v1.0/servicePrincipals/graph-sp/appRoleAssignedTo"] = respond(http.StatusForbidden, `{}`)

			err := directory.AssignPermissions(ctx, assignment)

			Expect(domain.IsAdminConsentRequired(err)).To(BeTrue())
		})
	})

	It("reports unreachable endpoints as unavailable", func() {
		server.Close()

		_, err := directory.CreateServicePrincipal(ctx, "app-1")

		Expect(err.(*domain.DirectoryStepError).Kind).To(Equal(domain.DirectoryRemoteUnavailable))
	})
})

var _ = Describe("classifyGraphResponse", func() {
	DescribeTable("kinds",
		func(op graphOperation, status int, body string, kind domain.DirectoryErrorKind) {
			Expect(classifyGraphResponse(op, status, []byte(body)).Kind).To(Equal(kind))
		},
		Entry("server error", opProvision, 503, ``, domain.DirectoryRemoteUnavailable),
		Entry("throttled", opAssign, 429, ``, domain.DirectoryRemoteUnavailable),
		Entry("bad request", opProvision, 400, `{"error":{"message":"bad"}}`, domain.DirectoryRemoteRejected),
		Entry("forbidden provisioning", opProvision, 403, `{"error":{"code":"Authorization_RequestDenied"}}`, domain.DirectoryRemoteRejected),
		Entry("denied assignment", opAssign, 403, `{"error":{"code":"Authorization_RequestDenied"}}`, domain.DirectoryRequiresAdminConsent),
		Entry("unauthorised consent", opConsent, 401, ``, domain.DirectoryRequiresAdminConsent),
	)

	It("falls back to the status text", func() {
		Expect(classifyGraphResponse(opProvision, 404, nil).Reason).To(Equal("Graph returned 404 Not Found"))
	})
})
