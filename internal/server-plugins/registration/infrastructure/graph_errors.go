package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
)

// graphOperation tells the classifier which phase a request belongs to.
type graphOperation int

const (
	opProvision graphOperation = iota
	opAssign
	opConsent
)

const codeAuthorizationDenied = "Authorization_RequestDenied"

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyGraphResponse maps a non-success Graph response onto a directory error kind.
func classifyGraphResponse(op graphOperation, status int, body []byte) *domain.DirectoryStepError {
	var parsed graphErrorBody
	_ = json.Unmarshal(body, &parsed)

	reason := strings.TrimSpace(parsed.Error.Message)
	if reason == "" {
		reason = fmt.Sprintf("Graph returned %d %s", status, http.StatusText(status))
	}
	var cause error
	if parsed.Error.Code != "" {
		cause = fmt.Errorf("graph error code %s", parsed.Error.Code)
	}

	kind := domain.DirectoryRemoteRejected
	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		kind = domain.DirectoryRemoteUnavailable
	case op == opConsent && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		kind = domain.DirectoryRequiresAdminConsent
	case op != opProvision && parsed.Error.Code == codeAuthorizationDenied:
		kind = domain.DirectoryRequiresAdminConsent
	}
	return domain.NewDirectoryStepError(kind, status, reason, cause)
}

// classifyTransportError handles failures where no response was received.
func classifyTransportError(err error) *domain.DirectoryStepError {
	reason := "the directory service could not be reached"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "the directory call timed out"
	}
	return domain.NewDirectoryStepError(domain.DirectoryRemoteUnavailable, 0, reason, err)
}
