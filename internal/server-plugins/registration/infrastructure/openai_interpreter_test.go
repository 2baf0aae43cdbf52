//go:build !integration

package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	domain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("OpenAIInterpreter", func() {
	var (
		server      *httptest.Server
		status      int
		reply       string
		lastPath    string
		lastQuery   string
		lastKey     string
		lastRequest map[string]interface{}
		interpreter *OpenAIInterpreter
	)

	BeforeEach(func() {
		status = http.StatusOK
		reply = `{"action":"create_app_registration","appName":"HR Portal"}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			lastQuery = r.URL.RawQuery
			lastKey = r.Header.Get("api-key")
			lastRequest = map[string]interface{}{}
			_ = json.NewDecoder(r.Body).Decode(&lastRequest)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":{"code":"500","message":"upstream exploded"}}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"choices": []map[string]interface{}{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": reply},
				}},
			})
		}))
		DeferCleanup(server.Close)

		interpreter = NewOpenAIInterpreter(config.InterpreterConfig{
			Endpoint:   server.URL,
			APIKey:     "test-key",
			Deployment: "gpt-test",
			APIVersion: "2023-05-15",
		}, server.Client())
	})

	It("sends the prompt to the configured deployment", func() {
		out, err := interpreter.Interpret(context.Background(), domain.PromptContext{
			SystemPrompt: "parse commands",
			MaxTokens:    800,
		}, "Create HR Portal")

		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(Equal(reply))
		Expect(lastPath).To(Equal("/openai/deployments/gpt-test/chat/completions"))
		Expect(lastQuery).To(ContainSubstring("api-version=2023-05-15"))
		Expect(lastKey).To(Equal("test-key"))
		Expect(lastRequest["max_tokens"]).To(Equal(float64(800)))
		Expect(lastRequest["temperature"]).To(BeNumerically(">", 0))
		Expect(lastRequest["temperature"]).To(BeNumerically("<", 0.001))
		messages := lastRequest["messages"].([]interface{})
		Expect(messages).To(HaveLen(2))
		Expect(messages[0]).To(HaveKeyWithValue("role", "system"))
		Expect(messages[1]).To(HaveKeyWithValue("content", "Create HR Portal"))
	})

	It("wraps API failures", func() {
		status = http.StatusInternalServerError

		_, err := interpreter.Interpret(context.Background(), domain.PromptContext{}, "Create HR Portal")

		Expect(err).To(MatchError(ContainSubstring("status 500")))
	})
})
