package rag_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarryhq/quarry/pkg/llm"
	"github.com/quarryhq/quarry/pkg/rag"
	testutils "github.com/quarryhq/quarry/pkg/utils/test"
)

var _ = Describe("Generator", func() {
	var client *testutils.MockLLMClient

	rateLimited := &llm.StatusError{Code: http.StatusTooManyRequests, Body: "slow down"}

	newGenerator := func() *rag.Generator {
		return rag.NewGenerator(client, rag.GeneratorConfig{
			RetryDelay: time.Millisecond,
		}, zap.NewNop())
	}

	BeforeEach(func() {
		client = &testutils.MockLLMClient{}
	})

	It("sends the system prompt and the context-bearing user prompt", func() {
		client.Responses = []testutils.MockLLMResponse{{Content: "答案"}}

		answer, err := newGenerator().Generate(context.Background(), "what is quarry?", "[Source 1] chunk text")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("答案"))

		Expect(client.Requests).To(HaveLen(1))
		req := client.Requests[0]
		Expect(req.Messages).To(HaveLen(2))
		Expect(req.Messages[0].Role).To(Equal(llm.RoleSystem))
		Expect(req.Messages[0].Content).To(ContainSubstring("繁體中文"))
		Expect(req.Messages[1].Role).To(Equal(llm.RoleUser))
		Expect(req.Messages[1].Content).To(ContainSubstring("[Source 1] chunk text"))
		Expect(req.Messages[1].Content).To(ContainSubstring("Question: what is quarry?"))

		Expect(*req.Temperature).To(BeNumerically("~", rag.DefaultTemperature, 1e-9))
		Expect(*req.MaxTokens).To(Equal(rag.DefaultMaxTokens))
	})

	It("retries rate-limited requests and succeeds", func() {
		client.Responses = []testutils.MockLLMResponse{
			{Err: rateLimited},
			{Err: rateLimited},
			{Content: "recovered"},
		}

		answer, err := newGenerator().Generate(context.Background(), "q", "ctx")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("recovered"))
		Expect(client.Calls()).To(Equal(3))
	})

	It("returns a RateLimitError when every retry is rate limited", func() {
		client.Responses = []testutils.MockLLMResponse{{Err: rateLimited}}

		_, err := newGenerator().Generate(context.Background(), "q", "ctx")
		Expect(err).To(HaveOccurred())

		var rateErr *rag.RateLimitError
		Expect(errors.As(err, &rateErr)).To(BeTrue())
		Expect(rateErr.Attempts).To(Equal(3))
		// Initial attempt plus three retries.
		Expect(client.Calls()).To(Equal(4))
	})

	It("retries network errors and succeeds", func() {
		client.Responses = []testutils.MockLLMResponse{
			{Err: errors.New("connection reset by peer")},
			{Content: "recovered"},
		}

		answer, err := newGenerator().Generate(context.Background(), "q", "ctx")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("recovered"))
		Expect(client.Calls()).To(Equal(2))
	})

	It("retries server errors and succeeds", func() {
		client.Responses = []testutils.MockLLMResponse{
			{Err: &llm.StatusError{Code: http.StatusInternalServerError, Body: "boom"}},
			{Err: &llm.StatusError{Code: http.StatusBadGateway, Body: "bad gateway"}},
			{Content: "recovered"},
		}

		answer, err := newGenerator().Generate(context.Background(), "q", "ctx")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("recovered"))
		Expect(client.Calls()).To(Equal(3))
	})

	It("wraps the last error when retries never recover", func() {
		client.Responses = []testutils.MockLLMResponse{
			{Err: errors.New("connection reset by peer")},
		}

		_, err := newGenerator().Generate(context.Background(), "q", "ctx")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("connection reset by peer"))

		var rateErr *rag.RateLimitError
		Expect(errors.As(err, &rateErr)).To(BeFalse())
		// Initial attempt plus three retries.
		Expect(client.Calls()).To(Equal(4))
	})

	It("does not retry client errors", func() {
		client.Responses = []testutils.MockLLMResponse{
			{Err: &llm.StatusError{Code: http.StatusBadRequest, Body: "bad request"}},
		}

		_, err := newGenerator().Generate(context.Background(), "q", "ctx")
		Expect(err).To(HaveOccurred())

		var rateErr *rag.RateLimitError
		Expect(errors.As(err, &rateErr)).To(BeFalse())
		Expect(client.Calls()).To(Equal(1))
	})

	It("stops backing off when the context is canceled", func() {
		client.Responses = []testutils.MockLLMResponse{{Err: rateLimited}}

		g := rag.NewGenerator(client, rag.GeneratorConfig{
			RetryDelay: time.Minute,
		}, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := g.Generate(ctx, "q", "ctx")
		Expect(err).To(MatchError(context.Canceled))
	})
})
