package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	"github.com/papercomputeco/sleeves/pkg/eventstream"
	"github.com/papercomputeco/sleeves/pkg/search"
	testutils "github.com/papercomputeco/sleeves/pkg/utils/test"
)

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func imageRequest(target, contentType string, data []byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="cover.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(w.Close()).To(Succeed())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

var _ = Describe("search endpoints", func() {
	var (
		server   *Server
		backend  *testutils.MockBackend
		embedder *testutils.MockEmbedder
		events   *recordingQueue
	)

	BeforeEach(func() {
		backend = testutils.NewMockBackend(2, testCorpus()...)
		embedder = testutils.NewMockEmbedder()
		embedder.Embeddings["blue night"] = []float32{0, 1}
		embedder.ImageEmbedding = []float32{1, 0}
		events = &recordingQueue{}

		server = newTestServer(
			Config{Events: events, MaxUploadBytes: 64},
			search.Space{Name: "image", Backend: backend, Embedder: embedder},
			search.Space{Name: "raw", Backend: testutils.NewMockBackend(2, testCorpus()...)},
		)
	})

	Describe("POST /api/search", func() {
		It("returns ranked results in the envelope", func() {
			resp, err := server.app.Test(jsonRequest(`{"query_embedding":[1,0],"k":2}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.Response](resp)
			Expect(out.Success).To(BeTrue())
			Expect(out.QueryType).To(Equal(apisearch.QueryTypeVector))
			Expect(out.Space).To(Equal("image"))
			Expect(out.TotalResults).To(Equal(2))
			Expect(out.Results[0].ID).To(Equal("a"))
			Expect(out.Results[0].Rank).To(Equal(1))
			Expect(out.Results[0].Artist).To(Equal("Artist A"))
			Expect(out.Results[1].ID).To(Equal("b"))
		})

		It("uses the default k when none is given", func() {
			resp, err := server.app.Test(jsonRequest(`{"query_embedding":[1,0]}`))
			Expect(err).NotTo(HaveOccurred())

			out := decode[apisearch.Response](resp)
			Expect(out.TotalResults).To(Equal(3))
		})

		It("applies filters", func() {
			resp, err := server.app.Test(jsonRequest(`{"query_embedding":[1,0],"k":5,"genre":"Rock","year_min":1980}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.Response](resp)
			Expect(out.TotalResults).To(Equal(1))
			Expect(out.Results[0].ID).To(Equal("c"))

			resp, err = server.app.Test(jsonRequest(`{"query_embedding":[1,0],"k":5,"genre":"Rock","year_min":1980,"exclude_flagged":true}`))
			Expect(err).NotTo(HaveOccurred())
			out = decode[apisearch.Response](resp)
			Expect(out.Success).To(BeTrue())
			Expect(out.Results).To(BeEmpty())
		})

		DescribeTable("rejects malformed requests with 400",
			func(body string) {
				resp, err := server.app.Test(jsonRequest(body))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

				out := decode[apisearch.ErrorResponse](resp)
				Expect(out.Success).To(BeFalse())
				Expect(out.Error).NotTo(BeEmpty())
			},
			Entry("invalid JSON", `{"query_embedding":`),
			Entry("missing embedding", `{"k":2}`),
			Entry("k of zero", `{"query_embedding":[1,0],"k":0}`),
			Entry("k above the maximum", fmt.Sprintf(`{"query_embedding":[1,0],"k":%d}`, search.MaxK+1)),
			Entry("wrong dimension", `{"query_embedding":[1,0,0],"k":2}`),
			Entry("unknown space", `{"query_embedding":[1,0],"space":"audio"}`),
		)

		It("maps backend failures to 503", func() {
			backend.Err = errUnavailable
			resp, err := server.app.Test(jsonRequest(`{"query_embedding":[1,0],"k":2}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})

		It("enqueues a search event", func() {
			resp, err := server.app.Test(jsonRequest(`{"query_embedding":[1,0],"k":2,"genre":"Rock"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			jobs := events.Jobs()
			Expect(jobs).To(HaveLen(1))
			ev := jobs[0].Event
			Expect(ev.EventType).To(Equal(eventstream.EventTypeSearchPerformed))
			Expect(ev.QueryType).To(Equal(eventstream.QueryTypeVector))
			Expect(ev.Space).To(Equal("image"))
			Expect(ev.K).To(Equal(2))
			Expect(ev.Filter.Genre).To(Equal("Rock"))
			Expect(ev.Results.Count).To(Equal(2))
			Expect(ev.Results.TopIDs).To(Equal([]string{"a", "c"}))
		})

		It("does not enqueue events for failed searches", func() {
			resp, err := server.app.Test(jsonRequest(`{"query_embedding":[1,0],"k":0}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(events.Jobs()).To(BeEmpty())
		})
	})

	Describe("GET /api/search-by-text", func() {
		It("embeds the query and echoes it back", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/search-by-text?query=blue+night&k=2", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.Response](resp)
			Expect(out.QueryType).To(Equal(apisearch.QueryTypeText))
			Expect(out.Query).To(Equal("blue night"))
			Expect(out.Results[0].ID).To(Equal("d"))
			Expect(out.Results[1].ID).To(Equal("c"))

			Expect(events.Jobs()).To(HaveLen(1))
			Expect(events.Jobs()[0].Event.Query).To(Equal("blue night"))
		})

		It("keeps each event's query values after later requests", func() {
			embedder.Embeddings["zzzzzzzzzz"] = []float32{1, 0}

			for _, target := range []string{
				"/api/search-by-text?query=blue+night&genre=Rock&space=image",
				"/api/search-by-text?query=zzzzzzzzzz&genre=Jazz&space=image",
			} {
				resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			}

			jobs := events.Jobs()
			Expect(jobs).To(HaveLen(2))
			Expect(jobs[0].Event.Query).To(Equal("blue night"))
			Expect(jobs[0].Event.Filter.Genre).To(Equal("Rock"))
			Expect(jobs[0].Event.Space).To(Equal("image"))
			Expect(jobs[1].Event.Query).To(Equal("zzzzzzzzzz"))
			Expect(jobs[1].Event.Filter.Genre).To(Equal("Jazz"))
		})

		It("parses filters from the query string", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/search-by-text?query=blue+night&k=5&genre=Rock&exclude_flagged=true&min_similarity=0.1", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			// "a" sits at similarity 0, which the exclusive threshold drops.
			out := decode[apisearch.Response](resp)
			Expect(out.Results).To(BeEmpty())
		})

		DescribeTable("rejects bad parameters with 400",
			func(target string) {
				resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			},
			Entry("missing query", "/api/search-by-text"),
			Entry("blank query", "/api/search-by-text?query=+++"),
			Entry("non-numeric k", "/api/search-by-text?query=x&k=many"),
			Entry("non-numeric year", "/api/search-by-text?query=x&year_min=seventies"),
			Entry("non-numeric threshold", "/api/search-by-text?query=x&min_similarity=high"),
			Entry("non-boolean flag", "/api/search-by-text?query=x&exclude_flagged=maybe"),
			Entry("k above the maximum", "/api/search-by-text?query=x&k=501"),
		)

		It("returns 503 for a space without an embedder", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/api/search-by-text?query=x&space=raw", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})

		It("returns 503 when the model is unavailable", func() {
			embedder.FailOn = "down"
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/api/search-by-text?query=down", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})

	Describe("POST /api/search-by-image", func() {
		png := []byte("\x89PNG\r\n\x1a\nfake")

		It("searches with the uploaded image", func() {
			resp, err := server.app.Test(imageRequest("/api/search-by-image?k=1", "image/png", png))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.Response](resp)
			Expect(out.QueryType).To(Equal(apisearch.QueryTypeImage))
			Expect(out.TotalResults).To(Equal(1))
			Expect(out.Results[0].ID).To(Equal("a"))
		})

		It("rejects non-image uploads with 415", func() {
			resp, err := server.app.Test(imageRequest("/api/search-by-image", "text/plain", []byte("hello")))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnsupportedMediaType))
		})

		It("rejects images the model cannot decode with 415", func() {
			resp, err := server.app.Test(imageRequest("/api/search-by-image", "image/png", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnsupportedMediaType))
		})

		It("rejects oversized uploads with 413", func() {
			resp, err := server.app.Test(imageRequest("/api/search-by-image", "image/png", bytes.Repeat([]byte{1}, 65)))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusRequestEntityTooLarge))
		})

		It("requires the file field", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/search-by-image", strings.NewReader(""))
			req.Header.Set(fiber.HeaderContentType, "multipart/form-data; boundary=x")
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})
})
