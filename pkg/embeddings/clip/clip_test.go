package clip_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sleeves/pkg/embeddings"
	"github.com/papercomputeco/sleeves/pkg/embeddings/clip"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		embedder *clip.Embedder
		status   int
		lastBody []byte
		lastType string
		lastPath string
	)

	BeforeEach(func() {
		status = http.StatusOK
		lastPath = ""
		mux := http.NewServeMux()
		handler := func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			lastType = r.Header.Get("Content-Type")
			lastBody, _ = io.ReadAll(r.Body)
			if status != http.StatusOK {
				http.Error(w, "nope", status)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0, 3, 4}})
		}
		mux.HandleFunc("POST /v1/embed/text", handler)
		mux.HandleFunc("POST /v1/embed/image", handler)
		server = httptest.NewServer(mux)

		var err error
		embedder, err = clip.NewEmbedder(clip.EmbedderConfig{BaseURL: server.URL + "/", Model: "test-model"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(embedder.Close()).To(Succeed())
		server.Close()
	})

	Describe("EmbedText", func() {
		It("posts the model and input and normalizes the result", func() {
			v, err := embedder.EmbedText(context.Background(), "dark moody jazz")
			Expect(err).NotTo(HaveOccurred())
			Expect(v[1]).To(BeNumerically("~", 0.6, 1e-6))
			Expect(v[2]).To(BeNumerically("~", 0.8, 1e-6))

			Expect(lastPath).To(Equal("/v1/embed/text"))
			Expect(lastType).To(Equal("application/json"))
			Expect(lastBody).To(MatchJSON(`{"model":"test-model","input":"dark moody jazz"}`))
		})

		It("rejects blank text without calling the service", func() {
			_, err := embedder.EmbedText(context.Background(), "   ")
			Expect(err).To(MatchError(embeddings.ErrUnsupportedInput))
			Expect(lastPath).To(BeEmpty())
		})

		It("maps 5xx responses to ErrModelUnavailable", func() {
			status = http.StatusInternalServerError
			_, err := embedder.EmbedText(context.Background(), "rock")
			Expect(err).To(MatchError(embeddings.ErrModelUnavailable))
		})

		It("maps an unreachable service to ErrModelUnavailable", func() {
			server.Close()
			_, err := embedder.EmbedText(context.Background(), "rock")
			Expect(err).To(MatchError(embeddings.ErrModelUnavailable))
		})
	})

	Describe("EmbedImage", func() {
		It("sends the raw bytes with the image content type", func() {
			_, err := embedder.EmbedImage(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(lastPath).To(Equal("/v1/embed/image"))
			Expect(lastType).To(Equal("image/png"))
			Expect(lastBody).To(Equal([]byte{0x89, 'P', 'N', 'G'}))
		})

		It("rejects non image content types", func() {
			_, err := embedder.EmbedImage(context.Background(), []byte("hello"), "text/plain")
			Expect(err).To(MatchError(embeddings.ErrUnsupportedInput))
		})

		It("rejects empty images", func() {
			_, err := embedder.EmbedImage(context.Background(), nil, "image/png")
			Expect(err).To(MatchError(embeddings.ErrUnsupportedInput))
		})

		It("maps an undecodable image to ErrUnsupportedInput", func() {
			status = http.StatusUnprocessableEntity
			_, err := embedder.EmbedImage(context.Background(), []byte("garbage"), "image/jpeg")
			Expect(err).To(MatchError(embeddings.ErrUnsupportedInput))
		})
	})
})
