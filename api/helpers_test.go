package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/eventstream/worker"
	"github.com/papercomputeco/sleeves/pkg/search"
	testutils "github.com/papercomputeco/sleeves/pkg/utils/test"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

var errUnavailable = fmt.Errorf("%w: connection refused", vector.ErrBackendUnavailable)

// recordingQueue captures enqueued search events.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (q *recordingQueue) Enqueue(job worker.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

func (q *recordingQueue) Jobs() []worker.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]worker.Job(nil), q.jobs...)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// testCorpus is a small album corpus in a 2-dimensional space.
func testCorpus() []testutils.MockItem {
	return []testutils.MockItem{
		{Record: catalog.Record{ID: "a", Artist: "Artist A", Title: "Alpha", Genre: "Rock", ReleaseYear: intPtr(1975), Score: floatPtr(9.1)}, Embedding: []float32{1, 0}},
		{Record: catalog.Record{ID: "b", Artist: "Artist B", Title: "Beta", Genre: "Jazz", ReleaseYear: intPtr(1959), Score: floatPtr(8.4)}, Embedding: []float32{0.8, 0.6}},
		{Record: catalog.Record{ID: "c", Artist: "Artist C", Title: "Gamma", Genre: "Rock", ReleaseYear: intPtr(2001), Flagged: true}, Embedding: []float32{0.6, 0.8}},
		{Record: catalog.Record{ID: "d", Artist: "Artist D", Title: "Delta"}, Embedding: []float32{0, 1}},
	}
}

func newTestServer(cfg Config, spaces ...search.Space) *Server {
	engine, err := search.New(search.Config{DefaultK: 3}, zap.NewNop(), spaces...)
	Expect(err).NotTo(HaveOccurred())

	server, err := NewServer(cfg, engine, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return server
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var out T
	Expect(json.Unmarshal(body, &out)).To(Succeed(), string(body))
	return out
}
