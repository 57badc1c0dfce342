package registry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rotaworks/rotachat/pkg/llm"
	"github.com/rotaworks/rotachat/pkg/registry"
)

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	serveModels := func(rows []llm.ModelOption, wantKey string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wantKey != "" && r.Header.Get("apikey") != wantKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			Expect(r.URL.Path).To(Equal("/v1/models"))
			w.Header().Set("Content-Type", "application/json")
			Expect(json.NewEncoder(w).Encode(rows)).To(Succeed())
		}))
	}

	Describe("ListModels", func() {
		It("returns models sorted by ordering, then display name", func() {
			srv := serveModels([]llm.ModelOption{
				{ID: "3", DisplayName: "Charlie", ModelIdentifier: "c", BaseURL: "https://c.example.com/v1", Ordering: 2},
				{ID: "1", DisplayName: "Bravo", ModelIdentifier: "b", BaseURL: "https://b.example.com/v1", Ordering: 1},
				{ID: "2", DisplayName: "Alpha", ModelIdentifier: "a", BaseURL: "https://a.example.com/v1", Ordering: 1},
			}, "")
			defer srv.Close()

			models, err := registry.NewClient(srv.URL, "").ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(3))
			Expect(models[0].DisplayName).To(Equal("Alpha"))
			Expect(models[1].DisplayName).To(Equal("Bravo"))
			Expect(models[2].DisplayName).To(Equal("Charlie"))
		})

		It("drops rows with unusable base URLs", func() {
			srv := serveModels([]llm.ModelOption{
				{ID: "1", DisplayName: "Good", ModelIdentifier: "good", BaseURL: "https://good.example.com/v1"},
				{ID: "2", DisplayName: "NoScheme", ModelIdentifier: "bad1", BaseURL: "not a url"},
				{ID: "3", DisplayName: "Empty", ModelIdentifier: "bad2", BaseURL: ""},
			}, "")
			defer srv.Close()

			models, err := registry.NewClient(srv.URL, "").ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(1))
			Expect(models[0].ModelIdentifier).To(Equal("good"))
		})

		It("sends the project key header", func() {
			srv := serveModels([]llm.ModelOption{
				{ID: "1", DisplayName: "M", ModelIdentifier: "m", BaseURL: "https://m.example.com"},
			}, "expected-key")
			defer srv.Close()

			_, err := registry.NewClient(srv.URL, "wrong-key").ListModels(ctx)
			Expect(err).To(MatchError(registry.ErrNetwork))

			models, err := registry.NewClient(srv.URL, "expected-key").ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(HaveLen(1))
		})

		It("wraps connection failures as a network error", func() {
			_, err := registry.NewClient("http://127.0.0.1:1", "").ListModels(ctx)
			Expect(err).To(MatchError(registry.ErrNetwork))
		})

		It("wraps malformed bodies as a decode error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("{not json"))
			}))
			defer srv.Close()

			_, err := registry.NewClient(srv.URL, "").ListModels(ctx)
			Expect(err).To(MatchError(registry.ErrDecode))
		})

		It("returns an empty list when the catalog is empty", func() {
			srv := serveModels(nil, "")
			defer srv.Close()

			models, err := registry.NewClient(srv.URL, "").ListModels(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(models).To(BeEmpty())
		})
	})

	Describe("Resolve", func() {
		models := []llm.ModelOption{
			{ModelIdentifier: "gpt-4o-mini", DisplayName: "Mini"},
			{ModelIdentifier: "gpt-4o", DisplayName: "Full"},
		}

		It("finds a model by identifier", func() {
			m, ok := registry.Resolve(models, "gpt-4o")
			Expect(ok).To(BeTrue())
			Expect(m.DisplayName).To(Equal("Full"))
		})

		It("reports a miss", func() {
			_, ok := registry.Resolve(models, "absent")
			Expect(ok).To(BeFalse())
		})
	})
})
