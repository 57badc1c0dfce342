package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rotaworks/rotachat/pkg/auth"
)

var _ = Describe("HTTPVerifier", func() {
	ctx := context.Background()

	newIdentityService := func(handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(handler))
	}

	It("resolves a valid token to the user id", func() {
		srv := newIdentityService(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/auth/v1/user"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer good-token"))
			Expect(r.Header.Get("apikey")).To(Equal("anon"))
			w.Write([]byte(`{"id":"user-42"}`))
		})
		defer srv.Close()

		v := auth.NewHTTPVerifier(srv.URL, "anon")
		userID, err := v.Verify(ctx, "good-token")
		Expect(err).NotTo(HaveOccurred())
		Expect(userID).To(Equal("user-42"))
	})

	It("maps 4xx responses to ErrUnauthorized", func() {
		srv := newIdentityService(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		defer srv.Close()

		v := auth.NewHTTPVerifier(srv.URL, "anon")
		_, err := v.Verify(ctx, "bad-token")
		Expect(err).To(MatchError(auth.ErrUnauthorized))
	})

	It("surfaces 5xx responses as errors, not unauthorized", func() {
		srv := newIdentityService(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		defer srv.Close()

		v := auth.NewHTTPVerifier(srv.URL, "anon")
		_, err := v.Verify(ctx, "token")
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(auth.ErrUnauthorized))
	})

	It("rejects a response without a user id", func() {
		srv := newIdentityService(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{}`))
		})
		defer srv.Close()

		v := auth.NewHTTPVerifier(srv.URL, "anon")
		_, err := v.Verify(ctx, "token")
		Expect(err).To(MatchError(auth.ErrUnauthorized))
	})

	It("rejects a blank token without calling the service", func() {
		called := false
		srv := newIdentityService(func(w http.ResponseWriter, _ *http.Request) {
			called = true
		})
		defer srv.Close()

		v := auth.NewHTTPVerifier(srv.URL, "anon")
		_, err := v.Verify(ctx, "   ")
		Expect(err).To(MatchError(auth.ErrUnauthorized))
		Expect(called).To(BeFalse())
	})
})
