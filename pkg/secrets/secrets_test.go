package secrets_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rotaworks/rotachat/pkg/secrets"
)

var _ = Describe("Manager", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "secrets-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewManager", func() {
		It("creates a manager with an override directory", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr).NotTo(BeNil())
			Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "secrets.toml")))
		})
	})

	Describe("Load", func() {
		It("returns empty secrets when no file exists", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			s, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Keys).To(BeEmpty())
		})

		It("returns an error on malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "secrets.toml"), []byte("not = [toml"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = mgr.Load()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SetKey and GetKey", func() {
		It("round-trips a key", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetKey("OPENAI_API_KEY", "sk-test")).To(Succeed())

			key, err := mgr.GetKey("OPENAI_API_KEY")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-test"))
		})

		It("writes the file with 0600 permissions", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetKey("OPENAI_API_KEY", "sk-test")).To(Succeed())

			info, err := os.Stat(mgr.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("returns an empty string for an unknown reference", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			key, err := mgr.GetKey("MISSING")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})

	Describe("RemoveKey", func() {
		It("deletes a stored key", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetKey("OPENAI_API_KEY", "sk-test")).To(Succeed())
			Expect(mgr.RemoveKey("OPENAI_API_KEY")).To(Succeed())

			key, err := mgr.GetKey("OPENAI_API_KEY")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})

	Describe("ListRefs", func() {
		It("returns stored references sorted", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(mgr.SetKey("ZETA_KEY", "z")).To(Succeed())
			Expect(mgr.SetKey("ALPHA_KEY", "a")).To(Succeed())

			refs, err := mgr.ListRefs()
			Expect(err).NotTo(HaveOccurred())
			Expect(refs).To(Equal([]string{"ALPHA_KEY", "ZETA_KEY"}))
		})
	})

	Describe("Lookup", func() {
		It("prefers the stored key over the environment", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			GinkgoT().Setenv("ROTACHAT_TEST_REF", "from-env")
			Expect(mgr.SetKey("ROTACHAT_TEST_REF", "from-file")).To(Succeed())

			Expect(mgr.Lookup("ROTACHAT_TEST_REF")).To(Equal("from-file"))
		})

		It("falls back to the environment", func() {
			mgr, err := secrets.NewManager(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			GinkgoT().Setenv("ROTACHAT_TEST_REF", "from-env")

			Expect(mgr.Lookup("ROTACHAT_TEST_REF")).To(Equal("from-env"))
		})
	})
})
