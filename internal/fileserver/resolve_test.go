package fileserver_test

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/static-server/internal/fileserver"
)

// site lays out a document root "www" next to files that must stay
// unreachable from it.
type site struct {
	parent string
	root   string
}

func newSite() site {
	parent, err := os.MkdirTemp("", "fileserver-test-*")
	Expect(err).NotTo(HaveOccurred())

	s := site{parent: parent, root: filepath.Join(parent, "www")}

	s.write("www/index.html", "<h1>home</h1>")
	s.write("www/style.css", "body { color: black; }")
	s.write("www/a/b/c.css", "p { margin: 0; }")
	s.write("www/docs/index.html", "<h1>docs</h1>")
	s.write("www/noext", "plain text")
	s.write("www/b.unknown", "mystery")
	s.write("secret.txt", "top secret")
	s.write("www2/leak.html", "sibling")
	Expect(os.MkdirAll(filepath.Join(parent, "www/empty"), 0755)).To(Succeed())

	Expect(os.Symlink(filepath.Join(parent, "secret.txt"), filepath.Join(s.root, "link.txt"))).To(Succeed())
	Expect(os.Symlink(parent, filepath.Join(s.root, "up"))).To(Succeed())
	Expect(os.Symlink(filepath.Join(s.root, "style.css"), filepath.Join(s.root, "alias.css"))).To(Succeed())

	return s
}

func (s site) write(rel, content string) {
	path := filepath.Join(s.parent, rel)
	Expect(os.MkdirAll(filepath.Dir(path), 0755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
}

func (s site) cleanup() {
	os.RemoveAll(s.parent)
}

var _ = Describe("Resolver", func() {
	var (
		s        site
		resolver *fileserver.Resolver
	)

	BeforeEach(func() {
		s = newSite()

		var err error
		resolver, err = fileserver.NewResolver(s.root + "/")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		s.cleanup()
	})

	get := func(path string) fileserver.Outcome {
		return resolver.Resolve(fileserver.Request{Method: fileserver.MethodGet, Path: path})
	}

	Describe("NewResolver", func() {
		It("should keep exactly one trailing separator on the root", func() {
			r, err := fileserver.NewResolver(s.root + "///")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Root()).To(Equal(s.root + "/"))
		})

		It("should reject a missing root", func() {
			_, err := fileserver.NewResolver(filepath.Join(s.parent, "absent"))
			Expect(err).To(HaveOccurred())
		})

		It("should reject a root that is a file", func() {
			_, err := fileserver.NewResolver(filepath.Join(s.parent, "secret.txt"))
			Expect(err).To(HaveOccurred())
		})

		It("should reject an empty root", func() {
			_, err := fileserver.NewResolver("")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Resolve", func() {
		It("should serve an existing file", func() {
			outcome := get("style.css")
			Expect(outcome.Status).To(Equal(http.StatusOK))
			Expect(outcome.MimeType).To(Equal("text/css"))
			Expect(outcome.Page).To(BeNil())

			canonical, err := filepath.EvalSymlinks(filepath.Join(s.root, "style.css"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Path).To(Equal(canonical))
		})

		It("should serve nested files", func() {
			outcome := get("a/b/c.css")
			Expect(outcome.Status).To(Equal(http.StatusOK))
			Expect(outcome.MimeType).To(Equal("text/css"))
		})

		It("should return 404 for a missing file", func() {
			outcome := get("missing.html")
			Expect(outcome.Status).To(Equal(http.StatusNotFound))
			Expect(outcome.Page).NotTo(BeEmpty())
		})

		Context("with directories", func() {
			It("should fall back to index.html for the root", func() {
				outcome := get("")
				Expect(outcome.Status).To(Equal(http.StatusOK))
				Expect(outcome.Path).To(HaveSuffix(string(filepath.Separator) + "index.html"))
				Expect(outcome.MimeType).To(Equal("text/html"))
			})

			It("should join index.html with or without a trailing slash", func() {
				Expect(get("docs").Status).To(Equal(http.StatusOK))
				Expect(get("docs/").Status).To(Equal(http.StatusOK))
				Expect(get("docs").Path).To(Equal(get("docs/").Path))
			})

			It("should return 403 for a directory without index.html", func() {
				outcome := get("empty/")
				Expect(outcome.Status).To(Equal(http.StatusForbidden))
				Expect(outcome.MimeType).To(Equal("text/html"))
				Expect(string(outcome.Page)).To(ContainSubstring("403"))
			})
		})

		Context("with traversal attempts", func() {
			DescribeTable("never escaping the root",
				func(path string) {
					outcome := get(path)
					Expect(outcome.Status).To(Equal(http.StatusNotFound))
					Expect(outcome.Path).To(BeEmpty())
				},
				Entry("parent segment", "../secret.txt"),
				Entry("nested parent segments", "docs/../../secret.txt"),
				Entry("absolute-looking path", "/../secret.txt"),
				Entry("sibling directory sharing the prefix", "../www2/leak.html"),
				Entry("symlinked file outside the root", "link.txt"),
				Entry("file through a symlinked directory outside the root", "up/secret.txt"),
				Entry("deep traversal to system files", "../../../../../../etc/passwd"),
			)

			It("should allow symlinks that stay inside the root", func() {
				outcome := get("alias.css")
				Expect(outcome.Status).To(Equal(http.StatusOK))
				Expect(outcome.MimeType).To(Equal("text/css"))
			})

			It("should reject percent-encoded traversal once decoded", func() {
				for _, line := range []string{
					"GET /%2e%2e/secret.txt HTTP/1.1",
					"GET /%2E%2E%2Fsecret.txt HTTP/1.1",
					"GET /..%2fsecret.txt HTTP/1.1",
					"GET /docs/%2e%2e/%2e%2e/secret.txt HTTP/1.1",
				} {
					req, err := fileserver.ParseRequest([]byte(line + "\r\n"))
					Expect(err).NotTo(HaveOccurred())
					Expect(resolver.Resolve(req).Status).To(Equal(http.StatusNotFound), line)
				}
			})
		})

		Context("with disallowed methods", func() {
			It("should return 405 without touching the filesystem", func() {
				calls := 0
				resolver.SetStat(func(name string) (fs.FileInfo, error) {
					calls++
					return os.Stat(name)
				})
				resolver.SetEvalSymlinks(func(name string) (string, error) {
					calls++
					return filepath.EvalSymlinks(name)
				})

				for _, method := range []string{"POST", "PUT", "DELETE", "OPTIONS", "garbage"} {
					outcome := resolver.Resolve(fileserver.Request{Method: method, Path: "index.html"})
					Expect(outcome.Status).To(Equal(http.StatusMethodNotAllowed))
					Expect(string(outcome.Page)).To(ContainSubstring("405"))
				}
				Expect(calls).To(BeZero())
			})
		})
	})
})
