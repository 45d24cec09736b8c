package pattern_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/auditsec/taintflow/pattern"
)

var _ = Describe("Registry", func() {
	var reg *pattern.Registry

	BeforeEach(func() {
		reg = pattern.NewRegistry(nil)
	})

	Context("when registering signatures", func() {
		It("accepts attribute forms", func() {
			for _, sig := range []string{"db.execute", "req.query", "urllib.request.urlopen", "child_process.execSync"} {
				err := reg.Register(pattern.Pattern{Signature: sig, Kind: pattern.Sink, Category: "test"})
				Expect(err).ShouldNot(HaveOccurred(), sig)
			}
		})

		It("accepts allowlisted bare callables", func() {
			for _, sig := range []string{"eval", "exec", "open", "fetch"} {
				err := reg.Register(pattern.Pattern{Signature: sig, Kind: pattern.Sink, Category: "test"})
				Expect(err).ShouldNot(HaveOccurred(), sig)
			}
		})

		It("refuses common identifiers regardless of kind", func() {
			for _, sig := range []string{"user", "token", "password", "SESSION", "data"} {
				for _, kind := range []pattern.Kind{pattern.Source, pattern.Sink, pattern.Sanitizer} {
					err := reg.Register(pattern.Pattern{Signature: sig, Kind: kind, Category: "test"})
					Expect(err).Should(HaveOccurred(), sig)
					var invalid *pattern.InvalidPatternError
					Expect(errors.As(err, &invalid)).Should(BeTrue())
					Expect(invalid.Signature).Should(Equal(sig))
				}
			}
		})

		It("refuses empty, dangling, and too-short signatures", func() {
			for _, sig := range []string{"", "  ", ".execute", "query.", "ab"} {
				err := reg.Register(pattern.Pattern{Signature: sig, Kind: pattern.Sink, Category: "test"})
				Expect(err).Should(HaveOccurred(), "%q", sig)
			}
		})

		It("counts rejections and keeps the valid entries", func() {
			accepted, err := reg.RegisterAll([]pattern.Pattern{
				{Signature: "db.execute", Kind: pattern.Sink, Category: "sql-injection"},
				{Signature: "user", Kind: pattern.Sink, Category: "sql-injection"},
				{Signature: "req.query", Kind: pattern.Source, Category: "user-input"},
			})
			Expect(err).Should(HaveOccurred())
			Expect(accepted).Should(Equal(2))
			Expect(reg.Rejections()).Should(Equal(1))
			Expect(reg.Patterns(pattern.Sink)).Should(HaveLen(1))
			Expect(reg.Patterns(pattern.Source)).Should(HaveLen(1))
		})
	})

	Context("when matching expressions", func() {
		BeforeEach(func() {
			_, err := reg.RegisterAll([]pattern.Pattern{
				{Signature: "req.query", Kind: pattern.Source, Category: "user-input"},
				{Signature: "db.execute", Kind: pattern.Sink, Category: "sql-injection"},
				{Signature: "escape", Kind: pattern.Sanitizer, Category: "sql-injection"},
			})
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("matches sources by prefix on attribute boundaries", func() {
			p, ok := reg.Match(pattern.Source, "req.query.name")
			Expect(ok).Should(BeTrue())
			Expect(p.Signature).Should(Equal("req.query"))

			_, ok = reg.Match(pattern.Source, "req.queryString")
			Expect(ok).Should(BeFalse())
		})

		It("matches sinks by suffix on attribute boundaries", func() {
			_, ok := reg.Match(pattern.Sink, "db.execute")
			Expect(ok).Should(BeTrue())
			_, ok = reg.Match(pattern.Sink, "app.db.execute")
			Expect(ok).Should(BeTrue())
			_, ok = reg.Match(pattern.Sink, "mydb.execute")
			Expect(ok).Should(BeFalse())
		})

		It("never matches sanitizers as substrings", func() {
			_, ok := reg.Match(pattern.Sanitizer, "escape")
			Expect(ok).Should(BeTrue())
			_, ok = reg.Match(pattern.Sanitizer, "sqlstring.escape")
			Expect(ok).Should(BeTrue())
			_, ok = reg.Match(pattern.Sanitizer, "myescape")
			Expect(ok).Should(BeFalse())
			_, ok = reg.Match(pattern.Sanitizer, "escaped")
			Expect(ok).Should(BeFalse())
		})
	})
})

var _ = Describe("Catalogs", func() {
	It("ships only signatures that pass validation", func() {
		reg := pattern.NewRegistry(nil)
		accepted, err := reg.RegisterAll(pattern.DefaultCatalog())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(accepted).Should(Equal(len(pattern.DefaultCatalog())))
		Expect(reg.Rejections()).Should(BeZero())
	})

	It("loads YAML catalogs strictly", func() {
		doc := `
patterns:
  - signature: db.execute
    kind: sink
    category: sql-injection
  - signature: req.query
    kind: source
    category: user-input
`
		patterns, err := pattern.LoadCatalog(strings.NewReader(doc))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(patterns).Should(HaveLen(2))
		Expect(patterns[0].Kind).Should(Equal(pattern.Sink))
		Expect(patterns[1].Kind).Should(Equal(pattern.Source))
	})

	It("rejects unknown fields and unknown kinds", func() {
		_, err := pattern.LoadCatalog(strings.NewReader("patterns:\n  - signature: x.y\n    kind: sink\n    severity: high\n"))
		Expect(err).Should(HaveOccurred())

		_, err = pattern.LoadCatalog(strings.NewReader("patterns:\n  - signature: x.y\n    kind: cleanser\n"))
		Expect(err).Should(HaveOccurred())
	})
})
