package taintflow_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/auditsec/taintflow"
	"github.com/auditsec/taintflow/fact"
	"github.com/auditsec/taintflow/finding"
	"github.com/auditsec/taintflow/pattern"
	"github.com/auditsec/taintflow/testutils"
)

func defaultRegistry() *pattern.Registry {
	reg := pattern.NewRegistry(nil)
	_, err := reg.RegisterAll(pattern.DefaultCatalog())
	Expect(err).ShouldNot(HaveOccurred())
	return reg
}

func analyze(cfg taintflow.Config, store fact.Store) ([]finding.Finding, taintflow.Metrics) {
	analyzer, err := taintflow.NewAnalyzer(cfg, defaultRegistry(), nil)
	Expect(err).ShouldNot(HaveOccurred())
	findings, metrics, err := analyzer.Analyze(context.Background(), store)
	Expect(err).ShouldNot(HaveOccurred())
	return findings, metrics
}

var _ = Describe("Analyzer", func() {
	var cfg taintflow.Config

	BeforeEach(func() {
		cfg = taintflow.DefaultConfig()
	})

	Context("with a direct flow in one block", func() {
		It("reports one sql injection finding with full evidence", func() {
			findings, metrics := analyze(cfg, testutils.DirectFlowStore())

			Expect(findings).Should(HaveLen(1))
			f := findings[0]
			Expect(f.Category).Should(Equal("sql-injection"))
			Expect(f.Severity).Should(Equal(finding.High))
			Expect(f.Cwe.ID).Should(Equal("89"))
			Expect(f.Source.Expression).Should(Equal("req.query.name"))
			Expect(f.Source.Line).Should(Equal(10))
			Expect(f.Sink.Expression).Should(Equal("db.execute"))
			Expect(f.Sink.Line).Should(Equal(12))
			Expect(f.RunID).Should(Equal(metrics.RunID))

			Expect(f.Path).Should(HaveLen(2))
			Expect(f.Path[0].Kind).Should(Equal(finding.HopAssignment))
			Expect(f.Path[1].Kind).Should(Equal(finding.HopSinkCall))

			Expect(metrics.Sources).Should(Equal(1))
			Expect(metrics.Sinks).Should(Equal(1))
			Expect(metrics.Findings).Should(Equal(1))
		})

		It("reports the same findings on every run", func() {
			first, _ := analyze(cfg, testutils.DirectFlowStore())
			second, _ := analyze(cfg, testutils.DirectFlowStore())
			Expect(second).Should(HaveLen(len(first)))
			for i := range first {
				first[i].RunID = ""
				second[i].RunID = ""
			}
			Expect(second).Should(Equal(first))
		})
	})

	Context("with a sanitizer between source and sink", func() {
		It("reports nothing and counts the sanitized branch", func() {
			findings, metrics := analyze(cfg, testutils.SanitizedFlowStore())
			Expect(findings).Should(BeEmpty())
			Expect(metrics.SanitizedBranches).Should(BeNumerically(">=", 1))
		})

		It("does not treat a sanitizer name substring as a sanitizer", func() {
			findings, _ := analyze(cfg, testutils.SubstringSanitizerStore())
			Expect(findings).Should(HaveLen(1))
			Expect(findings[0].Category).Should(Equal("sql-injection"))
		})
	})

	Context("with the sink inside a callee", func() {
		It("follows taint through the call when interprocedural analysis is on", func() {
			findings, _ := analyze(cfg, testutils.InterproceduralStore())
			Expect(findings).Should(HaveLen(1))
			f := findings[0]
			Expect(f.Sink.Line).Should(Equal(33))
			Expect(f.Source.Expression).Should(Equal("req.body"))

			kinds := make([]finding.HopKind, 0, len(f.Path))
			for _, hop := range f.Path {
				kinds = append(kinds, hop.Kind)
			}
			Expect(kinds).Should(ContainElement(finding.HopCallArgument))
		})

		It("stays intraprocedural when the phase is disabled", func() {
			cfg.EnableInterprocedural = false
			findings, _ := analyze(cfg, testutils.InterproceduralStore())
			Expect(findings).Should(BeEmpty())
		})
	})

	Context("with a callee returning its tainted parameter", func() {
		It("records the caller-side binding once, not as a duplicate hop", func() {
			findings, _ := analyze(cfg, testutils.ReturnFlowStore())
			Expect(findings).Should(HaveLen(1))
			f := findings[0]
			Expect(f.Sink.Line).Should(Equal(12))

			kinds := make([]finding.HopKind, 0, len(f.Path))
			for _, hop := range f.Path {
				kinds = append(kinds, hop.Kind)
			}
			Expect(kinds).Should(Equal([]finding.HopKind{
				finding.HopAssignment,
				finding.HopAssignment,
				finding.HopSinkCall,
			}))

			// The y = helper(data) binding at line 10 appears exactly once.
			bindings := 0
			for _, hop := range f.Path {
				if hop.Line == 10 {
					bindings++
				}
			}
			Expect(bindings).Should(Equal(1))
		})

		It("carries taint through the return value when the assignment elides the argument", func() {
			findings, _ := analyze(cfg, testutils.ElidedReturnFlowStore())
			Expect(findings).Should(HaveLen(1))
			f := findings[0]
			Expect(f.Sink.Line).Should(Equal(12))

			kinds := make([]finding.HopKind, 0, len(f.Path))
			for _, hop := range f.Path {
				kinds = append(kinds, hop.Kind)
			}
			Expect(kinds).Should(Equal([]finding.HopKind{
				finding.HopAssignment,
				finding.HopCallReturn,
				finding.HopSinkCall,
			}))
			Expect(f.Path[1].Line).Should(Equal(10))
		})
	})

	Context("with an indirect call through a handler registration", func() {
		It("resolves the callee via the handler map", func() {
			findings, _ := analyze(cfg, testutils.DynamicDispatchStore())
			Expect(findings).Should(HaveLen(1))
			Expect(findings[0].Sink.Line).Should(Equal(33))
		})

		It("drops the branch when dynamic dispatch is disabled", func() {
			cfg.EnableDynamicDispatch = false
			findings, _ := analyze(cfg, testutils.DynamicDispatchStore())
			Expect(findings).Should(BeEmpty())
		})
	})

	Context("with a control-flow cycle", func() {
		It("terminates without findings", func() {
			findings, metrics := analyze(cfg, testutils.CycleStore())
			Expect(findings).Should(BeEmpty())
			Expect(metrics.ExhaustedBranches).Should(BeNumerically(">=", 1))
		})
	})

	Context("with tainted data reaching eval", func() {
		It("reports the eval sink and taints the whole scope", func() {
			findings, _ := analyze(cfg, testutils.WildcardEvalStore())
			Expect(findings).Should(HaveLen(2))

			categories := []string{findings[0].Category, findings[1].Category}
			Expect(categories).Should(ConsistOf("command-injection", "sql-injection"))
		})
	})

	Context("with no control-flow facts", func() {
		It("degrades to a function-span walk and still finds the flow", func() {
			findings, _ := analyze(cfg, testutils.NoCfgStore())
			Expect(findings).Should(HaveLen(1))
			Expect(findings[0].Category).Should(Equal("sql-injection"))
		})
	})

	Context("with a sanitizer on only one branch of a diamond", func() {
		It("reports the flow through the unsanitized arm only", func() {
			findings, metrics := analyze(cfg, testutils.BranchedFlowStore())
			Expect(findings).Should(HaveLen(1))
			Expect(findings[0].Sink.Line).Should(Equal(21))
			Expect(metrics.SanitizedBranches).Should(BeNumerically(">=", 1))
		})
	})

	Context("with multiple workers", func() {
		It("produces the same sorted findings as a single worker", func() {
			cfg.Workers = 1
			serial, _ := analyze(cfg, testutils.WildcardEvalStore())
			cfg.Workers = 8
			parallel, _ := analyze(cfg, testutils.WildcardEvalStore())
			for i := range serial {
				serial[i].RunID = ""
			}
			for i := range parallel {
				parallel[i].RunID = ""
			}
			Expect(parallel).Should(Equal(serial))
		})
	})

	Context("with a tight visit budget", func() {
		It("stops expanding and reports the exhaustion", func() {
			cfg.MaxVisitedNodes = 1
			findings, metrics := analyze(cfg, testutils.BranchedFlowStore())
			Expect(metrics.ExhaustedBranches).Should(BeNumerically(">=", 1))
			Expect(metrics.VisitedNodes).Should(BeNumerically("<=", 1))
			Expect(len(findings)).Should(BeNumerically("<=", 1))
		})
	})

	Context("with bad inputs", func() {
		It("rejects a nil store", func() {
			analyzer, err := taintflow.NewAnalyzer(cfg, defaultRegistry(), nil)
			Expect(err).ShouldNot(HaveOccurred())
			_, _, err = analyzer.Analyze(context.Background(), nil)
			Expect(err).Should(MatchError(taintflow.ErrNilStore))
		})

		It("rejects a nil registry", func() {
			_, err := taintflow.NewAnalyzer(cfg, nil, nil)
			Expect(err).Should(MatchError(taintflow.ErrNilRegistry))
		})

		It("completes with the findings gathered so far on cancellation", func() {
			analyzer, err := taintflow.NewAnalyzer(cfg, defaultRegistry(), nil)
			Expect(err).ShouldNot(HaveOccurred())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			findings, metrics, err := analyzer.Analyze(ctx, testutils.DirectFlowStore())

			// Cancellation behaves like a spent budget: branch expansion
			// stops, the run itself still completes with diagnostics.
			Expect(err).ShouldNot(HaveOccurred())
			Expect(findings).Should(BeEmpty())
			Expect(metrics.RunID).ShouldNot(BeEmpty())
			Expect(metrics.Sources).Should(Equal(1))
			Expect(metrics.ExhaustedBranches).Should(BeNumerically(">=", 1))
			Expect(metrics.VisitedNodes).Should(BeZero())
		})
	})
})

var _ = Describe("Config", func() {
	It("accepts the defaults", func() {
		Expect(taintflow.DefaultConfig().Validate()).Should(Succeed())
	})

	It("rejects non-positive budgets", func() {
		for _, mutate := range []func(*taintflow.Config){
			func(c *taintflow.Config) { c.MaxRecursionDepth = 0 },
			func(c *taintflow.Config) { c.MaxPathLength = -1 },
			func(c *taintflow.Config) { c.BlockSize = 0 },
			func(c *taintflow.Config) { c.MaxVisitedNodes = 0 },
			func(c *taintflow.Config) { c.Workers = 0 },
		} {
			cfg := taintflow.DefaultConfig()
			mutate(&cfg)
			Expect(cfg.Validate()).Should(HaveOccurred())
		}
	})
})
