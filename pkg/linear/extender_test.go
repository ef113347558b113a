package linear_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	. "github.com/Cardinal-Cryptography/aleph-node/pkg/linear"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/random"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

var _ = Describe("Extender", func() {
	var (
		c        *tests.Committee
		dag      gomel.Dag
		cnf      *config.Config
		extender *Extender
	)

	BeforeEach(func() {
		c = tests.NewCommittee(5, 4)
		dag = tests.NewDag(c)
		cnf = c.Config(0, nil)
	})

	JustBeforeEach(func() {
		extender = NewExtender(dag, random.New(5), cnf, zerolog.Nop())
	})

	Describe("NextRound", func() {
		Context("on an empty dag", func() {
			It("should return nil", func() {
				Expect(extender.NextRound()).To(BeNil())
			})
		})

		Context("on a dag with only dealing units", func() {
			BeforeEach(func() {
				_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 1, tests.RoundData)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return nil", func() {
				Expect(extender.NextRound()).To(BeNil())
			})
		})

		Context("on a regular dag with 10 rounds", func() {
			BeforeEach(func() {
				_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 10, tests.RoundData)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should pick heads on consecutive rounds up to round 5", func() {
				for round := 0; round <= 5; round++ {
					tr := extender.NextRound()
					Expect(tr).NotTo(BeNil())
					Expect(tr.Head().Round()).To(Equal(round))
				}
				Expect(extender.NextRound()).To(BeNil())
			})

			It("should continue when the dag grows", func() {
				for extender.NextRound() != nil {
				}
				_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 12, tests.RoundData)
				Expect(err).NotTo(HaveOccurred())
				for round := 6; round <= 7; round++ {
					tr := extender.NextRound()
					Expect(tr).NotTo(BeNil())
					Expect(tr.Head().Round()).To(Equal(round))
				}
				Expect(extender.NextRound()).To(BeNil())
			})

			It("should order every unit below the last head exactly once", func() {
				seen := make(map[gomel.Hash]bool)
				var last gomel.Unit
				for tr := extender.NextRound(); tr != nil; tr = extender.NextRound() {
					for _, u := range tr.OrderedUnits() {
						Expect(seen[*u.Hash()]).To(BeFalse())
						seen[*u.Hash()] = true
						Expect(gomel.Above(tr.Head(), u)).To(BeTrue())
					}
					last = tr.Head()
				}
				Expect(seen).To(HaveLen(21))
				Expect(seen).To(HaveKey(*last.Hash()))
			})
		})

		Context("with a later start round", func() {
			BeforeEach(func() {
				cnf.OrderStartRound = 2
				_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 8, tests.RoundData)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should put everything below the first head in the first round", func() {
				tr := extender.NextRound()
				Expect(tr).NotTo(BeNil())
				Expect(tr.Head().Round()).To(Equal(2))
				Expect(tr.OrderedUnits()).To(HaveLen(9))
			})
		})

		Context("when only a quorum of processes produces units", func() {
			BeforeEach(func() {
				_, err := tests.BuildRounds(dag, c, []uint16{0, 1, 3}, 10, tests.RoundData)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should still make progress", func() {
				for round := 0; round <= 5; round++ {
					tr := extender.NextRound()
					Expect(tr).NotTo(BeNil())
					Expect(tr.Head().Creator()).NotTo(Equal(uint16(2)))
				}
			})
		})
	})

	Describe("ExtenderService", func() {
		var (
			output  chan gomel.Batch
			service *ExtenderService
		)

		BeforeEach(func() {
			output = make(chan gomel.Batch, 16)
		})

		JustBeforeEach(func() {
			service = NewExtenderService(dag, random.New(5), cnf, output, zerolog.Nop())
			dag.AfterInsert(func(gomel.Unit) { service.Notify() })
		})

		AfterEach(func() {
			service.Close()
		})

		It("should emit consecutive batches of blocks as the dag grows", func() {
			_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 10, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i <= 5; i++ {
				var batch gomel.Batch
				Eventually(output, time.Second).Should(Receive(&batch))
				Expect(batch.Session).To(Equal(gomel.SessionID(5)))
				Expect(batch.Index).To(Equal(uint64(i)))
				Expect(batch.Round).To(Equal(i))
				if i == 0 {
					Expect(batch.Blocks).To(Equal([]gomel.BlockRef{tests.BlockAt(1)}))
				} else {
					Expect(batch.Blocks).To(Equal([]gomel.BlockRef{tests.BlockAt(uint64(i)), tests.BlockAt(uint64(i + 1))}))
				}
			}
			Consistently(output, 100*time.Millisecond).ShouldNot(Receive())
		})

		It("should emit batches without blocks for empty units", func() {
			_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 5, tests.EmptyData)
			Expect(err).NotTo(HaveOccurred())
			var batch gomel.Batch
			Eventually(output, time.Second).Should(Receive(&batch))
			Expect(batch.Blocks).To(BeEmpty())
			Expect(batch.Units).To(HaveLen(1))
		})

		Context("when nobody reads the output", func() {
			BeforeEach(func() {
				output = make(chan gomel.Batch)
			})

			It("should close anyway", func() {
				_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 10, tests.RoundData)
				Expect(err).NotTo(HaveOccurred())
				done := make(chan struct{})
				go func() {
					service.Close()
					close(done)
				}()
				Eventually(done, time.Second).Should(BeClosed())
				service.Notify()
			})
		})
	})
})
