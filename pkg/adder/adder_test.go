package adder_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	. "github.com/Cardinal-Cryptography/aleph-node/pkg/adder"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

var _ = Describe("Adder", func() {

	var (
		committee *tests.Committee
		conf      *config.Config
		source    gomel.Dag
		dag       gomel.Dag
		syncer    *tests.Syncer
		adder     gomel.Adder
		preunits  []gomel.Preunit
	)

	inDag := func(pu gomel.Preunit) func() gomel.Unit {
		return func() gomel.Unit { return dag.GetUnit(pu.Hash()) }
	}

	BeforeEach(func() {
		committee = tests.NewCommittee(1, 4)
		conf = committee.Config(0, nil)
		conf.FetchInterval = 50 * time.Millisecond
		source = tests.NewDag(committee)
		units, err := tests.BuildRounds(source, committee, tests.AllCreators(4), 4, tests.RoundData)
		Expect(err).NotTo(HaveOccurred())
		preunits = tests.ToPreunits(units)
		dag = tests.NewDag(committee)
		syncer = &tests.Syncer{}
		adder = New(dag, conf, syncer, zerolog.Nop())
	})

	AfterEach(func() {
		adder.Close()
	})

	Describe("adding preunits in order", func() {

		It("should add all of them", func() {
			errs := adder.AddPreunits(1, preunits...)
			Expect(errs).To(BeNil())
			for _, pu := range preunits {
				Eventually(inDag(pu)).ShouldNot(BeNil())
			}
			Expect(syncer.Fetches()).To(BeEmpty())
		})

		It("should report duplicates", func() {
			Expect(adder.AddPreunits(1, preunits[0])).To(BeNil())
			Eventually(inDag(preunits[0])).ShouldNot(BeNil())
			errs := adder.AddPreunits(2, preunits[0])
			Expect(errs).To(HaveLen(1))
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.DuplicateUnit{}))
			Expect(gomel.ResultOf(errs[0])).To(Equal(gomel.AlreadyKnown))
		})
	})

	Describe("adding preunits with missing parents", func() {

		It("should buffer them and add them once the parents arrive", func() {
			last := preunits[len(preunits)-1]
			errs := adder.AddPreunits(2, last)
			Expect(errs).To(HaveLen(1))
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.UnknownParents{}))
			Expect(gomel.ResultOf(errs[0])).To(Equal(gomel.BufferedMissingParents))
			Consistently(inDag(last), 50*time.Millisecond).Should(BeNil())

			errs = adder.AddPreunits(2, last)
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.DuplicatePreunit{}))
			Expect(gomel.ResultOf(errs[0])).To(Equal(gomel.AlreadyKnown))

			adder.AddPreunits(3, preunits[:len(preunits)-1]...)
			for _, pu := range preunits {
				Eventually(inDag(pu)).ShouldNot(BeNil())
			}
		})

		It("should replay units received in reverse order", func() {
			for i := len(preunits) - 1; i >= 0; i-- {
				adder.AddPreunits(1, preunits[i])
			}
			for _, pu := range preunits {
				Eventually(inDag(pu)).ShouldNot(BeNil())
			}
		})

		It("should fetch the missing parents from the sender", func() {
			last := preunits[len(preunits)-1]
			adder.AddPreunits(2, last)
			fetches := syncer.Fetches()
			Expect(fetches).To(HaveLen(1))
			Expect(fetches[0].Pid).To(BeEquivalentTo(2))
			Expect(fetches[0].Hashes).To(ConsistOf(last.ParentHashes()))
		})

		It("should ask other processes when the sender does not answer", func() {
			last := preunits[len(preunits)-1]
			adder.AddPreunits(2, last)
			Eventually(func() []uint16 {
				var pids []uint16
				for _, f := range syncer.Fetches() {
					pids = append(pids, f.Pid)
				}
				return pids
			}, time.Second).Should(ContainElement(BeEquivalentTo(3)))
		})

		It("should limit the preunits waiting for parents per sender", func() {
			conf.WaitingLimit = 2
			Expect(adder.AddPreunits(2, preunits[8], preunits[9])[1]).To(BeAssignableToTypeOf(&gomel.UnknownParents{}))
			errs := adder.AddPreunits(2, preunits[10])
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.DataError{}))
			Expect(gomel.ResultOf(errs[0])).To(Equal(gomel.Invalid))
			errs = adder.AddPreunits(3, preunits[11])
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.UnknownParents{}))

			adder.AddPreunits(1, preunits[:4]...)
			for _, pu := range preunits[:4] {
				Eventually(inDag(pu)).ShouldNot(BeNil())
			}
			adder.AddPreunits(1, preunits[4:8]...)
			for _, pu := range []gomel.Preunit{preunits[8], preunits[9], preunits[11]} {
				Eventually(inDag(pu)).ShouldNot(BeNil())
			}
			Expect(adder.AddPreunits(2, preunits[10])).To(BeNil())
			Eventually(inDag(preunits[10])).ShouldNot(BeNil())
		})

		It("should request the tip when too much is missing", func() {
			conf.TipAbove = 2
			adder.AddPreunits(2, preunits[len(preunits)-1])
			Expect(syncer.Tips()).To(ConsistOf(2))
		})
	})

	Describe("adding incorrect preunits", func() {

		It("should reject a preunit with a forged signature", func() {
			pu := preunits[0]
			forged := unit.NewPreunit(pu.Session(), pu.Creator(), pu.Round(), pu.ParentHashes(), pu.Data(), committee.Keys[1].Sign(pu.Hash()))
			errs := adder.AddPreunits(1, forged)
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.DataError{}))
			Expect(gomel.ResultOf(errs[0])).To(Equal(gomel.Invalid))
			Consistently(inDag(pu), 50*time.Millisecond).Should(BeNil())
		})

		It("should reject a preunit of another session", func() {
			other := committee.WithSession(2)
			pu := other.Sign(unit.NewPreunit(2, 0, 0, gomel.NoParents(4), nil, nil))
			errs := adder.AddPreunits(1, pu)
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.DataError{}))
		})

		It("should reject a preunit of a creator outside of the committee", func() {
			pu := unit.NewPreunit(1, 7, 0, gomel.NoParents(4), nil, nil)
			errs := adder.AddPreunits(1, pu)
			Expect(errs[0]).To(BeAssignableToTypeOf(&gomel.DataError{}))
		})

		It("should drop the children of a unit failing the checks", func() {
			// a round 1 unit with a dealing unit of creator 3 in the slot of creator 2
			parents := gomel.NoParents(4)
			parents[0] = preunits[0].Hash()
			parents[1] = preunits[1].Hash()
			parents[2] = preunits[3].Hash()
			bad := committee.Sign(unit.NewPreunit(1, 0, 1, parents, nil, nil))
			childParents := gomel.NoParents(4)
			childParents[0] = bad.Hash()
			childParents[1] = preunits[5].Hash()
			childParents[2] = preunits[6].Hash()
			child := committee.Sign(unit.NewPreunit(1, 0, 2, childParents, nil, nil))

			adder.AddPreunits(1, child)
			adder.AddPreunits(1, bad)
			adder.AddPreunits(1, preunits[:8]...)
			for _, pu := range preunits[:8] {
				Eventually(inDag(pu)).ShouldNot(BeNil())
			}
			Consistently(inDag(child), 100*time.Millisecond).Should(BeNil())
			Expect(inDag(bad)()).To(BeNil())
		})
	})

	Describe("adding own units", func() {

		It("should return the unit once it is in the dag", func() {
			u, err := adder.AddOwnUnit(preunits[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(u).NotTo(BeNil())
			Expect(dag.GetUnit(preunits[0].Hash())).To(Equal(u))
		})

		It("should refuse units with unknown parents", func() {
			_, err := adder.AddOwnUnit(preunits[len(preunits)-1])
			Expect(err).To(HaveOccurred())
		})

		It("should not fetch the parents of a refused unit", func() {
			_, err := adder.AddOwnUnit(preunits[len(preunits)-1])
			Expect(err).To(BeAssignableToTypeOf(&gomel.UnknownParents{}))
			Consistently(syncer.Fetches, 4*conf.FetchInterval).Should(BeEmpty())
			Expect(syncer.Tips()).To(BeEmpty())
		})
	})

	Describe("forks", func() {

		It("should add both versions and record the evidence", func() {
			adder.AddPreunits(1, preunits[:4]...)
			for _, pu := range preunits[:4] {
				Eventually(inDag(pu)).ShouldNot(BeNil())
			}
			b := tests.BlockAt(99)
			fork := committee.Sign(unit.NewPreunit(1, 2, 0, gomel.NoParents(4), &b, nil))
			Expect(adder.AddPreunits(2, fork)).To(BeNil())
			Eventually(inDag(fork)).ShouldNot(BeNil())
			Expect(dag.Forks()).To(HaveLen(1))
		})
	})

	Describe("closing", func() {

		It("should drop buffered preunits", func() {
			last := preunits[len(preunits)-1]
			adder.AddPreunits(2, last)
			adder.Close()
			adder.AddPreunits(2, preunits[:len(preunits)-1]...)
			Consistently(inDag(preunits[0]), 50*time.Millisecond).Should(BeNil())
		})
	})
})
