package dag_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

var _ = Describe("Dag", func() {

	var (
		committee *tests.Committee
		dag       gomel.Dag
		inserted  []gomel.Unit
		forks     []*gomel.ForkEvidence
	)

	BeforeEach(func() {
		committee = tests.NewCommittee(3, 4)
		dag = tests.NewDag(committee)
		inserted, forks = nil, nil
		dag.AfterInsert(func(u gomel.Unit) { inserted = append(inserted, u) })
		dag.OnFork(func(fe *gomel.ForkEvidence) { forks = append(forks, fe) })
	})

	Describe("inserting units", func() {

		It("should store units by hash and by round", func() {
			units, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 3, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(Equal(units))
			for _, u := range units {
				Expect(dag.GetUnit(u.Hash())).To(Equal(u))
				Expect(dag.UnitsOnRound(u.Round()).Get(u.Creator())).To(ConsistOf(u))
				Expect(dag.GetByID(gomel.UnitID(u))).To(ConsistOf(u))
			}
			Expect(dag.MaxRound()).To(Equal(2))
			Expect(forks).To(BeEmpty())
		})

		It("should return the parents of a unit", func() {
			units, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 2, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			last := units[len(units)-1]
			Expect(dag.ParentsOf(last.Hash())).To(Equal(last.ParentHashes()))
			Expect(dag.ParentsOf(&gomel.Hash{1})).To(BeNil())
		})

		It("should keep the latest units of every process as maximal", func() {
			_, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 4, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			dag.MaximalUnitsPerProcess().Iterate(func(units []gomel.Unit) bool {
				Expect(units).To(HaveLen(1))
				Expect(units[0].Round()).To(Equal(3))
				return true
			})
		})

		It("should complete a round with units of a quorum of creators only", func() {
			_, err := tests.BuildRounds(dag, committee, []uint16{0, 1, 2}, 5, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			Expect(dag.IsRoundComplete(4)).To(BeTrue())
			Expect(dag.UnitsOnRound(4).Get(3)).To(BeEmpty())
		})

		It("should not complete a round with less than a quorum of creators", func() {
			_, err := tests.BuildRounds(dag, committee, []uint16{0, 1}, 1, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			Expect(dag.IsRoundComplete(0)).To(BeFalse())
		})

		It("should compute the relation of being above", func() {
			units, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 3, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			top := dag.UnitsOnRound(2).Get(0)[0]
			for _, u := range units {
				Expect(gomel.Above(top, u)).To(Equal(u.Round() < 2 || gomel.Equal(u, top)))
			}
			Expect(gomel.Above(units[0], top)).To(BeFalse())
		})
	})

	Describe("forks", func() {

		It("should admit the fork and record evidence with the smaller hash first", func() {
			_, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 2, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			fork, err := tests.Fork(dag, committee, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(dag.UnitsOnRound(1).Get(1)).To(HaveLen(2))
			Expect(forks).To(HaveLen(1))
			Expect(dag.Forks()).To(Equal(forks))
			fe := forks[0]
			Expect(fe.Creator).To(BeEquivalentTo(1))
			Expect(fe.Round).To(Equal(1))
			Expect(fe.HashA.LessThan(&fe.HashB)).To(BeTrue())
			Expect([]gomel.Hash{fe.HashA, fe.HashB}).To(ContainElement(*fork.Hash()))
			Expect(dag.MaximalUnitsPerProcess().Get(1)).To(HaveLen(2))
		})

		It("should keep extending the dag above a fork", func() {
			_, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 2, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			_, err = tests.Fork(dag, committee, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = tests.BuildRounds(dag, committee, tests.AllCreators(4), 4, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			Expect(dag.IsRoundComplete(3)).To(BeTrue())
		})
	})

	Describe("checks", func() {

		It("should report unknown parents", func() {
			parents := gomel.NoParents(4)
			parents[0] = &gomel.Hash{1}
			parents[1] = &gomel.Hash{2}
			parents[2] = &gomel.Hash{3}
			pu := committee.Sign(unit.NewPreunit(3, 0, 1, parents, nil, nil))
			_, err := dag.DecodeParents(pu)
			Expect(err).To(HaveOccurred())
			up, ok := err.(*gomel.UnknownParents)
			Expect(ok).To(BeTrue())
			Expect(up.Amount).To(Equal(3))
		})

		It("should reject a wrong number of parents", func() {
			pu := committee.Sign(unit.NewPreunit(3, 0, 0, gomel.NoParents(3), nil, nil))
			_, err := dag.DecodeParents(pu)
			Expect(err).To(BeAssignableToTypeOf(&gomel.DataError{}))
		})

		It("should reject a unit of another session", func() {
			pu := committee.Sign(unit.NewPreunit(4, 0, 0, gomel.NoParents(4), nil, nil))
			_, err := tests.AddUnit(dag, pu)
			Expect(err).To(BeAssignableToTypeOf(&gomel.DataError{}))
		})

		It("should reject a unit without its predecessor", func() {
			_, err := tests.BuildRounds(dag, committee, []uint16{0, 1, 2}, 1, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			pu := tests.NewPreunit(dag, committee, 3, 1, nil)
			_, err = tests.AddUnit(dag, pu)
			Expect(err).To(BeAssignableToTypeOf(&gomel.ComplianceError{}))
		})

		It("should reject a unit whose round does not follow its parents", func() {
			_, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 1, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			pu := tests.NewPreunit(dag, committee, 0, 1, nil)
			wrong := committee.Sign(unit.NewPreunit(3, 0, 2, pu.ParentHashes(), nil, nil))
			_, err = tests.AddUnit(dag, wrong)
			Expect(err).To(BeAssignableToTypeOf(&gomel.ComplianceError{}))
		})

		It("should report a duplicate", func() {
			units, err := tests.BuildRounds(dag, committee, tests.AllCreators(4), 1, tests.RoundData)
			Expect(err).NotTo(HaveOccurred())
			u := units[0]
			_, err = tests.AddUnit(dag, unit.NewPreunit(u.Session(), u.Creator(), u.Round(), u.ParentHashes(), u.Data(), u.Signature()))
			Expect(err).To(BeAssignableToTypeOf(&gomel.DuplicateUnit{}))
		})
	})
})
