package linear

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/random"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

type countingSource struct {
	rs     gomel.RandomSource
	called int
}

func (cs *countingSource) RandomBytes(pid uint16, round int) []byte {
	cs.called++
	if cs.rs == nil {
		return nil
	}
	return cs.rs.RandomBytes(pid, round)
}

var _ = Describe("Common random permutation", func() {
	var (
		dag gomel.Dag
		rs  *countingSource
	)

	collect := func(crp *commonRandomPermutation, round int) ([]gomel.Unit, bool) {
		var perm []gomel.Unit
		ok := crp.iterate(round, func(u gomel.Unit) bool {
			perm = append(perm, u)
			return true
		})
		return perm, ok
	}

	BeforeEach(func() {
		c := tests.NewCommittee(0, 4)
		dag = tests.NewDag(c)
		_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 4, tests.RoundData)
		Expect(err).NotTo(HaveOccurred())
		rs = &countingSource{rs: random.New(0)}
	})

	It("should split processes starting from the round", func() {
		prefix, suffix := splitProcesses(4, 2, 5)
		Expect(prefix).To(Equal([]uint16{1, 2}))
		Expect(suffix).To(Equal([]uint16{3, 0}))
		prefix, suffix = splitProcesses(4, 7, 0)
		Expect(prefix).To(HaveLen(4))
		Expect(suffix).To(BeEmpty())
	})

	Context("with the deterministic part covering all processes", func() {
		It("should sort the units by hash without using randomness", func() {
			perm, ok := collect(newCommonRandomPermutation(dag, rs, 4), 2)
			Expect(ok).To(BeTrue())
			Expect(perm).To(HaveLen(4))
			for i := 1; i < len(perm); i++ {
				Expect(perm[i-1].Hash().LessThan(perm[i].Hash())).To(BeTrue())
			}
			Expect(rs.called).To(BeZero())
		})
	})

	Context("without the deterministic part", func() {
		It("should return every unit of the round, the same way every time", func() {
			crp := newCommonRandomPermutation(dag, rs, 0)
			perm, ok := collect(crp, 2)
			Expect(ok).To(BeTrue())
			Expect(perm).To(ConsistOf(dag.UnitsOnRound(2).Get(0)[0], dag.UnitsOnRound(2).Get(1)[0],
				dag.UnitsOnRound(2).Get(2)[0], dag.UnitsOnRound(2).Get(3)[0]))
			Expect(rs.called).To(Equal(4))

			again, _ := collect(newCommonRandomPermutation(dag, &countingSource{rs: random.New(0)}, 0), 2)
			Expect(again).To(Equal(perm))
		})

		It("should report missing randomness", func() {
			_, ok := collect(newCommonRandomPermutation(dag, &countingSource{}, 2), 2)
			Expect(ok).To(BeFalse())
		})

		It("should not need randomness when stopped within the prefix", func() {
			empty := &countingSource{}
			ok := newCommonRandomPermutation(dag, empty, 2).iterate(2, func(gomel.Unit) bool { return false })
			Expect(ok).To(BeTrue())
			Expect(empty.called).To(BeZero())
		})
	})
})
