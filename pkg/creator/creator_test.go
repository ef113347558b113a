package creator_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/adder"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/config"
	. "github.com/Cardinal-Cryptography/aleph-node/pkg/creator"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

type failingProposer struct{}

func (failingProposer) ProposeNextBlock(context.Context) (*gomel.BlockRef, error) {
	return nil, errors.New("backend down")
}

var _ = Describe("Creator", func() {
	var (
		c     *tests.Committee
		dag   gomel.Dag
		chain *tests.Chain
		cnf   *config.Config
		cr    *Creator
		ctx   context.Context
	)

	BeforeEach(func() {
		c = tests.NewCommittee(2, 4)
		dag = tests.NewDag(c)
		chain = tests.NewChain(20, 20)
		cnf = c.Config(0, nil)
		ctx = context.Background()
	})

	JustBeforeEach(func() {
		cr = New(dag, chain, cnf, zerolog.Nop())
	})

	It("should create a dealing unit on an empty dag", func() {
		pu, err := cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu).NotTo(BeNil())
		Expect(pu.Round()).To(Equal(0))
		Expect(pu.Creator()).To(Equal(uint16(0)))
		Expect(pu.Session()).To(Equal(gomel.SessionID(2)))
		Expect(*pu.Data()).To(Equal(tests.BlockAt(1)))
		Expect(c.Session.Keys[0].Verify(pu)).To(BeTrue())
	})

	It("should propose an empty unit when no block is ready", func() {
		chain = tests.NewChain(20, 0)
		cr = New(dag, chain, cnf, zerolog.Nop())
		pu, err := cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu.Data()).To(BeNil())
	})

	It("should report errors of the proposer", func() {
		cr = New(dag, failingProposer{}, cnf, zerolog.Nop())
		_, err := cr.MaybeCreateUnit(ctx)
		Expect(err).To(MatchError(ContainSubstring("backend down")))
	})

	It("should wait for its own unit on the previous round", func() {
		_, err := tests.BuildRounds(dag, c, []uint16{1, 2, 3}, 3, tests.EmptyData)
		Expect(err).NotTo(HaveOccurred())
		pu, err := cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu.Round()).To(Equal(0))
	})

	It("should wait for a quorum on the previous round", func() {
		_, err := tests.BuildRounds(dag, c, []uint16{0, 1}, 1, tests.EmptyData)
		Expect(err).NotTo(HaveOccurred())
		Expect(cr.NextRound()).To(Equal(1))
		pu, err := cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu).To(BeNil())
		Expect(chain.Imported()).To(Equal(uint64(20)))

		_, err = tests.BuildRounds(dag, c, []uint16{2}, 1, tests.EmptyData)
		Expect(err).NotTo(HaveOccurred())
		pu, err = cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu.Round()).To(Equal(1))
		Expect(gomel.NParents(pu)).To(Equal(3))
		Expect(pu.ParentHashes()[0]).To(Equal(dag.UnitsOnRound(0).Get(0)[0].Hash()))
		Expect(pu.ParentHashes()[3]).To(BeNil())
	})

	It("should never create a unit on a round it already has a unit on", func() {
		_, err := tests.BuildRounds(dag, c, []uint16{0, 1, 2}, 4, tests.EmptyData)
		Expect(err).NotTo(HaveOccurred())
		Expect(cr.NextRound()).To(Equal(4))
		pu, err := cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu.Round()).To(Equal(4))
		_, err = tests.AddUnit(dag, pu)
		Expect(err).NotTo(HaveOccurred())
		pu, err = cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu).To(BeNil())
	})

	It("should use the canonical unit of a forker", func() {
		_, err := tests.BuildRounds(dag, c, tests.AllCreators(4), 1, tests.EmptyData)
		Expect(err).NotTo(HaveOccurred())
		_, err = tests.Fork(dag, c, 3, 0)
		Expect(err).NotTo(HaveOccurred())
		pu, err := cr.MaybeCreateUnit(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pu.ParentHashes()[3]).To(Equal(gomel.Canonical(dag.UnitsOnRound(0).Get(3)).Hash()))
	})
})

type savedUnit struct {
	hash  gomel.Hash
	inDag bool
}

var _ = Describe("Service", func() {
	var (
		c       *tests.Committee
		dag     gomel.Dag
		ad      gomel.Adder
		service *Service
		mx      sync.Mutex
		saved   []savedUnit
		sent    []gomel.Unit
		saveErr error
		cancel  context.CancelFunc
		done    chan error
	)

	BeforeEach(func() {
		c = tests.NewCommittee(1, 1)
		dag = tests.NewDag(c)
		saved = nil
		sent = nil
		saveErr = nil
	})

	JustBeforeEach(func() {
		cnf := c.Config(0, nil)
		cnf.CreateDelay = 20 * time.Millisecond
		ad = adder.New(dag, cnf, nil, zerolog.Nop())
		save := func(u gomel.BaseUnit) error {
			mx.Lock()
			defer mx.Unlock()
			saved = append(saved, savedUnit{hash: *u.Hash(), inDag: dag.GetUnit(u.Hash()) != nil})
			return saveErr
		}
		send := func(u gomel.Unit) {
			mx.Lock()
			defer mx.Unlock()
			sent = append(sent, u)
		}
		service = NewService(dag, ad, tests.NewChain(1000, 1000), save, send, cnf, zerolog.Nop())
		dag.AfterInsert(service.Notify)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() { done <- service.Run(ctx) }()
	})

	AfterEach(func() {
		cancel()
		ad.Close()
	})

	It("should keep creating units, one round after another", func() {
		Eventually(dag.MaxRound, time.Second).Should(BeNumerically(">=", 5))
		mx.Lock()
		defer mx.Unlock()
		for i, u := range sent {
			Expect(u.Round()).To(Equal(i))
			Expect(u.Data().Number).To(Equal(uint64(i + 1)))
		}
	})

	It("should save every unit before it is added to the dag", func() {
		Eventually(dag.MaxRound, time.Second).Should(BeNumerically(">=", 3))
		mx.Lock()
		defer mx.Unlock()
		Expect(len(saved)).To(BeNumerically(">=", len(sent)))
		for i, u := range sent {
			Expect(saved[i].hash).To(Equal(*u.Hash()))
			Expect(saved[i].inDag).To(BeFalse())
		}
	})

	It("should respect the delay between units", func() {
		time.Sleep(200 * time.Millisecond)
		Expect(dag.MaxRound()).To(BeNumerically("<=", 15))
	})

	It("should stop when the context is cancelled", func() {
		cancel()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	Context("when saving fails", func() {
		BeforeEach(func() {
			saveErr = gomel.NewDurabilityError(errors.New("disk full"))
		})

		It("should stop without adding or sending the unit", func() {
			var err error
			Eventually(done, time.Second).Should(Receive(&err))
			Expect(gomel.IsFatal(err)).To(BeTrue())
			Expect(dag.MaxRound()).To(Equal(-1))
			mx.Lock()
			defer mx.Unlock()
			Expect(saved).To(HaveLen(1))
			Expect(sent).To(BeEmpty())
		})
	})
})
