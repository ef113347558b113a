package aggregator_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	. "github.com/Cardinal-Cryptography/aleph-node/pkg/aggregator"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

// network delivers shares directly to the aggregators of other members.
type network struct {
	pid   uint16
	peers *[]*Aggregator
	down  map[uint16]bool

	mx   sync.Mutex
	sent map[uint16][]*gomel.Justification
}

func (n *network) BroadcastShare(share *gomel.JustificationShare) {
	for pid, ag := range *n.peers {
		if uint16(pid) != n.pid && !n.down[uint16(pid)] {
			go ag.HandleShare(n.pid, share)
		}
	}
}

func (n *network) SendJustifications(pid uint16, js []*gomel.Justification) {
	n.mx.Lock()
	defer n.mx.Unlock()
	n.sent[pid] = append(n.sent[pid], js...)
}

func (n *network) sentTo(pid uint16) []*gomel.Justification {
	n.mx.Lock()
	defer n.mx.Unlock()
	return n.sent[pid]
}

var _ = Describe("Aggregator", func() {

	var (
		c     *tests.Committee
		aggs  []*Aggregator
		nets  []*network
		down  map[uint16]bool
		block gomel.BlockRef
		ctx   context.Context
	)

	BeforeEach(func() {
		c = tests.NewCommittee(1, 4)
		aggs = make([]*Aggregator, 4)
		nets = make([]*network, 4)
		down = map[uint16]bool{}
		for pid := range aggs {
			nets[pid] = &network{pid: uint16(pid), peers: &aggs, down: down, sent: map[uint16][]*gomel.Justification{}}
			aggs[pid] = New(c.Session, nets[pid], c.Config(uint16(pid), nil), zerolog.Nop())
		}
		block = tests.BlockAt(3)
		ctx = context.Background()
	})

	justify := func(pids ...int) []*gomel.Justification {
		result := make([]*gomel.Justification, len(aggs))
		var wg sync.WaitGroup
		for _, pid := range pids {
			wg.Add(1)
			go func(pid int) {
				defer GinkgoRecover()
				defer wg.Done()
				ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				j, err := aggs[pid].Justify(ctx, 2, block)
				Expect(err).NotTo(HaveOccurred())
				result[pid] = j
			}(pid)
		}
		wg.Wait()
		return result
	}

	It("should gather a justification on every member", func() {
		js := justify(0, 1, 2, 3)
		for _, j := range js {
			Expect(j.Block).To(Equal(block))
			Expect(j.Round).To(Equal(2))
			Expect(j.Verify(c.Session)).To(BeTrue())
		}
	})

	It("should gather a justification with a member down", func() {
		down[3] = true
		js := justify(0, 1, 2)
		for _, j := range js[:3] {
			Expect(j.Verify(c.Session)).To(BeTrue())
		}
	})

	It("should answer a late share with the justification", func() {
		down[3] = true
		justify(0, 1, 2)
		late := &gomel.JustificationShare{Session: c.Session.ID, Round: 2, Block: block}
		late.Share = gomel.SignatureShare{Pid: 3, Signature: c.Keys[3].SignBytes(late.Digest())}
		aggs[0].HandleShare(3, late)
		Expect(nets[0].sentTo(3)).To(HaveLen(1))
		Expect(nets[0].sentTo(3)[0].Verify(c.Session)).To(BeTrue())
	})

	It("should reject a share with a wrong signature", func() {
		share := &gomel.JustificationShare{Session: c.Session.ID, Round: 2, Block: block}
		share.Share = gomel.SignatureShare{Pid: 1, Signature: c.Keys[2].SignBytes(share.Digest())}
		for _, pid := range []uint16{1, 2, 3} {
			aggs[0].HandleShare(pid, share)
		}
		ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		down[1], down[2], down[3] = true, true, true
		_, err := aggs[0].Justify(ctx, 2, block)
		Expect(err).To(Equal(context.DeadlineExceeded))
	})

	It("should finish with an offered justification", func() {
		down[1], down[2], down[3] = true, true, true
		done := make(chan *gomel.Justification)
		go func() {
			j, _ := aggs[0].Justify(ctx, 2, block)
			done <- j
		}()
		offered := c.Justify(block, 2)
		Consistently(done, 100*time.Millisecond).ShouldNot(Receive())
		aggs[0].Offer(offered)
		Eventually(done).Should(Receive(Equal(offered)))
	})

	It("should return at once for a block justified before", func() {
		offered := c.Justify(block, 2)
		aggs[0].Offer(offered)
		j, err := aggs[0].Justify(ctx, 2, block)
		Expect(err).NotTo(HaveOccurred())
		Expect(j).To(Equal(offered))
	})

	It("should abandon gatherings of pruned heights", func() {
		down[1], down[2], down[3] = true, true, true
		done := make(chan error)
		go func() {
			_, err := aggs[0].Justify(ctx, 2, block)
			done <- err
		}()
		Consistently(done, 100*time.Millisecond).ShouldNot(Receive())
		aggs[0].Prune(block.Number)
		Eventually(done).Should(Receive(Equal(ErrSuperseded)))
	})
})
