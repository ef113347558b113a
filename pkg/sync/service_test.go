package sync_test

import (
	gsync "sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network/memory"
	. "github.com/Cardinal-Cryptography/aleph-node/pkg/sync"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/sync/handshake"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/sync/message"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

// orderer serves units of a prepared dag and records everything it receives.
type orderer struct {
	dag            gomel.Dag
	justifications []*gomel.Justification

	mx       gsync.Mutex
	preunits []gomel.Preunit
	sources  []uint16
	received []*gomel.Justification
	shares   []*gomel.JustificationShare
}

func (o *orderer) AddPreunits(source uint16, pus ...gomel.Preunit) []error {
	o.mx.Lock()
	defer o.mx.Unlock()
	o.preunits = append(o.preunits, pus...)
	for range pus {
		o.sources = append(o.sources, source)
	}
	return nil
}

func (o *orderer) UnitsByHash(hashes ...*gomel.Hash) []gomel.Unit {
	return o.dag.GetUnits(hashes)
}

func (o *orderer) UnitsAbove(round int) []gomel.Unit {
	var result []gomel.Unit
	for r := round; r <= o.dag.MaxRound(); r++ {
		o.dag.UnitsOnRound(r).Iterate(func(units []gomel.Unit) bool {
			result = append(result, units...)
			return true
		})
	}
	return result
}

func (o *orderer) Justifications(from uint64, limit int) []*gomel.Justification {
	var result []*gomel.Justification
	for _, j := range o.justifications {
		if j.Height() >= from && len(result) < limit {
			result = append(result, j)
		}
	}
	return result
}

func (o *orderer) HandleJustifications(_ uint16, js []*gomel.Justification) {
	o.mx.Lock()
	defer o.mx.Unlock()
	o.received = append(o.received, js...)
}

func (o *orderer) HandleShare(_ uint16, share *gomel.JustificationShare) {
	o.mx.Lock()
	defer o.mx.Unlock()
	o.shares = append(o.shares, share)
}

func (o *orderer) gotPreunits() int {
	o.mx.Lock()
	defer o.mx.Unlock()
	return len(o.preunits)
}

func (o *orderer) gotJustifications() []*gomel.Justification {
	o.mx.Lock()
	defer o.mx.Unlock()
	return append([]*gomel.Justification(nil), o.received...)
}

func (o *orderer) gotShares() []*gomel.JustificationShare {
	o.mx.Lock()
	defer o.mx.Unlock()
	return append([]*gomel.JustificationShare(nil), o.shares...)
}

var _ = Describe("Service", func() {

	var (
		c         *tests.Committee
		net       *memory.Network
		addresses []string
		servers   []network.Server
		orderers  []*orderer
		services  []*Service
		units     []gomel.Unit
	)

	start := func(sessions ...*gomel.Session) {
		for pid := range servers {
			cnf := c.Config(uint16(pid), addresses)
			cnf.SyncWorkers = 2
			cnf.FetchRetries = 3
			services[pid] = NewService(sessions[pid], orderers[pid], servers[pid], cnf, zerolog.Nop())
			Expect(services[pid].Start()).To(Succeed())
		}
	}

	BeforeEach(func() {
		c = tests.NewCommittee(3, 4)
		net = memory.New()
		addresses = []string{"n0", "n1", "n2", "n3"}
		servers = make([]network.Server, 4)
		orderers = make([]*orderer, 4)
		services = make([]*Service, 4)
		for pid := range servers {
			servers[pid] = net.Server(addresses[pid], addresses)
			orderers[pid] = &orderer{dag: tests.NewDag(c)}
		}
		var err error
		units, err = tests.BuildRounds(orderers[0].dag, c, tests.AllCreators(4), 3, tests.RoundData)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		for pid := range services {
			if services[pid] != nil {
				services[pid].Stop()
			}
			servers[pid].Stop()
		}
	})

	Describe("with all members in the same session", func() {

		BeforeEach(func() {
			start(c.Session, c.Session, c.Session, c.Session)
		})

		It("should multicast a unit to every other member", func() {
			services[0].Multicast(units[0])
			for pid := 1; pid < 4; pid++ {
				o := orderers[pid]
				Eventually(o.gotPreunits, 2*time.Second).Should(Equal(1))
				Expect(o.preunits[0].Hash()).To(Equal(units[0].Hash()))
				Expect(o.sources[0]).To(Equal(uint16(0)))
			}
			Expect(orderers[0].gotPreunits()).To(Equal(0))
		})

		It("should ignore a unit received twice", func() {
			services[0].Multicast(units[0])
			Eventually(orderers[1].gotPreunits, 2*time.Second).Should(Equal(1))
			services[2].Multicast(units[0])
			Consistently(orderers[1].gotPreunits, 300*time.Millisecond).Should(Equal(1))
		})

		It("should fetch units by hash and skip unknown ones", func() {
			unknown := gomel.Hash{1, 2, 3}
			services[1].RequestFetch(0, []*gomel.Hash{units[5].Hash(), &unknown, units[1].Hash()})
			Eventually(orderers[1].gotPreunits, 2*time.Second).Should(Equal(2))
			// parents precede children
			Expect(orderers[1].preunits[0].Hash()).To(Equal(units[1].Hash()))
			Expect(orderers[1].preunits[1].Hash()).To(Equal(units[5].Hash()))
		})

		It("should request the tip from all members", func() {
			services[1].RequestTip(1)
			Eventually(orderers[1].gotPreunits, 2*time.Second).Should(Equal(8))
			for _, pu := range orderers[1].preunits {
				Expect(pu.Round()).To(BeNumerically(">=", 1))
			}
		})

		It("should request justifications", func() {
			orderers[0].justifications = []*gomel.Justification{
				c.Justify(tests.BlockAt(1), 0),
				c.Justify(tests.BlockAt(2), 1),
				c.Justify(tests.BlockAt(3), 2),
			}
			services[2].RequestJustifications(0, 2)
			Eventually(func() int { return len(orderers[2].gotJustifications()) }, 2*time.Second).Should(Equal(2))
			got := orderers[2].gotJustifications()
			Expect(got[0].Block).To(Equal(tests.BlockAt(2)))
			Expect(got[1].Verify(c.Session)).To(BeTrue())
		})

		It("should push justifications", func() {
			services[3].SendJustifications(1, []*gomel.Justification{c.Justify(tests.BlockAt(1), 0)})
			Eventually(func() int { return len(orderers[1].gotJustifications()) }, 2*time.Second).Should(Equal(1))
			Expect(orderers[1].gotJustifications()[0].Verify(c.Session)).To(BeTrue())
		})

		It("should broadcast signature shares", func() {
			block := tests.BlockAt(4)
			share := &gomel.JustificationShare{Session: c.Session.ID, Round: 3, Block: block}
			share.Share = gomel.SignatureShare{Pid: 2, Signature: c.Keys[2].SignBytes(share.Digest())}
			services[2].BroadcastShare(share)
			for _, pid := range []int{0, 1, 3} {
				o := orderers[pid]
				Eventually(func() int { return len(o.gotShares()) }, 2*time.Second).Should(Equal(1))
				Expect(o.gotShares()[0]).To(Equal(share))
			}
		})

		It("should deliver after the receiver reconnects", func() {
			net.Disconnect("n1")
			services[0].Multicast(units[0])
			Consistently(orderers[1].gotPreunits, 50*time.Millisecond).Should(Equal(0))
			net.Reconnect("n1")
			Eventually(orderers[1].gotPreunits, 2*time.Second).Should(Equal(1))
		})
	})

	Describe("with members speaking another protocol version", func() {

		// speakOtherVersion opens a connection from the given member to member 0 and sends a header of the next protocol version.
		speakOtherVersion := func(pid uint16) {
			conn, err := servers[pid].Dial(0, time.Second)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			Expect(handshake.Greet(conn, c.Keys[pid], pid, c.Session.ID, 1)).To(Succeed())
			_, err = conn.Write([]byte{message.Version + 1, byte(message.NewUnit), 0, 0, 0, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.Flush()).To(Succeed())
		}

		BeforeEach(func() {
			start(c.Session, c.Session, c.Session, c.Session)
		})

		It("should tolerate a single one", func() {
			speakOtherVersion(1)
			speakOtherVersion(1)
			Consistently(services[0].Failures(), 300*time.Millisecond).ShouldNot(Receive())
		})

		It("should fail once more than the faulty ones do", func() {
			speakOtherVersion(1)
			Consistently(services[0].Failures(), 200*time.Millisecond).ShouldNot(Receive())
			speakOtherVersion(2)
			var err error
			Eventually(services[0].Failures(), 2*time.Second).Should(Receive(&err))
			Expect(err).To(BeAssignableToTypeOf(&gomel.VersionError{}))
			Expect(gomel.IsFatal(err)).To(BeTrue())
		})
	})

	Describe("with a member in another session", func() {

		BeforeEach(func() {
			other := c.WithSession(4).Session
			start(c.Session, other, c.Session, c.Session)
		})

		It("should not accept its units", func() {
			services[0].Multicast(units[0])
			Eventually(orderers[2].gotPreunits, 2*time.Second).Should(Equal(1))
			Consistently(orderers[1].gotPreunits, 300*time.Millisecond).Should(Equal(0))
		})
	})
})
