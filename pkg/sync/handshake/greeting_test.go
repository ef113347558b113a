package handshake_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/network"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/network/memory"
	. "github.com/Cardinal-Cryptography/aleph-node/pkg/sync/handshake"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

var _ = Describe("Greeting", func() {

	var (
		committee *tests.Committee
		servs     []network.Server
	)

	BeforeEach(func() {
		committee = tests.NewCommittee(7, 4)
		net := memory.New()
		addresses := []string{"a", "b", "c", "d"}
		servs = make([]network.Server, 2)
		for i := range servs {
			servs[i] = net.Server(addresses[i], addresses)
		}
	})

	AfterEach(func() {
		for _, s := range servs {
			s.Stop()
		}
	})

	greet := func(pid uint16, sid uint32) {
		go func() {
			defer GinkgoRecover()
			conn, err := servs[1].Dial(0, time.Second)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			Expect(Greet(conn, committee.Keys[1], pid, committee.Session.ID, sid)).To(Succeed())
		}()
	}

	Context("from a committee member", func() {
		It("should reveal the pid and sync id", func() {
			greet(1, 2)
			conn, err := servs[0].Listen(time.Second)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			pid, sid, err := AcceptGreeting(conn, committee.Session)
			Expect(err).NotTo(HaveOccurred())
			Expect(pid).To(BeNumerically("==", 1))
			Expect(sid).To(BeNumerically("==", 2))
		})
	})

	Context("signed with a key of another member", func() {
		It("should be rejected", func() {
			greet(3, 0)
			conn, err := servs[0].Listen(time.Second)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			_, _, err = AcceptGreeting(conn, committee.Session)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("for another session", func() {
		It("should be rejected", func() {
			greet(1, 0)
			conn, err := servs[0].Listen(time.Second)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			_, _, err = AcceptGreeting(conn, committee.WithSession(8).Session)
			Expect(err).To(HaveOccurred())
		})
	})

})
