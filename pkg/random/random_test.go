package random_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/Cardinal-Cryptography/aleph-node/pkg/random"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

var _ = Describe("Random source", func() {
	It("should give the same bytes to everyone in the session", func() {
		a, b := New(7), New(7)
		for round := 0; round < 20; round++ {
			Expect(a.RandomBytes(1, round)).To(Equal(b.RandomBytes(1, round)))
			Expect(a.RandomBytes(1, round)).To(HaveLen(Size))
		}
	})

	It("should differ between sessions, processes and rounds", func() {
		rs := New(7)
		Expect(rs.RandomBytes(1, 3)).NotTo(Equal(New(8).RandomBytes(1, 3)))
		Expect(rs.RandomBytes(1, 3)).NotTo(Equal(rs.RandomBytes(2, 3)))
		Expect(rs.RandomBytes(1, 3)).NotTo(Equal(rs.RandomBytes(1, 4)))
	})

	It("should depend on the committee", func() {
		a := tests.NewCommittee(7, 4).Session
		b := tests.NewCommittee(7, 4).Session
		Expect(NewKeyed(7, a.Seed()).RandomBytes(0, 0)).To(Equal(NewKeyed(7, a.Seed()).RandomBytes(0, 0)))
		Expect(NewKeyed(7, a.Seed()).RandomBytes(0, 0)).NotTo(Equal(NewKeyed(7, b.Seed()).RandomBytes(0, 0)))
	})

	It("should depend on the key", func() {
		Expect(NewKeyed(7, []byte("a")).RandomBytes(0, 0)).NotTo(Equal(NewKeyed(7, []byte("b")).RandomBytes(0, 0)))
		Expect(NewKeyed(7, nil).RandomBytes(0, 0)).To(Equal(New(7).RandomBytes(0, 0)))
	})

	It("should not let the caller modify the cached bytes", func() {
		rs := New(1)
		b := rs.RandomBytes(0, 0)
		b[0] ^= 0xff
		Expect(rs.RandomBytes(0, 0)).NotTo(Equal(b))
	})

	It("should be known in advance for every round", func() {
		seed := tests.NewCommittee(7, 4).Session.Seed()
		early := NewKeyed(7, seed).RandomBytes(2, 1000)
		late := NewKeyed(7, seed)
		for round := 0; round < 1000; round++ {
			late.RandomBytes(2, round)
		}
		Expect(late.RandomBytes(2, 1000)).To(Equal(early))
	})

	It("should return nil for negative rounds", func() {
		Expect(New(1).RandomBytes(0, -1)).To(BeNil())
	})
})
