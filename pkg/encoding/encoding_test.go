package encoding_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/Cardinal-Cryptography/aleph-node/pkg/encoding"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/tests"
)

func expectSameUnit(pu gomel.Preunit, u gomel.BaseUnit) {
	Expect(pu.Creator()).To(Equal(u.Creator()))
	Expect(pu.Round()).To(Equal(u.Round()))
	Expect(pu.Session()).To(Equal(u.Session()))
	Expect(pu.Data()).To(Equal(u.Data()))
	Expect(pu.Signature()).To(Equal(u.Signature()))
	Expect(*pu.Hash()).To(Equal(*u.Hash()))
	Expect(pu.ParentHashes()).To(Equal(u.ParentHashes()))
}

var _ = Describe("Encoding/Decoding", func() {

	var (
		committee *tests.Committee
		dag       gomel.Dag
		units     map[string]gomel.Unit
	)

	BeforeEach(func() {
		var err error
		committee = tests.NewCommittee(5, 4)
		dag, units, err = tests.CreateDagFromString(`4
0-0-0
1-0-0
2-0-0e
3-0-0
0-1-0 0-0-0 1-0-0 3-0-0
1-1-0e 0-0-0 1-0-0 2-0-0 3-0-0
`, committee)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("A dealing unit", func() {
		It("should be decoded to a preunit representing the original unit", func() {
			u := units["0-0-0"]
			data, err := EncodeUnit(u)
			Expect(err).NotTo(HaveOccurred())
			pu, err := DecodePreunit(data)
			Expect(err).NotTo(HaveOccurred())
			expectSameUnit(pu, u)
			Expect(committee.Session.Keys[0].Verify(pu)).To(BeTrue())
		})
	})

	Context("A unit with missing parents", func() {
		It("should be decoded with the same parents", func() {
			u := units["0-1-0"]
			data, err := EncodeUnit(u)
			Expect(err).NotTo(HaveOccurred())
			pu, err := DecodePreunit(data)
			Expect(err).NotTo(HaveOccurred())
			expectSameUnit(pu, u)
			Expect(pu.ParentHashes()[2]).To(BeNil())
		})
	})

	Context("An empty unit", func() {
		It("should be decoded without data", func() {
			u := units["1-1-0"]
			data, err := EncodeUnit(u)
			Expect(err).NotTo(HaveOccurred())
			pu, err := DecodePreunit(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(pu.Data()).To(BeNil())
			expectSameUnit(pu, u)
		})
	})

	Context("A chunk of units", func() {
		It("should list parents before children", func() {
			all := []gomel.Unit{units["1-1-0"], units["0-1-0"], units["0-0-0"], units["1-0-0"], units["2-0-0"], units["3-0-0"]}
			data, err := EncodeUnits(all)
			Expect(err).NotTo(HaveOccurred())
			pus, err := DecodePreunits(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(pus).To(HaveLen(6))
			for i := 1; i < len(pus); i++ {
				Expect(pus[i-1].Round()).To(BeNumerically("<=", pus[i].Round()))
			}
			Expect(dag.GetUnit(pus[5].Hash())).NotTo(BeNil())
		})
	})

	Context("A justification", func() {
		It("should be decoded to a verifiable justification", func() {
			j := committee.Justify(tests.BlockAt(7), 12)
			data, err := EncodeJustification(j)
			Expect(err).NotTo(HaveOccurred())
			j2, err := DecodeJustification(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(j2).To(Equal(j))
			Expect(j2.Verify(committee.Session)).To(BeTrue())
		})
	})

	Context("Data of another protocol version", func() {
		It("should be rejected with a version error", func() {
			data, err := EncodeUnit(units["0-0-0"])
			Expect(err).NotTo(HaveOccurred())
			data[0] = Version + 1
			_, err = DecodePreunit(data)
			Expect(err).To(BeAssignableToTypeOf(&gomel.VersionError{}))
			Expect(gomel.IsFatal(err)).To(BeTrue())

			jdata, err := EncodeJustification(committee.Justify(tests.BlockAt(1), 0))
			Expect(err).NotTo(HaveOccurred())
			jdata[0] = 0
			_, err = DecodeJustification(jdata)
			Expect(err).To(BeAssignableToTypeOf(&gomel.VersionError{}))
		})
	})

	Context("Truncated data", func() {
		It("should fail to decode", func() {
			data, err := EncodeUnit(units["0-1-0"])
			Expect(err).NotTo(HaveOccurred())
			_, err = DecodePreunit(data[:len(data)-3])
			Expect(err).To(HaveOccurred())
		})
	})
})
