package signing_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/Cardinal-Cryptography/aleph-node/pkg/crypto/signing"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/dag/unit"
	"github.com/Cardinal-Cryptography/aleph-node/pkg/gomel"
)

var _ = Describe("Signatures", func() {

	var (
		pu   gomel.Preunit
		pub  gomel.PublicKey
		priv gomel.PrivateKey
		sig  gomel.Signature
	)

	BeforeEach(func() {
		pub, priv, _ = GenerateKeys()
	})

	Describe("Checking signatures of preunits", func() {

		BeforeEach(func() {
			pu = unit.NewPreunit(7, 0, 0, gomel.NoParents(4), &gomel.BlockRef{Number: 1}, nil)
			sig = priv.Sign(pu.Hash())
			pu.SetSignature(sig)
		})

		It("Should return true when checking by hand", func() {
			Expect(pub.Verify(pu)).To(BeTrue())
		})

		It("Should return false for forged signature", func() {
			forged := append(gomel.Signature{}, sig...)
			forged[0]++
			pu.SetSignature(forged)
			Expect(pub.Verify(pu)).To(BeFalse())
		})

		It("Should return false for a signature of the wrong length", func() {
			pu.SetSignature(sig[:10])
			Expect(pub.Verify(pu)).To(BeFalse())
		})

		It("Should return false for a signature by a different key", func() {
			otherPub, _, _ := GenerateKeys()
			Expect(otherPub.Verify(pu)).To(BeFalse())
		})
	})

	Describe("Checking signatures of arbitrary data", func() {

		It("Should accept a signature of the same data and reject other data", func() {
			data := []byte("aleph-justification")
			s := priv.SignBytes(data)
			Expect(pub.VerifyBytes(data, s)).To(BeTrue())
			Expect(pub.VerifyBytes([]byte("something else"), s)).To(BeFalse())
		})
	})

	Describe("Encoding", func() {

		It("Should decode the encoded keys to working keys", func() {
			pub2, err := DecodePublicKey(pub.Encode())
			Expect(err).NotTo(HaveOccurred())
			priv2, err := DecodePrivateKey(priv.Encode())
			Expect(err).NotTo(HaveOccurred())
			data := []byte{1, 2, 3}
			Expect(pub.VerifyBytes(data, priv2.SignBytes(data))).To(BeTrue())
			Expect(pub2.VerifyBytes(data, priv.SignBytes(data))).To(BeTrue())
		})

		It("Should reject keys of the wrong length", func() {
			_, err := DecodePublicKey("AAAA")
			Expect(err).To(HaveOccurred())
			_, err = DecodePrivateKey("AAAA")
			Expect(err).To(HaveOccurred())
		})
	})
})
