package utils

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		result := Truncate("this is a long string", 10)
		Expect(result).To(Equal("this is a ..."))
	})

	It("cuts on rune boundaries", func() {
		result := Truncate("Björk Guðmundsdóttir", 4)
		Expect(result).To(Equal("Björ..."))
		Expect(utf8.ValidString(Truncate("Sigur Rós · Ágætis byrjun", 11))).To(BeTrue())
		Expect(Truncate("Sigur Rós · Ágætis byrjun", 11)).To(Equal("Sigur Rós ·..."))
	})
})
