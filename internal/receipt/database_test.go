package receipt

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltStore", func() {
	var (
		store *BoltStore
		month string
		first []Row
	)

	BeforeEach(func() {
		var err error
		store, err = NewBoltStore(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())

		month = MonthKey(2024, 1)
		first = []Row{
			{ItemName: "弁当", Price: 500, PurchaseDate: "2024年01月05日", RegisteredAt: "2024-02-01 10:00:00"},
			{ItemName: "お茶", Price: 120, PurchaseDate: "2024年01月05日", RegisteredAt: "2024-02-01 10:00:00"},
		}
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("AddRows", func() {
		It("should append rows in order", func() {
			Expect(store.AddRows(month, first)).To(Succeed())
			Expect(store.AddRows(month, []Row{{ItemName: "パン", RegisteredAt: "2024-02-02 10:00:00"}})).To(Succeed())

			rows, err := store.ListRows(month)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0]).To(Equal(first[0]))
			Expect(rows[2].ItemName).To(Equal("パン"))
		})

		It("should keep months apart", func() {
			Expect(store.AddRows(month, first)).To(Succeed())
			rows, err := store.ListRows(MonthKey(2024, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("ListRows", func() {
		It("should return an empty list for a month with no ledger", func() {
			rows, err := store.ListRows(month)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).NotTo(BeNil())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("DeleteRegistration", func() {
		BeforeEach(func() {
			Expect(store.AddRows(month, first)).To(Succeed())
			Expect(store.AddRows(month, []Row{{ItemName: "パン", RegisteredAt: "2024-02-02 10:00:00"}})).To(Succeed())
		})

		It("should remove every row of that commit", func() {
			Expect(store.DeleteRegistration(month, "2024-02-01 10:00:00")).To(Succeed())
			rows, err := store.ListRows(month)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ItemName).To(Equal("パン"))
		})

		It("should return ErrNotFound for an unknown commit", func() {
			Expect(store.DeleteRegistration(month, "1999-01-01 00:00:00")).To(MatchError(ErrNotFound))
		})

		It("should return ErrNotFound for an unknown month", func() {
			Expect(store.DeleteRegistration(MonthKey(2023, 5), "2024-02-01 10:00:00")).To(MatchError(ErrNotFound))
		})
	})

	It("should keep rows across reopening", func() {
		path := filepath.Join(GinkgoT().TempDir(), "reopen.db")
		s, err := NewBoltStore(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.AddRows(month, first)).To(Succeed())
		Expect(s.Close()).To(Succeed())

		s, err = NewBoltStore(path)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		rows, err := s.ListRows(month)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
	})
})
