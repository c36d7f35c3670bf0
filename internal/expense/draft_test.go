package expense

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/kakeibo/internal/money"
)

func scannedDraft() *Draft {
	record := &Record{
		Date:        "2024-01-15",
		Merchant:    "Lawson",
		TotalAmount: 280,
		Category:    "Food",
		Items: []Item{
			{Name: "Onigiri", Price: 150, Category: "Food"},
			{Name: "Green tea", Price: 130, Category: "Food"},
		},
	}
	return &Draft{
		ID:       "draft-1",
		Owner:    "alice",
		State:    StateSummary,
		Source:   SourceScan,
		Record:   record,
		Original: record.Clone(),
	}
}

func ptr[T any](v T) *T {
	return &v
}

var _ = Describe("Draft", func() {
	var draft *Draft

	BeforeEach(func() {
		draft = scannedDraft()
	})

	Describe("BeginEdit", func() {
		It("should move a summary draft into editing", func() {
			Expect(draft.BeginEdit()).To(Succeed())
			Expect(draft.State).To(Equal(StateEditing))
		})

		It("should reject a draft that is already being edited", func() {
			draft.State = StateEditing
			Expect(draft.BeginEdit()).To(MatchError(ErrInvalidState))
		})
	})

	When("the draft is still in the summary state", func() {
		It("should reject patches", func() {
			Expect(draft.Apply(DraftPatch{Merchant: ptr("Seven")})).To(MatchError(ErrInvalidState))
			Expect(draft.Record.Merchant).To(Equal("Lawson"))
		})

		It("should reject item changes", func() {
			Expect(draft.AddItem(ItemInput{Name: "Gum"})).To(MatchError(ErrInvalidState))
			Expect(draft.UpdateItem(0, ItemPatch{Name: ptr("Gum")})).To(MatchError(ErrInvalidState))
			Expect(draft.RemoveItem(0)).To(MatchError(ErrInvalidState))
			Expect(draft.Record.Items).To(HaveLen(2))
		})
	})

	When("the draft is being edited", func() {
		BeforeEach(func() {
			Expect(draft.BeginEdit()).To(Succeed())
		})

		Describe("Apply", func() {
			It("should only change the fields present in the patch", func() {
				Expect(draft.Apply(DraftPatch{
					Merchant:    ptr("  FamilyMart "),
					TotalAmount: ptr(money.Amount(300)),
				})).To(Succeed())

				Expect(draft.Record.Merchant).To(Equal("FamilyMart"))
				Expect(draft.Record.TotalAmount).To(Equal(300.0))
				Expect(draft.Record.Date).To(Equal("2024-01-15"))
				Expect(draft.Record.Category).To(Equal("Food"))
				Expect(draft.Record.Items).To(HaveLen(2))
			})

			It("should replace the item list when one is given", func() {
				Expect(draft.Apply(DraftPatch{Items: []ItemInput{{Name: "Coffee", Price: 120}}})).To(Succeed())
				Expect(draft.Record.Items).To(Equal([]Item{{Name: "Coffee", Price: 120}}))
			})

			It("should not touch the snapshot", func() {
				Expect(draft.Apply(DraftPatch{Merchant: ptr("Seven")})).To(Succeed())
				Expect(draft.Original.Merchant).To(Equal("Lawson"))
			})
		})

		Describe("UpdateItem", func() {
			It("should change only the addressed item", func() {
				Expect(draft.UpdateItem(1, ItemPatch{Price: ptr(money.Amount(160))})).To(Succeed())

				Expect(draft.Record.Items).To(Equal([]Item{
					{Name: "Onigiri", Price: 150, Category: "Food"},
					{Name: "Green tea", Price: 160, Category: "Food"},
				}))
			})

			It("should reject an index outside the list", func() {
				Expect(draft.UpdateItem(2, ItemPatch{Name: ptr("x")})).To(MatchError(ErrNotFound))
				Expect(draft.UpdateItem(-1, ItemPatch{Name: ptr("x")})).To(MatchError(ErrNotFound))
			})
		})

		Describe("AddItem", func() {
			It("should append the item", func() {
				Expect(draft.AddItem(ItemInput{Name: " Gum ", Price: 98, Category: "Food"})).To(Succeed())
				Expect(draft.Record.Items).To(HaveLen(3))
				Expect(draft.Record.Items[2]).To(Equal(Item{Name: "Gum", Price: 98, Category: "Food"}))
			})
		})

		Describe("RemoveItem", func() {
			It("should remove the item and keep the order of the rest", func() {
				Expect(draft.AddItem(ItemInput{Name: "Gum", Price: 98})).To(Succeed())
				Expect(draft.RemoveItem(1)).To(Succeed())

				Expect(draft.Record.Items).To(HaveLen(2))
				Expect(draft.Record.Items[0].Name).To(Equal("Onigiri"))
				Expect(draft.Record.Items[1].Name).To(Equal("Gum"))
			})

			It("should reject an index outside the list", func() {
				Expect(draft.RemoveItem(5)).To(MatchError(ErrNotFound))
			})
		})

		Describe("Cancel", func() {
			It("should revert a scanned draft to the summary", func() {
				Expect(draft.Apply(DraftPatch{Merchant: ptr("Seven")})).To(Succeed())

				discard, err := draft.Cancel()
				Expect(err).NotTo(HaveOccurred())
				Expect(discard).To(BeFalse())
				Expect(draft.State).To(Equal(StateSummary))
				Expect(draft.Record.Merchant).To(Equal("Lawson"))
			})

			It("should revert and close a draft of a stored record", func() {
				draft.Source = SourceStored

				discard, err := draft.Cancel()
				Expect(err).NotTo(HaveOccurred())
				Expect(discard).To(BeTrue())
			})

			It("should discard a manual draft", func() {
				draft.Source = SourceManual
				draft.Original = nil

				discard, err := draft.Cancel()
				Expect(err).NotTo(HaveOccurred())
				Expect(discard).To(BeTrue())
			})
		})
	})

	Describe("Cancel outside the edit form", func() {
		It("should fail", func() {
			_, err := draft.Cancel()
			Expect(err).To(MatchError(ErrInvalidState))
		})
	})
})

var _ = Describe("Drafts", func() {
	var drafts *Drafts

	BeforeEach(func() {
		drafts = NewDrafts()
	})

	It("should hide drafts from other owners", func() {
		drafts.Put(scannedDraft())

		_, err := drafts.Get("bob", "draft-1")
		Expect(err).To(MatchError(ErrNotFound))
		Expect(drafts.List("bob")).To(BeEmpty())

		d, err := drafts.Get("alice", "draft-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Record.Merchant).To(Equal("Lawson"))
	})

	It("should return copies", func() {
		drafts.Put(scannedDraft())

		d, err := drafts.Get("alice", "draft-1")
		Expect(err).NotTo(HaveOccurred())
		d.Record.Items[0].Price = 1

		again, err := drafts.Get("alice", "draft-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Record.Items[0].Price).To(Equal(150.0))
	})

	It("should list drafts oldest first", func() {
		base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		for i, id := range []string{"c", "a", "b"} {
			d := scannedDraft()
			d.ID = id
			d.CreatedAt = base.Add(time.Duration(2-i) * time.Minute)
			drafts.Put(d)
		}

		ids := []string{}
		for _, d := range drafts.List("alice") {
			ids = append(ids, d.ID)
		}
		Expect(ids).To(Equal([]string{"b", "a", "c"}))
	})

	Describe("Modify", func() {
		BeforeEach(func() {
			drafts.Put(scannedDraft())
		})

		It("should keep changes when the function succeeds", func() {
			_, err := drafts.Modify("alice", "draft-1", (*Draft).BeginEdit)
			Expect(err).NotTo(HaveOccurred())

			d, _ := drafts.Get("alice", "draft-1")
			Expect(d.State).To(Equal(StateEditing))
		})

		It("should discard partial changes when the function fails", func() {
			_, err := drafts.Modify("alice", "draft-1", func(d *Draft) error {
				d.Record.Merchant = "changed"
				return ErrInvalidState
			})
			Expect(err).To(MatchError(ErrInvalidState))

			d, _ := drafts.Get("alice", "draft-1")
			Expect(d.Record.Merchant).To(Equal("Lawson"))
		})
	})

	Describe("Remove", func() {
		It("should take the draft out of the working set", func() {
			drafts.Put(scannedDraft())

			_, err := drafts.Remove("alice", "draft-1")
			Expect(err).NotTo(HaveOccurred())

			_, err = drafts.Get("alice", "draft-1")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})
})
