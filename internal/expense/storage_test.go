package expense

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "drafts"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("should write the file and return its name", func() {
			name, err := storage.Save("id-1_receipt.jpg", []byte("image"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("id-1_receipt.jpg"))

			data, err := os.ReadFile(filepath.Join(tmpDir, "drafts", name))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("image"))
		})

		It("should refuse names that leave the directory", func() {
			_, err := storage.Save("../escape.jpg", []byte("image"))
			Expect(err).To(HaveOccurred())
			_, err = os.Stat(filepath.Join(tmpDir, "escape.jpg"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Describe("Get", func() {
		It("should read a saved file", func() {
			_, err := storage.Save("a.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get("a.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("png"))
		})

		It("should return ErrNotFound for a missing file", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			_, err := storage.Save("a.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete("a.png")).To(Succeed())
			_, err = storage.Get("a.png")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should fail for a missing file", func() {
			Expect(storage.Delete("missing.png")).NotTo(Succeed())
		})
	})
})

var _ = DescribeTable("sanitizeFilename",
	func(input, expected string) {
		Expect(sanitizeFilename(input)).To(Equal(expected))
	},
	Entry("keeps a simple name", "receipt.jpg", "receipt.jpg"),
	Entry("lowercases the extension", "IMG_0001.HEIC", "IMG_0001.heic"),
	Entry("replaces spaces", "my  receipt.png", "my_receipt.png"),
	Entry("drops punctuation", "lunch (copy)!.jpg", "lunch_copy.jpg"),
	Entry("strips directories", "../../etc/passwd", "passwd"),
	Entry("keeps non-latin letters", "レシート.jpg", "レシート.jpg"),
	Entry("falls back when nothing is left", "!!!.pdf", "receipt.pdf"),
	Entry("caps long names", strings.Repeat("a", 80)+".jpg", strings.Repeat("a", 50)+".jpg"),
)
