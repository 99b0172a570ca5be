package docproc_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarryhq/quarry/pkg/docproc"
)

var _ = Describe("Processor", func() {
	var (
		processor *docproc.Processor
		dir       string
	)

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		processor = docproc.NewProcessor(docproc.Config{})
		dir = GinkgoT().TempDir()
	})

	Describe("ProcessFile", func() {
		It("extracts and cleans a text file", func() {
			path := writeFile("notes.txt", "  first line  \n\n\n  second   line with    spaces  \n")

			text, mimeType, err := processor.ProcessFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("first line\nsecond line with spaces"))
			Expect(mimeType).To(HavePrefix("text/plain"))
		})

		It("accepts markdown files", func() {
			path := writeFile("readme.md", "# Title\n\nSome body text that is long enough.")

			text, _, err := processor.ProcessFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(ContainSubstring("Some body text"))
		})

		It("rejects unsupported formats", func() {
			path := writeFile("data.csv", "a,b,c")

			_, _, err := processor.ProcessFile(path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported file format"))
		})

		It("rejects files whose text is too short after cleaning", func() {
			path := writeFile("tiny.txt", "   hi   ")

			_, _, err := processor.ProcessFile(path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("too short"))
		})

		It("rejects missing files", func() {
			_, _, err := processor.ProcessFile(filepath.Join(dir, "absent.txt"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("does not exist"))
		})

		It("enforces the size limit", func() {
			small := docproc.NewProcessor(docproc.Config{MaxFileSizeBytes: 10})
			path := writeFile("big.txt", strings.Repeat("x", 100))

			err := small.Validate(path)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("size limit"))
		})
	})

	Describe("CleanText", func() {
		It("drops empty lines and collapses spaces", func() {
			Expect(docproc.CleanText("a  b\n\n\n c\n")).To(Equal("a b\nc"))
		})

		It("returns empty for whitespace-only input", func() {
			Expect(docproc.CleanText(" \n \t\n")).To(Equal(""))
		})
	})

	Describe("Supported", func() {
		It("accepts pdf, txt, and md regardless of case", func() {
			Expect(docproc.Supported("a.PDF")).To(BeTrue())
			Expect(docproc.Supported("a.txt")).To(BeTrue())
			Expect(docproc.Supported("a.md")).To(BeTrue())
			Expect(docproc.Supported("a.docx")).To(BeFalse())
		})
	})
})

var _ = Describe("DetectDocumentType", func() {
	It("detects contracts from content", func() {
		Expect(docproc.DetectDocumentType("This agreement between parties", "x.txt")).
			To(Equal(docproc.TypeContract))
		Expect(docproc.DetectDocumentType("本合約由雙方簽訂", "x.txt")).
			To(Equal(docproc.TypeContract))
	})

	It("detects SOPs and official documents", func() {
		Expect(docproc.DetectDocumentType("standard operating procedure for backups", "x.txt")).
			To(Equal(docproc.TypeSOP))
		Expect(docproc.DetectDocumentType("此為公文內容", "x.txt")).
			To(Equal(docproc.TypeOfficial))
	})

	It("detects reports from content", func() {
		Expect(docproc.DetectDocumentType("年度報告內容", "x.txt")).
			To(Equal(docproc.TypeReport))
	})

	It("falls back to the filename", func() {
		Expect(docproc.DetectDocumentType("nothing special here", "Q3_report.pdf")).
			To(Equal(docproc.TypeReport))
		Expect(docproc.DetectDocumentType("nothing special here", "vendor_contract.pdf")).
			To(Equal(docproc.TypeContract))
	})

	It("defaults to other", func() {
		Expect(docproc.DetectDocumentType("plain text", "notes.txt")).
			To(Equal(docproc.TypeOther))
	})
})
