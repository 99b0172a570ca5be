package docproc

import "strings"

// Document type labels assigned by DetectDocumentType.
const (
	TypeContract = "contract"
	TypeSOP      = "sop"
	TypeOfficial = "official_document"
	TypeReport   = "report"
	TypeOther    = "other"
)

var (
	contractKeywords = []string{"contract", "合約", "協議", "agreement"}
	sopKeywords      = []string{"sop", "standard operating procedure", "標準作業程序"}
	officialKeywords = []string{"official", "公文", "memorandum", "函"}
	reportKeywords   = []string{"report", "報告", "analysis", "分析"}
)

// DetectDocumentType classifies a document by keyword, checking content
// first and falling back to the filename.
func DetectDocumentType(text, filename string) string {
	textLower := strings.ToLower(text)
	filenameLower := strings.ToLower(filename)

	switch {
	case containsAny(textLower, contractKeywords):
		return TypeContract
	case containsAny(textLower, sopKeywords):
		return TypeSOP
	case containsAny(textLower, officialKeywords):
		return TypeOfficial
	case containsAny(textLower, reportKeywords):
		return TypeReport
	case strings.Contains(filenameLower, "contract"):
		return TypeContract
	case strings.Contains(filenameLower, "sop"):
		return TypeSOP
	case strings.Contains(filenameLower, "report"):
		return TypeReport
	}

	return TypeOther
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
