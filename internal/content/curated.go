package content

import (
	"fmt"
	"strings"
)

// Item is one entry in the daily rotation.
//
// Reference uses the provider's verse id form ("BOOK.CHAPTER.VERSE", with an
// optional "-VERSE" suffix for a range within one chapter).
type Item struct {
	Reference string
	Label     string
}

var curated = []Item{
	{"JHN.3.16", "John 3:16"},
	{"PHP.4.13", "Philippians 4:13"},
	{"PSA.23.1-6", "Psalm 23:1-6"},
	{"ROM.8.28", "Romans 8:28"},
	{"JER.29.11", "Jeremiah 29:11"},
	{"PRO.3.5-6", "Proverbs 3:5-6"},
	{"ISA.41.10", "Isaiah 41:10"},
	{"MAT.11.28", "Matthew 11:28"},
	{"2CO.5.17", "2 Corinthians 5:17"},
	{"GAL.5.22-23", "Galatians 5:22-23"},
	{"ROM.12.2", "Romans 12:2"},
	{"JOS.1.9", "Joshua 1:9"},
	{"PSA.46.1", "Psalm 46:1"},
	{"ISA.40.31", "Isaiah 40:31"},
	{"MAT.6.33", "Matthew 6:33"},
	{"PHP.4.6-7", "Philippians 4:6-7"},
	{"1CO.13.4-7", "1 Corinthians 13:4-7"},
	{"ROM.5.8", "Romans 5:8"},
	{"EPH.2.8-9", "Ephesians 2:8-9"},
	{"2TI.1.7", "2 Timothy 1:7"},
	{"PSA.119.105", "Psalm 119:105"},
	{"HEB.11.1", "Hebrews 11:1"},
	{"JAS.1.2-3", "James 1:2-3"},
	{"1JN.4.19", "1 John 4:19"},
	{"ROM.8.38-39", "Romans 8:38-39"},
	{"PSA.27.1", "Psalm 27:1"},
	{"MAT.5.14-16", "Matthew 5:14-16"},
	{"JHN.14.6", "John 14:6"},
	{"ACT.1.8", "Acts 1:8"},
	{"COL.3.23", "Colossians 3:23"},
	{"HEB.12.1-2", "Hebrews 12:1-2"},
	{"PSA.37.4", "Psalm 37:4"},
	{"MAT.28.19-20", "Matthew 28:19-20"},
	{"REV.21.4", "Revelation 21:4"},
	{"MIC.6.8", "Micah 6:8"},
	{"1PE.5.7", "1 Peter 5:7"},
	{"PSA.91.1-2", "Psalm 91:1-2"},
	{"JHN.15.5", "John 15:5"},
	{"EPH.6.10-11", "Ephesians 6:10-11"},
	{"1CO.10.13", "1 Corinthians 10:13"},
}

// Curated returns the rotation in delivery order. The slice is shared; do not modify.
func Curated() []Item { return curated }

// At returns the item for a rotation cursor, wrapping modulo the list length.
func At(cursor int) Item {
	n := len(curated)
	return curated[((cursor%n)+n)%n]
}

// PassageID converts a verse id, possibly a same-chapter range, into the
// passage id form the provider expects: "PSA.23.1-6" -> "PSA.23.1-PSA.23.6".
func PassageID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	start, end, isRange := strings.Cut(ref, "-")
	parts := strings.Split(start, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("invalid reference %q", ref)
	}
	if !isRange {
		return ref, nil
	}
	if end == "" {
		return "", fmt.Errorf("invalid reference %q", ref)
	}
	if strings.Contains(end, ".") {
		// Already fully qualified.
		return ref, nil
	}
	return fmt.Sprintf("%s.%s.%s-%s.%s.%s", parts[0], parts[1], parts[2], parts[0], parts[1], end), nil
}
