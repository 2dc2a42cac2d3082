package tagger

// Readability classes.
const (
	ClassEasy   = 1
	ClassMedium = 2
	ClassHard   = 3
)

// Stats summarizes the non-meta fields of a document.
type Stats struct {
	Words       int     `json:"words"`
	Sentences   int     `json:"sentences"`
	Chars       int     `json:"chars"`
	Syllables   int     `json:"syllables"`
	Poly        int     `json:"poly"`
	Caps        int     `json:"caps"`
	Stops       int     `json:"stops"`
	Common      int     `json:"common"`
	Numerals    int     `json:"numerals"`
	Uncommon    int     `json:"uncommon"`
	Readability float64 `json:"readability"`
	Class       int     `json:"class"`
	Weight      float64 `json:"weight"`
}

func (s *Stats) add(o Stats) {
	s.Words += o.Words
	s.Sentences += o.Sentences
	s.Chars += o.Chars
	s.Syllables += o.Syllables
	s.Poly += o.Poly
	s.Caps += o.Caps
	s.Stops += o.Stops
	s.Common += o.Common
	s.Numerals += o.Numerals
	s.Uncommon += o.Uncommon
}

// finalize derives readability (Gunning fog), its class and the document
// weight. A document with no words scores 0, class 1, weight 1.
func (s *Stats) finalize() {
	s.Weight = 1 / float64(max(1, s.Uncommon))
	if s.Words == 0 {
		s.Readability = 0
		s.Class = ClassEasy
		return
	}
	sentences := max(1, s.Sentences)
	s.Readability = 0.4 * (float64(s.Words)/float64(sentences) + 100*float64(s.Poly)/float64(s.Words))
	switch {
	case s.Readability < 8:
		s.Class = ClassEasy
	case s.Readability < 14:
		s.Class = ClassMedium
	default:
		s.Class = ClassHard
	}
}
