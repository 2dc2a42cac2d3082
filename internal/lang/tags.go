package lang

// Tag vocabulary shared by the tagger, the feature extractor and the rule
// patterns shipped in model bundles.
const (
	TagWord      = "WORD"
	TagSentBegin = "SENT_BEG"
	TagSentEnd   = "SENT_END"
	TagQuoteBeg  = "QUOTE_BEG"
	TagQuoteEnd  = "QUOTE_END"
	TagEmphBeg   = "EMPH_BEG"
	TagEmphEnd   = "EMPH_END"
	TagPunct     = "PUNCT"
	TagNum       = "NUM"
	TagCap       = "CAP"
	TagAllCap    = "ALLCAP"
	TagSingleCap = "SCAP"
	TagStop      = "STOP"
	TagCommon    = "COMMON"
	TagUncommon  = "UNCOMMON"
	TagPoly      = "POLY"
)

// Structural tags mark tokens that carry document structure rather than
// content. Dictionary lookups skip them.
var Structural = []string{TagPunct, TagNum, TagQuoteBeg, TagQuoteEnd, TagSentEnd, TagEmphBeg, TagEmphEnd}

// BeginTag and EndTag name the span edge tags a dictionary match leaves.
func BeginTag(name string) string { return name + "_BEGIN" }

func EndTag(name string) string { return name + "_END" }

// TagOperator marks query operator tokens (bare "*" and "~N") in query mode.
const TagOperator = "OP"
