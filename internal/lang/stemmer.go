package lang

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
)

// Stemmer reduces a lowercase word to its stem.
type Stemmer func(word string) string

// Syllabifier counts syllables in a lowercase word.
type Syllabifier func(word string) int

var snowballLanguages = map[string]struct{}{
	"english":   {},
	"spanish":   {},
	"french":    {},
	"russian":   {},
	"swedish":   {},
	"norwegian": {},
	"hungarian": {},
}

func identity(word string) string { return word }

// lookupStemmer resolves a stemmer id. The second result is false when the
// id is unknown, in which case the identity stemmer is returned.
func lookupStemmer(id string) (Stemmer, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" || id == "none" || id == "identity" {
		return identity, true
	}
	if _, ok := snowballLanguages[id]; !ok {
		return identity, false
	}
	return func(word string) string {
		stemmed, err := snowball.Stem(word, id, true)
		if err != nil || stemmed == "" {
			return word
		}
		return stemmed
	}, true
}

// lookupSyllabifier resolves a syllabifier id, falling back to unigram
// counting when the id is unknown.
func lookupSyllabifier(id string) (Syllabifier, bool) {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "", "unigram":
		return unigram, true
	case "vowel-groups":
		return vowelGroups, true
	}
	return unigram, false
}

func unigram(string) int { return 1 }

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u', 'y',
		'á', 'à', 'â', 'ä', 'å', 'ą', 'é', 'è', 'ê', 'ë', 'ę', 'í', 'ì', 'î', 'ï',
		'ó', 'ò', 'ô', 'ö', 'ő', 'ø', 'ú', 'ù', 'û', 'ü', 'ű', 'ý', 'æ', 'œ':
		return true
	}
	return false
}

// vowelGroups counts runs of vowels, discounting a silent trailing "e".
func vowelGroups(word string) int {
	count := 0
	prev := false
	runes := []rune(word)
	for _, r := range runes {
		v := isVowel(r)
		if v && !prev {
			count++
		}
		prev = v
	}
	n := len(runes)
	if count > 1 && n > 2 && runes[n-1] == 'e' && !isVowel(runes[n-2]) && !(runes[n-2] == 'l' && !isVowel(runes[n-3])) {
		count--
	}
	if count == 0 {
		return 1
	}
	return count
}
