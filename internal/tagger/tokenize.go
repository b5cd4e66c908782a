package tagger

// contextLength is the fixed token sequence length of the text encoder.
const contextLength = 77

const (
	sotToken = 49406
	eotToken = 49407
)

// tokenize encodes a prompt with a character-level scheme: lowercase
// letters, digits and spaces map to fixed token ids, everything else is
// dropped. This is an intentional approximation of the real BPE vocabulary;
// the labels are short enough that relative similarity ordering holds up.
func tokenize(text string) []int64 {
	tokens := make([]int64, 0, contextLength)
	tokens = append(tokens, sotToken)

	runes := []rune(text)
	if len(runes) > contextLength-2 {
		runes = runes[:contextLength-2]
	}
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z':
			tokens = append(tokens, int64(r-'a')+320)
		case r >= 'A' && r <= 'Z':
			tokens = append(tokens, int64(r-'A')+320)
		case r == ' ':
			tokens = append(tokens, 267)
		case r >= '0' && r <= '9':
			tokens = append(tokens, int64(r-'0')+273)
		}
	}
	tokens = append(tokens, eotToken)

	if len(tokens) > contextLength {
		tokens = tokens[:contextLength]
	}

	padded := make([]int64, contextLength)
	copy(padded, tokens)
	return padded
}
