// internal/extract/content.go
package extract

// VocabCard is a word presentation card
type VocabCard struct {
	Word          string   `json:"word"`
	Translation   string   `json:"translation,omitempty"`
	Example       string   `json:"example,omitempty"`
	Pronunciation string   `json:"pronunciation,omitempty"`
	Media         []string `json:"media,omitempty"`
}

// Choice is one answer option
type Choice struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// MultipleChoice covers single-answer and multi-select questions
type MultipleChoice struct {
	Prompt  string   `json:"prompt"`
	Options []Choice `json:"options"`
	Multi   bool     `json:"multi,omitempty"`
	Media   []string `json:"media,omitempty"`
}

// CorrectIndexes returns the positions of correct options
func (m *MultipleChoice) CorrectIndexes() []int {
	var out []int
	for i, o := range m.Options {
		if o.Correct {
			out = append(out, i)
		}
	}
	return out
}

// FillGap is a sentence with gaps filled from a token bank
type FillGap struct {
	Sentence string   `json:"sentence"`
	Answers  []string `json:"answers"`
	Tokens   []string `json:"tokens"`
}

// Pair is one matched pair
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Matching is a set of pairs to connect
type Matching struct {
	Prompt string `json:"prompt,omitempty"`
	Pairs  []Pair `json:"pairs"`
}

// TrueFalse is a statement judged true or false
type TrueFalse struct {
	Statement string `json:"statement"`
	Answer    *bool  `json:"answer,omitempty"`
}

// Typing is a free-text answer
type Typing struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer,omitempty"`
}

// Spelling is a word built from letter tiles or typed
type Spelling struct {
	Prompt  string   `json:"prompt"`
	Answer  string   `json:"answer,omitempty"`
	Letters []string `json:"letters,omitempty"`
}

// Ordering is a sentence or word built by ordering tokens
type Ordering struct {
	Prompt   string   `json:"prompt,omitempty"`
	Items    []string `json:"items"`
	Solution []string `json:"solution,omitempty"`
}

// VideoTranscript is a comprehension video with its transcript
type VideoTranscript struct {
	Title    string   `json:"title,omitempty"`
	VideoURL string   `json:"videoUrl,omitempty"`
	Lines    []string `json:"lines"`
}

// GrammarTip is an explanation with an optional example table
type GrammarTip struct {
	Title   string     `json:"title"`
	Body    string     `json:"body,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}

// FeedbackTip is the post-answer overlay
type FeedbackTip struct {
	Title string `json:"title,omitempty"`
	Tip   string `json:"tip"`
}

// Generic is the best-effort capture used when no specific extractor exists
type Generic struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Media   []string `json:"media,omitempty"`
}
