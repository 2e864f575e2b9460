package classification

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	heartbeatPattern = regexp.MustCompile(`(?i)^\s*(heartbeat(_ok)?|ping|pong|status( check)?|health( ?check)?|are you (there|alive)\??|keep-?alive)\s*[.!?]?\s*$`)

	// A greeting prompt is made only of greeting or acknowledgment phrases,
	// separated by punctuation, symbols or emoji.
	greetingPattern = regexp.MustCompile(`(?i)^[\s\p{P}\p{S}]*` + greetingPhrase +
		`(?:[\s\p{P}\p{S}\p{M}\p{Cf}]+` + greetingPhrase + `)*[\s\p{P}\p{S}\p{M}\p{Cf}]*$`)

	fencedBlockPattern = regexp.MustCompile("(?s)```.*?```")

	reasoningPattern = regexp.MustCompile(`(?i)\b(explain|why|analy[sz]e|analysis|compare|contrast|reason(ing)?|prove|proof|derive|evaluate|assess|trade-?offs?|implications?|step[- ]by[- ]step|think through|pros and cons|critique)\b`)

	compoundQuestionPattern = regexp.MustCompile(`(?i)(\?[^?]{3,}\?|\b(and also|as well as|additionally|furthermore|moreover|in addition)\b|\bfirst\b[^.?!]*\b(then|second|next)\b)`)

	businessPattern = regexp.MustCompile(`(?i)\b(revenue|profit|strategy|strategic|market(ing)?|roi|budget|stakeholders?|forecast|pricing|kpis?|business plan|go-to-market|investors?|quarterly|valuation)\b`)

	filePathPattern = regexp.MustCompile(`(?:^|[\s"'(])(?:[A-Za-z]:\\[^\s]+|~?\.{0,2}/?(?:[\w.-]+/)+[\w.-]+\.[A-Za-z0-9]{1,6}|[\w-]+\.(?:go|py|js|ts|tsx|jsx|rs|java|rb|php|c|h|cpp|hpp|cs|swift|kt|sql|yaml|yml|toml|json|sh|md))\b`)

	codeKeywordPattern = regexp.MustCompile(`(?i)\b(code|coding|function|func|class|method|bug|debug(ging)?|refactor|compile[rd]?|implement(ation)?|variable|api|endpoint|regex|sql|query|python|javascript|typescript|golang|rust|java|kotlin|c\+\+|stack ?trace|exception|segfault|unit tests?|syntax|algorithm|script)\b`)

	toolNamePattern = regexp.MustCompile(`(?i)\b(git|docker|kubectl|helm|npm|yarn|pnpm|pip|cargo|make|cmake|bash|zsh|terraform|ansible|webpack|vite|gradle|maven|postgres|redis|nginx)\b`)
)

const greetingPhrase = `(?:hi|hello|hey|hiya|yo|howdy|greetings|good (?:morning|afternoon|evening|night)|` +
	`thanks|thank you|thx|ty|ok|okay|k|cool|great|nice|perfect|awesome|got it|sure|yes|no|yep|nope|` +
	`bye|goodbye|see you|how are you(?: doing)?|how'?s it going|what'?s up|sounds good|that worked|it worked|` +
	`there|all|everyone|so much|a lot|again)`

// Score weights
const (
	lengthThreshold     = 200
	maxLengthPoints     = 15.0
	codeBlockPoints     = 20.0
	questionMarkPoints  = 3.0
	reasoningPoints     = 10.0
	compoundPoints      = 15.0
	businessPoints      = 8.0
	filePathPoints      = 12.0
	maxComplexityScore  = 100.0
	greetingLengthLimit = 100
)

// Analysis is the result of scanning a prompt
type Analysis struct {
	Length      int
	Score       float64
	IsCodeQuery bool
	Signals     []string
}

// IsHeartbeat reports whether the prompt is a heartbeat or status probe
func IsHeartbeat(prompt string) bool {
	return heartbeatPattern.MatchString(prompt)
}

// IsGreeting reports whether the prompt is a short greeting or acknowledgment
func IsGreeting(prompt string) bool {
	return utf8.RuneCountInString(prompt) < greetingLengthLimit && greetingPattern.MatchString(prompt)
}

// Analyze computes the complexity score of prompt, clamped to [0,100]
func Analyze(prompt string) Analysis {
	a := Analysis{Length: utf8.RuneCountInString(prompt)}
	score := 0.0

	if a.Length > lengthThreshold {
		score += math.Min(maxLengthPoints, float64(a.Length-100)/50)
		a.Signals = append(a.Signals, "long")
	}

	blocks := len(fencedBlockPattern.FindAllStringIndex(prompt, -1))
	if blocks > 0 {
		score += codeBlockPoints * float64(blocks)
		a.Signals = append(a.Signals, "code_block")
	}

	if questions := strings.Count(prompt, "?"); questions > 0 {
		score += questionMarkPoints * float64(questions)
		a.Signals = append(a.Signals, "questions")
	}

	if reasoningPattern.MatchString(prompt) {
		score += reasoningPoints
		a.Signals = append(a.Signals, "reasoning")
	}

	if compoundQuestionPattern.MatchString(prompt) {
		score += compoundPoints
		a.Signals = append(a.Signals, "compound")
	}

	if businessPattern.MatchString(prompt) {
		score += businessPoints
		a.Signals = append(a.Signals, "business")
	}

	hasPath := filePathPattern.MatchString(prompt)
	if hasPath {
		score += filePathPoints
		a.Signals = append(a.Signals, "file_path")
	}

	a.Score = math.Max(0, math.Min(maxComplexityScore, score))
	a.IsCodeQuery = blocks > 0 || hasPath ||
		codeKeywordPattern.MatchString(prompt) ||
		toolNamePattern.MatchString(prompt)
	if a.IsCodeQuery {
		a.Signals = append(a.Signals, "code")
	}

	return a
}
