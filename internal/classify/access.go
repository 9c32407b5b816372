package classify

import (
	"regexp"
	"strings"
)

// Access labels.
const (
	AccessPublic               = "Public"
	AccessRegistrationRequired = "Registration Required"
	AccessRSVPRequired         = "RSVP Required"
	AccessMembersOnly          = "Members Only"
	AccessInviteOnly           = "Invite Only"
	AccessStudentsOnly         = "Students Only"
	AccessUniversityOnly       = "University Only"
	AccessIndustryPartners     = "Industry Partners"
)

// MinAccessSimilarity is the lowest score the best access label may have.
const MinAccessSimilarity = 0.15

// DefaultAccessTypes seeds are phrases; the n-gram tokenizer turns them into
// atomic tokens such as "members_only".
var DefaultAccessTypes = []Seed{
	{AccessPublic, "open to all open to the public everyone welcome all welcome public event no registration required free to attend"},
	{AccessRegistrationRequired, "register your place book your place book your spot sign up now get tickets buy tickets secure your place reserve your spot tickets required booking essential booking required register via booking via book now register now"},
	{AccessRSVPRequired, "rsvp required please rsvp confirm your attendance confirm your place please reply rsvp to confirm"},
	{AccessMembersOnly, "members only for members member exclusive member event"},
	{AccessInviteOnly, "invitation only by invitation invite only invited guests only"},
	{AccessStudentsOnly, "students only for students open to students student only event"},
	{AccessUniversityOnly, "university staff and students college members only faculty only academic staff only members of the university"},
	{AccessIndustryPartners, "park tenants only industry partners only network members only partner event only"},
}

var (
	sentenceBreak = regexp.MustCompile(`(?i)[.\n]|<br\s*/?>`)
	accessTrigger = regexp.MustCompile(`(?i)\b(open|regist|book|free|member|student|invit|rsvp|ticket|sign.up|admiss|attend|place|faculty|staff|exclusiv|welcom|guest|tenant|partner)`)

	// Spans where trigger words describe something other than access.
	falseTriggers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bopen\s+source\b`),
		regexp.MustCompile(`(?i)\b(?:team|board|panel|committee|staff)\s+members?\b`),
	}
	openTo      = regexp.MustCompile(`(?i)\bopen\s+to\b`)
	membersOnly = regexp.MustCompile(`(?i)\bmembers?\s+only\b`)

	// Scores close between Public and University Only, so it is decided up front.
	universityMembers = regexp.MustCompile(`(?i)open\s+to\s+all\s+members?\s+of\s+(?:the\s+)?(?:university|college)`)
)

// NgramTokens returns unigrams, bigrams and trigrams joined by "_".
// Stop-words are kept so phrases survive intact.
func NgramTokens(text string) []string {
	w := words(text)
	tokens := make([]string, 0, 3*len(w))
	tokens = append(tokens, w...)
	for i := 0; i+1 < len(w); i++ {
		tokens = append(tokens, w[i]+"_"+w[i+1])
	}
	for i := 0; i+2 < len(w); i++ {
		tokens = append(tokens, w[i]+"_"+w[i+1]+"_"+w[i+2])
	}
	return tokens
}

// AccessClassifier infers a single access label from free text.
type AccessClassifier struct {
	model *Model
}

// NewAccessClassifier builds the classifier over taxonomy (DefaultAccessTypes when nil).
func NewAccessClassifier(taxonomy []Seed) *AccessClassifier {
	if taxonomy == nil {
		taxonomy = DefaultAccessTypes
	}
	return &AccessClassifier{model: NewModel(taxonomy, NgramTokens)}
}

// Labels lists the taxonomy.
func (a *AccessClassifier) Labels() []string {
	return a.model.Labels()
}

// Infer returns the best access label, or "" when nothing scores high enough.
func (a *AccessClassifier) Infer(text string) string {
	label, _ := a.InferScore(text)
	return label
}

// InferScore is Infer with the winning similarity.
func (a *AccessClassifier) InferScore(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return "", 0
	}
	if universityMembers.MatchString(text) {
		return AccessUniversityOnly, 1
	}

	context := AccessContext(text)
	if context == "" {
		return "", 0
	}
	tokens := a.model.Tokenize(context)
	if len(tokens) == 0 {
		return "", 0
	}

	best, bestScore := "", 0.0
	for _, s := range a.model.Scores(tokens) {
		if s.Value > bestScore {
			best, bestScore = s.Label, s.Value
		}
	}
	if bestScore < MinAccessSimilarity {
		return "", bestScore
	}
	return best, bestScore
}

// AccessContext keeps only the sentence-like spans that can carry an access
// signal, joined by a space.
func AccessContext(text string) string {
	spans := sentenceBreak.Split(text, -1)
	kept := make([]string, 0, len(spans))
	for _, span := range spans {
		span = strings.TrimSpace(span)
		if span == "" || !accessTrigger.MatchString(span) {
			continue
		}
		if isFalseTrigger(span) && !openTo.MatchString(span) && !membersOnly.MatchString(span) {
			continue
		}
		kept = append(kept, span)
	}
	return strings.Join(kept, " ")
}

func isFalseTrigger(span string) bool {
	for _, re := range falseTriggers {
		if re.MatchString(span) {
			return true
		}
	}
	return false
}
