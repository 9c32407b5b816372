package classify

import (
	"sort"
	"strings"
)

const (
	// MinCategorySimilarity is the lowest score a category may have to be kept.
	MinCategorySimilarity = 0.10
	// MaxCategories caps the labels assigned to one event.
	MaxCategories = 2
)

// DefaultCategories is the topic taxonomy. Seeds should stay distinctive:
// a term shared by many entries carries almost no weight.
var DefaultCategories = []Seed{
	{"AI & Data", "artificial intelligence machine learning deep learning neural network llm data science nlp computer vision algorithm ai model training dataset"},
	{"Biotech & Health", "biotech life sciences healthcare biomedical pharmaceutical genomics cancer research clinical therapeutics medicine drug biology"},
	{"Startups & Founders", "startup founder entrepreneurship accelerator incubator pitch venture seed stage scale-up launch company building"},
	{"Investment & Finance", "investment venture capital funding fintech angel fundraising vc series private equity valuation deal"},
	{"Networking", "networking meetup coffee morning drinks social connect community mixer reception gathering informal"},
	{"Workshops & Training", "workshop training bootcamp masterclass hands-on practical skills tutorial course session learn"},
	{"Talks & Lectures", "lecture talk seminar keynote panel discussion speaker presentation colloquium fireside chat series"},
	{"Science & Research", "research science physics chemistry mathematics academic university laboratory discovery paper journal"},
	{"Sustainability", "sustainability climate green energy environment clean tech net zero carbon renewable circular economy"},
	{"Technology", "software hardware programming developer cyber cloud iot quantum computing digital platform web app"},
	{"Policy & Society", "policy government regulation ethics diversity inclusion social impact public engagement equality"},
	{"Innovation & Strategy", "innovation strategy growth transformation partnerships ecosystem collaboration enterprise roadmap"},
	{"Female Founders", "female women woman gender ladies leadership women-in-tech empowerment girls womenled"},
	{"Product Management", "product manager management roadmap user story backlog sprint agile scrum prioritization stakeholder discovery ux requirements features"},
}

var stopwords = toSet(`the a an and or but in on at to for of with by from is are was were be been
being have has had do does did will would could should may might shall can this that
these those it its not no nor so if as we our you your they their he she his her
all each every both more most other some such than too very just about above after again
also am any because before between come get here how into like make many me much my
new now only out over own same then there through under up us what when where which
while who whom why down during further`)

// TopicTokens lowercases, strips punctuation, and drops stop-words and single characters.
func TopicTokens(text string) []string {
	all := words(text)
	out := all[:0]
	for _, w := range all {
		if _, skip := stopwords[w]; !skip {
			out = append(out, w)
		}
	}
	return out
}

// CategoryClassifier assigns up to MaxCategories topic labels.
type CategoryClassifier struct {
	model *Model
}

// NewCategoryClassifier builds the classifier over taxonomy (DefaultCategories when nil).
func NewCategoryClassifier(taxonomy []Seed) *CategoryClassifier {
	if taxonomy == nil {
		taxonomy = DefaultCategories
	}
	return &CategoryClassifier{model: NewModel(taxonomy, TopicTokens)}
}

// Labels lists the taxonomy.
func (c *CategoryClassifier) Labels() []string {
	return c.model.Labels()
}

// Has reports whether label is part of the taxonomy.
func (c *CategoryClassifier) Has(label string) bool {
	return c.model.Has(label)
}

// Classify scores title (counted twice) plus description and returns the
// best labels in descending score order.
func (c *CategoryClassifier) Classify(title, description string) []string {
	scores := c.Score(title, description)
	out := make([]string, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Label)
	}
	return out
}

// Score is Classify with the similarity values kept.
func (c *CategoryClassifier) Score(title, description string) []Score {
	tokens := c.model.Tokenize(title + " " + title + " " + description)
	if len(tokens) == 0 {
		return []Score{}
	}

	kept := make([]Score, 0, MaxCategories)
	for _, s := range c.model.Scores(tokens) {
		if s.Value >= MinCategorySimilarity {
			kept = append(kept, s)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Value > kept[j].Value
	})
	if len(kept) > MaxCategories {
		kept = kept[:MaxCategories]
	}
	return kept
}

func toSet(list string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(list) {
		set[w] = struct{}{}
	}
	return set
}
