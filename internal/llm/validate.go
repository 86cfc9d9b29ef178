package llm

import (
	"encoding/json"
	"strings"

	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/language"
)

// ValidateAndFixMCQs parses raw LLM output and returns the structurally
// valid questions. Questions missing text or without exactly four
// options are dropped; an unknown difficulty falls back to easy and an
// answer not found among the options falls back to the first option.
// Unparseable output yields no questions.
func ValidateAndFixMCQs(raw string) []interfaces.MCQuestion {
	var data struct {
		Questions []interfaces.MCQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// Models wrap the JSON in prose often enough that a second
		// attempt on the outermost brace pair is worth it.
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &data); err != nil {
			return nil
		}
	}

	var out []interfaces.MCQuestion
	for _, q := range data.Questions {
		if q.Question == "" || len(q.Options) != 4 {
			continue
		}
		if q.Difficulty != "easy" && q.Difficulty != "medium" && q.Difficulty != "hard" {
			q.Difficulty = "easy"
		}
		if !containsOption(q.Options, q.Answer) {
			q.Answer = q.Options[0]
		}
		out = append(out, q)
	}
	return out
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}

// QuestionsInLanguage reports whether every question and option reads
// as the expected language.
func QuestionsInLanguage(questions []interfaces.MCQuestion, lang string) bool {
	for _, q := range questions {
		if !language.Matches(q.Question, lang) {
			return false
		}
		for _, opt := range q.Options {
			if !language.Matches(opt, lang) {
				return false
			}
		}
	}
	return true
}

// GroupByDifficulty arranges questions into the result payload shape.
func GroupByDifficulty(questions []interfaces.MCQuestion) map[string][]interfaces.MCQuestion {
	if len(questions) == 0 {
		return nil
	}
	out := make(map[string][]interfaces.MCQuestion)
	for _, q := range questions {
		out[q.Difficulty] = append(out[q.Difficulty], q)
	}
	return out
}
