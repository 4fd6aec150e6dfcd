package mail

import "strings"

// ExtractQuestions returns the interrogative lines of text, in order. A line
// counts as a question when it ends with a question mark after trimming.
func ExtractQuestions(text string) []string {
	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "?") {
			questions = append(questions, line)
		}
	}
	return questions
}
