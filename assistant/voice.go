package assistant

import "strings"

// SplitVoice separates a model answer into the formatted text and the voice
// reply. Without a delimiter the voice reply is the first sentence.
func SplitVoice(answer string) (text, voice string) {
	answer = strings.TrimSpace(answer)
	if before, after, found := strings.Cut(answer, VoiceDelimiter); found {
		text = strings.TrimSpace(before)
		voice = strings.TrimSpace(after)
		if text == "" {
			text = voice
		}
		if voice == "" {
			voice = FirstSentence(text)
		}
		return text, voice
	}
	return answer, FirstSentence(answer)
}

// FirstSentence returns the leading sentence of s with markdown emphasis
// and heading markers removed.
func FirstSentence(s string) string {
	s = strings.TrimSpace(strings.NewReplacer("**", "", "__", "", "`", "").Replace(s))
	s = strings.TrimLeft(s, "# ")
	for i, r := range s {
		switch r {
		case '\n':
			return strings.TrimSpace(s[:i])
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}
	return s
}
