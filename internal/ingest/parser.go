package ingest

import "strings"

// Mention é o resultado do parse de um tweet que casou com a gramática
type Mention struct {
	RefURL   string
	Question string
}

// ParseMention aplica a gramática "KEYWORD <url> <pergunta>" ao texto do tweet:
// a palavra-chave casa sem diferenciar maiúsculas, o token seguinte precisa
// parecer uma URL e o restante vira a pergunta do mercado. A maior parte das
// menções é ruído e simplesmente não casa; isso não é erro.
func ParseMention(keyword, text string) (Mention, bool) {
	fields := strings.Fields(text)
	for i, f := range fields {
		if !strings.EqualFold(f, keyword) {
			continue
		}
		// precisa sobrar pelo menos URL + uma palavra de pergunta
		if i+2 >= len(fields) {
			return Mention{}, false
		}
		link := fields[i+1]
		if !isURL(link) {
			return Mention{}, false
		}
		question := strings.TrimSpace(strings.Join(fields[i+2:], " "))
		if question == "" {
			return Mention{}, false
		}
		return Mention{RefURL: link, Question: question}, true
	}
	return Mention{}, false
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
