package whatsapp

import (
	"fmt"
	"strings"

	"github.com/cartback/cartback/internal/db"
)

// RenderTemplate substitui os placeholders {{var}} do corpo pelo valor de
// cada variável declarada e retorna também os valores na ordem declarada,
// que é a ordem posicional esperada pela Cloud API.
func RenderTemplate(template *db.MessageTemplate, values map[string]string) (string, []string, error) {
	body := template.Body
	ordered := make([]string, 0, len(template.Variables))

	for _, name := range template.Variables {
		value, ok := values[name]
		if !ok {
			return "", nil, fmt.Errorf("missing template variable: %s", name)
		}
		body = strings.ReplaceAll(body, "{{"+name+"}}", value)
		ordered = append(ordered, value)
	}

	return body, ordered, nil
}
