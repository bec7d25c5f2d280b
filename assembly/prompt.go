package assembly

import (
	"fmt"
	"strings"

	"github.com/poiesic/clearance/core"
)

const documentSeparator = "\n\n" + "==================================================" + "\n\n"

const systemPromptTemplate = `You are a helpful assistant for %s with role-based access control.

IMPORTANT INSTRUCTIONS:
1. Answer the user's question using ONLY the provided context documents
2. The user has '%s' role - provide information relevant to their role
3. Be comprehensive and detailed when the context supports it
4. If the context has relevant information but it's partial, provide what you can and mention limitations
5. Do NOT refuse to answer if there is relevant information in the context
6. Format your response clearly and professionally
7. If you need to make connections between different pieces of information in the context, that's allowed

Context Quality: The documents provided have been pre-filtered for relevance to the user's question.`

// SystemPrompt returns the system prompt for a caller with role.
func (a *Assembler) SystemPrompt(role core.Role) string {
	return fmt.Sprintf(systemPromptTemplate, a.config.Organization, role)
}

// UserPrompt returns the user prompt carrying the context and the question.
func (a *Assembler) UserPrompt(c *Context, question string) string {
	var sb strings.Builder
	sb.WriteString("Context Documents:\n")
	sb.WriteString(c.Text())
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nPlease provide a comprehensive answer based on the context above:")
	return sb.String()
}

// Text renders the numbered documents of the context.
func (c *Context) Text() string {
	parts := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		parts[i] = fmt.Sprintf("Document %d (Source: %s, Relevance: %.2f):\n%s", i+1, d.Source, d.Score, d.Content)
	}
	return strings.Join(parts, documentSeparator)
}
