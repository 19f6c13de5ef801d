package search

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Window is the recency range searches are scoped to.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the three months ending at now.
func NewWindow(now time.Time) Window {
	return Window{Start: now.AddDate(0, -3, 0), End: now}
}

// Period renders the window as "YYYY-MM-DD to YYYY-MM-DD".
func (w Window) Period() string {
	return w.Start.Format(dateLayout) + " to " + w.End.Format(dateLayout)
}

// QueryHints adds analysis-derived queries. Either field may be empty.
type QueryHints struct {
	Features    []string
	ProductName string
}

// GenerateQueries builds the ordered query list for input. The result
// depends only on input, hints and the window.
func GenerateQueries(input string, hints *QueryHints, w Window) []string {
	period := w.Period()
	year := w.End.Year()

	queries := []string{
		fmt.Sprintf("site:blog.openai.com OR site:openai.com GPT model release %s", period),
		fmt.Sprintf("site:anthropic.com OR site:blog.anthropic.com Claude model release %s", period),
		fmt.Sprintf("site:ai.google.dev OR site:blog.google OR site:deepmind.google Gemini model release %s", period),
		fmt.Sprintf("site:ai.meta.com Llama model release %s", period),
		fmt.Sprintf("site:blogs.microsoft.com Azure OpenAI model updates %s", period),
		fmt.Sprintf("latest AI models %s official announcement new release version", period),
		fmt.Sprintf("AI agent development trends %s latest updates", period),
		fmt.Sprintf("AI frameworks updates %s GitHub releases", period),
	}

	text := strings.ToLower(input)
	if strings.Contains(text, "ai") || strings.Contains(text, "agent") {
		queries = append(queries,
			fmt.Sprintf("AI agent frameworks LangChain AutoGen CrewAI %s GitHub", period),
			fmt.Sprintf("Multi-agent systems development %s Hugging Face", period),
			fmt.Sprintf("latest AI development stack %d models APIs production %s", year, period),
		)
	}
	if strings.Contains(text, "api") {
		queries = append(queries,
			fmt.Sprintf("API development best practices %s latest", period),
			fmt.Sprintf("REST API GraphQL trends %s", period),
		)
	}
	if strings.Contains(text, "machine learning") || strings.Contains(text, "ml") {
		queries = append(queries,
			fmt.Sprintf("Machine learning frameworks %s PyTorch TensorFlow", period),
			fmt.Sprintf("MLOps tools %s latest updates", period),
		)
	}
	if strings.Contains(text, "web") || strings.Contains(text, "frontend") {
		queries = append(queries,
			fmt.Sprintf("Web development frameworks %s React Vue Angular", period),
			fmt.Sprintf("Frontend technologies %s latest trends", period),
		)
	}

	if hints != nil {
		if len(hints.Features) > 0 {
			queries = append(queries, fmt.Sprintf("%s implementation guide %s", strings.Join(hints.Features, " "), period))
		}
		if hints.ProductName != "" {
			queries = append(queries, fmt.Sprintf("%s competitors alternatives %s", hints.ProductName, period))
		}
	}

	return queries
}
