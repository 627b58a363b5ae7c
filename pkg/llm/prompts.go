package llm

import "fmt"

const SystemPrompt = "You are an intelligent assistant able to handle many kinds of questions, " +
	"from government policy, regulations and administrative procedures to everyday topics. " +
	"Answer according to the user's question and stay polite, professional and neutral."

// AnswerPrompt grounds the question in the retrieved context.
func AnswerPrompt(context, question string) string {
	return fmt.Sprintf("Answer the question based on the content inside ```.\n```\n%s\n```\nMy question is: %s.", context, question)
}

func TranslatePrompt(text, lang string) string {
	return fmt.Sprintf("Translate the following text into the language with code %q. Reply with the translation only.\n\n%s", lang, text)
}

const DefaultTask = "general"

var taskPrompts = map[string]string{
	DefaultTask:      "Please answer the following question: %s",
	"policy":         "Explain the main content, goals and likely impact of the following policy: %s",
	"regulation":     "Regarding %s, describe its main provisions and scope of application.",
	"procedure":      "Describe in detail the steps and required materials for %s.",
	"public-service": "I want to know about %s, including how to apply, processing time and required documents.",
	"complaint":      "I want to file a complaint or suggestion about %s. Which procedure should I follow?",
	"data-analysis":  "Analyse the following data and provide insights: %s",
	"emergency":      "In the case of %s, what measures should be taken?",
}

// TaskPrompt frames the query for a task type, falling back to a general
// question for unknown tasks.
func TaskPrompt(task, query string) string {
	tmpl, ok := taskPrompts[task]
	if !ok {
		tmpl = taskPrompts[DefaultTask]
	}
	return fmt.Sprintf("%s\n\nTask: %s\n\nAnswer:", SystemPrompt, fmt.Sprintf(tmpl, query))
}

func Tasks() []string {
	return []string{DefaultTask, "policy", "regulation", "procedure", "public-service", "complaint", "data-analysis", "emergency"}
}
