package generator

import (
	"fmt"
	"strings"

	"github.com/ralmansi/pifchat/internal/budget"
)

// historyWindow is the maximum number of history entries folded into the
// prompt: the last 4 exchanges. History beyond the window is dropped so the
// prompt stays bounded regardless of conversation length.
const historyWindow = 8

// Turn is one entry of the conversation history consumed by the generator.
// History is caller-owned; the generator only reads a bounded recent window.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// systemPromptAR instructs the model in Arabic: answer only from the supplied
// context, respect prior conversation, cite figures, admit insufficiency,
// never fabricate.
const systemPromptAR = `أنت مساعد ذكي متخصص في تحليل تقارير صندوق الاستثمارات العامة السعودي (PIF).
مهمتك هي تقديم إجابات دقيقة ومفصلة بناءً على السياق المقدم من التقارير السنوية.

قواعد الإجابة:
1. استخدم المعلومات من السياق المقدم فقط
2. راعِ المحادثة السابقة لفهم السياق الكامل
3. قدم إجابات واضحة ومنظمة
4. اذكر الأرقام والإحصائيات عند توفرها
5. إذا كانت المعلومات غير كافية، اذكر ذلك بوضوح
6. لا تختلق معلومات غير موجودة في السياق`

// systemPromptEN is the English counterpart of systemPromptAR.
const systemPromptEN = `You are an intelligent assistant specialized in analyzing Saudi Arabia's Public Investment Fund (PIF) annual reports.
Your task is to provide accurate and detailed answers based on the provided context from annual reports.

Answer Guidelines:
1. Use only information from the provided context
2. Consider previous conversation for full context understanding
3. Provide clear and well-structured answers
4. Include numbers and statistics when available
5. If information is insufficient, state it clearly
6. Do not fabricate information not in the context`

// Fallback introductory phrases, prepended to a raw context excerpt when the
// LLM is unavailable.
const (
	fallbackIntroAR = "بناءً على المعلومات المتاحة في تقارير صندوق الاستثمارات العامة:\n\n"
	fallbackIntroEN = "Based on the PIF annual reports:\n\n"
)

// fallbackContextLimit is the number of context runes included in a fallback
// answer.
const fallbackContextLimit = 800

// systemPrompt returns the language-appropriate system prompt.
func systemPrompt(arabic bool) string {
	if arabic {
		return systemPromptAR
	}
	return systemPromptEN
}

// userPrompt assembles the user message: a language-specific context header,
// the retrieved context verbatim, the folded conversation transcript, and the
// current question with closing instructions.
func userPrompt(question, context string, history []Turn, arabic bool) string {
	transcript := historyTranscript(question, context, history, arabic)

	if arabic {
		return fmt.Sprintf(`السياق من تقارير صندوق الاستثمارات العامة:
%s
%s

السؤال الحالي: %s

قدم إجابة شاملة ودقيقة بناءً على السياق والمحادثة السابقة. استخدم تنسيق واضح مع نقاط منظمة عند الضرورة.`,
			context, transcript, question)
	}

	return fmt.Sprintf(`Context from PIF Annual Reports:
%s
%s

Current Question: %s

Provide a comprehensive and accurate answer based on the context and previous conversation. Use clear formatting with organized bullet points when necessary.`,
		context, transcript, question)
}

// historyTranscript folds the most recent historyWindow entries into a
// labeled transcript, or returns "" when there is no history. Entries are
// additionally trimmed oldest-first so the whole prompt stays inside the
// token budget; the system prompt, context, and question are never trimmed.
func historyTranscript(question, context string, history []Turn, arabic bool) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	entries := make([]string, 0, len(history))
	for _, turn := range history {
		entries = append(entries, turnLabel(turn.Role, arabic)+": "+turn.Content)
	}

	fixed := budget.Estimate(systemPrompt(arabic)) +
		budget.Estimate(context) +
		budget.Estimate(question)
	entries = budget.TrimEntries(fixed, entries, budget.DefaultMaxContextTokens)
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	if arabic {
		b.WriteString("\n\nالمحادثة السابقة:\n")
	} else {
		b.WriteString("\n\nPrevious conversation:\n")
	}
	for _, e := range entries {
		b.WriteString(e)
		b.WriteString("\n")
	}
	return b.String()
}

// turnLabel localizes a history role for the transcript.
func turnLabel(role string, arabic bool) string {
	if arabic {
		if role == RoleUser {
			return "المستخدم"
		}
		return "المساعد"
	}
	if role == RoleUser {
		return "User"
	}
	return "Assistant"
}

// Fallback builds the deterministic extractive answer: the language-specific
// introductory phrase followed by the first fallbackContextLimit runes of the
// joined context, with an ellipsis when truncated. Used whenever the LLM
// cannot be reached — the user always gets a grounded answer.
func Fallback(context string, arabic bool) string {
	intro := fallbackIntroEN
	if arabic {
		intro = fallbackIntroAR
	}

	runes := []rune(context)
	if len(runes) > fallbackContextLimit {
		return intro + string(runes[:fallbackContextLimit]) + "..."
	}
	return intro + context
}
