package query

// systemPrompts ground the answer in the query's language.
var systemPrompts = map[string]string{
	"en": "You are a helpful AI assistant that answers questions EXCLUSIVELY and STRICTLY based on the provided documents.",
	"hi": "आप एक सहायक AI सहायक हैं जो प्रदान किए गए दस्तावेज़ों के आधार पर प्रश्नों के उत्तर देते हैं।",
	"es": "Eres un asistente de IA útil que responde preguntas EXCLUSIVAMENTE basándose en los documentos proporcionados.",
	"fr": "Vous êtes un assistant IA utile qui répond aux questions EXCLUSIVEMENT sur la base des documents fournis.",
	"de": "Sie sind ein hilfreicher KI-Assistent, der Fragen AUSSCHLIESSLICH auf der Grundlage der bereitgestellten Dokumente beantwortet.",
}

// noInfoMessages are returned when retrieval comes back empty.
var noInfoMessages = map[string]string{
	"en": "I don't have this information in your documents. Please upload relevant documents or ask questions about the documents you've provided.",
	"hi": "मेरे पास आपके दस्तावेज़ों में यह जानकारी नहीं है। कृपया प्रासंगिक दस्तावेज़ अपलोड करें या अपने दस्तावेज़ों के बारे में प्रश्न पूछें।",
	"es": "No tengo esta información en sus documentos. Por favor, suba documentos relevantes o haga preguntas sobre los documentos que ha proporcionado.",
	"fr": "Je n'ai pas cette information dans vos documents. Veuillez télécharger des documents pertinents ou poser des questions sur les documents que vous avez fournis.",
}

// accessDeniedAnswer distinguishes RBAC blocks from empty retrieval.
const accessDeniedAnswer = "🔒 **Access Denied**: You do not have permission to access documents related to this query. Please contact your administrator if you believe this is an error."

// refusalPhrases mark an LLM answer as "not in the documents".
var refusalPhrases = []string{
	"don't have this information",
	"not in the provided documents",
	"not in the documents",
	"cannot find this information",
	"no information about",
	"not mentioned in the documents",
	"not available in the documents",
}

// fileIntentKeywords signal the user is asking for a file's content.
var fileIntentKeywords = []string{
	"give me", "show me", "what", "whats", "what is", "in", "inside", "content",
}

// definitionTriggers make the prompt require a definition-first answer.
var definitionTriggers = []string{
	"what is", "define", "definition of", "meaning of",
}

func systemPromptFor(lang string) string {
	if prompt, ok := systemPrompts[lang]; ok {
		return prompt
	}
	return systemPrompts["en"]
}

func noInfoMessageFor(lang string) string {
	if msg, ok := noInfoMessages[lang]; ok {
		return msg
	}
	return noInfoMessages["en"]
}
