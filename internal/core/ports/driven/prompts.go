package driven

// PromptStore resolves system prompts by name.
type PromptStore interface {
	// Load returns the prompt text for name, or an error when neither an
	// override nor a built-in exists.
	Load(name string) (string, error)

	// Reload discards cached prompts.
	Reload()
}

// Prompt names, one per query type plus the unclassified answer prompt.
// Prompts take no placeholders; context and question follow as a user message.
const (
	PromptProcedural   = "procedural"
	PromptDefinitional = "definitional"
	PromptAnalytical   = "analytical"
	PromptGeneral      = "general"
	PromptPlainAnswer  = "plain_answer"
)

// PromptStoreAware is implemented by services whose prompts can be replaced
// after construction. Without a store they use the built-in prompts.
type PromptStoreAware interface {
	SetPromptStore(store PromptStore)
}
