package prompts

import (
	"embed"
	"fmt"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/seele-review/seele/internal/model"
)

//go:embed prompt-*.txt
var promptFiles embed.FS

// Builder assembles review prompts in the configured response language. The
// system prompt text is loaded once and cached.
type Builder struct {
	language     model.Language
	systemPrompt string
}

// NewBuilder loads the system prompt for the given language, falling back to
// English when no prompt file exists for it.
func NewBuilder(language model.Language) (*Builder, error) {
	text, err := promptFiles.ReadFile(fmt.Sprintf("prompt-%s.txt", language))
	if err != nil {
		logze.Warn("no prompt for language, falling back to English", "language", string(language))

		language = model.LanguageEnglish
		text, err = promptFiles.ReadFile("prompt-en.txt")
		if err != nil {
			return nil, errm.Wrap(err, "failed to read fallback prompt")
		}
	}

	return &Builder{
		language:     language,
		systemPrompt: string(text),
	}, nil
}

// BuildReviewPrompt builds the two-message review prompt: the cached system
// prompt and the extended diff as the user message.
func (b *Builder) BuildReviewPrompt(extendedDiff string) model.Prompt {
	return model.Prompt{
		SystemPrompt: b.systemPrompt,
		UserPrompt:   extendedDiff,
		Language:     b.language,
	}
}
