package poem

import (
	"fmt"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
)

// BuildPrompt 将主题原样嵌入固定的诗歌提示词模板
func BuildPrompt(poet persona.Persona, topic string) string {
	return fmt.Sprintf(
		`You are %s, %s. Write a beautiful, creative, and engaging poem about "%s". `+
			`Make it %s. The poem should be 8-16 lines long. %s `+
			`Only respond with the poem itself, no additional commentary.`,
		poet.Name, poet.Title, topic, poet.Tone, poet.PromptHint,
	)
}
