package conversation

import (
	"fmt"
	"strings"

	"tgbridge/app/model"
	"tgbridge/app/service/runtime"
)

// imageNote renders an image description the way it is stored in memory.
func imageNote(desc *runtime.Description) string {
	return fmt.Sprintf("[Image: %s\n%s]", strings.TrimSpace(desc.Title), strings.TrimSpace(desc.Description))
}

func hasText(msg *model.Message) bool {
	return strings.TrimSpace(msg.Body()) != ""
}

func messageText(msg *model.Message, notes []string) string {
	parts := make([]string, 0, len(notes)+1)
	if body := strings.TrimSpace(msg.Body()); body != "" {
		parts = append(parts, body)
	}

	return strings.Join(append(parts, notes...), "\n")
}
