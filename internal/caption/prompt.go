package caption

import (
	"fmt"
	"strings"
)

const SystemPrompt = `You write Instagram captions for a single photo and pick the best hour to post it.
Reply with the caption (a few sentences plus relevant hashtags) and nothing else, then a final line
of exactly this form:
Recommended Time: H:MM AM|PM`

// BuildPrompt asks for a caption for assetID, steering the recommended time
// away from hours already given to other posts in this pass.
func BuildPrompt(assetID string, used []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a caption for the attached image %q.\n", assetID)
	if len(used) > 0 {
		taken := make([]string, 0, len(used))
		for _, h := range used {
			taken = append(taken, formatHour(h))
		}
		fmt.Fprintf(&b, "These posting times are already taken, recommend a different one: %s.\n", strings.Join(taken, ", "))
	}
	b.WriteString("End with the Recommended Time line.")
	return b.String()
}

// formatHour renders a 24-hour value the way the service is asked to answer.
func formatHour(h int) string {
	meridiem := "AM"
	if h >= 12 {
		meridiem = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:00 %s", h12, meridiem)
}
