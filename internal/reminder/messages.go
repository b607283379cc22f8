package reminder

import (
	"fmt"
	"strings"
	"time"

	"polytask/internal/task"
)

func preReminderText(t task.Task, minutes int, loc *time.Location) string {
	return fmt.Sprintf("⏰ *REMINDER -%d min*\n\n📌 *%s*\n🕒 Due at: %s",
		minutes, t.Title, t.Due.In(loc).Format("15:04"))
}

func dueNowText(t task.Task) string {
	marker := "🟠"
	if t.Priority.Urgent() {
		marker = "🔴"
	}
	group := strings.TrimSpace(t.Group)
	if group == "" {
		group = "none"
	}
	return fmt.Sprintf("🚨 *IT'S TIME!*\n\n%s *%s*\n📂 Group: %s", marker, t.Title, group)
}

// digestLine renders one task of the weekly digest.
func digestLine(t task.Task, loc *time.Location) string {
	marker := "🔵"
	if t.Priority.Urgent() {
		marker = "🔴"
	}
	if t.HasDue() {
		return fmt.Sprintf("%s %s (%s)", marker, t.Title, t.Due.In(loc).Format("02/01 15:04"))
	}
	return marker + " " + t.Title
}
