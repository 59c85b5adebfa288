package services

import (
	"regexp"
	"strings"

	"schoolfee/models"
	"schoolfee/utils"
)

var placeholderRegex = regexp.MustCompile(`\{([A-Za-z]+)\}`)

// Placeholder fallbacks used when a recipient field is empty
const (
	FallbackName    = "Student"
	FallbackClass   = "your class"
	FallbackCourse  = "your course"
	FallbackDueDate = "the due date"
	FallbackAmount  = "the outstanding amount"
	FallbackContact = "N/A"
)

// KnownPlaceholders lists the tokens the renderer substitutes.
var KnownPlaceholders = []string{
	"name", "class", "course", "dueDate", "amount", "phone", "email", "studentId",
}

// RenderTemplate substitutes the known placeholders in content with the
// recipient's fields. Unknown placeholders are left as written.
func RenderTemplate(content string, recipient models.Recipient) string {
	if !strings.Contains(content, "{") {
		return content
	}

	return placeholderRegex.ReplaceAllStringFunc(content, func(token string) string {
		value, ok := placeholderValue(token[1:len(token)-1], recipient)
		if !ok {
			return token
		}
		return value
	})
}

func placeholderValue(name string, r models.Recipient) (string, bool) {
	switch name {
	case "name":
		return orDefault(r.Name, FallbackName), true
	case "class":
		return orDefault(firstNonEmpty(r.ClassName, r.ClassID), FallbackClass), true
	case "course":
		return orDefault(firstNonEmpty(r.CourseName, r.CourseID), FallbackCourse), true
	case "dueDate":
		if r.DueDate == nil {
			return FallbackDueDate, true
		}
		return r.DueDate.Format("02 Jan 2006"), true
	case "amount":
		if r.Amount == nil {
			return FallbackAmount, true
		}
		return utils.FormatAmount(*r.Amount), true
	case "phone":
		return orDefault(firstNonEmpty(r.Phone, r.WhatsAppNumber), FallbackContact), true
	case "email":
		return orDefault(r.Email, FallbackContact), true
	case "studentId":
		return orDefault(r.ID, FallbackContact), true
	default:
		return "", false
	}
}

// ExtractPlaceholders returns the distinct placeholder names in content, in
// order of first appearance.
func ExtractPlaceholders(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRegex.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UnknownPlaceholders returns placeholders in content the renderer does not
// substitute. Used when templates are authored.
func UnknownPlaceholders(content string) []string {
	var unknown []string
	for _, name := range ExtractPlaceholders(content) {
		if !utils.StringSliceContains(KnownPlaceholders, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
