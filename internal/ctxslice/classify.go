package ctxslice

import "strings"

// keywordRule pairs a task tag with the keywords that trigger it.
// Rules are tried top-down; the first match wins.
type keywordRule struct {
	tag      TaskTag
	keywords []string
}

// classificationRules is evaluated in order, so a message matching more than
// one rule's keywords always resolves to the earliest (most specific) tag.
var classificationRules = []keywordRule{
	{
		tag:      TaskDeriveTestcase,
		keywords: []string{"test", "verify", "coverage", "testcase", "testfall"},
	},
	{
		tag:      TaskDetailUsecase,
		keywords: []string{"detail", "refine", "elaborate", "use case", "anwendungsfall"},
	},
	{
		tag:      TaskAllocateFunctions,
		keywords: []string{"allocate", "assign", "module", "zuweisen"},
	},
	{
		tag:      TaskValidatePhase,
		keywords: []string{"validate", "check", "phase", "validier"},
	},
}

// classify resolves message to a TaskTag by lowercased keyword matching,
// falling back to TaskGeneral when no rule's keywords appear.
func classify(message string) TaskTag {
	lower := strings.ToLower(message)
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.tag
			}
		}
	}
	return TaskGeneral
}
