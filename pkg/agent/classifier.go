package agent

import "strings"

// Marker lists for the smart-mode classifier. Matching is substring-based;
// English markers are compared in lowercase.
var (
	actionMarkers = []string{
		"分析", "对比", "总结", "生成", "创建", "修改", "帮我", "整理",
		"analyze", "analyse", "compare", "summarize", "summarise",
		"generate", "create", "modify", "organize", "organise", "help me",
	}
	historyMarkers = []string{
		"刚才", "之前", "上一个", "上个", "前面", "历史",
		"just now", "earlier", "previously", "last question", "you said",
	}
	freshnessMarkers = []string{
		"最新", "今天", "现在", "新闻", "天气", "实时",
		"latest", "today", "right now", "news", "weather", "current",
	}
)

// NeedsAgent reports whether a question should leave the plain retrieval
// path and run the full reasoning loop: explicit action verbs, references to
// earlier turns, or time-sensitive topics. Anything unclassified stays on
// the retrieval path.
func NeedsAgent(question string) bool {
	lowered := strings.ToLower(question)
	for _, group := range [][]string{actionMarkers, historyMarkers, freshnessMarkers} {
		for _, marker := range group {
			if strings.Contains(lowered, marker) {
				return true
			}
		}
	}
	return false
}
