package rag

import (
	"strings"

	"github.com/ralmansi/pifchat/internal/retrieval"
)

// maxFollowUps caps the suggestion list shown with each answer.
const maxFollowUps = 2

// FollowUps suggests next questions based on keywords in the current one,
// in the question's language. The lists are static; there is always at least
// one suggestion.
func FollowUps(question string) []string {
	var followUps []string

	if retrieval.IsArabic(question) {
		switch {
		case strings.Contains(question, "استثمار") || strings.Contains(question, "قطاع"):
			followUps = append(followUps,
				"ما هي القطاعات الاستثمارية الأخرى؟",
				"كم قيمة الاستثمارات الإجمالية؟")
		case strings.Contains(question, "وظيفة") || strings.Contains(question, "وظائف"):
			followUps = append(followUps, "ما هي مبادرات التوظيف الأخرى؟")
		case strings.Contains(question, "نيوم") || strings.Contains(question, "NEOM"):
			followUps = append(followUps, "ما هي مشاريع رؤية 2030 الأخرى؟")
		}
		if len(followUps) == 0 {
			followUps = []string{
				"أخبرني المزيد عن استراتيجية الصندوق",
				"ما هي الإنجازات المالية الأخيرة؟",
			}
		}
	} else {
		lower := strings.ToLower(question)
		switch {
		case strings.Contains(lower, "investment") || strings.Contains(lower, "sector"):
			followUps = append(followUps,
				"What other sectors does PIF invest in?",
				"What is the total value of investments?")
		case strings.Contains(lower, "job"):
			followUps = append(followUps, "What are other job creation initiatives?")
		case strings.Contains(lower, "neom"):
			followUps = append(followUps, "What other Vision 2030 projects exist?")
		case strings.Contains(question, "2023"):
			followUps = append(followUps, "How does this compare to 2022?")
		}
		if len(followUps) == 0 {
			followUps = []string{
				"Tell me more about PIF's strategy",
				"What are the recent financial achievements?",
			}
		}
	}

	if len(followUps) > maxFollowUps {
		followUps = followUps[:maxFollowUps]
	}
	return followUps
}
