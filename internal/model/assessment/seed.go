package assessment

const (
	KindTriage  = "triage"
	KindSingles = "singles"
)

func scale(labels ...string) []Option {
	opts := make([]Option, len(labels))
	for i, label := range labels {
		opts[i] = Option{Value: 5 - i, Label: label}
	}
	return opts
}

// Seed provides the marriage triage and singles readiness banks.
func Seed() []Questionnaire {
	return []Questionnaire{
		{
			Kind:  KindTriage,
			Title: "Marriage Health Check",
			Questions: []Question{
				{ID: 1, Text: "How well do you and your partner communicate about important issues?", Options: scale(
					"Excellent — We talk openly and respectfully",
					"Good — We talk, but sometimes misunderstand each other",
					"Fair — Communication is inconsistent or emotional",
					"Poor — We rarely communicate meaningfully",
					"Very poor — We avoid talking or conversations become hurtful",
				)},
				{ID: 2, Text: "How emotionally connected do you currently feel to your spouse?", Options: scale(
					"Very connected", "Somewhat connected", "Neutral", "Somewhat disconnected", "Very disconnected",
				)},
				{ID: 3, Text: "How do conflicts usually end in your relationship?", Options: scale(
					"Resolved calmly with mutual understanding",
					"Resolved eventually, but with difficulty",
					"Often left unresolved",
					"Escalates to arguments or hurtful words",
					"Becomes harmful or makes me feel unsafe",
				)},
				{ID: 4, Text: "How aligned are you spiritually as a couple?", Options: scale(
					"Very aligned — We pray/learn together consistently",
					"Moderately aligned — We try but are not consistent",
					"Minimally aligned — We rarely pray/learn together",
					"Not aligned — We seem spiritually distant",
					"Opposed — We disagree on core spiritual values",
				)},
				{ID: 5, Text: "How satisfied are you with the level of intimacy and affection in your marriage?", Options: scale(
					"Very satisfied", "Satisfied", "Neutral", "Unsatisfied", "Very unsatisfied",
				)},
			},
			Bands: []Band{
				{
					Min:            80,
					Summary:        "Your marriage shows strong communication, connection and spiritual unity.",
					Recommendation: "Keep investing in what works: regular prayer together, date nights and gratitude.",
				},
				{
					Min:            60,
					Summary:        "Your marriage is stable, with a few areas that need attention.",
					Recommendation: "Pick one growth area this month and talk it through together with KFM Counsel.",
				},
				{
					Min:            40,
					Summary:        "Your marriage is under strain in several areas.",
					Recommendation: "Consider speaking with a human counsellor and start with small daily reconnection habits.",
				},
				{
					Min:            0,
					Summary:        "Your marriage is in significant distress.",
					Recommendation: "Please reach out to a licensed counsellor soon. If you feel unsafe, contact emergency services.",
				},
			},
		},
		{
			Kind:  KindSingles,
			Title: "Singles Readiness Check",
			Questions: []Question{
				{ID: 1, Text: "How well do you manage your emotions when under stress?", Options: scale(
					"Very well — I stay calm and reflective",
					"Well — I try to respond with wisdom",
					"Neutral — I manage sometimes, struggle sometimes",
					"Poorly — I react emotionally",
					"Very poorly — Stress overwhelms me easily",
				)},
				{ID: 2, Text: "How prepared are you to navigate disagreements in a relationship?", Options: scale(
					"Highly prepared — I listen, compromise, and communicate well",
					"Prepared — I try my best to understand and resolve",
					"Neutral — I'm still learning",
					"Unprepared — I avoid conflict",
					"Very unprepared — I shut down or become reactive",
				)},
				{ID: 3, Text: "How would you describe your spiritual walk?", Options: scale(
					"Strong — I consistently pray, study, and grow",
					"Steady — I try to stay consistent",
					"Developing — I'm growing but not consistent",
					"Weak — I rarely engage spiritually",
					"Uncertain — I'm still figuring out my spiritual path",
				)},
				{ID: 4, Text: "How clear are you about your personal purpose and identity before considering marriage?", Options: scale(
					"Very clear — I know who I am and where I'm going",
					"Clear — I have some direction",
					"Neutral — I'm figuring things out",
					"Not clear — I'm still searching",
					"Confused — I feel lost about my purpose",
				)},
				{ID: 5, Text: "How ready are you for long-term commitment (responsibility, loyalty, sacrifice)?", Options: scale(
					"Fully ready", "Mostly ready", "Somewhat ready", "Not ready", "Not Sure",
				)},
				{ID: 6, Text: "Have you healed from past relationship wounds or trauma?", Options: scale(
					"Yes, I have found peace and healing.",
					"Mostly, I am working through the last bits.",
					"Somewhat, but I still get triggered.",
					"No, I am still very much hurting.",
					"I am deep in pain right now.",
				)},
			},
			Bands: []Band{
				{
					Min:            80,
					Summary:        "You show strong emotional, relational and spiritual readiness for marriage.",
					Recommendation: "Keep growing in community and seek mentorship from a healthy married couple.",
				},
				{
					Min:            60,
					Summary:        "You are largely ready, with some areas still developing.",
					Recommendation: "Focus on the lowest-scoring area and explore it with KFM Counsel.",
				},
				{
					Min:            40,
					Summary:        "Several areas of readiness still need attention.",
					Recommendation: "Take time for healing and personal growth before pursuing a serious relationship.",
				},
				{
					Min:            0,
					Summary:        "You may be carrying significant pain or uncertainty right now.",
					Recommendation: "Consider speaking with a counsellor or pastor about healing before dating.",
				},
			},
		},
	}
}
