package interpreter

import (
	"fmt"
	"strings"
)

const intentPrompt = `You are a query understanding assistant for a video analysis system.

User Query: %s
Context: %s

Analyze the query and output a JSON object:
{
  "intent": "search_semantic|search_entity|search_relation|summary|recommend_clip|analyze_topic|analyze_quality",
  "entities": ["entity1", "entity2"],
  "keywords": ["keyword1", "keyword2"],
  "time_constraint": {"start": 0, "end": 120} or null,
  "filters": {"importance_min": 0.7},
  "resolved_query": "fully resolved query",
  "confidence": 0.85,
  "metadata": {}
}

Rules:
- "what is this video about" -> summary
- "who is X" -> search_entity, entities: ["X"]
- "relationship between X and Y" -> search_relation
- "clips for short videos/TikTok/Reels" -> recommend_clip
- Extract all entities and keywords
- Identify time constraints ("first 5 minutes" -> {"start": 0, "end": 300})
- Resolve pronouns using context

Output ONLY the JSON, no other text.`

// digest is the session context handed to the oracle.
type digest struct {
	RecentEntities []string
	Mode           string
	LastUser       string
	LastAssistant  string
}

// format renders the digest as a compact prompt fragment.
func (d digest) format() string {
	var parts []string
	if len(d.RecentEntities) > 0 {
		parts = append(parts, "Recently mentioned: "+strings.Join(d.RecentEntities, ", "))
	}
	if d.Mode != "" {
		parts = append(parts, "Mode: "+d.Mode)
	}
	if d.LastUser != "" {
		parts = append(parts, "Previous question: "+d.LastUser)
	}
	if d.LastAssistant != "" {
		parts = append(parts, "Previous answer: "+d.LastAssistant)
	}
	if len(parts) == 0 {
		return "No previous context"
	}
	return strings.Join(parts, " | ")
}

func buildPrompt(query string, d digest) string {
	return fmt.Sprintf(intentPrompt, query, d.format())
}
