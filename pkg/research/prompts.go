package research

import (
	"fmt"
	"strings"
	"time"
)

// SystemPrompt is sent with every model call.
func SystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are an expert researcher. Today is %s. Follow these instructions when responding:
- You may be asked to research subjects that are after your knowledge cutoff, assume the user is right when presented with news.
- The user is a highly experienced analyst, no need to simplify it, be as detailed as possible and make sure your response is correct.
- Be highly organized.
- Suggest solutions that I didn't think about.
- Be proactive and anticipate my needs.
- Treat me as an expert in all subject matter.
- Mistakes erode my trust, so be accurate and thorough.
- Provide detailed explanations, I'm comfortable with lots of detail.
- Value good arguments over authorities, the source is irrelevant.
- Consider new technologies and contrarian ideas, not just the conventional wisdom.
- You may use high levels of speculation or prediction, just flag it for me.`, now.UTC().Format(time.RFC3339))
}

func planPrompt(topic string, findings []string, maxQueries int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the following prompt from the user, generate a list of SERP queries to research the topic. "+
		"Return a maximum of %d queries, but feel free to return less if the original prompt is clear. "+
		"Make sure each query is unique and not similar to each other: <prompt>%s</prompt>\n\n", maxQueries, topic)
	if len(findings) > 0 {
		fmt.Fprintf(&b, "Here are some learnings from previous research, use them to generate more specific queries: %s\n\n",
			strings.Join(findings, "\n"))
	}
	b.WriteString(`Your response should be in the following JSON format:
{
  "queries": [
    {
      "query": "The SERP query",
      "researchGoal": "First talk about the goal of this query, then go deeper into how to advance the research once results are found, mention additional research directions. Be specific."
    }
  ]
}`)
	return b.String()
}

func extractPrompt(query string, contents []string, maxFindings, numFollowUps int) string {
	var docs strings.Builder
	for i, c := range contents {
		if i > 0 {
			docs.WriteString("\n")
		}
		docs.WriteString("<content>\n")
		docs.WriteString(c)
		docs.WriteString("\n</content>")
	}

	return fmt.Sprintf(`Given the following contents from a SERP search for the query <query>%s</query>, generate a list of learnings from the contents. Return a maximum of %d learnings, but feel free to return less if the contents are clear. Make sure each learning is unique and not similar to each other. The learnings should be concise and to the point, as detailed and information dense as possible. Make sure to include any entities like people, places, companies, products, things, etc in the learnings, as well as any exact metrics, numbers, or dates. The learnings will be used to research the topic further. Also suggest up to %d follow-up questions.

<contents>%s</contents>

Your response should be in the following JSON format:
{
  "learnings": [
    "First learning statement that is detailed and information-dense",
    "Second learning statement with entities, metrics, or specific data points"
  ],
  "followUpQuestions": [
    "First follow-up question to pursue for further research",
    "Second follow-up question focusing on a different aspect"
  ]
}`, query, maxFindings, numFollowUps, docs.String())
}

func reportPrompt(topic, findings string) string {
	return fmt.Sprintf(`Given the following prompt from the user, write a final report on the topic using the learnings from research. Make it as detailed as possible, aim for a comprehensive analysis, and include ALL the learnings from research:

<prompt>%s</prompt>

Here are all the learnings from previous research:

<learnings>
%s
</learnings>

Format the report with proper Markdown headings, sections, and bullet points. Include a title at the top.`, topic, findings)
}

func clarifyPrompt(topic string, n int) string {
	return fmt.Sprintf(`Given the following query from the user, ask some follow-up questions to clarify the research direction. Return a maximum of %d questions, but feel free to return less if the original query is clear and focused. Make the questions specific and designed to narrow down the scope of research: <query>%s</query>

Your response should be in the following JSON format:
{
  "questions": [
    "First follow-up question that would help clarify research focus",
    "Second follow-up question addressing a different aspect"
  ]
}`, n, topic)
}
