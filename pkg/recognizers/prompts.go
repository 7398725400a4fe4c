package recognizers

const llmEntityPromptTemplate = `
You find personally identifiable information in text.

Return every span of the Text below that is one of these entity types:
{{ join ", " .Entities }}.

Respond with a JSON array only. Each element must be an object with the keys
"entity_type" (one of the types above) and "text" (the exact substring as it
appears in the Text). Return [] when nothing is found.

EXAMPLE
Text: Dr. Jane Porter moved to Lisbon in 2019.
Response: [{"entity_type": "PERSON", "text": "Jane Porter"}, {"entity_type": "LOCATION", "text": "Lisbon"}]

Text: {{ .Text | trim }}
Response:`

type llmEntityPromptData struct {
	Entities []string
	Text     string
}
