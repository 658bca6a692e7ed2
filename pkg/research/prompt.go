package research

import (
	"fmt"
	"strings"
)

// Report formats accepted by BuildReportPrompt.
const (
	FormatClassic  = "classic"
	FormatExtended = "extended"
)

const editorDescription = "You are a Senior NYT Editor tasked with writing a NYT cover story worthy report due tomorrow, Report should be as human as it can be."

var editorInstructions = []string{
	"You will be provided with a topic and search results from junior researchers.",
	"Carefully read the results and generate a final - NYT cover story worthy report.",
	"Make your report engaging, informative, and well-structured.",
	"Your report should follow the format provided below.",
	"Remember: you are writing for the New York Times, so the quality of the report is important.",
}

const classicFormat = `
## Title

- **Overview** Brief introduction of the topic.

- **Importance** Why is this topic significant now?

### Section 1
- **Detail 1**
- **Detail 2**
- **Detail 3**

### Section 2
- **Detail 1**
- **Detail 2**
- **Detail 3**

### Section 3
- **Detail 1**
- **Detail 2**
- **Detail 3**

## Conclusion
- **Summary of report:** Recap of the key findings from the report.
- **Implications:** What these findings mean for the future.

## References
- [Reference 1](Link URL to Source)
- [Reference 2](Link URL to Source)

`

const extendedFormat = `

# Title

## **Overview** Brief introduction of the topic
## **Importance** Why is this topic significant now?

### Section 1
- **Detail 1**
- **Detail 2**
- **Detail 3**

### Section 2
- **Detail 1**
- **Detail 2**
- **Detail 3**

### Section 3
- **Detail 1**
- **Detail 2**
- **Detail 3**

### Keywords
- all the important technical keywords.

## Conclusion
- **Implications:** What these findings mean for the future.
- **Summary of report:** Recap of the key findings from the report.

## References
- [Reference 1](Link Paper or Website to Source)
- [Reference 2](Link Paper or Website to Source)
- [Reference 3](Link Paper or Website to Source)
- [Reference 4](Link Paper or Website to Source)
- [Reference 5](Link Paper or Website to Source)

`

// ValidFormat reports whether format names a known report template.
func ValidFormat(format string) bool {
	return format == FormatClassic || format == FormatExtended
}

// BuildReportPrompt assembles the editor prompt for topic. Every result
// contributes its locator line and content exactly once, in order. Unknown
// formats fall back to the extended template.
func BuildReportPrompt(topic string, results []SearchResult, format string) string {
	reportFormat := extendedFormat
	if format == FormatClassic {
		reportFormat = classicFormat
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nInstructions: %s\n\nReport Format:\n%s\n\nTopic: %s\n\nSearch Results:\n",
		editorDescription, strings.Join(editorInstructions, ", "), reportFormat, topic)
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s\n%s\n\n", r.URL, r.Content)
	}
	return sb.String()
}
