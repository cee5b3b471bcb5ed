package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RetrivaAI/retriva/engine/domain"
	"github.com/RetrivaAI/retriva/engine/timeseries"
)

// The instruction template is load-bearing: downstream behaviour depends on
// the exact wording, so it is never reformatted.
const promptTemplate = "Using this data %s Respond to this prompt: %s without any additional information."

// documentPrompt embeds the retrieved document text, with filename and page
// when present, ahead of the instruction.
func documentPrompt(p domain.DocumentPayload, query string) string {
	var b strings.Builder
	b.WriteString(p.Document)
	if p.FileName != "" {
		fmt.Fprintf(&b, " (file: %s", p.FileName)
		if p.Page != "" {
			fmt.Fprintf(&b, ", page: %s", p.Page)
		}
		b.WriteString(")")
	}
	return fmt.Sprintf(promptTemplate, b.String(), query)
}

// dataPrompt embeds the serialized time-series rows ahead of the
// instruction. json.Marshal sorts map keys, so the serialization is stable.
func dataPrompt(rows []timeseries.Row, query string) string {
	data, err := json.Marshal(rows)
	if err != nil {
		// Rows come from the influx client as plain scalars; marshal
		// cannot fail on them. Fall back to an empty set if it ever does.
		data = []byte("[]")
	}
	return fmt.Sprintf(promptTemplate, string(data), query)
}
