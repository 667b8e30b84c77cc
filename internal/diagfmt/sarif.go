package diagfmt

import (
	"encoding/json"
	"io"
	"sort"

	"graft/internal/diag"
	"graft/internal/source"
)

// Структуры повторяют подмножество SARIF 2.1.0, достаточное для
// потребителей вроде GitHub code scanning.
type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string        `json:"id"`
	ShortDescription *sarifMessage `json:"shortDescription,omitempty"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifResult struct {
	RuleID           string          `json:"ruleId"`
	Level            string          `json:"level"`
	Message          sarifMessage    `json:"message"`
	Locations        []sarifLocation `json:"locations,omitempty"`
	RelatedLocations []sarifLocation `json:"relatedLocations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
	Message          *sarifMessage `json:"message,omitempty"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   uint32 `json:"startLine,omitempty"`
	StartColumn uint32 `json:"startColumn,omitempty"`
	EndLine     uint32 `json:"endLine,omitempty"`
	EndColumn   uint32 `json:"endColumn,omitempty"`
}

// Sarif форматирует диагностики в SARIF формат (v2.1.0).
func Sarif(w io.Writer, bag *diag.Bag, fs *source.FileSet, meta SarifRunMeta) error {
	items := bag.Items()

	seen := make(map[diag.Code]bool)
	rules := make([]sarifRule, 0)
	results := make([]sarifResult, 0, len(items))

	for _, d := range items {
		if !seen[d.Code] {
			seen[d.Code] = true
			rules = append(rules, sarifRule{
				ID:               d.Code.ID(),
				ShortDescription: &sarifMessage{Text: d.Code.Title()},
			})
		}

		res := sarifResult{
			RuleID:  d.Code.ID(),
			Level:   sarifLevel(d.Severity),
			Message: sarifMessage{Text: d.Message},
		}
		if loc := sarifLocationFor(fs, d.Primary, nil); loc != nil {
			res.Locations = []sarifLocation{*loc}
		}
		for _, note := range d.Notes {
			if loc := sarifLocationFor(fs, note.Span, &note.Msg); loc != nil {
				res.RelatedLocations = append(res.RelatedLocations, *loc)
			}
		}
		results = append(results, res)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	name := meta.ToolName
	if name == "" {
		name = "graft"
	}
	log := sarifLog{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    name,
				Version: meta.ToolVersion,
				Rules:   rules,
			}},
			Invocations: []sarifInvocation{{
				Arguments:           meta.InvocationArgs,
				ExecutionSuccessful: true,
			}},
			Results: results,
		}},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(log)
}

func sarifLevel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

func sarifLocationFor(fs *source.FileSet, span source.Span, msg *string) *sarifLocation {
	loc, ok := locate(fs, span)
	if !ok {
		return nil
	}
	out := &sarifLocation{
		PhysicalLocation: sarifPhysical{
			ArtifactLocation: sarifArtifact{URI: loc.file.Path},
			Region: &sarifRegion{
				StartLine:   loc.start.Line,
				StartColumn: loc.start.Col,
				EndLine:     loc.end.Line,
				EndColumn:   loc.end.Col,
			},
		},
	}
	if msg != nil && *msg != "" {
		out.Message = &sarifMessage{Text: *msg}
	}
	return out
}
